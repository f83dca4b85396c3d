// Package request is the request pipeline: configuration merge, URL
// building, middleware, repeat suppression, dispatch and result decoding.
//
// # Usage
//
//	client := request.New(
//		request.WithConfig(reqconfig.Partial{
//			Request: &reqconfig.RequestPartial{Origin: reqconfig.Literal("https://api.example.com")},
//		}),
//		request.WithLogger(logger),
//	)
//
//	task := client.Do(ctx, request.Options{URL: "users", Data: map[string]any{"page": 1}})
//	users, err := task.Wait(ctx)
//
// Throttle coalesces bursts, so only the last call of a burst is sent:
//
//	task := client.Throttle(ctx, request.Get("search", map[string]any{"q": text}), "search-box")
//
// # Decoding
//
// Unless result middleware is registered, the response body is decoded
// declaratively: the configured code and message fields are extracted, and
// when the code loosely equals the success code the data field resolves the
// task. Anything else rejects with an *Error carrying the extracted code and
// message.
//
// # Error Handling
//
// Every failure is an *Error (or whatever error middleware returns). Use
// errors.Is with ErrDuplicate, ErrOverridden, ErrMalformedURL, ErrBadFormat,
// ErrTimeout or ErrAborted to tell pipeline failures apart from business
// failures.
package request
