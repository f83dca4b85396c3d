// Package transport is the network collaborator of the request pipeline.
//
// The Transport interface covers plain calls and multipart uploads with
// byte-level progress. HTTP implements it on net/http.
//
// # Usage
//
//	t := transport.NewHTTP(
//		transport.WithLogger(logger),
//		transport.WithFailOnStatus(true),
//	)
//	resp, err := t.Do(ctx, &transport.Request{
//		URL:    "https://api.example.com/api/users?page=1",
//		Method: http.MethodGet,
//	})
//
// # Error Handling
//
// Failed calls return an *Error. Class holds an errno-like label from
// errclass (ETIMEDOUT, ECONNREFUSED, ...). Response is set when the server
// answered but the status was treated as a failure.
package transport
