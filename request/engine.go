package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bassosimone/errclass"

	"github.com/s0up4200/reqflow/debounce"
	"github.com/s0up4200/reqflow/middleware"
	"github.com/s0up4200/reqflow/reqconfig"
	"github.com/s0up4200/reqflow/transport"
)

// prepared is a built call ready for preflight
type prepared struct {
	cfg       reqconfig.Config
	call      *reqconfig.Call
	params    *transport.Request
	set       middleware.Set
	opts      Options
	throttled bool
}

// isBodyMethod reports whether data travels in the request body
func isBodyMethod(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	default:
		return false
	}
}

// prepare merges configuration, builds the transport request and runs the
// repeat-suppression gate. The returned prepared is never nil.
func (c *Client) prepare(ctx context.Context, task *Task, opts Options) (*prepared, error) {
	var partial reqconfig.Partial
	if opts.Config != nil {
		partial = *opts.Config
	}
	cfg := c.store.Get(partial)

	var local middleware.Set
	if opts.Middle != nil {
		local = *opts.Middle
	}

	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = "GET"
	}

	call := &reqconfig.Call{URL: opts.URL, Method: method, Data: opts.Data, Header: opts.Header}
	p := &prepared{
		cfg:  cfg,
		call: call,
		set:  middleware.Compose(c.global.Snapshot(), c.middle.Snapshot(), local),
		opts: opts,
	}

	defaults, err := reqconfig.Resolve(ctx, cfg.Request.Data, call)
	if err != nil {
		return p, configError(cfg, "data", err)
	}
	data := make(map[string]any, len(defaults)+len(opts.Data))
	for k, v := range defaults {
		data[k] = v
	}
	for k, v := range opts.Data {
		data[k] = v
	}
	call.Data = data

	getData, err := reqconfig.Resolve(ctx, cfg.Request.GetData, call)
	if err != nil {
		return p, configError(cfg, "getData", err)
	}
	query := make(map[string]any, len(getData))
	for k, v := range getData {
		query[k] = v
	}
	body := isBodyMethod(method)
	if !body {
		for k, v := range data {
			query[k] = v
		}
	}

	url, err := BuildURL(ctx, opts.URL, query, cfg.Request, call)
	if err != nil {
		return p, newError(kindMalformedURL, cfg.Result.ErrorCode, ErrMalformedURL.Message, err)
	}
	call.URL = url

	defaultHeader, err := reqconfig.Resolve(ctx, cfg.Request.Header, call)
	if err != nil {
		return p, configError(cfg, "header", err)
	}
	header := make(map[string]string, len(defaultHeader)+len(opts.Header)+1)
	for k, v := range defaultHeader {
		header[k] = v
	}
	if cfg.Request.ContentType != "" {
		header["Content-Type"] = cfg.Request.ContentType
	}
	for k, v := range opts.Header {
		header[k] = v
	}
	call.Header = header

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	p.params = &transport.Request{
		URL:         url,
		Method:      method,
		Header:      header,
		ContentType: cfg.Request.ContentType,
		Timeout:     timeout,
	}
	if body {
		p.params.Body = data
	}

	window := c.repeatWindow
	if opts.RepeatTime != nil {
		window = *opts.RepeatTime
	}
	ok, err := c.registry.Allow(ctx, debounce.Key(url, p.params.Body, method), window)
	if err != nil {
		c.logger.Warn().Err(err).Str("task", task.ID()).Msg("Repeat check failed, dispatching anyway")
		ok = true
	}
	if !ok {
		return p, duplicateError()
	}
	return p, nil
}

// execute runs preflight, dispatch and decode, then settles the task
func (c *Client) execute(ctx context.Context, task *Task, p *prepared, start time.Time) {
	params, err := middleware.Run(ctx, p.set.Before, p.params, p.call)
	if err != nil {
		c.finish(ctx, task, p, start, nil, err)
		return
	}
	if params != nil {
		p.params = params
	}

	value, err := c.dispatch(ctx, task, p)
	c.finish(ctx, task, p, start, value, err)
}

func (c *Client) dispatch(ctx context.Context, task *Task, p *prepared) (any, error) {
	if p.opts.Loading != nil {
		stop := p.opts.Loading.Start(ctx, c.notifier)
		defer stop()
	}

	callCtx, cancel := context.WithTimeout(ctx, p.params.Timeout)
	defer cancel()

	if !task.bind(cancel) {
		return nil, newError(kindAborted, p.cfg.Result.ErrorCode, ErrAborted.Message, nil)
	}

	resp, err := c.transport.Do(callCtx, p.params)
	if err != nil {
		return nil, c.transportError(ctx, callCtx, task, p, err)
	}

	if len(p.set.Result) > 0 {
		return middleware.Run(ctx, p.set.Result, any(resp), p.call)
	}
	return DecodeResult(ctx, p.cfg.Result, p.cfg.Result.Data, resp, p.call)
}

func (c *Client) transportError(ctx, callCtx context.Context, task *Task, p *prepared, err error) error {
	return transportFailure(ctx, callCtx, task.isAborted(), p.cfg.Result, p.call, err)
}

// transportFailure classifies a failed transport call. ctx is the caller's
// context and callCtx the one the transport ran under.
func transportFailure(ctx, callCtx context.Context, aborted bool, cfg reqconfig.ResultConfig, call *reqconfig.Call, err error) error {
	code := cfg.ErrorCode

	switch {
	case aborted, ctx.Err() != nil:
		return newError(kindAborted, code, ErrAborted.Message, err)
	case errors.Is(callCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		e := newError(kindTimeout, code, ErrTimeout.Message, err)
		e.Class = errclass.ETIMEDOUT
		return e
	}

	var tErr *transport.Error
	if errors.As(err, &tErr) && tErr.Response != nil {
		if e, ok := decodeFailure(ctx, cfg, tErr.Response, call); ok {
			e.Cause = err
			return e
		}
	}

	e := newError(kindTransport, code, err.Error(), err)
	e.Class = transport.Classify(err)
	if tErr != nil && tErr.Class != "" {
		e.Class = tErr.Class
	}
	return e
}

// finish runs error middleware and the toast, then settles the task
func (c *Client) finish(ctx context.Context, task *Task, p *prepared, start time.Time, value any, err error) {
	if task.isSettled() {
		return
	}

	recovered := false
	if err != nil && len(p.set.Error) > 0 {
		v, rerr := middleware.RecoverErr(ctx, p.set.Error, err, p.call)
		if rerr == nil {
			value, err, recovered = v, nil, true
		} else {
			err = rerr
		}
	}

	if err != nil && p.opts.Toast {
		message := err.Error()
		var reqErr *Error
		if errors.As(err, &reqErr) {
			reqErr.URL = p.call.URL
			message = reqErr.Message
		}
		c.notifier.Toast(message)
	}

	if !task.claim(value, err) {
		return
	}
	c.observe(task, p, time.Since(start), err, recovered)
	task.publish()
}

func (c *Client) observe(task *Task, p *prepared, d time.Duration, err error, recovered bool) {
	ev := Event{
		TaskID:    task.ID(),
		Method:    p.call.Method,
		URL:       p.call.URL,
		Outcome:   outcomeOf(err, recovered),
		Duration:  d,
		Throttled: p.throttled,
	}
	var reqErr *Error
	if errors.As(err, &reqErr) {
		ev.Code = reqErr.Code
		ev.Class = reqErr.Class
	}

	c.logger.Debug().
		Err(err).
		Str("task", ev.TaskID).
		Str("method", ev.Method).
		Str("url", ev.URL).
		Str("outcome", string(ev.Outcome)).
		Dur("duration", d).
		Bool("throttled", ev.Throttled).
		Msg("Request settled")

	if c.observer != nil {
		c.observer.Observe(ev)
	}
}

func configError(cfg reqconfig.Config, what string, err error) *Error {
	return newError(kindConfig, cfg.Result.ErrorCode, fmt.Sprintf("failed to resolve %s: %v", what, err), err)
}
