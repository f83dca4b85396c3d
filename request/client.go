package request

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/s0up4200/reqflow/debounce"
	"github.com/s0up4200/reqflow/middleware"
	"github.com/s0up4200/reqflow/reqconfig"
	"github.com/s0up4200/reqflow/transport"
)

// DefaultTimeout bounds a transport call when neither the call nor the
// client sets one
const DefaultTimeout = 30 * time.Second

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	config        reqconfig.Partial
	middleware    []middleware.Set
	global        *middleware.Registry
	transport     transport.Transport
	registry      *debounce.Registry
	logger        zerolog.Logger
	notifier      Notifier
	observer      Observer
	timeout       time.Duration
	repeatWindow  time.Duration
	throttleDelay time.Duration
}

// WithConfig overlays p on the built-in configuration for this client
func WithConfig(p reqconfig.Partial) Option {
	return func(o *clientOptions) {
		o.config = p
	}
}

// WithMiddleware seeds the client's scoped middleware
func WithMiddleware(s middleware.Set) Option {
	return func(o *clientOptions) {
		o.middleware = append(o.middleware, s)
	}
}

// WithGlobal sets the process-wide registry whose entries run before the
// client's own. Nil detaches the client from any global middleware.
func WithGlobal(r *middleware.Registry) Option {
	return func(o *clientOptions) {
		o.global = r
	}
}

// WithTransport sets the transport
func WithTransport(t transport.Transport) Option {
	return func(o *clientOptions) {
		if t != nil {
			o.transport = t
		}
	}
}

// WithRegistry sets the debounce registry, which may be shared by clients
func WithRegistry(r *debounce.Registry) Option {
	return func(o *clientOptions) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithNotifier sets the loading and toast surface
func WithNotifier(n Notifier) Option {
	return func(o *clientOptions) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithObserver sets the observer notified of every settled call
func WithObserver(obs Observer) Option {
	return func(o *clientOptions) {
		o.observer = obs
	}
}

// WithTimeout sets the default transport timeout
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRepeatWindow sets the default repeat-suppression window. Zero
// disables suppression for calls that do not set RepeatTime.
func WithRepeatWindow(d time.Duration) Option {
	return func(o *clientOptions) {
		if d >= 0 {
			o.repeatWindow = d
		}
	}
}

// WithThrottleDelay sets how long throttled calls wait for a newer call
func WithThrottleDelay(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.throttleDelay = d
		}
	}
}

// Client is a scoped request context: its own default configuration and
// middleware, composed with a global middleware registry.
type Client struct {
	store         *reqconfig.Store
	middle        *middleware.Registry
	global        *middleware.Registry
	transport     transport.Transport
	registry      *debounce.Registry
	logger        zerolog.Logger
	notifier      Notifier
	observer      Observer
	timeout       time.Duration
	repeatWindow  time.Duration
	throttleDelay time.Duration
}

// New creates a Client. Without options it uses the built-in configuration,
// the package-level global registry and an HTTP transport.
func New(opts ...Option) *Client {
	o := clientOptions{
		global:        Global(),
		logger:        zerolog.Nop(),
		timeout:       DefaultTimeout,
		repeatWindow:  debounce.DefaultRepeatWindow,
		throttleDelay: debounce.DefaultDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.transport == nil {
		o.transport = transport.NewHTTP(transport.WithLogger(o.logger))
	}
	if o.registry == nil {
		o.registry = debounce.NewRegistry(debounce.WithLogger(o.logger))
	}
	if o.notifier == nil {
		o.notifier = logNotifier{logger: o.logger}
	}

	return &Client{
		store:         reqconfig.NewStore(reqconfig.Merge(reqconfig.Defaults(), o.config)),
		middle:        middleware.NewRegistry(o.middleware...),
		global:        o.global,
		transport:     o.transport,
		registry:      o.registry,
		logger:        o.logger,
		notifier:      o.notifier,
		observer:      o.observer,
		timeout:       o.timeout,
		repeatWindow:  o.repeatWindow,
		throttleDelay: o.throttleDelay,
	}
}

// Middle returns the client's scoped middleware registry
func (c *Client) Middle() *middleware.Registry {
	return c.middle
}

// SetConfig applies p onto the client's defaults
func (c *Client) SetConfig(p reqconfig.Partial) {
	c.store.Set(p)
}

// GetConfig returns the client's defaults merged with p
func (c *Client) GetConfig(p reqconfig.Partial) reqconfig.Config {
	return c.store.Get(p)
}

// Transport returns the client's transport
func (c *Client) Transport() transport.Transport {
	return c.transport
}

// Do starts a call. Building the request and the repeat-suppression check
// happen before Do returns; the rest runs on its own goroutine.
func (c *Client) Do(ctx context.Context, opts Options) *Task {
	task := newTask()
	start := time.Now()

	p, err := c.prepare(ctx, task, opts)
	go func() {
		if err != nil {
			c.finish(ctx, task, p, start, nil, err)
			return
		}
		c.execute(ctx, task, p, start)
	}()
	return task
}

// Get is shorthand for a GET call
func (c *Client) Get(ctx context.Context, url string, data map[string]any) *Task {
	return c.Do(ctx, Get(url, data))
}

// Post is shorthand for a POST call
func (c *Client) Post(ctx context.Context, url string, data map[string]any) *Task {
	return c.Do(ctx, Post(url, data))
}

// Throttle delays the call and supersedes any earlier throttled call with
// the same method, endpoint, data and mark. Superseded calls reject with
// ErrOverridden and their in-flight transport call is cancelled. Throttled
// calls skip repeat suppression: the replacement of a superseded call must
// go out even when it repeats that call.
func (c *Client) Throttle(ctx context.Context, opts Options, mark string) *Task {
	task := newTask()
	key := throttleKey(opts, mark)
	opts.RepeatTime = Repeat(0)

	armed := make(chan struct{})
	var release func()
	release = c.registry.Schedule(key, c.throttleDelay,
		func() {
			err := overriddenError()
			if task.supersede(err) {
				p := &prepared{call: &reqconfig.Call{URL: opts.URL, Method: opts.Method}, throttled: true}
				c.observe(task, p, 0, err, false)
				task.publish()
			}
		},
		func() {
			<-armed
			defer release()

			if task.isSettled() {
				return
			}

			start := time.Now()
			p, err := c.prepare(ctx, task, opts)
			p.throttled = true
			if err != nil {
				c.finish(ctx, task, p, start, nil, err)
				return
			}
			c.execute(ctx, task, p, start)
		},
	)
	close(armed)
	return task
}

func throttleKey(opts Options, mark string) string {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = "GET"
	}
	return debounce.Key(opts.URL, opts.Data, method) + "#" + mark
}

// logNotifier is the Notifier used when none is configured
type logNotifier struct {
	logger zerolog.Logger
}

func (n logNotifier) ShowLoading(message string) {
	n.logger.Debug().Str("message", message).Msg("Loading")
}

func (n logNotifier) HideLoading() {}

func (n logNotifier) Toast(message string) {
	n.logger.Warn().Msg(message)
}

// Package-level defaults
var (
	global        = middleware.NewRegistry()
	defaultOnce   sync.Once
	defaultClient *Client
)

// Global returns the process-wide middleware registry. Clients created by
// New run its entries before their own.
func Global() *middleware.Registry {
	return global
}

// Default returns the process-wide client, creating it on first use
func Default() *Client {
	defaultOnce.Do(func() {
		defaultClient = New()
	})
	return defaultClient
}

// SetConfig applies p onto the default client's configuration
func SetConfig(p reqconfig.Partial) {
	Default().SetConfig(p)
}

// GetConfig returns the default client's configuration merged with p
func GetConfig(p reqconfig.Partial) reqconfig.Config {
	return Default().GetConfig(p)
}

// Do starts a call on the default client
func Do(ctx context.Context, opts Options) *Task {
	return Default().Do(ctx, opts)
}

// Throttle starts a throttled call on the default client
func Throttle(ctx context.Context, opts Options, mark string) *Task {
	return Default().Throttle(ctx, opts, mark)
}
