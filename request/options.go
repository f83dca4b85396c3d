package request

import (
	"context"
	"errors"
	"time"

	"github.com/s0up4200/reqflow/middleware"
	"github.com/s0up4200/reqflow/reqconfig"
)

// Options is the per-call option surface. Only URL is required.
type Options struct {
	// URL is an endpoint joined under the configured origin and path, or an
	// absolute URL used verbatim
	URL    string
	Method string
	Data   map[string]any
	Header map[string]string
	// Timeout bounds the transport call. Zero uses the client default.
	Timeout time.Duration
	// RepeatTime is the repeat-suppression window. Nil uses the client
	// default; zero disables suppression.
	RepeatTime *time.Duration
	// Loading is started right before dispatch and stopped on every exit
	Loading Loading
	// Toast surfaces the final error message through the Notifier
	Toast  bool
	Config *reqconfig.Partial
	Middle *middleware.Set
}

// Get returns options for a GET call
func Get(url string, data map[string]any) Options {
	return Options{URL: url, Method: "GET", Data: data}
}

// Post returns options for a POST call
func Post(url string, data map[string]any) Options {
	return Options{URL: url, Method: "POST", Data: data}
}

// Repeat returns a RepeatTime value
func Repeat(d time.Duration) *time.Duration {
	return &d
}

// Loading is a side effect that runs while a call is in flight
type Loading interface {
	Start(ctx context.Context, n Notifier) (stop func())
}

// LoadingText shows a loading message through the client Notifier
type LoadingText string

// Start implements Loading
func (l LoadingText) Start(_ context.Context, n Notifier) func() {
	n.ShowLoading(string(l))
	return n.HideLoading
}

// LoadingFunc starts a custom loading side effect and returns its stop func
type LoadingFunc func(ctx context.Context) (stop func())

// Start implements Loading
func (f LoadingFunc) Start(ctx context.Context, _ Notifier) func() {
	if stop := f(ctx); stop != nil {
		return stop
	}
	return func() {}
}

// Notifier surfaces user-visible state
type Notifier interface {
	ShowLoading(message string)
	HideLoading()
	Toast(message string)
}

// Outcome classifies how a call settled
type Outcome string

// Call outcomes reported to an Observer
const (
	OutcomeSuccess    Outcome = "success"
	OutcomeRecovered  Outcome = "recovered"
	OutcomeFailure    Outcome = "failure"
	OutcomeBadFormat  Outcome = "bad_format"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeOverridden Outcome = "overridden"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeAborted    Outcome = "aborted"
	OutcomeTransport  Outcome = "transport_error"
	OutcomeInvalid    Outcome = "invalid"
)

// Event describes a settled call
type Event struct {
	TaskID    string
	Method    string
	URL       string
	Outcome   Outcome
	Code      any
	Class     string
	Duration  time.Duration
	Throttled bool
}

// Observer receives an Event for every settled call
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(Event)

// Observe implements Observer
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

func outcomeOf(err error, recovered bool) Outcome {
	if err == nil {
		if recovered {
			return OutcomeRecovered
		}
		return OutcomeSuccess
	}
	var e *Error
	if !errors.As(err, &e) {
		return OutcomeFailure
	}
	switch e.kind {
	case kindDuplicate:
		return OutcomeDuplicate
	case kindOverridden:
		return OutcomeOverridden
	case kindBadFormat:
		return OutcomeBadFormat
	case kindTimeout:
		return OutcomeTimeout
	case kindAborted:
		return OutcomeAborted
	case kindTransport:
		return OutcomeTransport
	case kindMalformedURL, kindConfig:
		return OutcomeInvalid
	default:
		return OutcomeFailure
	}
}
