package upload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/reqflow/field"
	"github.com/s0up4200/reqflow/reqconfig"
	"github.com/s0up4200/reqflow/request"
	"github.com/s0up4200/reqflow/transport"
)

// ErrNothingSelected is the cause of the error returned when selection
// yields no files
var ErrNothingSelected = errors.New("nothing selected")

// Options configures a single batch upload
type Options struct {
	// Kind defaults to KindImage
	Kind Kind
	SelectOptions

	// API, RequestField and ResultField override the configured upload
	// settings for this batch
	API          string
	RequestField string
	ResultField  *field.Descriptor

	FormData map[string]string
	Timeout  time.Duration
	Config   *reqconfig.Partial

	// Concurrency caps parallel transfers. Zero sends every file at once.
	Concurrency int
	// CancelOnFailure cancels sibling transfers when one fails. By default
	// the batch fails on the first error while siblings run to completion.
	CancelOnFailure bool
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// Orchestrator runs batch uploads through a request client's configuration
// and transport
type Orchestrator struct {
	client   *request.Client
	selector Selector
	logger   zerolog.Logger
}

// New creates an Orchestrator. A nil client uses request.Default().
func New(client *request.Client, selector Selector, opts ...Option) *Orchestrator {
	if client == nil {
		client = request.Default()
	}
	o := &Orchestrator{
		client:   client,
		selector: selector,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Upload selects files and transfers them concurrently. The returned task
// is live immediately; register hooks before selection completes to see
// every event.
func (o *Orchestrator) Upload(ctx context.Context, opts Options) *Task {
	task := newTask()
	go o.run(ctx, task, opts)
	return task
}

func (o *Orchestrator) config(opts Options) reqconfig.Config {
	var partial reqconfig.Partial
	if opts.Config != nil {
		partial = *opts.Config
	}
	cfg := o.client.GetConfig(partial)

	if opts.API != "" {
		cfg.Upload.API = opts.API
	}
	if opts.RequestField != "" {
		cfg.Upload.RequestField = opts.RequestField
	}
	if opts.ResultField != nil {
		cfg.Upload.ResultField = *opts.ResultField
	}
	return cfg
}

func (o *Orchestrator) run(parent context.Context, task *Task, opts Options) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cfg := o.config(opts)
	log := o.logger.With().Str("task", task.ID()).Logger()

	if !task.bind(cancel) {
		task.settle(nil, request.AbortedError(cfg.Result.ErrorCode, context.Canceled))
		return
	}

	kind := opts.Kind
	if kind == "" {
		kind = KindImage
	}

	files, err := o.selector.Select(ctx, kind, opts.SelectOptions)
	if err != nil {
		if ctx.Err() != nil {
			err = request.AbortedError(cfg.Result.ErrorCode, err)
		}
		task.settle(nil, fmt.Errorf("failed to select files: %w", err))
		return
	}
	if len(files) == 0 {
		task.settle(nil, &request.Error{Code: cfg.Result.ErrorCode, Message: ErrNothingSelected.Error(), Cause: ErrNothingSelected})
		return
	}

	url, header, call, err := request.UploadTarget(ctx, cfg)
	if err != nil {
		task.settle(nil, err)
		return
	}

	log.Debug().
		Int("files", len(files)).
		Str("url", url).
		Bool("cancel_on_failure", opts.CancelOnFailure).
		Msg("Starting upload")

	results := make([]any, len(files))
	track := newTracker(len(files), task.progress)

	var g *errgroup.Group
	gctx := ctx
	if opts.CancelOnFailure {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}

	task.start()

	for i, file := range files {
		g.Go(func() error {
			value, err := o.transfer(ctx, gctx, cfg, call, opts, url, header, file, func(sent, total int64) {
				track.update(i, sent, total)
			})
			if err != nil {
				log.Warn().Err(err).Str("path", file.Path).Msg("Upload failed")
				task.settle(nil, err)
				return err
			}
			track.set(i, 1)
			results[i] = value
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return
	}

	track.finish()
	if task.settle(results, nil) {
		log.Debug().Int("files", len(files)).Msg("Upload finished")
	}
}

func (o *Orchestrator) transfer(batchCtx, ctx context.Context, cfg reqconfig.Config, call *reqconfig.Call, opts Options, url string, header map[string]string, file File, progress transport.ProgressFunc) (any, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := o.client.Transport().Upload(callCtx, &transport.UploadRequest{
		URL:      url,
		Header:   header,
		Field:    cfg.Upload.RequestField,
		Path:     file.Path,
		Name:     filepath.Base(file.Path),
		Size:     file.Size,
		FormData: opts.FormData,
		Timeout:  opts.Timeout,
	}, progress)
	return request.DecodeUpload(batchCtx, callCtx, cfg, resp, err, call)
}
