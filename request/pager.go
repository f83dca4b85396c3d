package request

import (
	"context"
	"fmt"
	"sync"

	"github.com/s0up4200/reqflow/field"
)

// PagerOption configures a Pager
type PagerOption func(*Pager)

// WithItems sets where page items are found in a resolved page. The default
// is the "list" key.
func WithItems(d field.Descriptor) PagerOption {
	return func(p *Pager) {
		p.items = d
	}
}

// WithPageParam sets the data key carrying the page number
func WithPageParam(name string) PagerOption {
	return func(p *Pager) {
		if name != "" {
			p.param = name
		}
	}
}

// WithTransform post-processes the items of every page. A page the
// transform empties does not end the walk.
func WithTransform(fn func([]any) []any) PagerOption {
	return func(p *Pager) {
		p.transform = fn
	}
}

// Pager walks a paged listing endpoint, requesting page 1, 2, ... until a
// page comes back empty
type Pager struct {
	client    *Client
	opts      Options
	items     field.Descriptor
	param     string
	transform func([]any) []any

	mu   sync.Mutex
	page int
	end  bool
	all  []any
}

// Pager creates a Pager over opts. Repeat suppression is off for page calls
// unless opts sets RepeatTime.
func (c *Client) Pager(opts Options, pagerOpts ...PagerOption) *Pager {
	if opts.RepeatTime == nil {
		opts.RepeatTime = Repeat(0)
	}
	p := &Pager{
		client: c,
		opts:   opts,
		items:  field.Key("list"),
		param:  "page",
	}
	for _, opt := range pagerOpts {
		opt(p)
	}
	return p
}

// Reload starts over from page 1 and returns its items
func (p *Pager) Reload(ctx context.Context) ([]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = 1
	p.end = false
	p.all = nil
	return p.fetch(ctx)
}

// Next requests the following page. After the last page it returns nil
// without calling the endpoint.
func (p *Pager) Next(ctx context.Context) ([]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.end {
		return nil, nil
	}
	p.page++
	return p.fetch(ctx)
}

// Done reports whether an empty page has been seen
func (p *Pager) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.end
}

// Page returns the last requested page number
func (p *Pager) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// Items returns every item collected since the last Reload
func (p *Pager) Items() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.all...)
}

func (p *Pager) fetch(ctx context.Context) ([]any, error) {
	opts := p.opts
	opts.Data = make(map[string]any, len(p.opts.Data)+1)
	for k, v := range p.opts.Data {
		opts.Data[k] = v
	}
	opts.Data[p.param] = p.page

	value, err := p.client.Do(ctx, opts).Wait(ctx)
	if err != nil {
		p.page--
		return nil, err
	}

	raw, err := field.Resolve(ctx, p.items, value)
	if err != nil {
		p.page--
		return nil, fmt.Errorf("failed to read page items: %w", err)
	}
	if raw == nil {
		p.page--
		return nil, fmt.Errorf("page items %q not found", p.items.String())
	}

	items, ok := field.Normalize(raw).([]any)
	if !ok {
		p.page--
		return nil, fmt.Errorf("page items %q are %T, not a list", p.items.String(), raw)
	}
	// the end is an empty page from the server, not an empty transform
	if len(items) == 0 {
		p.end = true
	}
	if p.transform != nil {
		items = p.transform(items)
	}
	p.all = append(p.all, items...)
	return items, nil
}
