// Package pager walks cursor-paginated listings.
package pager

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tomnomnom/linkheader"
)

// FetchFunc fetches one page. A nil next value means there are no further pages.
type FetchFunc[T any] func(ctx context.Context, params url.Values) (items []T, next url.Values, err error)

// Pager is a forward-only sequence of pages. Each page is fetched once and
// the sequence cannot be restarted.
type Pager[T any] struct {
	fetch  FetchFunc[T]
	params url.Values
	page   []T
	err    error
	done   bool
	pages  int
}

func New[T any](fetch FetchFunc[T], initial url.Values) *Pager[T] {
	return &Pager[T]{fetch: fetch, params: initial}
}

// Next fetches the following page. It returns false once the listing is
// exhausted or a fetch failed; check Err afterwards.
func (p *Pager[T]) Next(ctx context.Context) bool {
	if p.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		p.fail(err)
		return false
	}

	items, next, err := p.fetch(ctx, p.params)
	if err != nil {
		p.fail(fmt.Errorf("page %d: %w", p.pages+1, err))
		return false
	}

	p.pages++
	p.page = items
	p.params = next
	if next == nil {
		p.done = true
	}
	// the final page is still delivered to the caller
	return true
}

func (p *Pager[T]) Page() []T {
	return p.page
}

func (p *Pager[T]) Err() error {
	return p.err
}

// Pages returns how many pages have been fetched so far.
func (p *Pager[T]) Pages() int {
	return p.pages
}

func (p *Pager[T]) fail(err error) {
	p.err = err
	p.page = nil
	p.done = true
}

// All concatenates every page in order. Any page failure fails the whole call.
func All[T any](ctx context.Context, fetch FetchFunc[T], initial url.Values) ([]T, error) {
	var all []T
	p := New(fetch, initial)
	for p.Next(ctx) {
		all = append(all, p.Page()...)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return all, nil
}

// NextParams extracts the query parameters of the rel="next" URL from a Link
// header. It returns nil when there is no next page.
func NextParams(header string) url.Values {
	if header == "" {
		return nil
	}
	for _, link := range linkheader.Parse(header).FilterByRel("next") {
		u, err := url.Parse(link.URL)
		if err != nil {
			continue
		}
		return u.Query()
	}
	return nil
}
