// Package engine routes requests to registered sources and fans searches
// out across all of them.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brogergvhs/mangasrc/internal/chapters"
	"github.com/brogergvhs/mangasrc/internal/errs"
	"github.com/brogergvhs/mangasrc/internal/providers"
	"github.com/brogergvhs/mangasrc/internal/ui"
)

const DefaultSourceTimeout = 90 * time.Second

type Options struct {
	// SourceTimeout bounds each source of a fan-out search on its own.
	SourceTimeout time.Duration
	// Concurrency caps simultaneous sources; zero runs all at once.
	Concurrency int
	Log         *ui.Logger
}

type Engine struct {
	mu      sync.RWMutex
	sources map[string]providers.Source
	order   []string

	timeout time.Duration
	limit   int
	log     *ui.Logger
}

func New(opts Options) *Engine {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = DefaultSourceTimeout
	}
	if opts.Log == nil {
		opts.Log = ui.Nop()
	}

	return &Engine{
		sources: map[string]providers.Source{},
		timeout: opts.SourceTimeout,
		limit:   opts.Concurrency,
		log:     opts.Log.Component("engine"),
	}
}

func (e *Engine) Register(src providers.Source) error {
	name := strings.ToLower(strings.TrimSpace(src.Name()))
	if name == "" {
		return fmt.Errorf("%w: source without a name", errs.ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sources[name]; ok {
		return fmt.Errorf("source %q registered twice", name)
	}
	e.sources[name] = src
	e.order = append(e.order, name)

	return nil
}

func (e *Engine) Get(name string) (providers.Source, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	src, ok := e.sources[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownSource, name)
	}

	return src, nil
}

// Names lists sources in registration order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return append([]string(nil), e.order...)
}

type SourceResult struct {
	Source  string   `json:"source"`
	Count   int      `json:"count"`
	HasMore bool     `json:"hasMore"`
	Notes   []string `json:"notes,omitempty"`
}

type SourceFailure struct {
	Source   string `json:"source"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

type Aggregate struct {
	Entries     []providers.CatalogEntry `json:"entries"`
	Sources     []SourceResult           `json:"sources"`
	Unavailable []SourceFailure          `json:"unavailable"`
}

type outcome struct {
	page providers.SearchPage
	err  error
}

// SearchAll queries every registered source concurrently. A failing or
// slow source is reported in Unavailable; the call itself never fails.
// Entries keep registration order across sources.
func (e *Engine) SearchAll(ctx context.Context, q providers.SearchQuery) Aggregate {
	names := e.Names()
	results := make([]outcome, len(names))

	var sem chan struct{}
	if e.limit > 0 {
		sem = make(chan struct{}, e.limit)
	}

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					results[i] = outcome{err: ctx.Err()}
					return
				}
			}

			results[i] = e.searchOne(ctx, name, q)
		}()
	}
	wg.Wait()

	agg := Aggregate{
		Entries:     []providers.CatalogEntry{},
		Sources:     []SourceResult{},
		Unavailable: []SourceFailure{},
	}
	for i, name := range names {
		r := results[i]
		if r.err != nil {
			e.log.Zero().Warn().Str("source", name).Str("category", errs.Category(r.err)).Err(r.err).Msg("source unavailable")
			agg.Unavailable = append(agg.Unavailable, SourceFailure{
				Source:   name,
				Category: errs.Category(r.err),
				Message:  r.err.Error(),
			})
			continue
		}

		agg.Entries = append(agg.Entries, r.page.Entries...)
		agg.Sources = append(agg.Sources, SourceResult{
			Source:  name,
			Count:   len(r.page.Entries),
			HasMore: r.page.HasMore,
			Notes:   r.page.Notes,
		})
	}

	return agg
}

// searchOne runs one source under its own deadline. The result is
// abandoned when the deadline passes even if the source ignores ctx.
func (e *Engine) searchOne(ctx context.Context, name string, q providers.SearchQuery) outcome {
	src, err := e.Get(name)
	if err != nil {
		return outcome{err: err}
	}

	sctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%s search panicked: %v", name, r)}
			}
		}()

		page, err := src.Search(sctx, q)
		done <- outcome{page: page, err: err}
	}()

	select {
	case o := <-done:
		return o
	case <-sctx.Done():
		return outcome{err: fmt.Errorf("%s search: %w", name, sctx.Err())}
	}
}

func (e *Engine) Search(ctx context.Context, source string, q providers.SearchQuery) (providers.SearchPage, error) {
	src, err := e.Get(source)
	if err != nil {
		return providers.SearchPage{}, err
	}

	return src.Search(ctx, q)
}

func (e *Engine) Details(ctx context.Context, source, slug string) (providers.WorkDetails, error) {
	src, err := e.Get(source)
	if err != nil {
		return providers.WorkDetails{}, err
	}

	return src.Details(ctx, slug)
}

func (e *Engine) Chapters(ctx context.Context, source, slug string, order chapters.Order) ([]providers.ChapterRef, error) {
	src, err := e.Get(source)
	if err != nil {
		return nil, err
	}

	refs, err := src.Chapters(ctx, slug)
	if err != nil {
		return nil, err
	}

	chapters.Sort(refs, order)
	return refs, nil
}

// Pages resolves page assets and guarantees contiguous 1-based indices.
func (e *Engine) Pages(ctx context.Context, source string, req providers.PagesRequest) ([]providers.PageAsset, error) {
	src, err := e.Get(source)
	if err != nil {
		return nil, err
	}

	assets, err := src.Pages(ctx, req)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(assets, func(i, j int) bool { return assets[i].Index < assets[j].Index })
	for i := range assets {
		assets[i].Index = i + 1
	}

	return assets, nil
}

// ResolveChapter finds the chapter named by label in the source's list and
// fills its read URL into a pages request.
func (e *Engine) ResolveChapter(ctx context.Context, source, slug, label string) (providers.ChapterRef, error) {
	refs, err := e.Chapters(ctx, source, slug, chapters.Ascending)
	if err != nil {
		return providers.ChapterRef{}, err
	}

	ref, ok := chapters.Find(refs, label)
	if !ok {
		return providers.ChapterRef{}, fmt.Errorf("%w: chapter %q not found for %s", errs.ErrInvalidInput, label, slug)
	}

	return ref, nil
}
