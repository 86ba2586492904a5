// Package paginate walks multi-page listings to completion within fixed
// ceilings: numbered pages, "show more" reveal controls and infinite scroll.
// Hitting a ceiling marks the result truncated; it is never an error.
package paginate

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxPages         = 20
	SearchScrollIterations  = 20
	ChapterScrollIterations = 10
	DefaultRevealRounds     = 30
)

// Surface is a live page the controller can measure and interact with.
type Surface interface {
	Count(ctx context.Context, selector string) (int, error)
	Height(ctx context.Context) (int, error)
	ScrollToBottom(ctx context.Context) error
	ClickFirst(ctx context.Context, selectors []string) (bool, error)
	ClickByText(ctx context.Context, phrases []string) (bool, error)
}

type Result struct {
	// Rounds counts fetched pages, reveal clicks or scroll iterations.
	Rounds    int
	Truncated bool
}

// Numbered fetches pages 1..maxPages until one comes back empty. A failure
// on the first page is returned; later failures end the walk with what was
// collected.
func Numbered[T any](ctx context.Context, maxPages int, fetch func(ctx context.Context, page int) ([]T, error)) ([]T, Result, error) {
	if maxPages < 1 {
		maxPages = DefaultMaxPages
	}

	var (
		all []T
		res Result
	)

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			if page == 1 {
				return nil, res, err
			}
			return all, res, nil
		}

		items, err := fetch(ctx, page)
		if err != nil {
			if page == 1 {
				return nil, res, err
			}
			return all, res, nil
		}

		res.Rounds = page
		if len(items) == 0 {
			return all, res, nil
		}

		all = append(all, items...)
		if page == maxPages {
			res.Truncated = true
		}
	}

	return all, res, nil
}

var DefaultRevealPhrases = []string{
	"show more",
	"load more",
	"see more",
	"more chapters",
	"ver más",
	"ver mas",
	"mostrar más",
	"cargar más",
}

type RevealOptions struct {
	ItemSelector string
	Selectors    []string
	Phrases      []string
	Settle       time.Duration
	Poll         time.Duration
	MaxRounds    int
}

func (o RevealOptions) normalized() RevealOptions {
	if o.Phrases == nil {
		o.Phrases = DefaultRevealPhrases
	}
	if o.Settle <= 0 {
		o.Settle = 3 * time.Second
	}
	if o.Poll <= 0 {
		o.Poll = 200 * time.Millisecond
	}
	if o.MaxRounds < 1 {
		o.MaxRounds = DefaultRevealRounds
	}

	return o
}

// Reveal clicks the "show more" control until the item count stops growing
// or no control is left.
func Reveal(ctx context.Context, s Surface, opts RevealOptions) (Result, error) {
	opts = opts.normalized()
	var res Result

	for res.Rounds < opts.MaxRounds {
		before, err := s.Count(ctx, opts.ItemSelector)
		if err != nil {
			return res, err
		}

		clicked, err := clickControl(ctx, s, opts.Selectors, opts.Phrases)
		if err != nil {
			return res, err
		}
		if !clicked {
			return res, nil
		}

		grew, err := waitForGrowth(ctx, opts.Settle, opts.Poll, before, func(c context.Context) (int, error) {
			return s.Count(c, opts.ItemSelector)
		})
		if err != nil {
			return res, err
		}
		if !grew {
			return res, nil
		}

		res.Rounds++
	}

	res.Truncated = true
	return res, nil
}

type ScrollOptions struct {
	MaxIterations int
	// Wait is the pause between scrolling and re-measuring.
	Wait              time.Duration
	LoadMoreSelectors []string
	LoadMorePhrases   []string
}

// Scroll scrolls to the current extent repeatedly, clicking any load-more
// control on the way, until the extent stops growing.
func Scroll(ctx context.Context, s Surface, opts ScrollOptions) (Result, error) {
	if opts.MaxIterations < 1 {
		opts.MaxIterations = SearchScrollIterations
	}
	if opts.Wait <= 0 {
		opts.Wait = time.Second
	}

	var res Result
	for res.Rounds < opts.MaxIterations {
		before, err := s.Height(ctx)
		if err != nil {
			return res, err
		}

		if err := s.ScrollToBottom(ctx); err != nil {
			return res, err
		}
		if len(opts.LoadMoreSelectors) > 0 || len(opts.LoadMorePhrases) > 0 {
			if _, err := clickControl(ctx, s, opts.LoadMoreSelectors, opts.LoadMorePhrases); err != nil {
				return res, err
			}
		}

		if err := sleep(ctx, opts.Wait); err != nil {
			return res, err
		}

		after, err := s.Height(ctx)
		if err != nil {
			return res, err
		}
		if after <= before {
			return res, nil
		}

		res.Rounds++
	}

	res.Truncated = true
	return res, nil
}

func clickControl(ctx context.Context, s Surface, selectors, phrases []string) (bool, error) {
	if len(selectors) > 0 {
		ok, err := s.ClickFirst(ctx, selectors)
		if err != nil || ok {
			return ok, err
		}
	}
	if len(phrases) > 0 {
		return s.ClickByText(ctx, phrases)
	}

	return false, nil
}

func waitForGrowth(ctx context.Context, settle, poll time.Duration, before int, count func(context.Context) (int, error)) (bool, error) {
	wctx, cancel := context.WithTimeout(ctx, settle)
	defer cancel()

	t := time.NewTicker(poll)
	defer t.Stop()

	for {
		select {
		case <-wctx.Done():
			return false, ctx.Err()
		case <-t.C:
		}

		n, err := count(wctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return false, ctx.Err()
			}
			continue
		}
		if n > before {
			return true, nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
