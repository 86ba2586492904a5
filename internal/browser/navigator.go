package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brogergvhs/mangasrc/internal/errs"
	"github.com/brogergvhs/mangasrc/internal/transport"
	"github.com/brogergvhs/mangasrc/internal/ui"
)

// Snapshot is what the tab shows at one instant.
type Snapshot struct {
	URL   string
	Title string
	Text  string
	HTML  string
}

// Page is the part of a tab the navigator drives.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Snapshot(ctx context.Context) (Snapshot, error)
}

// MinBodyText is the visible text length below which a page is treated as
// an interstitial rather than content.
const MinBodyText = 200

// IsChallenge reports whether snap looks like an anti-bot interstitial or
// block page instead of real content. A near-empty body counts as one.
func IsChallenge(snap Snapshot) bool {
	if transport.Blocked(snap.Title, snap.Text, snap.HTML) {
		return true
	}

	return len([]rune(strings.TrimSpace(snap.Text))) < MinBodyText
}

// Budget bounds every wait of one navigation.
type Budget struct {
	Navigate time.Duration `yaml:"navigate"`
	Settle   time.Duration `yaml:"settle"`
	Poll     time.Duration `yaml:"poll"`
	// Total caps one whole Navigate call. Zero means two loads plus two
	// settle windows.
	Total time.Duration `yaml:"total"`
}

func DefaultBudget() Budget {
	return Budget{Navigate: 30 * time.Second, Settle: 15 * time.Second, Poll: 500 * time.Millisecond}
}

func (b Budget) normalized() Budget {
	d := DefaultBudget()
	if b.Navigate <= 0 {
		b.Navigate = d.Navigate
	}
	if b.Settle < 0 {
		b.Settle = 0
	}
	if b.Poll <= 0 {
		b.Poll = d.Poll
	}
	if b.Total <= 0 {
		b.Total = 2*b.Navigate + 2*b.Settle
	}

	return b
}

type Navigator struct {
	page   Page
	budget Budget
	cond   Conditioning
	log    *ui.Logger
}

func NewNavigator(p Page, budget Budget, cond Conditioning, log *ui.Logger) *Navigator {
	if log == nil {
		log = ui.Nop()
	}

	return &Navigator{page: p, budget: budget.normalized(), cond: cond, log: log.Component("navigator")}
}

// Fetch implements transport.DirectFetcher with the navigator's budget.
func (n *Navigator) Fetch(ctx context.Context, url string) (*transport.Document, error) {
	return n.Navigate(ctx, url, n.budget)
}

// Navigate loads url and waits out a detected challenge: a bounded settle
// poll, one reload, one more settle. When the challenge never clears the
// best snapshot seen is returned together with errs.ErrChallengeUnresolved.
func (n *Navigator) Navigate(ctx context.Context, url string, budget Budget) (*transport.Document, error) {
	budget = budget.normalized()
	ctx, cancel := context.WithTimeout(ctx, budget.Total)
	defer cancel()

	n.ensureConditioned(ctx)

	navErr := n.load(ctx, budget, func(c context.Context) error { return n.page.Navigate(c, url) })

	best, ok := n.snapshot(ctx, budget)
	if !ok {
		if navErr == nil {
			navErr = errors.New("no snapshot")
		}
		return nil, fmt.Errorf("navigate %s: %w", url, navErr)
	}
	if navErr != nil {
		n.log.Debugf("navigation to %s reported %v; inspecting what loaded", url, navErr)
	}
	if !IsChallenge(best) {
		return toDocument(url, best), nil
	}

	n.log.Infof("challenge detected on %s, waiting up to %s", url, budget.Settle)
	snap, cleared := n.settle(ctx, budget)
	best = better(best, snap)
	if cleared {
		return toDocument(url, snap), nil
	}

	if err := ctx.Err(); err != nil {
		return toDocument(url, best), fmt.Errorf("%w: %s: %w", errs.ErrChallengeUnresolved, url, err)
	}

	n.log.Infof("challenge persists on %s, reloading once", url)
	if err := n.load(ctx, budget, n.page.Reload); err != nil {
		n.log.Debugf("reload of %s: %v", url, err)
	}

	if snap, ok := n.snapshot(ctx, budget); ok {
		best = better(best, snap)
		if !IsChallenge(snap) {
			return toDocument(url, snap), nil
		}
	}

	snap, cleared = n.settle(ctx, budget)
	best = better(best, snap)
	if cleared {
		return toDocument(url, snap), nil
	}

	n.log.Warnf("challenge unresolved on %s", url)
	return toDocument(url, best), fmt.Errorf("%w: %s", errs.ErrChallengeUnresolved, url)
}

func (n *Navigator) ensureConditioned(ctx context.Context) {
	c, ok := n.page.(Conditioner)
	if !ok || c.Conditioned() {
		return
	}

	if err := c.Condition(ctx, n.cond); err != nil && !errors.Is(err, ErrAlreadyConditioned) {
		n.log.Warnf("conditioning failed, continuing unconditioned: %v", err)
	}
}

func (n *Navigator) load(ctx context.Context, budget Budget, fn func(context.Context) error) error {
	lctx, cancel := context.WithTimeout(ctx, budget.Navigate)
	defer cancel()

	return fn(lctx)
}

func (n *Navigator) snapshot(ctx context.Context, budget Budget) (Snapshot, bool) {
	sctx, cancel := context.WithTimeout(ctx, budget.Navigate)
	defer cancel()

	snap, err := n.page.Snapshot(sctx)
	if err != nil || strings.TrimSpace(snap.HTML) == "" {
		return Snapshot{}, false
	}

	return snap, true
}

// settle polls until the challenge signature clears or the settle budget
// runs out. It returns the last snapshot taken.
func (n *Navigator) settle(ctx context.Context, budget Budget) (Snapshot, bool) {
	sctx, cancel := context.WithTimeout(ctx, budget.Settle)
	defer cancel()

	t := time.NewTicker(budget.Poll)
	defer t.Stop()

	var last Snapshot
	for {
		select {
		case <-sctx.Done():
			return last, false
		case <-t.C:
		}

		snap, err := n.page.Snapshot(sctx)
		if err != nil {
			continue
		}

		last = better(last, snap)
		if !IsChallenge(snap) {
			return snap, true
		}
	}
}

// better prefers a non-challenge snapshot, then the one with more text.
func better(a, b Snapshot) Snapshot {
	switch {
	case b.HTML == "":
		return a
	case a.HTML == "":
		return b
	}

	ac, bc := IsChallenge(a), IsChallenge(b)
	if ac != bc {
		if ac {
			return b
		}
		return a
	}
	if len(b.Text) > len(a.Text) {
		return b
	}

	return a
}

func toDocument(requested string, snap Snapshot) *transport.Document {
	u := snap.URL
	if u == "" || u == "about:blank" {
		u = requested
	}

	return &transport.Document{URL: u, Title: snap.Title, HTML: snap.HTML}
}
