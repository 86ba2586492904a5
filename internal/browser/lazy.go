package browser

import (
	"context"
	"sync"

	"github.com/brogergvhs/mangasrc/internal/ui"
)

// Lazy is a Session that launches the browser on first use, so sources
// that are never queried never start Chrome. A failed launch is retried on
// the next call.
type Lazy struct {
	cfg Config
	log *ui.Logger

	mu sync.Mutex
	s  *Session
}

func NewLazy(cfg Config, log *ui.Logger) *Lazy {
	return &Lazy{cfg: cfg, log: log}
}

func (l *Lazy) session() (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.s != nil {
		return l.s, nil
	}

	s, err := NewSession(l.cfg, l.log)
	if err != nil {
		return nil, err
	}
	l.s = s

	return s, nil
}

func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.s == nil {
		return nil
	}
	err := l.s.Close()
	l.s = nil

	return err
}

func (l *Lazy) Condition(ctx context.Context, c Conditioning) error {
	s, err := l.session()
	if err != nil {
		return err
	}
	return s.Condition(ctx, c)
}

func (l *Lazy) Conditioned() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.s != nil && l.s.Conditioned()
}

func (l *Lazy) Navigate(ctx context.Context, url string) error {
	s, err := l.session()
	if err != nil {
		return err
	}
	return s.Navigate(ctx, url)
}

func (l *Lazy) Reload(ctx context.Context) error {
	s, err := l.session()
	if err != nil {
		return err
	}
	return s.Reload(ctx)
}

func (l *Lazy) Snapshot(ctx context.Context) (Snapshot, error) {
	s, err := l.session()
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(ctx)
}

func (l *Lazy) Count(ctx context.Context, selector string) (int, error) {
	s, err := l.session()
	if err != nil {
		return 0, err
	}
	return s.Count(ctx, selector)
}

func (l *Lazy) Height(ctx context.Context) (int, error) {
	s, err := l.session()
	if err != nil {
		return 0, err
	}
	return s.Height(ctx)
}

func (l *Lazy) ScrollToBottom(ctx context.Context) error {
	s, err := l.session()
	if err != nil {
		return err
	}
	return s.ScrollToBottom(ctx)
}

func (l *Lazy) ClickFirst(ctx context.Context, selectors []string) (bool, error) {
	s, err := l.session()
	if err != nil {
		return false, err
	}
	return s.ClickFirst(ctx, selectors)
}

func (l *Lazy) ClickByText(ctx context.Context, phrases []string) (bool, error) {
	s, err := l.session()
	if err != nil {
		return false, err
	}
	return s.ClickByText(ctx, phrases)
}
