package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/brogergvhs/mangasrc/internal/errs"
	"github.com/brogergvhs/mangasrc/internal/ui"
)

// DirectFetcher loads a page without any intermediary, typically the
// challenge-aware browser navigator.
type DirectFetcher interface {
	Fetch(ctx context.Context, target string) (*Document, error)
}

type Options struct {
	Relays         []Relay
	AttemptTimeout time.Duration
	// RatePerSecond limits relay attempts; zero means unlimited.
	RatePerSecond float64
	Burst         int
	State         *State
	Direct        DirectFetcher
	Client        *http.Client
	UserAgent     string
	Log           *ui.Logger
}

type Selector struct {
	relays  []Relay
	timeout time.Duration
	state   *State
	direct  DirectFetcher
	limiter *rate.Limiter
	rc      *resty.Client
	log     *ui.Logger
}

func New(opts Options) *Selector {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 15 * time.Second
	}
	if opts.State == nil {
		opts.State = Shared
	}
	if opts.Log == nil {
		opts.Log = ui.Nop()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}

	rc := resty.NewWithClient(opts.Client).
		SetLogger(opts.Log).
		SetRetryCount(0).
		SetHeader("Accept", "text/html,application/xhtml+xml,*/*;q=0.8").
		SetHeader("Accept-Charset", "utf-8")
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Selector{
		relays:  opts.Relays,
		timeout: opts.AttemptTimeout,
		state:   opts.State,
		direct:  opts.Direct,
		limiter: rate.NewLimiter(limit, opts.Burst),
		rc:      rc,
		log:     opts.Log.Component("transport"),
	}
}

// Fetch loads target according to policy. A direct load that produced a
// document but hit an unresolved challenge returns both.
func (s *Selector) Fetch(ctx context.Context, target string, policy Policy) (*Document, error) {
	switch policy {
	case Relayed:
		return s.fetchRelayed(ctx, target)
	case Direct, "":
		return s.fetchDirect(ctx, target)
	default:
		return nil, fmt.Errorf("%w: transport policy %q", errs.ErrInvalidInput, policy)
	}
}

func (s *Selector) fetchDirect(ctx context.Context, target string) (*Document, error) {
	if s.direct == nil {
		return nil, fmt.Errorf("%w: no direct fetcher configured", errs.ErrTransportExhausted)
	}

	doc, err := s.direct.Fetch(ctx, target)
	if doc == nil {
		if err == nil {
			err = errors.New("empty result")
		}
		return nil, fmt.Errorf("%w: direct load of %s: %w", errs.ErrTransportExhausted, target, err)
	}

	return doc, err
}

func (s *Selector) fetchRelayed(ctx context.Context, target string) (*Document, error) {
	n := len(s.relays)
	if n == 0 {
		return nil, fmt.Errorf("%w: no relays configured", errs.ErrTransportExhausted)
	}

	start := s.state.Load()
	if start < 0 || start >= n {
		start = 0
	}

	var failures []error
	for k := range n {
		i := (start + k) % n
		relay := s.relays[i]

		if err := s.limiter.Wait(ctx); err != nil {
			failures = append(failures, err)
			break
		}

		doc, err := s.attempt(ctx, relay, target)
		if err != nil {
			s.log.Zero().Debug().
				Str("relay", relay.Name).
				Str("url", target).
				Int("attempt", k+1).
				Err(err).
				Msg("relay attempt failed")
			failures = append(failures, fmt.Errorf("%s: %w", relay.Name, err))
			continue
		}

		s.state.Store(i)
		s.log.Debugf("relay %s served %s", relay.Name, target)
		return doc, nil
	}

	return nil, fmt.Errorf("%w: %d relays tried for %s: %w",
		errs.ErrTransportExhausted, len(failures), target, errors.Join(failures...))
}

func (s *Selector) attempt(ctx context.Context, relay Relay, target string) (*Document, error) {
	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.rc.R().SetContext(actx).Get(relay.Expand(target))
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode())
	}

	body := resp.String()
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("empty body")
	}

	doc := &Document{
		URL:   target,
		Title: titleOf(body),
		HTML:  body,
		Via:   relay.Name,
	}
	if Blocked(doc.Title, doc.Text(), body) {
		return nil, fmt.Errorf("%w: relay served %q", errs.ErrChallengeUnresolved, doc.Title)
	}

	return doc, nil
}
