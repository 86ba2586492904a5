package generic

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/mangasrc/internal/browser"
	"github.com/brogergvhs/mangasrc/internal/chapters"
	"github.com/brogergvhs/mangasrc/internal/cipher"
	"github.com/brogergvhs/mangasrc/internal/errs"
	"github.com/brogergvhs/mangasrc/internal/extract"
	"github.com/brogergvhs/mangasrc/internal/paginate"
	"github.com/brogergvhs/mangasrc/internal/providers"
	"github.com/brogergvhs/mangasrc/internal/transport"
	"github.com/brogergvhs/mangasrc/internal/ui"
)

// Browser is the live tab behind direct loads. Reveal and scroll
// pagination need it; relayed sources run without one.
type Browser interface {
	paginate.Surface
	Snapshot(ctx context.Context) (browser.Snapshot, error)
}

type Ceilings struct {
	SearchPages   int `yaml:"search_pages"`
	SearchScroll  int `yaml:"search_scroll"`
	ChapterScroll int `yaml:"chapter_scroll"`
	RevealRounds  int `yaml:"reveal_rounds"`
}

func DefaultCeilings() Ceilings {
	return Ceilings{
		SearchPages:   paginate.DefaultMaxPages,
		SearchScroll:  paginate.SearchScrollIterations,
		ChapterScroll: paginate.ChapterScrollIterations,
		RevealRounds:  paginate.DefaultRevealRounds,
	}
}

type Options struct {
	Transport *transport.Selector
	Browser   Browser
	Ceilings  Ceilings
	Log       *ui.Logger
}

// Scraper is a providers.Source driven entirely by a SiteProfile.
type Scraper struct {
	// tab serializes direct loads; one browser tab serves one request at a time.
	tab sync.Mutex

	p    SiteProfile
	t    *transport.Selector
	b    Browser
	ceil Ceilings
	log  *ui.Logger
}

func NewScraper(p SiteProfile, o Options) *Scraper {
	if o.Log == nil {
		o.Log = ui.Nop()
	}
	if pol, err := transport.ParsePolicy(string(p.Transport)); err == nil {
		p.Transport = pol
	}

	d := DefaultCeilings()
	if o.Ceilings.SearchPages < 1 {
		o.Ceilings.SearchPages = d.SearchPages
	}
	if o.Ceilings.SearchScroll < 1 {
		o.Ceilings.SearchScroll = d.SearchScroll
	}
	if o.Ceilings.ChapterScroll < 1 {
		o.Ceilings.ChapterScroll = d.ChapterScroll
	}
	if o.Ceilings.RevealRounds < 1 {
		o.Ceilings.RevealRounds = d.RevealRounds
	}

	return &Scraper{
		p:    p,
		t:    o.Transport,
		b:    o.Browser,
		ceil: o.Ceilings,
		log:  o.Log.Component(p.Name),
	}
}

func (s *Scraper) Name() string { return s.p.Name }

func (s *Scraper) exclusive() func() {
	if s.p.Transport != transport.Direct {
		return func() {}
	}

	s.tab.Lock()
	return s.tab.Unlock
}

type loaded struct {
	raw *transport.Document
	doc *goquery.Document
}

// load fetches target. A page degraded by an unresolved challenge is
// returned together with the error; callers keep it if it yields data.
func (s *Scraper) load(ctx context.Context, op, target string) (*loaded, error) {
	raw, err := s.t.Fetch(ctx, target, s.p.Transport)
	if raw == nil {
		return nil, errs.Wrap(s.p.Name, op, err)
	}

	doc, perr := raw.Parse()
	if perr != nil {
		return nil, errs.Wrap(s.p.Name, op, perr)
	}

	return &loaded{raw: raw, doc: doc}, errs.Wrap(s.p.Name, op, err)
}

func (s *Scraper) live() bool {
	return s.b != nil && s.p.Transport == transport.Direct
}

// resnapshot re-reads the live tab after pagination changed it.
func (s *Scraper) resnapshot(ctx context.Context, l *loaded) *loaded {
	snap, err := s.b.Snapshot(ctx)
	if err != nil || strings.TrimSpace(snap.HTML) == "" {
		s.log.Debugf("snapshot after pagination failed: %v", err)
		return l
	}

	raw := &transport.Document{URL: snap.URL, Title: snap.Title, HTML: snap.HTML}
	if raw.URL == "" {
		raw.URL = l.raw.URL
	}
	doc, err := raw.Parse()
	if err != nil {
		return l
	}

	return &loaded{raw: raw, doc: doc}
}

func (s *Scraper) traverse(ctx context.Context, l *loaded, mode Pagination, item string, selectors []string, scrollMax int) (*loaded, paginate.Result) {
	if !s.live() {
		return l, paginate.Result{}
	}

	var (
		res paginate.Result
		err error
	)

	switch mode {
	case PageReveal:
		res, err = paginate.Reveal(ctx, s.b, paginate.RevealOptions{
			ItemSelector: item,
			Selectors:    selectors,
			MaxRounds:    s.ceil.RevealRounds,
		})
	case PageScroll:
		res, err = paginate.Scroll(ctx, s.b, paginate.ScrollOptions{
			MaxIterations:     scrollMax,
			LoadMoreSelectors: selectors,
		})
	default:
		return l, res
	}

	if err != nil {
		s.log.Warnf("%s pagination stopped early: %v", mode, err)
	}
	if res.Truncated {
		s.log.Infof("%s pagination after %d rounds: %v", mode, res.Rounds, errs.ErrPaginationCeiling)
	}

	return s.resnapshot(ctx, l), res
}

// notes reports a truncated traversal as a non-fatal outcome category.
func notes(res paginate.Result) []string {
	if !res.Truncated {
		return nil
	}

	return []string{errs.Category(errs.ErrPaginationCeiling)}
}

func (s *Scraper) Search(ctx context.Context, q providers.SearchQuery) (providers.SearchPage, error) {
	defer s.exclusive()()
	spec := s.p.Search

	switch spec.Pagination {
	case PageNumbered:
		if q.Page > 0 {
			return s.searchOne(ctx, q, q.Page)
		}
		return s.searchAll(ctx, q)

	case PageReveal, PageScroll:
		l, err := s.load(ctx, "search", s.p.searchURL(q, 1))
		if l == nil {
			return providers.SearchPage{}, err
		}

		item := spec.Cards.Item
		if item == "" {
			item = "a[href] img"
		}
		l, res := s.traverse(ctx, l, spec.Pagination, item, spec.LoadMore, s.ceil.SearchScroll)

		cards := extract.Cards(l.doc, spec.Cards, l.raw.URL)
		if len(cards) == 0 && err != nil {
			return providers.SearchPage{}, err
		}

		return providers.SearchPage{Entries: s.entries(cards), Truncated: res.Truncated, Notes: notes(res)}, nil

	default:
		page := q.Page
		if page < 1 {
			page = 1
		}
		return s.searchOne(ctx, q, page)
	}
}

func (s *Scraper) searchOne(ctx context.Context, q providers.SearchQuery, page int) (providers.SearchPage, error) {
	l, err := s.load(ctx, "search", s.p.searchURL(q, page))
	if l == nil {
		return providers.SearchPage{}, err
	}

	cards := extract.Cards(l.doc, s.p.Search.Cards, l.raw.URL)
	if len(cards) == 0 && err != nil {
		return providers.SearchPage{}, err
	}

	more := len(cards) > 0
	if s.p.Search.NextSelector != "" {
		more = l.doc.Find(s.p.Search.NextSelector).Length() > 0
	}

	return providers.SearchPage{Entries: s.entries(cards), HasMore: more}, nil
}

// searchAll walks numbered pages until one adds no new slug.
func (s *Scraper) searchAll(ctx context.Context, q providers.SearchQuery) (providers.SearchPage, error) {
	seen := map[string]bool{}

	cards, res, err := paginate.Numbered(ctx, s.ceil.SearchPages, func(ctx context.Context, page int) ([]extract.Card, error) {
		l, err := s.load(ctx, "search", s.p.searchURL(q, page))
		if l == nil {
			return nil, err
		}

		var fresh []extract.Card
		for _, c := range extract.Cards(l.doc, s.p.Search.Cards, l.raw.URL) {
			if !seen[c.Slug] {
				seen[c.Slug] = true
				fresh = append(fresh, c)
			}
		}
		if len(fresh) == 0 && err != nil {
			return nil, err
		}

		return fresh, nil
	})
	if err != nil {
		return providers.SearchPage{}, err
	}

	if res.Truncated {
		s.log.Infof("search stopped after %d pages: %v", s.ceil.SearchPages, errs.ErrPaginationCeiling)
	}

	return providers.SearchPage{Entries: s.entries(cards), Truncated: res.Truncated, Notes: notes(res)}, nil
}

func (s *Scraper) entries(cards []extract.Card) []providers.CatalogEntry {
	out := make([]providers.CatalogEntry, 0, len(cards))
	seen := map[string]bool{}

	for _, c := range cards {
		if seen[c.Slug] {
			continue
		}
		seen[c.Slug] = true

		out = append(out, providers.CatalogEntry{
			ID:       providers.NewEntryID(s.p.Name, c.Slug),
			Slug:     c.Slug,
			Title:    c.Title,
			CoverURL: c.CoverURL,
			Source:   s.p.Name,
		})
	}

	return out
}

func (s *Scraper) Details(ctx context.Context, slug string) (providers.WorkDetails, error) {
	if strings.TrimSpace(slug) == "" {
		return providers.WorkDetails{}, fmt.Errorf("%w: empty slug", errs.ErrInvalidInput)
	}
	defer s.exclusive()()

	l, err := s.load(ctx, "details", s.p.workURL(slug))
	if l == nil {
		return providers.WorkDetails{}, err
	}

	d := extract.Details(l.doc, s.p.Details, l.raw.URL)
	if err != nil {
		if d.Title == "" && d.Synopsis == "" {
			return providers.WorkDetails{}, err
		}
		s.log.Warnf("details for %s extracted from a degraded page: %v", slug, err)
	} else if d.Title == "" {
		d.Title = pageTitle(l.raw.Title)
	}

	if d.Title == "" && d.Synopsis == "" && d.CoverURL == "" {
		s.log.Infof("details for %s: %v", slug, errs.ErrExtractionEmpty)
	}

	return d, nil
}

// pageTitle strips a trailing " | Site" or " - Site" suffix.
func pageTitle(t string) string {
	for _, sep := range []string{" | ", " - ", " – "} {
		if i := strings.LastIndex(t, sep); i > 0 {
			t = t[:i]
		}
	}

	return strings.TrimSpace(t)
}

func (s *Scraper) Chapters(ctx context.Context, slug string) ([]providers.ChapterRef, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, fmt.Errorf("%w: empty slug", errs.ErrInvalidInput)
	}
	defer s.exclusive()()

	spec := s.p.Chapters
	l, err := s.load(ctx, "chapters", s.p.chaptersURL(slug))
	if l == nil {
		return nil, err
	}

	item := spec.ItemSelector
	if item == "" {
		item = spec.Selector
	}
	if item == "" {
		item = "a[href]"
	}
	l, _ = s.traverse(ctx, l, spec.Pagination, item, spec.RevealSelectors, s.ceil.ChapterScroll)

	refs := chapters.Normalize(extract.ChapterLinks(l.doc, spec.Selector, l.raw.URL))
	if len(refs) == 0 {
		if err != nil {
			return nil, err
		}
		s.log.Infof("chapters for %s: %v", slug, errs.ErrExtractionEmpty)
		return []providers.ChapterRef{}, nil
	}
	if err != nil {
		s.log.Warnf("chapters for %s extracted from a degraded page: %v", slug, err)
	}

	if n := chapters.CountFallback(refs); n > 0 {
		s.log.Warnf("%d of %d chapters of %s carry positional keys", n, len(refs), slug)
	}

	chapters.Sort(refs, chapters.Ascending)
	return refs, nil
}

func (s *Scraper) Pages(ctx context.Context, req providers.PagesRequest) ([]providers.PageAsset, error) {
	target := strings.TrimSpace(req.ChapterURL)
	if target == "" {
		target = s.p.readerURL(req.Slug, req.ChapterKey)
	}
	if target == "" {
		return nil, fmt.Errorf("%w: pages needs a chapter url or slug and chapter key", errs.ErrInvalidInput)
	}
	defer s.exclusive()()

	l, err := s.load(ctx, "pages", target)
	if l == nil {
		return nil, err
	}

	var assets []providers.PageAsset
	if s.p.Reader.Obfuscated() {
		assets = s.decodeAssets(l)
	}
	if len(assets) == 0 {
		urls := extract.PageImages(l.doc, l.raw.HTML, l.raw.URL, extract.ImageOptions{
			Container: s.p.Reader.Container,
			AllowExt:  s.p.Reader.AllowExt,
		})
		for _, u := range urls {
			assets = append(assets, providers.PageAsset{Index: len(assets) + 1, URL: u})
		}
	}

	if len(assets) == 0 {
		if err != nil {
			return nil, err
		}
		s.log.Infof("no page assets on %s: %v", target, errs.ErrExtractionEmpty)
		return []providers.PageAsset{}, nil
	}
	if err != nil {
		s.log.Warnf("pages of %s extracted from a degraded page: %v", target, err)
	}

	return assets, nil
}

func (s *Scraper) decodeAssets(l *loaded) []providers.PageAsset {
	r := s.p.Reader
	tokens := assetTokens(l.doc, r)
	if len(tokens) == 0 {
		return nil
	}

	var key string
	if r.KeyVar != "" {
		key = ExtractJS(l.doc).Vars[r.KeyVar]
	}
	if key == "" {
		key = cipher.ExtractPageKey(l.raw.HTML, r.KeyPatterns)
	}

	dec := cipher.NewChapterDecoder(key, cipher.Known(r.Keys))
	base := r.AssetBase
	if base == "" {
		base = origin(l.raw.URL)
	}

	var (
		out     []providers.PageAsset
		dropped int
	)
	for i, tok := range tokens {
		p, ok := dec.Resolve(tok)
		if !ok {
			dropped++
			continue
		}

		u, err := cipher.BuildURL(p, base, i+1)
		if err != nil {
			s.log.Debugf("asset %d: %v", i+1, err)
			dropped++
			continue
		}

		out = append(out, providers.PageAsset{Index: len(out) + 1, URL: u})
	}

	if dropped > 0 {
		s.log.Warnf("%d of %d assets dropped: %v", dropped, len(tokens), errs.ErrDecodeFailed)
	}
	if k, ok := dec.Effective(); ok {
		s.log.Zero().Debug().Str("provenance", string(k.Provenance)).Int("assets", len(out)).Msg("cipher key accepted")
	}

	return out
}

func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	return u.Scheme + "://" + u.Host
}

var _ providers.Source = (*Scraper)(nil)

// IsDegraded reports whether err only marks a page that loaded behind an
// unresolved challenge. Exhausted relays that only ever served challenge
// pages are a hard failure, not a degraded load.
func IsDegraded(err error) bool {
	return errors.Is(err, errs.ErrChallengeUnresolved) && !errors.Is(err, errs.ErrTransportExhausted)
}
