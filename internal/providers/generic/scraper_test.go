package generic

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangasrc/internal/browser"
	"github.com/brogergvhs/mangasrc/internal/cipher"
	"github.com/brogergvhs/mangasrc/internal/errs"
	"github.com/brogergvhs/mangasrc/internal/extract"
	"github.com/brogergvhs/mangasrc/internal/providers"
	"github.com/brogergvhs/mangasrc/internal/transport"
)

type page struct {
	html string
	err  error
}

type fakeSite struct {
	mu    sync.Mutex
	pages map[string]page
	hits  []string
}

func (f *fakeSite) Fetch(_ context.Context, target string) (*transport.Document, error) {
	f.mu.Lock()
	f.hits = append(f.hits, target)
	f.mu.Unlock()

	p, ok := f.pages[target]
	if !ok {
		return nil, fmt.Errorf("%w: no page at %s", errs.ErrTransportExhausted, target)
	}

	return &transport.Document{URL: target, HTML: p.html, Via: "direct"}, p.err
}

func newScraper(p SiteProfile, site *fakeSite, b Browser) *Scraper {
	sel := transport.New(transport.Options{Direct: site, State: &transport.State{}})
	return NewScraper(p, Options{Transport: sel, Browser: b})
}

func testProfile() SiteProfile {
	return SiteProfile{
		Name:      "test",
		BaseURL:   "https://site.test",
		Transport: transport.Direct,
		Search: ListingSpec{
			URL:        "{base}/search?q={query}&page={page}",
			Pagination: PageNumbered,
			Cards:      cardSpec(),
		},
		WorkURL:  "{base}/series/{slug}",
		Details:  detailsSpec(),
		Chapters: ChapterSpec{Selector: ".chapters a"},
		Reader:   ReaderSpec{URL: "{base}/series/{slug}/{chapter}", Container: ".reader"},
	}
}

func cardSpec() extract.CardSpec {
	return extract.CardSpec{Item: ".card", Title: "h3", SlugPattern: `/series/([^/]+)`}
}

func detailsSpec() extract.Selectors {
	return extract.Selectors{Title: []string{"h1.name"}, Synopsis: []string{".desc"}}
}

func listing(slugs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=grid>")
	for _, s := range slugs {
		fmt.Fprintf(&b, `<div class="card"><a href="/series/%s"><img src="/c/%s.jpg"></a><h3>%s</h3></div>`, s, s, strings.ToUpper(s))
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func TestSearchWalksNumberedPagesUntilNoNewEntries(t *testing.T) {
	site := &fakeSite{pages: map[string]page{
		"https://site.test/search?q=tower&page=1": {html: listing("a", "b")},
		"https://site.test/search?q=tower&page=2": {html: listing("c")},
		"https://site.test/search?q=tower&page=3": {html: listing("a", "c")},
	}}
	s := newScraper(testProfile(), site, nil)

	got, err := s.Search(context.Background(), providers.SearchQuery{Text: "tower"})
	require.NoError(t, err)
	require.Len(t, got.Entries, 3)
	assert.False(t, got.Truncated)

	for i, slug := range []string{"a", "b", "c"} {
		e := got.Entries[i]
		assert.Equal(t, slug, e.Slug)
		assert.Equal(t, "test", e.Source)
		assert.True(t, strings.HasPrefix(e.ID, "test:"+slug+":"))
	}
	assert.Len(t, site.hits, 3)
}

func TestSearchSinglePageReportsHasMore(t *testing.T) {
	site := &fakeSite{pages: map[string]page{
		"https://site.test/search?q=&page=2": {html: listing("x")},
	}}
	s := newScraper(testProfile(), site, nil)

	got, err := s.Search(context.Background(), providers.SearchQuery{Page: 2})
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	assert.True(t, got.HasMore)
}

func TestSearchFirstPageFailureIsReturned(t *testing.T) {
	s := newScraper(testProfile(), &fakeSite{pages: map[string]page{}}, nil)

	_, err := s.Search(context.Background(), providers.SearchQuery{Text: "x"})
	require.Error(t, err)
	assert.True(t, errs.Fatal(err))
	assert.Equal(t, errs.CategoryTransportExhausted, errs.Category(err))
}

const work = `<html><head><title>Tower of Ends | Site</title></head><body>
<h1 class="name">Tower of Ends</h1>
<div class="desc">A climber wakes every morning at the bottom of an endless tower and starts again.</div>
<div class="chapters">
  <a href="/series/tower/chapter-2">Chapter 2</a>
  <a href="/series/tower/chapter-10">Chapter 10</a>
  <a href="/series/tower/chapter-1">Chapter 1</a>
  <a href="/series/tower/chapter-2/">Chapter 2 (mirror)</a>
</div></body></html>`

func TestDetailsAndChapters(t *testing.T) {
	site := &fakeSite{pages: map[string]page{"https://site.test/series/tower": {html: work}}}
	s := newScraper(testProfile(), site, nil)

	d, err := s.Details(context.Background(), "tower")
	require.NoError(t, err)
	assert.Equal(t, "Tower of Ends", d.Title)
	assert.True(t, strings.HasPrefix(d.Synopsis, "A climber"))

	refs, err := s.Chapters(context.Background(), "tower")
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, []float64{1, 2, 10}, []float64{refs[0].Key.Value, refs[1].Key.Value, refs[2].Key.Value})
}

func TestDegradedPageKeptWhenItYieldsData(t *testing.T) {
	challenge := fmt.Errorf("%w: https://site.test/series/tower", errs.ErrChallengeUnresolved)
	site := &fakeSite{pages: map[string]page{
		"https://site.test/series/tower": {html: work, err: challenge},
		"https://site.test/series/empty": {html: "<html><title>Just a moment...</title></html>", err: challenge},
	}}
	s := newScraper(testProfile(), site, nil)

	d, err := s.Details(context.Background(), "tower")
	require.NoError(t, err)
	assert.Equal(t, "Tower of Ends", d.Title)

	_, err = s.Details(context.Background(), "empty")
	require.ErrorIs(t, err, errs.ErrChallengeUnresolved)

	_, err = s.Chapters(context.Background(), "empty")
	assert.True(t, IsDegraded(err))

	exhausted := fmt.Errorf("%w: %w", errs.ErrTransportExhausted, errs.ErrChallengeUnresolved)
	assert.False(t, IsDegraded(exhausted))
}

func TestInvalidInput(t *testing.T) {
	s := newScraper(testProfile(), &fakeSite{}, nil)

	_, err := s.Details(context.Background(), " ")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = s.Pages(context.Background(), providers.PagesRequest{Slug: "tower"})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestPagesFromReaderImages(t *testing.T) {
	html := `<div class="reader">
<img src="https://cdn.site.test/tower/1/001.jpg">
<img src="https://cdn.site.test/tower/1/002.jpg">
</div><img src="https://cdn.site.test/ads/banner.jpg">`
	site := &fakeSite{pages: map[string]page{"https://site.test/series/tower/1": {html: html}}}
	s := newScraper(testProfile(), site, nil)

	got, err := s.Pages(context.Background(), providers.PagesRequest{Slug: "tower", ChapterKey: "1"})
	require.NoError(t, err)
	assert.Equal(t, []providers.PageAsset{
		{Index: 1, URL: "https://cdn.site.test/tower/1/001.jpg"},
		{Index: 2, URL: "https://cdn.site.test/tower/1/002.jpg"},
	}, got)
}

func TestPagesEmptyIsNotAnError(t *testing.T) {
	site := &fakeSite{pages: map[string]page{"https://site.test/read/9": {html: "<p>nothing</p>"}}}
	s := newScraper(testProfile(), site, nil)

	got, err := s.Pages(context.Background(), providers.PagesRequest{ChapterURL: "https://site.test/read/9"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPagesDecodesObfuscatedTokens(t *testing.T) {
	const key = "page-key-77"
	var tokens []string
	for _, p := range []string{"/img/tower/1/001.webp", "/img/tower/1/002.webp"} {
		enc, err := cipher.Encode(p, key)
		require.NoError(t, err)
		tokens = append(tokens, enc)
	}

	html := fmt.Sprintf(`<html><body><script>window.__KEY__ = "%s";</script>
<div class="reader"><div data-enc="%s"></div><div data-enc="!!garbage!!"></div><div data-enc="%s"></div></div>
</body></html>`, key, tokens[0], tokens[1])

	p := testProfile()
	p.Reader = ReaderSpec{
		URL:         "{base}/series/{slug}/{chapter}",
		Container:   ".reader",
		TokenAttr:   "data-enc",
		AssetBase:   "https://cdn.site.test",
		KeyPatterns: []string{`__KEY__\s*=\s*"([^"]+)"`},
		Keys:        []string{"stale-key"},
	}
	site := &fakeSite{pages: map[string]page{"https://site.test/series/tower/1": {html: html}}}
	s := newScraper(p, site, nil)

	got, err := s.Pages(context.Background(), providers.PagesRequest{Slug: "tower", ChapterKey: "1"})
	require.NoError(t, err)
	assert.Equal(t, []providers.PageAsset{
		{Index: 1, URL: "https://cdn.site.test/img/tower/1/001.webp"},
		{Index: 2, URL: "https://cdn.site.test/img/tower/1/002.webp"},
	}, got)
}

type fakeBrowser struct {
	count      int
	clicks     int
	max        int
	textClicks int
	html       func(n int) string
}

func (b *fakeBrowser) Count(context.Context, string) (int, error) { return b.count, nil }
func (b *fakeBrowser) Height(context.Context) (int, error)        { return b.count * 100, nil }

func (b *fakeBrowser) ScrollToBottom(context.Context) error {
	if b.clicks < b.max {
		b.clicks++
		b.count++
	}
	return nil
}

func (b *fakeBrowser) ClickFirst(context.Context, []string) (bool, error) {
	if b.clicks >= b.max {
		return false, nil
	}
	b.clicks++
	b.count++
	return true, nil
}

func (b *fakeBrowser) ClickByText(context.Context, []string) (bool, error) {
	b.textClicks++
	return false, nil
}

func (b *fakeBrowser) Snapshot(context.Context) (browser.Snapshot, error) {
	return browser.Snapshot{URL: "https://site.test/series/tower", HTML: b.html(b.count)}, nil
}

func TestChaptersRevealedOnLiveTab(t *testing.T) {
	links := func(n int) string {
		var sb strings.Builder
		sb.WriteString(`<div class="chapters">`)
		for i := n; i >= 1; i-- {
			fmt.Fprintf(&sb, `<a href="/series/tower/chapter-%d">Chapter %d</a>`, i, i)
		}
		sb.WriteString(`</div>`)
		return sb.String()
	}

	site := &fakeSite{pages: map[string]page{"https://site.test/series/tower": {html: links(2)}}}
	b := &fakeBrowser{count: 2, max: 3, html: links}

	p := testProfile()
	p.Chapters = ChapterSpec{Selector: ".chapters a", Pagination: PageReveal, RevealSelectors: []string{"button.more"}}
	s := newScraper(p, site, b)

	refs, err := s.Chapters(context.Background(), "tower")
	require.NoError(t, err)
	require.Len(t, refs, 5)
	assert.Equal(t, 1.0, refs[0].Key.Value)
	assert.Equal(t, 5.0, refs[4].Key.Value)
}

func TestChaptersScrollNeverClicksByText(t *testing.T) {
	links := func(int) string {
		return `<div class="chapters"><a href="/series/tower/chapter-1">Chapter 1</a><a href="/series/tower/chapter-2">Chapter 2</a></div>`
	}

	site := &fakeSite{pages: map[string]page{"https://site.test/series/tower": {html: links(0)}}}
	b := &fakeBrowser{count: 2, html: links}

	p := testProfile()
	p.Chapters = ChapterSpec{Selector: ".chapters a", Pagination: PageScroll, RevealSelectors: []string{"button.more"}}
	s := newScraper(p, site, b)

	refs, err := s.Chapters(context.Background(), "tower")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Zero(t, b.textClicks)
}

func TestSearchCeilingIsNoted(t *testing.T) {
	site := &fakeSite{pages: map[string]page{
		"https://site.test/search?q=tower&page=1": {html: listing("a")},
		"https://site.test/search?q=tower&page=2": {html: listing("b")},
	}}
	sel := transport.New(transport.Options{Direct: site, State: &transport.State{}})
	s := NewScraper(testProfile(), Options{Transport: sel, Ceilings: Ceilings{SearchPages: 2}})

	got, err := s.Search(context.Background(), providers.SearchQuery{Text: "tower"})
	require.NoError(t, err)
	assert.Len(t, got.Entries, 2)
	assert.True(t, got.Truncated)
	assert.Equal(t, []string{errs.CategoryPaginationCeiling}, got.Notes)
}

func TestPagesKeyFromScriptVariable(t *testing.T) {
	const key = "var-key-31"
	enc, err := cipher.Encode("/img/tower/2/001.webp", key)
	require.NoError(t, err)

	html := fmt.Sprintf(`<html><body><script>const chapterSecret = "%s";</script>
<div class="reader"><div data-enc="%s"></div></div></body></html>`, key, enc)

	p := testProfile()
	p.Reader = ReaderSpec{
		URL:       "{base}/series/{slug}/{chapter}",
		Container: ".reader",
		TokenAttr: "data-enc",
		AssetBase: "https://cdn.site.test",
		KeyVar:    "chapterSecret",
	}
	site := &fakeSite{pages: map[string]page{"https://site.test/series/tower/2": {html: html}}}
	s := newScraper(p, site, nil)

	got, err := s.Pages(context.Background(), providers.PagesRequest{Slug: "tower", ChapterKey: "2"})
	require.NoError(t, err)
	assert.Equal(t, []providers.PageAsset{{Index: 1, URL: "https://cdn.site.test/img/tower/2/001.webp"}}, got)
}

func TestRelayedProfileSkipsLiveTraversal(t *testing.T) {
	b := &fakeBrowser{max: 5, html: func(int) string { return "" }}
	s := NewScraper(SiteProfile{Name: "r", Transport: transport.Relayed}, Options{Browser: b})
	assert.False(t, s.live())
}

func TestDefaultProfilesValidate(t *testing.T) {
	for _, p := range DefaultProfiles() {
		assert.NoError(t, p.Validate(), p.Name)
	}

	assert.Error(t, SiteProfile{Name: "x", BaseURL: "b", WorkURL: "w", Transport: "carrier-pigeon"}.Validate())
}

func TestAnalyzeJS(t *testing.T) {
	js := analyzeJS(`var cdn = "https://cdn.test";
const pages = ['a1', "b2", 'c3'];
window.extra = ["z"];`)

	assert.Equal(t, "https://cdn.test", js.Vars["cdn"])
	assert.Equal(t, []string{"a1", "b2", "c3"}, js.Arrays["pages"])
	assert.Equal(t, []string{"z"}, js.Arrays["extra"])
}
