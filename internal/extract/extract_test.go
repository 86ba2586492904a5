package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangasrc/internal/providers"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

const workPage = `<html><head><title>Tower | Site</title>
<meta property="og:image" content="https://cdn.test/og.jpg"></head><body>
<header><img src="/static/logo.png" width="400" height="100"></header>
<div class="info">
  <h1 class="title">  The   Tower of Ends </h1>
  <img class="thumb" src="/covers/tower-portada.jpg" alt="Tower">
  <div class="summary truncated">A short teaser of the story that is cut off after some words...</div>
  <div class="summary full">A long, complete synopsis about a climber who wakes up at the bottom of an endless tower every single morning.</div>
  <div class="meta">
    <div><span>Autor:</span> <a>Min-jun Park</a></div>
    <div><span>Estado:</span> <b>En curso</b></div>
  </div>
  <div class="alt">Torre del Fin; Tower of Ends / 终塔</div>
  <div class="genres"><a>Action</a><a>Fantasy</a><a>2024</a><a>action</a><a>Drama</a></div>
</div>
<footer><p>Copyright 2024 Site. All rights reserved. Read our privacy policy and cookie statement here.</p></footer>
</body></html>`

func TestDetailsWithSelectors(t *testing.T) {
	doc := parse(t, workPage)
	d := Details(doc, Selectors{
		Title:             []string{"h1.title"},
		Synopsis:          []string{".summary.full"},
		SynopsisTruncated: []string{".summary.truncated"},
		Status:            []string{".nothing-here"},
		Genres:            []string{".genres a"},
		AltTitles:         []string{".alt"},
	}, "https://site.test/work/tower")

	assert.Equal(t, "The Tower of Ends", d.Title)
	assert.Equal(t, "https://site.test/covers/tower-portada.jpg", d.CoverURL)
	assert.True(t, strings.HasPrefix(d.Synopsis, "A long, complete synopsis"))
	assert.Equal(t, "Min-jun Park", d.Author)
	assert.Equal(t, providers.StatusOngoing, d.Status)
	assert.Equal(t, []string{"Action", "Fantasy", "Drama"}, d.Genres)
	assert.Equal(t, []string{"Torre del Fin", "Tower of Ends", "终塔"}, d.AlternativeTitles)
}

func TestSynopsisLengthBounds(t *testing.T) {
	forty := strings.Repeat("a", 36) + " end"
	sixty := strings.Repeat("b", 56) + " end"
	require.Len(t, forty, 40)
	require.Len(t, sixty, 60)

	_, ok := Synopsis(parse(t, `<div class="s">`+forty+`</div>`), []string{".s"}, nil)
	assert.False(t, ok)

	got, ok := Synopsis(parse(t, `<div class="s">`+sixty+`</div>`), []string{".s"}, nil)
	require.True(t, ok)
	assert.Equal(t, sixty, got)

	_, ok = Synopsis(parse(t, `<p>`+strings.Repeat("x", 5000)+`</p>`), nil, nil)
	assert.False(t, ok)
}

func TestSynopsisRejectsBoilerplateAndPrefersUntruncated(t *testing.T) {
	html := `<body>
<p>We use cookies to improve your experience on this website, please accept them all.</p>
<div class="teaser">A teaser that is long enough to pass the minimum length check easily.</div>
<div class="full">The full text of the synopsis that also passes the minimum length rule.</div>
</body>`

	got, ok := Synopsis(parse(t, html), []string{".full"}, []string{".teaser"})
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(got, "The full text"))

	got, ok = Synopsis(parse(t, html), nil, nil)
	require.True(t, ok)
	assert.NotContains(t, got, "cookies")
}

func TestGenresCappedAtTen(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<ul class="tags">`)
	for i := range 30 {
		fmt.Fprintf(&b, `<li><a>Genre %c</a></li>`, 'A'+rune(i%26))
	}
	b.WriteString(`<li><a>42</a></li></ul>`)

	got := Genres(parse(t, b.String()), []string{".tags a"})
	assert.Len(t, got, MaxGenres)
	assert.Equal(t, "Genre A", got[0])
	assert.Equal(t, "Genre J", got[9])
}

func TestCoverFallbacks(t *testing.T) {
	html := `<body>
<img src="/img/avatar-big.png" width="500" height="500">
<img src="/img/a.jpg" width="90" height="90">
<img src="/img/b.jpg" width="300" height="420">
<img src="/img/c.jpg" width="200" height="200" style="display: none">
</body>`
	got, ok := Cover(parse(t, html), nil)
	require.True(t, ok)
	assert.Equal(t, "/img/b.jpg", got)

	_, ok = Cover(parse(t, `<img src="/img/a.jpg" width="90" height="90">`), nil)
	assert.False(t, ok)

	got, ok = Cover(parse(t, `<img src="/x.jpg"><img data-src="/uploads/poster-77.webp" src="data:image/gif;base64,R0l">`), nil)
	require.True(t, ok)
	assert.Equal(t, "/uploads/poster-77.webp", got)
}

func TestTitleFallsBackToHeadings(t *testing.T) {
	got, ok := Title(parse(t, `<h2>Second</h2><h1> </h1><h1>Primary</h1>`), []string{".missing"})
	require.True(t, ok)
	assert.Equal(t, "Primary", got)

	_, ok = Title(parse(t, `<p>nothing</p>`), nil)
	assert.False(t, ok)
}

func TestAuthorLabelScan(t *testing.T) {
	cases := map[string]string{
		`<dl><div>Artist: Kim Lee</div><div>Status: Ongoing</div></dl>`: "Kim Lee",
		`<p>作者：山田太郎</p>`:                                          "山田太郎",
		`<li><b>Autor(es):</b> Ana Ruiz</li>`:                         "Ana Ruiz",
	}
	for html, want := range cases {
		got, ok := Author(parse(t, html), nil)
		require.True(t, ok, html)
		assert.Equal(t, want, got)
	}

	_, ok := Author(parse(t, `<p>No credits listed.</p>`), nil)
	assert.False(t, ok)
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, providers.StatusCompleted, NormalizeStatus("Finalizado"))
	assert.Equal(t, providers.StatusPaused, NormalizeStatus("On Hold"))
	assert.Equal(t, providers.StatusOngoing, NormalizeStatus(" Ongoing "))
	assert.Equal(t, providers.StatusUnknown, NormalizeStatus("???"))
}

func TestCardsAndSlugs(t *testing.T) {
	html := `<div class="grid">
  <div class="card"><a href="/series/tower-of-ends/"><img data-src="/c/tower.webp"></a><h3>Tower of Ends</h3></div>
  <div class="card"><a href="https://site.test/series/blue-lake"><img src="/c/lake.jpg" alt="Blue Lake"></a></div>
  <div class="card"><a href="/series/tower-of-ends"><img src="/c/dup.jpg"></a></div>
  <div class="card"><span>no link</span></div>
</div>`

	cards := Cards(parse(t, html), CardSpec{Item: ".card", Title: "h3"}, "https://site.test/list")
	require.Len(t, cards, 2)
	assert.Equal(t, "tower-of-ends", cards[0].Slug)
	assert.Equal(t, "Tower of Ends", cards[0].Title)
	assert.Equal(t, "https://site.test/c/tower.webp", cards[0].CoverURL)
	assert.Equal(t, "Blue Lake", cards[1].Title)
}

func TestChapterLinks(t *testing.T) {
	html := `<ul>
<li><a href="/read/tower/chapter-2">Chapter 2</a></li>
<li><a href="/read/tower/chapter-1">Chapter 1</a></li>
<li><a href="/about">About us</a></li>
</ul>`

	got := ChapterLinks(parse(t, html), "", "https://site.test/series/tower")
	require.Len(t, got, 2)
	assert.Equal(t, "https://site.test/read/tower/chapter-2", got[0].URL)
	assert.Equal(t, "Chapter 2", got[0].Text)

	got = ChapterLinks(parse(t, html), "li a", "https://site.test/")
	assert.Len(t, got, 3)
}

func TestPageImagesOrderAndVariants(t *testing.T) {
	html := `<div id="reader">
  <div data-index="2"><img src="https://cdn.test/ch1/p2.jpg"></div>
  <div data-index="1"><img src="https://cdn.test/ch1/p1-300x400.jpg" srcset="https://cdn.test/ch1/p1-600x800.jpg 2x"></div>
  <img src="https://cdn.test/ch1/p3.webp">
  <img src="https://cdn.test/theme/logo.png">
</div>
<img src="https://cdn.test/outside.jpg">`

	got := PageImages(parse(t, html), html, "https://site.test/read/1", ImageOptions{Container: "#reader"})
	assert.Equal(t, []string{
		"https://cdn.test/ch1/p1-600x800.jpg",
		"https://cdn.test/ch1/p2.jpg",
		"https://cdn.test/ch1/p3.webp",
	}, got)
}
