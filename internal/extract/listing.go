package extract

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/mangasrc/internal/chapters"
)

// CardSpec locates catalog cards on a listing page. Link, Title and Image
// are evaluated inside each Item; an empty Link means the item itself.
type CardSpec struct {
	Item  string `yaml:"item"`
	Link  string `yaml:"link"`
	Title string `yaml:"title"`
	Image string `yaml:"image"`
	// SlugPattern captures the slug from the card URL path in group 1.
	SlugPattern string `yaml:"slug_pattern"`
}

type Card struct {
	URL      string
	Slug     string
	Title    string
	CoverURL string
}

// Cards extracts catalog cards from a listing page. Items without a link
// or a slug are skipped; repeated slugs keep the first card.
func Cards(doc *goquery.Document, spec CardSpec, base string) []Card {
	var slugRe *regexp.Regexp
	if spec.SlugPattern != "" {
		slugRe, _ = regexp.Compile(spec.SlugPattern)
	}

	items := doc.Find("a[href]:has(img)")
	if spec.Item != "" {
		if found := doc.Find(spec.Item); found.Length() > 0 {
			items = found
		}
	}

	var out []Card
	seen := map[string]bool{}

	items.Each(func(_ int, it *goquery.Selection) {
		link := it
		if spec.Link != "" {
			link = it.Find(spec.Link).First()
		} else if !it.Is("a") {
			link = it.Find("a[href]").First()
		}

		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" || strings.HasPrefix(href, "#") {
			return
		}

		abs := Resolve(base, href)
		slug := Slug(abs, slugRe)
		if slug == "" || seen[slug] {
			return
		}
		seen[slug] = true

		out = append(out, Card{
			URL:      abs,
			Slug:     slug,
			Title:    cardTitle(it, link, spec.Title),
			CoverURL: cardImage(it, spec.Image, base),
		})
	})

	return out
}

func cardTitle(item, link *goquery.Selection, selector string) string {
	if selector != "" {
		if t := clean(item.Find(selector).First().Text()); t != "" {
			return t
		}
	}

	for _, v := range []string{link.AttrOr("title", ""), clean(link.Text()), item.Find("img").First().AttrOr("alt", "")} {
		if v = clean(v); v != "" && runeLen(v) < MaxTitle {
			return v
		}
	}

	return ""
}

func cardImage(item *goquery.Selection, selector, base string) string {
	img := item.Find("img").First()
	if selector != "" {
		if s := item.Find(selector).First(); s.Length() > 0 {
			img = s
		}
	}

	if src := imageSource(img); src != "" {
		return Resolve(base, src)
	}

	style := img.AttrOr("style", "")
	if m := reBackgroundURL.FindStringSubmatch(style); len(m) > 1 {
		return Resolve(base, m[1])
	}

	return ""
}

// Slug derives the work slug from a work URL: the pattern's first group
// when given, else the last non-empty path segment without extension.
func Slug(rawURL string, pattern *regexp.Regexp) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	if pattern != nil {
		if m := pattern.FindStringSubmatch(u.Path); len(m) > 1 {
			return m[1]
		}
		return ""
	}

	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		return ""
	}

	last := path.Base(p)
	return strings.TrimSuffix(last, path.Ext(last))
}

var reLikelyChapter = regexp.MustCompile(`(?i)(?:chapter|cap[ií]tulo|capitulo|cap|ch|episode|ep)[-_/.\s]*\d`)

// ChapterLinks gathers chapter candidates in document order. With an empty
// selector every anchor that looks like a chapter link qualifies.
func ChapterLinks(doc *goquery.Document, selector, base string) []chapters.Candidate {
	strict := selector != ""
	if !strict {
		selector = "a[href]"
	}

	var out []chapters.Candidate
	doc.Find(selector).Each(func(_ int, el *goquery.Selection) {
		a := el
		if !a.Is("a") {
			a = el.Find("a[href]").First()
		}

		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}

		text := clean(el.Text())
		if text == "" {
			text = clean(a.AttrOr("title", ""))
		}

		if !strict && !reLikelyChapter.MatchString(href) && !reLikelyChapter.MatchString(text) {
			return
		}

		out = append(out, chapters.Candidate{URL: Resolve(base, href), Text: text})
	})

	return out
}
