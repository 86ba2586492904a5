package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/mangasrc/internal/providers"
)

// Selectors lists site-specific CSS selectors per field, tried before the
// generic heuristics.
type Selectors struct {
	Title             []string `yaml:"title"`
	Cover             []string `yaml:"cover"`
	Synopsis          []string `yaml:"synopsis"`
	SynopsisTruncated []string `yaml:"synopsis_truncated"`
	Author            []string `yaml:"author"`
	Status            []string `yaml:"status"`
	Genres            []string `yaml:"genres"`
	AltTitles         []string `yaml:"alt_titles"`
}

const (
	MaxTitle     = 200
	MinSynopsis  = 50
	MaxSynopsis  = 5000
	MaxAuthor    = 100
	MaxGenres    = 10
	MinCoverArea = 10000
)

// Details runs every field chain over doc. base resolves relative cover URLs.
func Details(doc *goquery.Document, sel Selectors, base string) providers.WorkDetails {
	var d providers.WorkDetails

	d.Title, _ = Title(doc, sel.Title)
	if c, ok := Cover(doc, sel.Cover); ok {
		d.CoverURL = Resolve(base, c)
	}
	d.Synopsis, _ = Synopsis(doc, sel.Synopsis, sel.SynopsisTruncated)
	d.Author, _ = Author(doc, sel.Author)
	d.Status = Status(doc, sel.Status)
	d.Genres = Genres(doc, sel.Genres)
	d.AlternativeTitles = AltTitles(doc, sel.AltTitles)

	return d
}

// Title: configured selectors, then any h1, then any h2.
func Title(doc *goquery.Document, selectors []string) (string, bool) {
	return First[string](doc,
		titleFrom(selectors),
		titleFrom([]string{"h1"}),
		titleFrom([]string{"h2"}),
		metaContent(`meta[property="og:title"]`),
	)
}

func titleFrom(selectors []string) Strategy[string] {
	return func(doc *goquery.Document) (string, bool) {
		for _, s := range selectors {
			var out string
			doc.Find(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
				t := clean(el.Text())
				if n := runeLen(t); n >= 1 && n < MaxTitle {
					out = t
					return false
				}
				return true
			})
			if out != "" {
				return out, true
			}
		}
		return "", false
	}
}

func metaContent(selector string) Strategy[string] {
	return func(doc *goquery.Document) (string, bool) {
		v := clean(doc.Find(selector).First().AttrOr("content", ""))
		return v, v != "" && runeLen(v) < MaxTitle
	}
}

var (
	coverKeywords = []string{"cover", "portada", "thumbnail", "poster"}
	coverDenylist = []string{"avatar", "logo", "icon", "button", "banner", "sprite", "loading", "placeholder"}
)

// Cover: configured selectors, then an image whose src or alt names it a
// cover, then the largest declared image above MinCoverArea.
func Cover(doc *goquery.Document, selectors []string) (string, bool) {
	return First[string](doc,
		coverFrom(selectors),
		coverByKeyword,
		coverByArea,
		metaContent(`meta[property="og:image"]`),
	)
}

func coverFrom(selectors []string) Strategy[string] {
	return func(doc *goquery.Document) (string, bool) {
		for _, s := range selectors {
			sel := doc.Find(s).First()
			if sel.Length() == 0 {
				continue
			}
			if !sel.Is("img") {
				sel = sel.Find("img").First()
			}
			if src := imageSource(sel); src != "" {
				return src, true
			}
		}
		return "", false
	}
}

func visible(img *goquery.Selection) bool {
	if _, hidden := img.Attr("hidden"); hidden {
		return false
	}
	style := strings.ReplaceAll(strings.ToLower(img.AttrOr("style", "")), " ", "")
	return !strings.Contains(style, "display:none") && !strings.Contains(style, "visibility:hidden")
}

func coverByKeyword(doc *goquery.Document) (string, bool) {
	var out string
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := imageSource(img)
		if src == "" || !visible(img) || containsAny(src, coverDenylist) {
			return true
		}
		if containsAny(src, coverKeywords) || containsAny(img.AttrOr("alt", ""), coverKeywords) ||
			containsAny(img.AttrOr("class", ""), coverKeywords) {
			out = src
			return false
		}
		return true
	})

	return out, out != ""
}

func coverByArea(doc *goquery.Document) (string, bool) {
	var (
		best     string
		bestArea int
	)

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := imageSource(img)
		if src == "" || !visible(img) || containsAny(src, coverDenylist) ||
			containsAny(img.AttrOr("alt", ""), coverDenylist) {
			return
		}

		area := dimension(img.AttrOr("width", "")) * dimension(img.AttrOr("height", ""))
		if area > bestArea {
			best, bestArea = src, area
		}
	})

	if bestArea < MinCoverArea {
		return "", false
	}

	return best, true
}

func dimension(v string) int {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}

	return n
}

var synopsisDenylist = []string{
	"cookie",
	"privacy policy",
	"terms of service",
	"terms of use",
	"all rights reserved",
	"copyright",
	"log in",
	"login",
	"sign up",
	"sign in",
	"política de privacidad",
	"términos y condiciones",
	"todos los derechos",
	"iniciar sesión",
	"regístrate",
	"disqus",
}

func validSynopsis(s string) bool {
	n := runeLen(s)
	return n >= MinSynopsis && n < MaxSynopsis && !containsAny(s, synopsisDenylist)
}

// Synopsis prefers untruncated containers over truncated previews, then
// falls back to the longest leaf-ish text block that qualifies.
func Synopsis(doc *goquery.Document, full, truncated []string) (string, bool) {
	return First[string](doc,
		synopsisFrom(full),
		synopsisFrom(truncated),
		longestBlock,
		metaSynopsis,
	)
}

func synopsisFrom(selectors []string) Strategy[string] {
	return func(doc *goquery.Document) (string, bool) {
		for _, s := range selectors {
			var out string
			doc.Find(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
				if t := clean(el.Text()); validSynopsis(t) {
					out = t
					return false
				}
				return true
			})
			if out != "" {
				return out, true
			}
		}
		return "", false
	}
}

func longestBlock(doc *goquery.Document) (string, bool) {
	var best string

	doc.Find("p, div").Each(func(_ int, el *goquery.Selection) {
		if el.Is("div") && el.Children().Filter("div, p, section, article, ul, ol, table, nav").Length() > 0 {
			return
		}
		if el.ParentsFiltered("nav, footer, header, script, style").Length() > 0 {
			return
		}

		t := clean(el.Text())
		if validSynopsis(t) && runeLen(t) > runeLen(best) {
			best = t
		}
	})

	return best, best != ""
}

func metaSynopsis(doc *goquery.Document) (string, bool) {
	for _, s := range []string{`meta[property="og:description"]`, `meta[name="description"]`} {
		if v := clean(doc.Find(s).First().AttrOr("content", "")); validSynopsis(v) {
			return v, true
		}
	}

	return "", false
}

var reAuthor = regexp.MustCompile(`(?i)(?:author|artist|autor|artista|auteur|作者)(?:e?s|\(e?s\))?\s*[:：]\s*([^\n\r|]{1,100})`)

// Author: configured selectors, then a label scan over line-separated text.
func Author(doc *goquery.Document, selectors []string) (string, bool) {
	return First[string](doc,
		func(doc *goquery.Document) (string, bool) {
			for _, s := range selectors {
				var names []string
				doc.Find(s).Each(func(_ int, el *goquery.Selection) {
					if t := clean(el.Text()); t != "" {
						names = append(names, t)
					}
				})
				if len(names) > 0 {
					return truncate(strings.Join(dedupe(names), ", "), MaxAuthor), true
				}
			}
			return "", false
		},
		func(doc *goquery.Document) (string, bool) {
			m := reAuthor.FindStringSubmatch(BlockText(doc.Selection))
			if len(m) < 2 {
				return "", false
			}
			v := strings.Trim(clean(m[1]), " ,;-")
			return v, v != ""
		},
	)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return strings.TrimSpace(string(r[:n]))
}

var statusVocab = []struct {
	status providers.Status
	words  []string
}{
	{providers.StatusCompleted, []string{"completed", "complete", "finished", "ended", "finalizado", "completo", "terminado", "concluido"}},
	{providers.StatusPaused, []string{"hiatus", "paused", "on hold", "pausado", "en pausa", "suspendido"}},
	{providers.StatusOngoing, []string{"ongoing", "releasing", "publishing", "en curso", "emisión", "emision", "publicándose", "activo", "en publicación"}},
}

// NormalizeStatus maps free text onto the fixed status vocabulary.
func NormalizeStatus(s string) providers.Status {
	for _, v := range statusVocab {
		if containsAny(s, v.words) {
			return v.status
		}
	}

	return providers.StatusUnknown
}

var reStatus = regexp.MustCompile(`(?i)(?:status|estado)\s*[:：]\s*([^\n\r|]{1,40})`)

func Status(doc *goquery.Document, selectors []string) providers.Status {
	st, ok := First[providers.Status](doc,
		func(doc *goquery.Document) (providers.Status, bool) {
			for _, s := range selectors {
				if st := NormalizeStatus(doc.Find(s).First().Text()); st != providers.StatusUnknown {
					return st, true
				}
			}
			return "", false
		},
		func(doc *goquery.Document) (providers.Status, bool) {
			m := reStatus.FindStringSubmatch(BlockText(doc.Selection))
			if len(m) < 2 {
				return "", false
			}
			st := NormalizeStatus(m[1])
			return st, st != providers.StatusUnknown
		},
	)
	if !ok {
		return providers.StatusUnknown
	}

	return st
}

var reNumeric = regexp.MustCompile(`^[\d\s.,#]+$`)

// Genres collects tag texts: at most MaxGenres, no numeric tokens, no
// duplicates.
func Genres(doc *goquery.Document, selectors []string) []string {
	var raw []string
	for _, s := range selectors {
		doc.Find(s).Each(func(_ int, el *goquery.Selection) {
			raw = append(raw, splitList(el.Text(), ",;")...)
		})
		if len(raw) > 0 {
			break
		}
	}

	out := make([]string, 0, MaxGenres)
	for _, g := range dedupe(raw) {
		if reNumeric.MatchString(g) || runeLen(g) > 40 {
			continue
		}
		out = append(out, g)
		if len(out) == MaxGenres {
			break
		}
	}

	return out
}

// AltTitles splits alternative-name containers on , ; / and |.
func AltTitles(doc *goquery.Document, selectors []string) []string {
	var raw []string
	for _, s := range selectors {
		doc.Find(s).Each(func(_ int, el *goquery.Selection) {
			raw = append(raw, splitList(el.Text(), ",;/|")...)
		})
		if len(raw) > 0 {
			break
		}
	}

	return dedupe(raw)
}

func splitList(s, seps string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(seps, r) })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = clean(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}

	return out
}
