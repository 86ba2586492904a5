package extract

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reSizeSuffix    = regexp.MustCompile(`[-_]\d{2,5}x\d{2,5}`)
	reParseSize     = regexp.MustCompile(`[-_](\d{2,5})x(\d{2,5})`)
	reBackgroundURL = regexp.MustCompile(`url\((?:["']?)([^"')]+)(?:["']?)\)`)
	reLooseURLs     = regexp.MustCompile(`https?://[^\s"'<>\\]+`)

	nonPageWords = []string{"logo", "cover", "profile", "avatar", "banner", "icon", "sprite", "ads/"}
)

// DefaultImageExt are the page image extensions accepted when none are
// configured.
var DefaultImageExt = []string{"jpg", "jpeg", "png", "webp", "gif", "avif"}

type ImageOptions struct {
	// Container narrows the scan to the reader area when set.
	Container string
	AllowExt  []string
	// Loose also accepts absolute image URLs found anywhere in the raw body.
	Loose bool
}

type candidate struct {
	url   string
	index int // data-index when present, else -1
	order int
}

type collector struct {
	allowed *regexp.Regexp
	items   []candidate
	seen    map[string]bool
}

func newCollector(exts []string) *collector {
	var norm []string
	for _, e := range exts {
		e = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(e)), ".")
		if e != "" {
			norm = append(norm, regexp.QuoteMeta(e))
		}
	}
	if len(norm) == 0 {
		norm = DefaultImageExt
	}

	return &collector{
		allowed: regexp.MustCompile(`(?i)\.(` + strings.Join(norm, "|") + `)(?:$|\?)`),
		seen:    map[string]bool{},
	}
}

func (c *collector) add(u string, idx int) {
	lu := strings.ToLower(u)
	if u == "" || strings.HasPrefix(lu, "data:") || strings.HasPrefix(lu, "javascript:") {
		return
	}
	if !c.allowed.MatchString(lu) || containsAny(lu, nonPageWords) || c.seen[u] {
		return
	}

	c.seen[u] = true
	c.items = append(c.items, candidate{url: u, index: idx, order: len(c.items)})
}

func indexOf(sel *goquery.Selection) int {
	for _, s := range []*goquery.Selection{sel, sel.ParentsFiltered("[data-index]").First()} {
		if v, ok := s.Attr("data-index"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}

	return -1
}

func (c *collector) scanImages(root *goquery.Selection, base string) {
	root.Find("img, source[srcset]").Each(func(_ int, el *goquery.Selection) {
		idx := indexOf(el)

		if ss, ok := el.Attr("srcset"); ok {
			for p := range strings.SplitSeq(ss, ",") {
				if parts := strings.Fields(p); len(parts) > 0 {
					c.add(Resolve(base, parts[0]), idx)
				}
			}
		}

		for _, k := range []string{"data-src", "data-lazy-src", "data-original", "src"} {
			if v := strings.TrimSpace(el.AttrOr(k, "")); v != "" {
				c.add(Resolve(base, v), idx)
			}
		}
	})
}

func (c *collector) scanBackgrounds(root *goquery.Selection, base string) {
	root.Find("[style]").Each(func(_ int, el *goquery.Selection) {
		style := el.AttrOr("style", "")
		if !strings.Contains(strings.ToLower(style), "background") {
			return
		}

		idx := indexOf(el)
		for _, m := range reBackgroundURL.FindAllStringSubmatch(style, -1) {
			c.add(Resolve(base, strings.TrimSpace(m[1])), idx)
		}
	})
}

func (c *collector) scanLoose(body string) {
	for _, u := range reLooseURLs.FindAllString(body, -1) {
		c.add(u, -1)
	}
}

// PageImages collects the reading-order page images of a chapter document.
// Size variants of one image collapse to the largest or unsized variant.
func PageImages(doc *goquery.Document, body, base string, opts ImageOptions) []string {
	c := newCollector(opts.AllowExt)

	root := doc.Selection
	if opts.Container != "" {
		if r := doc.Find(opts.Container); r.Length() > 0 {
			root = r
		}
	}

	c.scanImages(root, base)
	c.scanBackgrounds(root, base)
	if opts.Loose || len(c.items) == 0 {
		c.scanLoose(body)
	}

	return c.finalize()
}

func variantKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	ext := path.Ext(u.Path)
	stem := reSizeSuffix.ReplaceAllString(strings.TrimSuffix(u.Path, ext), "")

	return u.Host + strings.TrimRight(stem, "-_") + ext
}

func area(u string) int {
	m := reParseSize.FindStringSubmatch(u)
	if m == nil {
		return 0
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])

	return w * h
}

func (c *collector) finalize() []string {
	groups := map[string][]candidate{}
	var keys []string
	for _, it := range c.items {
		k := variantKey(it.url)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], it)
	}

	chosen := make([]candidate, 0, len(keys))
	for _, k := range keys {
		chosen = append(chosen, pickVariant(groups[k]))
	}

	sort.SliceStable(chosen, func(i, j int) bool {
		a, b := chosen[i], chosen[j]
		switch {
		case a.index >= 0 && b.index >= 0 && a.index != b.index:
			return a.index < b.index
		case a.index >= 0 && b.index < 0:
			return true
		case a.index < 0 && b.index >= 0:
			return false
		}
		return a.order < b.order
	})

	out := make([]string, len(chosen))
	for i, it := range chosen {
		out[i] = it.url
	}

	return out
}

// pickVariant prefers the unsized original, else the largest sized one. The
// group keeps its earliest order and lowest index.
func pickVariant(items []candidate) candidate {
	best := items[0]
	bestArea := -1
	for _, it := range items {
		a := area(it.url)
		if !reSizeSuffix.MatchString(it.url) {
			a = 1 << 40
		}
		if a > bestArea {
			best, bestArea = it, a
		}
	}

	for _, it := range items {
		if it.order < best.order {
			best.order = it.order
		}
		if it.index >= 0 && (best.index < 0 || it.index < best.index) {
			best.index = it.index
		}
	}

	return best
}
