// Package extract pulls work fields out of loaded documents using ordered
// strategy chains with generic fallbacks. A missing field is reported with
// ok == false and is never an error.
package extract

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Strategy is one heuristic for a field.
type Strategy[T any] func(doc *goquery.Document) (T, bool)

// First returns the result of the first strategy that yields a value.
func First[T any](doc *goquery.Document, strategies ...Strategy[T]) (T, bool) {
	for _, s := range strategies {
		if s == nil {
			continue
		}
		if v, ok := s(doc); ok {
			return v, true
		}
	}

	var zero T
	return zero, false
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func containsAny(s string, words []string) bool {
	ls := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(ls, w) {
			return true
		}
	}

	return false
}

// Resolve makes href absolute against base. Unparseable input is returned as is.
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return u.String()
	}

	b, err := url.Parse(base)
	if err != nil || b == nil {
		return href
	}

	return b.ResolveReference(u).String()
}

func imageSource(img *goquery.Selection) string {
	for _, k := range []string{"data-src", "data-lazy-src", "data-original", "src"} {
		if v, ok := img.Attr(k); ok {
			v = strings.TrimSpace(v)
			if v != "" && !strings.HasPrefix(v, "data:") {
				return v
			}
		}
	}

	if ss, ok := img.Attr("srcset"); ok {
		for p := range strings.SplitSeq(ss, ",") {
			if parts := strings.Fields(p); len(parts) > 0 {
				return parts[0]
			}
		}
	}

	return ""
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "footer": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "ol": true, "p": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

// BlockText renders the text of sel with a line break around every block
// element, so label scans can stop at the end of a visual line.
func BlockText(sel *goquery.Selection) string {
	var b strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}

		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
	}

	return b.String()
}
