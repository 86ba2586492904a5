package generic

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reJSVar   = regexp.MustCompile(`(?m)(?:var|let|const)\s+([A-Za-z0-9_$]+)\s*=\s*["']([^"'\n]*)["']\s*;`)
	reJSArray = regexp.MustCompile(`(?s)(?:(?:var|let|const)\s+|window\.)([A-Za-z0-9_$]+)\s*=\s*(\[[^\]]*\])`)
)

// JSAnalysis is what the inline scripts of a page declare.
type JSAnalysis struct {
	Vars   map[string]string
	Arrays map[string][]string
}

// ExtractJS collects string variables and string arrays declared by the
// inline scripts of doc.
func ExtractJS(doc *goquery.Document) JSAnalysis {
	var code strings.Builder
	doc.Find("script").Each(func(_ int, sc *goquery.Selection) {
		if _, ok := sc.Attr("src"); ok {
			return
		}
		if t := strings.TrimSpace(sc.Text()); t != "" {
			code.WriteString(t)
			code.WriteString("\n")
		}
	})

	return analyzeJS(code.String())
}

func analyzeJS(js string) JSAnalysis {
	out := JSAnalysis{Vars: map[string]string{}, Arrays: map[string][]string{}}

	for _, m := range reJSVar.FindAllStringSubmatch(js, -1) {
		out.Vars[m[1]] = m[2]
	}

	for _, m := range reJSArray.FindAllStringSubmatch(js, -1) {
		var arr []string
		raw := strings.ReplaceAll(m[2], "'", `"`)
		if json.Unmarshal([]byte(raw), &arr) == nil {
			out.Arrays[m[1]] = arr
		}
	}

	return out
}

// assetTokens returns the encoded asset tokens of a reading page in
// reading order.
func assetTokens(doc *goquery.Document, r ReaderSpec) []string {
	var tokens []string

	if r.TokenAttr != "" {
		root := doc.Selection
		if r.Container != "" {
			if c := doc.Find(r.Container); c.Length() > 0 {
				root = c
			}
		}
		root.Find("[" + r.TokenAttr + "]").Each(func(_ int, el *goquery.Selection) {
			if v := strings.TrimSpace(el.AttrOr(r.TokenAttr, "")); v != "" {
				tokens = append(tokens, v)
			}
		})
	}

	if len(tokens) == 0 && r.TokenVar != "" {
		for _, v := range ExtractJS(doc).Arrays[r.TokenVar] {
			if v = strings.TrimSpace(v); v != "" {
				tokens = append(tokens, v)
			}
		}
	}

	return tokens
}
