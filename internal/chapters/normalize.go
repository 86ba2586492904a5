package chapters

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/brogergvhs/mangasrc/internal/providers"
)

var (
	reSuffix   = regexp.MustCompile(`(?:^|[-_])(\d+(?:\.\d+)?)$`)
	reURLToken = regexp.MustCompile(`(?i)(?:^|[/_.-])(?:chapter|capitulo|cap|ch)[-_/]?(\d+(?:\.\d+)?)(?:$|[/_-]|\.\D)`)
	reTextWord = regexp.MustCompile(`(?i)(?:chapter|cap[ií]tulo|cap\.?|ch\.?|episode|ep\.?|#)\s*(\d+(?:[.,]\d+)?)`)
	reTextAny  = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

	pageExts = []string{".html", ".htm", ".php", ".aspx"}
)

// Candidate is a raw chapter link as found in a document.
type Candidate struct {
	URL  string
	Text string
}

// ParseKey derives the chapter key from the link, trying the URL path suffix,
// then an explicit chapter token in the URL, then the display text.
func ParseKey(rawURL, text string) (providers.ChapterKey, bool) {
	if k, ok := matchPathSuffix(rawURL); ok {
		return k, true
	}
	if k, ok := matchURLToken(rawURL); ok {
		return k, true
	}

	return matchText(text)
}

func matchPathSuffix(rawURL string) (providers.ChapterKey, bool) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	seg := path.Base(strings.TrimRight(p, "/"))
	if seg == "." || seg == "/" {
		return providers.ChapterKey{}, false
	}

	lower := strings.ToLower(seg)
	for _, ext := range pageExts {
		if strings.HasSuffix(lower, ext) {
			seg = seg[:len(seg)-len(ext)]
			break
		}
	}

	if m := reSuffix.FindStringSubmatch(seg); m != nil {
		return providers.ParseChapterKey(m[1])
	}

	return providers.ChapterKey{}, false
}

// matchURLToken only looks at the path so host names and words that merely
// contain "ch" or "cap" do not produce a key.
func matchURLToken(rawURL string) (providers.ChapterKey, bool) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	if m := reURLToken.FindStringSubmatch(p); m != nil {
		return providers.ParseChapterKey(m[1])
	}

	return providers.ChapterKey{}, false
}

func matchText(text string) (providers.ChapterKey, bool) {
	if m := reTextWord.FindStringSubmatch(text); m != nil {
		return providers.ParseChapterKey(strings.ReplaceAll(m[1], ",", "."))
	}
	if m := reTextAny.FindString(text); m != "" {
		return providers.ParseChapterKey(strings.ReplaceAll(m, ",", "."))
	}

	return providers.ChapterKey{}, false
}

// Normalize turns raw candidates into chapter refs. Candidates without a
// parseable number get their 1-based position as key and are flagged as
// fallback. Among parsed keys the first occurrence wins; fallback refs never
// take part in deduplication.
func Normalize(cands []Candidate) []providers.ChapterRef {
	out := make([]providers.ChapterRef, 0, len(cands))

	for i, c := range cands {
		key, ok := ParseKey(c.URL, c.Text)
		fallback := false
		if !ok {
			key = providers.NewChapterKey(float64(i + 1))
			fallback = true
		}

		title := strings.Join(strings.Fields(c.Text), " ")
		if title == "" {
			title = "Chapter " + key.Label
		}

		out = append(out, providers.ChapterRef{
			Key:          key,
			DisplayTitle: title,
			ReadURL:      c.URL,
			Fallback:     fallback,
		})
	}

	return Dedupe(out)
}

// Dedupe drops later refs whose parsed key was already seen, keeping order.
// Positional keys are only a placeholder, so fallback refs are always kept
// and never shadow a parsed key.
func Dedupe(in []providers.ChapterRef) []providers.ChapterRef {
	out := make([]providers.ChapterRef, 0, len(in))
	seen := map[float64]bool{}
	for _, c := range in {
		if !c.Fallback {
			if seen[c.Key.Value] {
				continue
			}
			seen[c.Key.Value] = true
		}
		out = append(out, c)
	}

	return out
}

// CountFallback reports how many refs carry a positional key.
func CountFallback(in []providers.ChapterRef) int {
	n := 0
	for _, c := range in {
		if c.Fallback {
			n++
		}
	}

	return n
}
