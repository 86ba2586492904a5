package cipher

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultKeyPatterns locate the page key in inline scripts. The first
// capture group is the key.
var DefaultKeyPatterns = []string{
	`(?:var|let|const)\s+(?:_?key|k|secret|xorKey)\s*=\s*["']([^"']{4,64})["']`,
	`data-key=["']([^"']{4,64})["']`,
	`atob\([^)]*\)\s*,\s*["']([^"']{4,64})["']`,
}

// ChapterDecoder decodes every asset token of one chapter load. The first
// candidate that yields a plausible path is remembered and tried first for
// the remaining tokens.
type ChapterDecoder struct {
	candidates []KeyCandidate
	effective  int
}

// NewChapterDecoder orders the page-extracted key (when present) ahead of
// the known fallback list.
func NewChapterDecoder(pageKey string, known []KeyCandidate) *ChapterDecoder {
	cands := make([]KeyCandidate, 0, len(known)+1)
	if pageKey != "" {
		cands = append(cands, KeyCandidate{Value: pageKey, Provenance: FromPage})
	}
	for _, k := range known {
		if k.Value == "" || k.Value == pageKey {
			continue
		}
		cands = append(cands, k)
	}

	return &ChapterDecoder{candidates: cands, effective: -1}
}

// Effective returns the key that decoded successfully, if any.
func (d *ChapterDecoder) Effective() (KeyCandidate, bool) {
	if d.effective < 0 {
		return KeyCandidate{}, false
	}

	return d.candidates[d.effective], true
}

// Resolve decodes token into a plausible path.
func (d *ChapterDecoder) Resolve(token string) (string, bool) {
	if d.effective >= 0 {
		if s, err := Decode(token, d.candidates[d.effective].Value); err == nil && Plausible(s) {
			return s, true
		}
	}

	for i, k := range d.candidates {
		if i == d.effective {
			continue
		}

		s, err := Decode(token, k.Value)
		if err != nil || !Plausible(s) {
			continue
		}

		d.effective = i
		return s, true
	}

	return "", false
}

// ExtractPageKey scans html for the first pattern match.
func ExtractPageKey(html string, patterns []string) string {
	if len(patterns) == 0 {
		patterns = DefaultKeyPatterns
	}

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			return m[1]
		}
	}

	return ""
}

var reImageFile = regexp.MustCompile(`(?i)\.(jpe?g|png|webp|gif|avif)(?:\?.*)?$`)

// BuildURL turns a decoded path into a fetchable URL. Absolute URLs and
// file paths with an image extension are resolved against base; a
// directory path ending in "/" takes the 1-based page index as file name.
func BuildURL(decoded, base string, index int) (string, error) {
	decoded = strings.TrimSpace(decoded)

	switch {
	case strings.HasPrefix(decoded, "http://") || strings.HasPrefix(decoded, "https://"):
		if strings.HasSuffix(decoded, "/") {
			return fmt.Sprintf("%s%03d.webp", decoded, index), nil
		}
		return decoded, nil

	case strings.HasPrefix(decoded, "//"):
		return "https:" + decoded, nil

	case reImageFile.MatchString(decoded):
		return join(base, decoded)

	case strings.HasSuffix(decoded, "/"):
		if index < 1 {
			return "", fmt.Errorf("cipher: directory path %q needs a page index", decoded)
		}
		return join(base, fmt.Sprintf("%s%03d.webp", decoded, index))

	default:
		return "", fmt.Errorf("cipher: unrecognized asset shape %q", decoded)
	}
}

func join(base, p string) (string, error) {
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return "", fmt.Errorf("cipher: invalid asset base %q", base)
	}

	ref, err := url.Parse(p)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(p, "/") && !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}

	return b.ResolveReference(ref).String(), nil
}
