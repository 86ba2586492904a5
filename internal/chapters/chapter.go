package chapters

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/brogergvhs/mangasrc/internal/providers"
)

var reUnderscore = regexp.MustCompile(`_+`)

// Chapter adds on-disk naming to a chapter ref.
type Chapter struct {
	providers.ChapterRef
	Work string
}

func sanitize(s string) string {
	s = strings.ToLower(s)

	repl := []string{
		"•", "_",
		"-", "_",
		"—", "_",
		"–", "_",
		"/", "_",
		"\\", "_",
		".", "_",
		" ", "_",
		"(", "",
		")", "",
	}
	for i := 0; i < len(repl); i += 2 {
		s = strings.ReplaceAll(s, repl[i], repl[i+1])
	}

	clean := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			clean = append(clean, r)
		}
	}
	s = string(clean)
	s = reUnderscore.ReplaceAllString(s, "_")

	return strings.Trim(s, "_")
}

func (c Chapter) baseName() string {
	lbl := "ch_" + sanitize(c.Key.Label)
	if w := sanitize(c.Work); w != "" {
		lbl = w + "_" + lbl
	}

	title := sanitize(c.DisplayTitle)
	if title != "" && !strings.HasSuffix(lbl, title) {
		return lbl + "_" + title
	}

	return lbl
}

func (c Chapter) FolderName() string {
	return c.baseName() + "_tmp"
}

func (c Chapter) OutputCBZ() string {
	return c.baseName() + ".cbz"
}

func (c Chapter) OutputCBZPath(out string) string {
	return filepath.Join(out, c.OutputCBZ())
}
