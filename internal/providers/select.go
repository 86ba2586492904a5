package providers

import (
	"strconv"
	"strings"
)

// Filter selects chapters by a single key label, an inclusive key range
// ("5-12") or a comma separated list of keys ("1,3,5.5"). A single chapter
// that is not a known key falls back to a 1-based position.
func Filter(all []ChapterRef, chapter, rng, list string) []ChapterRef {
	if chapter != "" {
		byLabel := FilterByLabel(all, chapter)
		if len(byLabel) > 0 {
			return byLabel
		}

		if idx, err := strconv.Atoi(chapter); err == nil {
			if idx > 0 && idx <= len(all) {
				return []ChapterRef{all[idx-1]}
			}
		}

		return nil
	}

	if rng != "" {
		return FilterRange(all, rng)
	}
	if list != "" {
		return FilterList(all, list)
	}

	return all
}

func FilterByLabel(all []ChapterRef, label string) []ChapterRef {
	want, ok := ParseChapterKey(label)
	if !ok {
		return nil
	}

	out := []ChapterRef{}
	var positional []ChapterRef
	for _, c := range all {
		if c.Key.Value != want.Value {
			continue
		}
		if c.Fallback {
			positional = append(positional, c)
			continue
		}
		out = append(out, c)
	}

	if len(out) == 0 {
		return positional
	}

	return out
}

func FilterRange(all []ChapterRef, rng string) []ChapterRef {
	parts := strings.Split(rng, "-")
	if len(parts) != 2 {
		return nil
	}

	start, ok1 := ParseChapterKey(parts[0])
	end, ok2 := ParseChapterKey(parts[1])
	if !ok1 || !ok2 || start.Value > end.Value {
		return nil
	}

	var out []ChapterRef
	for _, c := range all {
		if c.Key.Value >= start.Value && c.Key.Value <= end.Value {
			out = append(out, c)
		}
	}

	return out
}

func FilterList(all []ChapterRef, list string) []ChapterRef {
	var out []ChapterRef
	parts := strings.SplitSeq(list, ",")

	for p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		out = append(out, FilterByLabel(all, p)...)
	}

	return out
}
