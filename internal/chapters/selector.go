package chapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/brogergvhs/mangasrc/internal/providers"
)

type Order int

const (
	Ascending Order = iota
	Descending
)

func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("unknown order %q (want asc or desc)", s)
	}
}

// Sort orders refs in place by the real value of their key. On equal keys a
// parsed key sorts before a positional one.
func Sort(refs []providers.ChapterRef, order Order) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Key.Value == refs[j].Key.Value {
			return !refs[i].Fallback && refs[j].Fallback
		}
		if order == Descending {
			return refs[i].Key.Value > refs[j].Key.Value
		}
		return refs[i].Key.Value < refs[j].Key.Value
	})
}

// Find returns the chapter whose key equals label, preferring a parsed key
// over a positional one.
func Find(refs []providers.ChapterRef, label string) (providers.ChapterRef, bool) {
	matches := providers.FilterByLabel(refs, label)
	if len(matches) == 0 {
		return providers.ChapterRef{}, false
	}

	return matches[0], true
}
