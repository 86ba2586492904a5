package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Unknown is the placeholder callers render for fields extraction could not find.
const Unknown = "Unknown"

type Status string

const (
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
	StatusUnknown   Status = "unknown"
)

type CatalogEntry struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	CoverURL string `json:"coverUrl"`
	Source   string `json:"source"`
}

// NewEntryID builds the list identity of a catalog entry. The random
// discriminator keeps repeated listings of one slug apart; it carries no
// meaning for deduplication.
func NewEntryID(source, slug string) string {
	return fmt.Sprintf("%s:%s:%s", source, slug, uuid.NewString()[:8])
}

type SearchQuery struct {
	Text   string   `json:"query,omitempty"`
	Genres []string `json:"genres,omitempty"`
	Type   string   `json:"type,omitempty"`
	Status string   `json:"status,omitempty"`
	Sort   string   `json:"sort,omitempty"`
	Page   int      `json:"page"`
}

type SearchPage struct {
	Entries []CatalogEntry `json:"entries"`
	HasMore bool           `json:"hasMore"`
	// Truncated is set when a traversal ceiling stopped the walk early.
	Truncated bool `json:"truncated,omitempty"`
	// Notes carries outcome categories that did not fail the call.
	Notes []string `json:"notes,omitempty"`
}

type WorkDetails struct {
	Title             string   `json:"title"`
	CoverURL          string   `json:"coverUrl"`
	Synopsis          string   `json:"synopsis"`
	Author            string   `json:"author"`
	Status            Status   `json:"status"`
	Genres            []string `json:"genres"`
	AlternativeTitles []string `json:"alternativeTitles"`
}

// WithPlaceholders fills absent text fields with Unknown.
func (d WorkDetails) WithPlaceholders() WorkDetails {
	if d.Title == "" {
		d.Title = Unknown
	}
	if d.Synopsis == "" {
		d.Synopsis = "No synopsis available."
	}
	if d.Author == "" {
		d.Author = Unknown
	}
	if d.Status == "" {
		d.Status = StatusUnknown
	}

	return d
}

// ChapterKey is the canonical numeric identity of a chapter.
type ChapterKey struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

func NewChapterKey(v float64) ChapterKey {
	return ChapterKey{Value: v, Label: strconv.FormatFloat(v, 'f', -1, 64)}
}

func ParseChapterKey(s string) (ChapterKey, bool) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return ChapterKey{}, false
	}

	return NewChapterKey(v), true
}

type ChapterRef struct {
	Key          ChapterKey `json:"key"`
	DisplayTitle string     `json:"displayTitle"`
	ReadURL      string     `json:"readUrl"`
	// Fallback marks a positional key that the source did not provide.
	Fallback bool `json:"fallback,omitempty"`
}

type PageAsset struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

type PagesRequest struct {
	Slug       string
	ChapterKey string
	ChapterURL string
}

type Source interface {
	Name() string
	Search(ctx context.Context, q SearchQuery) (SearchPage, error)
	Details(ctx context.Context, slug string) (WorkDetails, error)
	Chapters(ctx context.Context, slug string) ([]ChapterRef, error)
	Pages(ctx context.Context, req PagesRequest) ([]PageAsset, error)
}
