package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func refs(keys ...float64) []ChapterRef {
	out := make([]ChapterRef, len(keys))
	for i, k := range keys {
		out[i] = ChapterRef{Key: NewChapterKey(k)}
	}
	return out
}

func labels(in []ChapterRef) []string {
	out := make([]string, len(in))
	for i, c := range in {
		out[i] = c.Key.Label
	}
	return out
}

func TestFilterByLabelMatchesNumerically(t *testing.T) {
	all := refs(1, 2, 9.5, 10)

	assert.Equal(t, []string{"9.5"}, labels(Filter(all, "9.50", "", "")))
	assert.Equal(t, []string{"10"}, labels(Filter(all, "10", "", "")))
}

func TestFilterByLabelPrefersParsedKeys(t *testing.T) {
	all := []ChapterRef{
		{Key: NewChapterKey(1), Fallback: true, ReadURL: "prologue"},
		{Key: NewChapterKey(1), ReadURL: "chapter-1"},
	}

	got := FilterByLabel(all, "1")
	assert.Len(t, got, 1)
	assert.Equal(t, "chapter-1", got[0].ReadURL)

	only := FilterByLabel(all[:1], "1")
	assert.Len(t, only, 1)
	assert.Equal(t, "prologue", only[0].ReadURL)
}

func TestFilterSingleFallsBackToPosition(t *testing.T) {
	all := refs(100, 101)

	assert.Equal(t, []string{"101"}, labels(Filter(all, "2", "", "")))
	assert.Empty(t, Filter(all, "7", "", ""))
}

func TestFilterRangeAndList(t *testing.T) {
	all := refs(1, 2, 2.5, 3, 10)

	assert.Equal(t, []string{"2", "2.5", "3"}, labels(Filter(all, "", "2-3", "")))
	assert.Nil(t, Filter(all, "", "3-2", ""))
	assert.Equal(t, []string{"1", "10"}, labels(Filter(all, "", "", "1, 10, 44")))
	assert.Len(t, Filter(all, "", "", ""), 5)
}

func TestWithPlaceholders(t *testing.T) {
	d := WorkDetails{Title: "Solo"}.WithPlaceholders()

	assert.Equal(t, "Solo", d.Title)
	assert.Equal(t, Unknown, d.Author)
	assert.Equal(t, StatusUnknown, d.Status)
}
