package chapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangasrc/internal/providers"
)

func keyValues(refs []providers.ChapterRef) []float64 {
	out := make([]float64, len(refs))
	for i, r := range refs {
		out[i] = r.Key.Value
	}
	return out
}

func TestNormalizeDedupesBySuffixKey(t *testing.T) {
	refs := Normalize([]Candidate{
		{URL: "https://site.test/read/work-9", Text: "Cap 9"},
		{URL: "https://site.test/read/work-10", Text: "Cap 10"},
		{URL: "https://site.test/read/work-9-capitulo-9", Text: "Capitulo 9"},
	})

	require.Len(t, refs, 2)
	assert.Equal(t, []float64{9, 10}, keyValues(refs))
	assert.Equal(t, "https://site.test/read/work-9", refs[0].ReadURL)
}

func TestParseKeyStrategyOrder(t *testing.T) {
	cases := []struct {
		name string
		url  string
		text string
		want float64
	}{
		{"suffix decimal", "https://x.test/series/solo-12.5", "", 12.5},
		{"suffix trailing slash", "https://x.test/series/solo/chapter/33/", "", 33},
		{"suffix with page extension", "https://x.test/solo-7.html", "", 7},
		{"url token", "https://x.test/capitulo-41/leer?p=1", "", 41},
		{"url token chapter", "https://x.test/read/chapter-8/page", "", 8},
		{"text after word", "https://x.test/read/abc", "Season 2 Chapter 15", 15},
		{"text hash marker", "https://x.test/read/abc", "Episodio #3", 3},
		{"text comma decimal", "https://x.test/read/abc", "Capítulo 4,5", 4.5},
		{"text any number", "https://x.test/read/abc", "Final part 99", 99},
		{"digits in host ignored", "https://manhwatech3.com/read/solo-leveling", "Chapter 7", 7},
		{"token inside word ignored", "https://x.test/read/recap5x", "Chapter 7", 7},
		{"url token decimal", "https://x.test/ch-12.5/page-view", "", 12.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			k, ok := ParseKey(tc.url, tc.text)
			require.True(t, ok)
			assert.Equal(t, tc.want, k.Value)
		})
	}
}

func TestNormalizeFallbackKeyIsPositional(t *testing.T) {
	refs := Normalize([]Candidate{
		{URL: "https://x.test/read/prologue", Text: "Prologue"},
		{URL: "https://x.test/read/epilogue", Text: ""},
	})

	require.Len(t, refs, 2)
	assert.True(t, refs[0].Fallback)
	assert.Equal(t, 1.0, refs[0].Key.Value)
	assert.Equal(t, 2.0, refs[1].Key.Value)
	assert.Equal(t, "Chapter 2", refs[1].DisplayTitle)
	assert.Equal(t, 2, CountFallback(refs))
}

func TestNormalizeFallbackDoesNotShadowParsedKeys(t *testing.T) {
	refs := Normalize([]Candidate{
		{URL: "https://x.test/read/prologue", Text: "Prologue"},
		{URL: "https://x.test/read/one-piece-chapter-1", Text: "Chapter 1"},
		{URL: "https://x.test/read/one-piece-chapter-2", Text: "Chapter 2"},
	})

	require.Len(t, refs, 3)
	assert.True(t, refs[0].Fallback)
	assert.Equal(t, []float64{1, 1, 2}, keyValues(refs))
	assert.Equal(t, 1, CountFallback(refs))

	c, ok := Find(refs, "1")
	require.True(t, ok)
	assert.False(t, c.Fallback)
	assert.Equal(t, "https://x.test/read/one-piece-chapter-1", c.ReadURL)

	Sort(refs, Ascending)
	assert.False(t, refs[0].Fallback)
	assert.True(t, refs[1].Fallback)
}

func TestNormalizeKeepsEveryFallback(t *testing.T) {
	refs := Normalize([]Candidate{
		{URL: "https://x.test/read/chapter-2", Text: "Chapter 2"},
		{URL: "https://x.test/read/extra", Text: "Extra"},
	})

	require.Len(t, refs, 2)
	assert.Equal(t, []float64{2, 2}, keyValues(refs))
	assert.True(t, refs[1].Fallback)
}

func TestSortUsesNumericValue(t *testing.T) {
	refs := []providers.ChapterRef{
		{Key: providers.NewChapterKey(1)},
		{Key: providers.NewChapterKey(2)},
		{Key: providers.NewChapterKey(10)},
		{Key: providers.NewChapterKey(9.5)},
	}

	Sort(refs, Descending)
	assert.Equal(t, []float64{10, 9.5, 2, 1}, keyValues(refs))

	Sort(refs, Ascending)
	assert.Equal(t, []float64{1, 2, 9.5, 10}, keyValues(refs))
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("DESC")
	require.NoError(t, err)
	assert.Equal(t, Descending, o)

	_, err = ParseOrder("sideways")
	assert.Error(t, err)
}

func TestDedupeAndFind(t *testing.T) {
	refs := Dedupe([]providers.ChapterRef{
		{Key: providers.NewChapterKey(3), ReadURL: "a"},
		{Key: providers.NewChapterKey(3), ReadURL: "b"},
		{Key: providers.NewChapterKey(4), ReadURL: "c"},
	})
	require.Len(t, refs, 2)

	c, ok := Find(refs, "3.0")
	require.True(t, ok)
	assert.Equal(t, "a", c.ReadURL)

	_, ok = Find(refs, "x")
	assert.False(t, ok)

	kept := Dedupe([]providers.ChapterRef{
		{Key: providers.NewChapterKey(1), Fallback: true, ReadURL: "p"},
		{Key: providers.NewChapterKey(1), ReadURL: "q"},
		{Key: providers.NewChapterKey(1), ReadURL: "r"},
	})
	require.Len(t, kept, 2)
	assert.Equal(t, "q", kept[1].ReadURL)
}

func TestChapterNaming(t *testing.T) {
	c := Chapter{
		ChapterRef: providers.ChapterRef{Key: providers.NewChapterKey(9.5), DisplayTitle: "The End?"},
		Work:       "Solo Leveling",
	}

	assert.Equal(t, "solo_leveling_ch_9_5_the_end.cbz", c.OutputCBZ())
	assert.Equal(t, "solo_leveling_ch_9_5_the_end_tmp", c.FolderName())
}
