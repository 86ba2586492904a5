package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tokens := []string{
		"/uploads/series/12/ch-3/001.jpg",
		"https://cdn.test/a/b/c.webp",
		"x",
		"ñandú/ページ/01.png",
	}
	keys := []string{"k", "sekret", "a-much-longer-key-than-the-token-itself-0123456789"}

	for _, tok := range tokens {
		for _, key := range keys {
			enc, err := Encode(tok, key)
			require.NoError(t, err)

			dec, err := Decode(enc, key)
			require.NoError(t, err)
			assert.Equal(t, tok, dec)
		}
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	_, err := Encode("abc", "")
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = Decode("YWJj", "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestDecodeAcceptsUnpaddedAndURLSafe(t *testing.T) {
	enc, err := Encode("/img/series/0001.jpg?", "kk")
	require.NoError(t, err)

	unpadded := enc
	for len(unpadded) > 0 && unpadded[len(unpadded)-1] == '=' {
		unpadded = unpadded[:len(unpadded)-1]
	}

	dec, err := Decode(unpadded, "kk")
	require.NoError(t, err)
	assert.Equal(t, "/img/series/0001.jpg?", dec)
}

func TestPlausible(t *testing.T) {
	assert.True(t, Plausible("/a/b/c.jpg"))
	assert.False(t, Plausible("short"))
	assert.False(t, Plausible("/abc\x00def/g.png"))
	assert.False(t, Plausible("\x13\x7f\x01garbage-bytes"))
	assert.False(t, Plausible("no separators here"))
}

func TestChapterDecoderPrefersPageKeyAndCachesEffective(t *testing.T) {
	known := Known([]string{"old-1", "current", ""})
	path := "/storage/w/12/003.webp"

	tok, err := Encode(path, "current")
	require.NoError(t, err)

	d := NewChapterDecoder("", known)
	got, ok := d.Resolve(tok)
	require.True(t, ok)
	assert.Equal(t, path, got)

	eff, ok := d.Effective()
	require.True(t, ok)
	assert.Equal(t, "current", eff.Value)
	assert.Equal(t, FromKnown, eff.Provenance)

	d = NewChapterDecoder("fresh", known)
	tok, err = Encode(path, "fresh")
	require.NoError(t, err)
	got, ok = d.Resolve(tok)
	require.True(t, ok)
	assert.Equal(t, path, got)
	eff, _ = d.Effective()
	assert.Equal(t, FromPage, eff.Provenance)
}

func TestChapterDecoderDropsUndecodable(t *testing.T) {
	d := NewChapterDecoder("", Known([]string{"a", "b"}))

	_, ok := d.Resolve("!!!not base64!!!")
	assert.False(t, ok)

	_, ok = d.Effective()
	assert.False(t, ok)
}

func TestExtractPageKey(t *testing.T) {
	html := `<script>var a = 1; const key = "Zq81-xx"; load();</script>`
	assert.Equal(t, "Zq81-xx", ExtractPageKey(html, nil))

	html = `<div id="reader" data-key="abcd1234"></div>`
	assert.Equal(t, "abcd1234", ExtractPageKey(html, nil))

	assert.Equal(t, "", ExtractPageKey("<p>nothing</p>", nil))
	assert.Equal(t, "xyz9", ExtractPageKey(`K=xyz9;`, []string{`(`, `K=(\w+);`}))
}

func TestBuildURLShapes(t *testing.T) {
	u, err := BuildURL("/storage/w/12/003.webp", "https://cdn.test", 3)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/storage/w/12/003.webp", u)

	u, err = BuildURL("storage/w/12/", "https://cdn.test/base", 7)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/base/storage/w/12/007.webp", u)

	u, err = BuildURL("https://img.test/x/1.jpg", "https://cdn.test", 1)
	require.NoError(t, err)
	assert.Equal(t, "https://img.test/x/1.jpg", u)

	u, err = BuildURL("//img.test/x/1.jpg", "", 1)
	require.NoError(t, err)
	assert.Equal(t, "https://img.test/x/1.jpg", u)

	_, err = BuildURL("/storage/w/12/", "https://cdn.test", 0)
	assert.Error(t, err)

	_, err = BuildURL("/what/is/this", "https://cdn.test", 1)
	assert.Error(t, err)
}
