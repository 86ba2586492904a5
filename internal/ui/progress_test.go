package ui

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vbauerster/mpb/v8"
)

// syncBuffer guards the buffer against the render goroutine.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestChapterBarsFinish(t *testing.T) {
	var out syncBuffer
	bars := newBars(&out, mpb.WithAutoRefresh())

	done := bars.Chapter("3", 2)
	done.Update(1, 2, 512)
	done.Update(2, 2, 1536)
	done.MarkDone()
	done.MarkDone()

	failed := bars.Chapter("4", 5)
	failed.Update(1, 5, 100)
	failed.Abort()
	failed.MarkDone()

	bars.Wait()

	s := out.String()
	assert.Contains(t, s, "Ch.3")
	assert.Contains(t, s, "archived")
	assert.Contains(t, s, "1.5 KiB")
	assert.Contains(t, s, "failed")
}

func TestBytes(t *testing.T) {
	assert.Equal(t, "1.5 KiB", Bytes(1536))
	assert.Equal(t, "2.0 MiB", Bytes(2<<20))
	assert.Contains(t, Bytes(512), "512.0")
}
