package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

type Stats struct {
	TotalImages   atomic.Int64
	TotalBytes    atomic.Int64
	TotalChapters atomic.Int64
	Failed        atomic.Int64
}

// Chapter records one finished chapter archive.
func (s *Stats) Chapter(pages int, bytes int64) {
	s.TotalChapters.Add(1)
	s.TotalImages.Add(int64(pages))
	s.TotalBytes.Add(bytes)
}

func (s *Stats) Summary(w io.Writer, took time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Download Summary:")
	fmt.Fprintf(w, "Chapters: %d\n", s.TotalChapters.Load())
	if f := s.Failed.Load(); f > 0 {
		fmt.Fprintf(w, "Failed:   %d\n", f)
	}
	fmt.Fprintf(w, "Pages:    %d\n", s.TotalImages.Load())
	fmt.Fprintf(w, "Data:     %s\n", Bytes(s.TotalBytes.Load()))
	fmt.Fprintf(w, "Time:     %s\n", took.Round(time.Second))
}
