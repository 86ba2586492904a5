package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Bytes formats n with binary size units, e.g. "1.5 KiB".
func Bytes(n int64) string {
	return fmt.Sprintf("% .1f", decor.SizeB1024(n))
}

// Bars renders one bar per chapter archive being built.
type Bars struct {
	p *mpb.Progress
}

func NewBars(out io.Writer) *Bars {
	return newBars(out)
}

func newBars(out io.Writer, opts ...mpb.ContainerOption) *Bars {
	opts = append([]mpb.ContainerOption{
		mpb.WithWidth(52),
		mpb.WithOutput(out),
		mpb.WithRefreshRate(120 * time.Millisecond),
	}, opts...)

	return &Bars{p: mpb.New(opts...)}
}

// Wait blocks until every bar has completed or been aborted.
func (b *Bars) Wait() {
	b.p.Wait()
}

// Chapter adds a bar for the chapter labelled key that has pages assets.
// The bar satisfies downloader.Progress.
func (b *Bars) Chapter(key string, pages int) *ChapterBar {
	c := &ChapterBar{}

	c.bar = b.p.New(
		0,
		mpb.BarStyle().Rbound("]"),
		mpb.PrependDecorators(
			decor.Name("Ch."+key, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.OnAbort(
				decor.OnComplete(decor.CountersNoUnit("%d/%d pages", decor.WCSyncWidth), "archived"),
				"failed",
			),
			decor.Any(func(decor.Statistics) string {
				return " | " + Bytes(c.bytes.Load())
			}),
			decor.Name(" | "),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)
	if pages > 0 {
		c.bar.SetTotal(int64(pages), false)
	}

	return c
}

type ChapterBar struct {
	bar   *mpb.Bar
	bytes atomic.Int64
	final atomic.Bool
}

func (c *ChapterBar) Update(done, total int, bytes int64) {
	if c.final.Load() {
		return
	}

	if total > 0 {
		c.bar.SetTotal(int64(total), false)
	}
	c.bytes.Store(bytes)
	c.bar.SetCurrent(int64(done))
}

// MarkDone completes the bar at whatever count was reached; skipped
// pages shrink the total.
func (c *ChapterBar) MarkDone() {
	if c.final.Swap(true) {
		return
	}

	c.bar.SetTotal(-1, true)
}

// Abort stops a bar that will never complete so Wait can return.
func (c *ChapterBar) Abort() {
	if c.final.Swap(true) {
		return
	}

	c.bar.Abort(false)
}
