package downloader

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/brogergvhs/mangasrc/internal/providers"
	"github.com/brogergvhs/mangasrc/internal/ui"
	"github.com/brogergvhs/mangasrc/internal/util"
)

// Progress receives per-chapter counters; *ui.ChapterBar satisfies it.
type Progress interface {
	Update(done, total int, bytes int64)
	MarkDone()
}

type Options struct {
	Client     *http.Client
	SkipBroken bool
	// Attempts per image; the backoff grows by one second per attempt.
	Attempts int
	Timeout  time.Duration
	Log      *ui.Logger
}

type Downloader struct {
	client     *http.Client
	skipBroken bool
	attempts   int
	timeout    time.Duration
	log        *ui.Logger
}

func New(o Options) *Downloader {
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	if o.Attempts < 1 {
		o.Attempts = 3
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Log == nil {
		o.Log = ui.Nop()
	}

	return &Downloader{
		client:     o.Client,
		skipBroken: o.SkipBroken,
		attempts:   o.Attempts,
		timeout:    o.Timeout,
		log:        o.Log.Component("download"),
	}
}

type chapterState struct {
	mu          sync.Mutex
	doneImages  int
	totalImages int
	doneBytes   int64
}

// step adds downloaded bytes; a zero byte step marks one page finished.
func (cs *chapterState) step(ph Progress, bytes int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.doneBytes += bytes
	if bytes == 0 {
		cs.doneImages++
	}
	ph.Update(cs.doneImages, cs.totalImages, cs.doneBytes)
}

type nopProgress struct{}

func (nopProgress) Update(int, int, int64) {}
func (nopProgress) MarkDone()              {}

// Pages downloads the assets of one chapter into folder, named by their
// reading index so the archive keeps page order.
func (d *Downloader) Pages(
	ctx context.Context,
	assets []providers.PageAsset,
	folder string,
	referer string,
	maxParallel int,
	ph Progress,
) ([]string, int64, error) {
	if ph == nil {
		ph = nopProgress{}
	}
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, 0, err
	}

	total := len(assets)
	if maxParallel < 1 {
		maxParallel = 1
	}
	if maxParallel > total && total > 0 {
		maxParallel = total
	}

	cs := &chapterState{totalImages: total}
	ph.Update(0, total, 0)

	var filesMu sync.Mutex
	files := make([]string, 0, total)
	failures := make([]error, 0, 4)

	jobs := make(chan providers.PageAsset)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for a := range jobs {
			out := filepath.Join(folder, fmt.Sprintf("page_%03d%s", a.Index, fileExt(a.URL)))

			var last int64
			progress := func(done int64) {
				if delta := done - last; delta > 0 {
					last = done
					cs.step(ph, delta)
				}
			}

			if err := d.downloadWithRetry(ctx, a.URL, out, referer, progress); err != nil {
				d.log.Zero().Warn().Int("page", a.Index).Str("url", a.URL).Err(err).Msg("page failed")

				cs.mu.Lock()
				failures = append(failures, fmt.Errorf("page %d: %w", a.Index, err))
				cs.mu.Unlock()
				cs.step(ph, 0)
				continue
			}

			filesMu.Lock()
			files = append(files, out)
			filesMu.Unlock()
			cs.step(ph, 0)
		}
	}

	wg.Add(maxParallel)
	for range maxParallel {
		go worker()
	}

	for _, a := range assets {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			ph.MarkDone()
			return files, cs.doneBytes, ctx.Err()
		case jobs <- a:
		}
	}

	close(jobs)
	wg.Wait()
	ph.MarkDone()

	if len(failures) > 0 && !d.skipBroken {
		return files, cs.doneBytes, fmt.Errorf("failed %d/%d pages (use --skip-broken to continue)", len(failures), total)
	}

	return files, cs.doneBytes, nil
}

// fileExt keeps the image extension of the URL path, ignoring the query.
func fileExt(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}

	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif", ".avif":
		return ext
	}

	return ".jpg"
}

func (d *Downloader) downloadWithRetry(
	ctx context.Context,
	url string,
	output string,
	referer string,
	progress func(done int64),
) error {
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		err = d.download(ctx, url, output, referer, progress)
		if err == nil {
			return nil
		}
		if attempt == d.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}

	return err
}

func (d *Downloader) download(
	ctx context.Context,
	u, output, referer string,
	progress func(done int64),
) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := util.DoWithRetry(d.client, req, 1, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if !strings.HasPrefix(mt, "image/") && mt != "application/octet-stream" && mt != "binary/octet-stream" {
			return fmt.Errorf("unexpected MIME: %s", ct)
		}
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}

	written, err := copyWithProgress(f, resp.Body, progress)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(output)
		return err
	}

	if written == 0 {
		_ = os.Remove(output)
		return fmt.Errorf("empty body")
	}

	return nil
}
