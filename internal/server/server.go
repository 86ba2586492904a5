// Package server exposes the engine over HTTP and relays page images so
// clients never talk to a source CDN directly.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brogergvhs/mangasrc/internal/chapters"
	"github.com/brogergvhs/mangasrc/internal/engine"
	"github.com/brogergvhs/mangasrc/internal/errs"
	"github.com/brogergvhs/mangasrc/internal/providers"
	"github.com/brogergvhs/mangasrc/internal/ui"
	"github.com/brogergvhs/mangasrc/internal/util"
)

const imageCacheControl = "public, max-age=31536000, immutable"

type Options struct {
	Engine *engine.Engine
	// Client fetches relayed images.
	Client       *http.Client
	ImageTimeout time.Duration
	ImageRetries int
	// AllowPrivate lets the image relay reach loopback and private hosts.
	AllowPrivate bool
	Debug        bool
	Log          *ui.Logger
}

type Server struct {
	eng     *engine.Engine
	client  *http.Client
	timeout time.Duration
	retries int
	private bool
	log     *ui.Logger
	router  *gin.Engine
}

func New(o Options) *Server {
	if o.Log == nil {
		o.Log = ui.Nop()
	}
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	if o.ImageTimeout <= 0 {
		o.ImageTimeout = 30 * time.Second
	}
	if o.ImageRetries < 1 {
		o.ImageRetries = 3
	}

	if !o.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		eng:     o.Engine,
		client:  o.Client,
		timeout: o.ImageTimeout,
		retries: o.ImageRetries,
		private: o.AllowPrivate,
		log:     o.Log.Component("server"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	s.routes(r)
	s.router = r

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/image", s.image)

	api := r.Group("/api")
	api.GET("/search", s.searchAll)
	api.GET("/sources", s.sources)

	src := api.Group("/sources/:source")
	src.GET("/search", s.search)
	src.GET("/works/:slug", s.details)
	src.GET("/works/:slug/chapters", s.chapters)
	src.GET("/works/:slug/chapters/:chapter/pages", s.pages)
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("HTTP API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Infof("shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	return <-errCh
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.log.Zero().Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func statusFor(err error) int {
	switch errs.Category(err) {
	case errs.CategoryTransportExhausted:
		return http.StatusBadGateway
	case errs.CategoryChallengeUnresolved, errs.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errs.CategoryInvalidInput:
		return http.StatusBadRequest
	case errs.CategoryUnknownSource:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.log.Zero().Warn().Str("path", c.Request.URL.Path).Err(err).Msg("request failed")
	}

	c.JSON(code, gin.H{
		"category": errs.Category(err),
		"message":  err.Error(),
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sources": s.eng.Names()})
}

func (s *Server) sources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": s.eng.Names()})
}

func parseQuery(c *gin.Context) (providers.SearchQuery, error) {
	// genres=Action,Drama OR genres=Action&genres=Drama
	genres := c.QueryArray("genres")
	if len(genres) == 1 && strings.Contains(genres[0], ",") {
		genres = strings.Split(genres[0], ",")
	}

	q := providers.SearchQuery{
		Text:   strings.TrimSpace(c.Query("q")),
		Genres: genres,
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Sort:   c.Query("sort"),
	}

	if p := strings.TrimSpace(c.Query("page")); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return q, fmt.Errorf("%w: page %q", errs.ErrInvalidInput, p)
		}
		q.Page = n
	}

	return q, nil
}

func (s *Server) searchAll(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, s.eng.SearchAll(c.Request.Context(), q))
}

func (s *Server) search(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	page, err := s.eng.Search(c.Request.Context(), c.Param("source"), q)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) details(c *gin.Context) {
	d, err := s.eng.Details(c.Request.Context(), c.Param("source"), c.Param("slug"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, d.WithPlaceholders())
}

func (s *Server) chapters(c *gin.Context) {
	order, err := chapters.ParseOrder(c.Query("order"))
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err))
		return
	}

	refs, err := s.eng.Chapters(c.Request.Context(), c.Param("source"), c.Param("slug"), order)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chapters": refs})
}

func (s *Server) pages(c *gin.Context) {
	ctx := c.Request.Context()
	source := c.Param("source")

	req := providers.PagesRequest{
		Slug:       c.Param("slug"),
		ChapterKey: c.Param("chapter"),
		ChapterURL: strings.TrimSpace(c.Query("url")),
	}
	if req.ChapterURL != "" && !isHTTP(req.ChapterURL) {
		s.fail(c, fmt.Errorf("%w: url must be http(s)", errs.ErrInvalidInput))
		return
	}

	assets, err := s.eng.Pages(ctx, source, req)
	if errors.Is(err, errs.ErrInvalidInput) && req.ChapterURL == "" {
		// The profile has no reader template; find the chapter in its list.
		ref, rerr := s.eng.ResolveChapter(ctx, source, req.Slug, req.ChapterKey)
		if rerr != nil {
			s.fail(c, rerr)
			return
		}
		req.ChapterURL = ref.ReadURL
		assets, err = s.eng.Pages(ctx, source, req)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	if len(assets) == 0 {
		c.JSON(http.StatusOK, gin.H{"pages": []providers.PageAsset{}, "fallbackUrl": req.ChapterURL})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pages": assets})
}

func isHTTP(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// image relays one asset with a normalized content type. The upstream
// origin is sent as referer unless the caller names one.
func (s *Server) image(c *gin.Context) {
	target := strings.TrimSpace(c.Query("url"))
	if !isHTTP(target) {
		s.fail(c, fmt.Errorf("%w: url must be http(s)", errs.ErrInvalidInput))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	if !s.private {
		u, _ := url.Parse(target)
		if err := publicHost(ctx, u.Hostname()); err != nil {
			s.fail(c, err)
			return
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err))
		return
	}

	referer := c.Query("referer")
	if referer == "" {
		u, _ := url.Parse(target)
		referer = u.Scheme + "://" + u.Host + "/"
	}
	req.Header.Set("Referer", referer)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := util.DoWithRetry(s.client, req, s.retries, 500*time.Millisecond)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: image %s: %w", errs.ErrTransportExhausted, target, err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.fail(c, fmt.Errorf("%w: image %s: HTTP %d", errs.ErrTransportExhausted, target, resp.StatusCode))
		return
	}

	c.Header("Cache-Control", imageCacheControl)
	c.Header("Content-Type", util.ImageContentType(resp.Header.Get("Content-Type"), target))
	if resp.ContentLength > 0 {
		c.Header("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		s.log.Debugf("image relay for %s cut short: %v", target, err)
	}
}
