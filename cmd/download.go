package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangasrc/internal/chapters"
	"github.com/brogergvhs/mangasrc/internal/downloader"
	"github.com/brogergvhs/mangasrc/internal/providers"
	"github.com/brogergvhs/mangasrc/internal/providers/generic"
	"github.com/brogergvhs/mangasrc/internal/ui"
	"github.com/brogergvhs/mangasrc/internal/util"
)

var (
	// selection
	flagRange string
	flagList  string

	// runtime
	flagOutput         string
	flagImageWorkers   int
	flagChapterWorkers int
	flagKeepFolders    bool
	flagDryRun         bool
	flagSkipBroken     bool

	// headers/auth
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download <slug>",
		Short: "Download chapters of a work as CBZ files. Uses the defaults from the selected config, overwritten by CLI flags",
		Args:  cobra.ExactArgs(1),
		RunE:  runDownload,
	}

	// selection
	downloadCmd.Flags().StringVar(&flagSource, "source", "", "source of the work (defaults to default_source)")
	downloadCmd.Flags().StringVar(&flagChapter, "chapter", "", "download a single chapter by key or position (e.g. 5 or 28.5)")
	downloadCmd.Flags().StringVar(&flagRange, "range", "", "download a range of chapter keys (e.g. 5-12)")
	downloadCmd.Flags().StringVar(&flagList, "list", "", "download specific chapter keys (e.g. 1,3,5.5)")

	// runtime
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder for CBZ files")
	downloadCmd.Flags().IntVar(&flagImageWorkers, "image-workers", 5, "parallel image downloads per chapter")
	downloadCmd.Flags().IntVar(&flagChapterWorkers, "chapter-workers", 2, "parallel chapter downloads")
	downloadCmd.Flags().BoolVar(&flagKeepFolders, "keep-folders", false, "keep temporary folders")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded, don’t download")
	downloadCmd.Flags().BoolVar(&flagSkipBroken, "skip-broken", false, "skip failed images instead of failing the whole chapter")

	// headers/auth
	downloadCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	downloadCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	downloadCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	slug := args[0]

	opts := baseOptions()
	opts.Output = flagOutput
	opts.KeepFolders = flagKeepFolders
	opts.DefaultSource = flagSource
	opts.DefaultRange = flagRange
	opts.DefaultList = flagList
	opts.Cookie = flagCookie
	opts.CookieFile = flagCookieFile
	opts.UserAgent = flagUserAgent
	opts.SkipBroken = flagSkipBroken
	if cmd.Flags().Changed("image-workers") {
		opts.ImageWorkers = flagImageWorkers
	}
	if cmd.Flags().Changed("chapter-workers") {
		opts.ChapterWorkers = flagChapterWorkers
	}

	a, err := loadApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if a.used != "" {
		fmt.Printf("Config file: %s\n", a.used)
	}

	name, err := a.source(flagSource)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}

	ctx, cancel := util.InterruptContext(cmd.Context(), cfg.Output, a.log.Warnf)
	defer cancel()

	details, err := a.eng.Details(ctx, name, slug)
	switch {
	case generic.IsDegraded(err):
		a.log.Warnf("Details for %s stayed behind a challenge page; archives get no metadata", slug)
	case err != nil:
		a.log.Warnf("Details for %s unavailable: %v", slug, err)
	}
	work := details.Title
	if work == "" {
		work = slug
	}

	all, err := a.eng.Chapters(ctx, name, slug, chapters.Ascending)
	if err != nil {
		return err
	}
	if flagChapter == "" && cfg.DefaultRange == "" && cfg.DefaultList == "" {
		fmt.Printf("Found %d chapters for %s.\n\n", len(all), work)
	}

	selected := providers.Filter(all, flagChapter, cfg.DefaultRange, cfg.DefaultList)
	if len(selected) == 0 {
		if flagChapter != "" {
			return fmt.Errorf("chapter '%s' not found", flagChapter)
		}
		return fmt.Errorf("no chapters selected")
	}

	if flagDryRun {
		fmt.Printf("Dry-run: %d chapters selected.\n\n", len(selected))
		for i, ref := range selected {
			fmt.Printf("%3d) %s  [%s]\n    %s\n", i+1, ref.DisplayTitle, ref.Key.Label, ref.ReadURL)
		}
		return nil
	}

	bars := ui.NewBars(os.Stdout)

	stats := &ui.Stats{}
	dl := downloader.New(downloader.Options{
		Client:     a.client,
		SkipBroken: cfg.SkipBroken,
		Log:        a.log.Component("download"),
	})
	start := time.Now()

	sem := make(chan struct{}, max(1, cfg.ChapterWorkers))
	var wg sync.WaitGroup

	for _, ref := range selected {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			ch := chapters.Chapter{ChapterRef: ref, Work: work}

			assets, err := a.eng.Pages(ctx, name, providers.PagesRequest{
				Slug:       slug,
				ChapterKey: ref.Key.Label,
				ChapterURL: ref.ReadURL,
			})
			if err != nil || len(assets) == 0 {
				a.log.Errorf("No images for %s (%s): %v", ref.DisplayTitle, ref.Key.Label, err)
				stats.Failed.Add(1)
				return
			}

			handle := bars.Chapter(ref.Key.Label, len(assets))

			tmpFolder := filepath.Join(cfg.Output, ch.FolderName())
			files, bytes, err := dl.Pages(ctx, assets, tmpFolder, ref.ReadURL, max(1, cfg.ImageWorkers), handle)
			if err != nil {
				a.log.Errorf("Chapter %s failed: %v", ref.Key.Label, err)
				handle.Abort()
				stats.Failed.Add(1)
				_ = os.RemoveAll(tmpFolder)
				return
			}

			var extras []util.Entry
			if meta, err := chapters.ComicInfo(ch, details, len(files)); err == nil {
				extras = append(extras, util.Entry{Name: chapters.ComicInfoName, Data: meta})
			} else {
				a.log.Warnf("ComicInfo for %s skipped: %v", ref.Key.Label, err)
			}

			if err := util.CreateCBZ(files, ch.OutputCBZPath(cfg.Output), extras...); err != nil {
				a.log.Errorf("CBZ for %s failed: %v", ref.Key.Label, err)
				handle.Abort()
				stats.Failed.Add(1)
				_ = os.RemoveAll(tmpFolder)
				return
			}

			if !cfg.KeepFolders {
				util.CleanupFolder(tmpFolder)
			}

			handle.MarkDone()
			stats.Chapter(len(files), bytes)
		}()
	}
	wg.Wait()
	bars.Wait()

	stats.Summary(os.Stdout, time.Since(start))
	if ctx.Err() != nil {
		return ctx.Err()
	}
	fmt.Println("\nAll done.")

	return nil
}
