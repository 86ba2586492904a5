package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangasrc/internal/providers"
)

var (
	flagSource string
	flagAll    bool
	flagGenres string
	flagType   string
	flagStatus string
	flagSort   string
	flagPage   int
)

func init() {
	searchCmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search one source, or every configured source with --all",
		RunE:  runSearch,
	}

	searchCmd.Flags().StringVar(&flagSource, "source", "", "source to search (defaults to default_source)")
	searchCmd.Flags().BoolVar(&flagAll, "all", false, "search every configured source concurrently")
	searchCmd.Flags().StringVar(&flagGenres, "genres", "", "comma separated genre filter")
	searchCmd.Flags().StringVar(&flagType, "type", "", "work type filter")
	searchCmd.Flags().StringVar(&flagStatus, "status", "", "publication status filter")
	searchCmd.Flags().StringVar(&flagSort, "sort", "", "sort order understood by the source")
	searchCmd.Flags().IntVar(&flagPage, "page", 0, "single result page; 0 walks every page")

	rootCmd.AddCommand(searchCmd)
}

func searchQuery(args []string) providers.SearchQuery {
	q := providers.SearchQuery{
		Text:   strings.Join(args, " "),
		Type:   flagType,
		Status: flagStatus,
		Sort:   flagSort,
		Page:   flagPage,
	}
	for g := range strings.SplitSeq(flagGenres, ",") {
		if g = strings.TrimSpace(g); g != "" {
			q.Genres = append(q.Genres, g)
		}
	}

	return q
}

func runSearch(cmd *cobra.Command, args []string) error {
	if flagPage < 0 {
		return fmt.Errorf("--page must not be negative")
	}

	opts := baseOptions()
	opts.DefaultSource = flagSource

	a, err := loadApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	q := searchQuery(args)

	if flagAll || (flagSource == "" && a.cfg.DefaultSource == "") {
		agg := a.eng.SearchAll(cmd.Context(), q)
		if flagJSON {
			return printJSON(agg)
		}

		printEntries(agg.Entries)
		for _, u := range agg.Unavailable {
			warnf("unavailable: %s (%s): %s", u.Source, u.Category, u.Message)
		}
		return nil
	}

	name, err := a.source(flagSource)
	if err != nil {
		return err
	}

	page, err := a.eng.Search(cmd.Context(), name, q)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(page)
	}

	printEntries(page.Entries)
	if page.Truncated {
		warnf("results truncated at the page ceiling")
	}
	if page.HasMore {
		fmt.Println(mutedStyle.Sprintf("more results available (--page %d)", max(flagPage, 1)+1))
	}

	return nil
}

func printEntries(entries []providers.CatalogEntry) {
	if len(entries) == 0 {
		fmt.Println(mutedStyle.Sprint("no results"))
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Source, e.Slug, e.Title})
	}
	printTable([]string{"Source", "Slug", "Title"}, rows)
}
