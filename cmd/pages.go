package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangasrc/internal/errs"
	"github.com/brogergvhs/mangasrc/internal/providers"
)

var (
	flagChapter string
	flagURL     string
)

var pagesCmd = &cobra.Command{
	Use:   "pages <slug>",
	Short: "List the image URLs of one chapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagChapter == "" && flagURL == "" {
			return fmt.Errorf("either --chapter or --url is required")
		}

		opts := baseOptions()
		opts.DefaultSource = flagSource

		a, err := loadApp(opts)
		if err != nil {
			return err
		}
		defer a.Close()

		name, err := a.source(flagSource)
		if err != nil {
			return err
		}

		req := providers.PagesRequest{Slug: args[0], ChapterKey: flagChapter, ChapterURL: flagURL}

		assets, err := a.eng.Pages(cmd.Context(), name, req)
		if errors.Is(err, errs.ErrInvalidInput) && flagURL == "" {
			// No reader template: find the chapter URL through the list.
			ref, rerr := a.eng.ResolveChapter(cmd.Context(), name, args[0], flagChapter)
			if rerr != nil {
				return rerr
			}
			req.ChapterURL = ref.ReadURL
			assets, err = a.eng.Pages(cmd.Context(), name, req)
		}
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(assets)
		}
		if len(assets) == 0 {
			fmt.Println("no images found; open the chapter in a browser:", req.ChapterURL)
			return nil
		}
		for _, p := range assets {
			fmt.Printf("%3d  %s\n", p.Index, p.URL)
		}
		return nil
	},
}

func init() {
	pagesCmd.Flags().StringVar(&flagSource, "source", "", "source of the work (defaults to default_source)")
	pagesCmd.Flags().StringVar(&flagChapter, "chapter", "", "chapter key (e.g. 12 or 12.5)")
	pagesCmd.Flags().StringVar(&flagURL, "url", "", "chapter reading URL")
	rootCmd.AddCommand(pagesCmd)
}
