package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangasrc/internal/chapters"
)

var flagOrder string

var chaptersCmd = &cobra.Command{
	Use:   "chapters <slug>",
	Short: "List the chapters of a work",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := chapters.ParseOrder(flagOrder)
		if err != nil {
			return err
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

		refs, err := a.eng.Chapters(cmd.Context(), name, args[0], order)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(refs)
		}

		rows := make([][]string, 0, len(refs))
		fallback := 0
		for _, r := range refs {
			key := r.Key.Label
			if r.Fallback {
				key += "*"
				fallback++
			}
			rows = append(rows, []string{key, r.DisplayTitle, r.ReadURL})
		}
		printTable([]string{"Key", "Title", "URL"}, rows)

		fmt.Println(headerStyle.Sprintf("%d chapters", len(refs)))
		if fallback > 0 {
			warnf("* %d keys are reading positions, the source gave no number", fallback)
		}
		return nil
	},
}

func init() {
	chaptersCmd.Flags().StringVar(&flagSource, "source", "", "source of the work (defaults to default_source)")
	chaptersCmd.Flags().StringVar(&flagOrder, "order", "asc", "chapter order: asc or desc")
	rootCmd.AddCommand(chaptersCmd)
}
