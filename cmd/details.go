package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var detailsCmd = &cobra.Command{
	Use:   "details <slug>",
	Short: "Show the details of a work",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		d, err := a.eng.Details(cmd.Context(), name, args[0])
		if err != nil {
			return err
		}
		d = d.WithPlaceholders()
		if flagJSON {
			return printJSON(d)
		}

		fmt.Println(headerStyle.Sprint(d.Title))
		if len(d.AlternativeTitles) > 0 {
			field("Also", strings.Join(d.AlternativeTitles, "; "))
		}
		field("Author", d.Author)
		field("Status", string(d.Status))
		field("Genres", strings.Join(d.Genres, ", "))
		field("Cover", d.CoverURL)
		fmt.Printf("\n%s\n", d.Synopsis)
		return nil
	},
}

func init() {
	detailsCmd.Flags().StringVar(&flagSource, "source", "", "source of the work (defaults to default_source)")
	rootCmd.AddCommand(detailsCmd)
}
