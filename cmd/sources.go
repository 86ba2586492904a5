package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangasrc/internal/config"
	"github.com/brogergvhs/mangasrc/internal/providers/generic"
	"github.com/brogergvhs/mangasrc/internal/transport"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := config.LoadMerged(baseOptions())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cfg.Sources)
		}

		rows := make([][]string, 0, len(cfg.Sources))
		for _, p := range cfg.Sources {
			def := ""
			if strings.EqualFold(p.Name, cfg.DefaultSource) {
				def = "yes"
			}
			rows = append(rows, []string{
				p.Name, p.BaseURL, string(policyOf(p)),
				string(paging(p.Search.Pagination)), string(paging(p.Chapters.Pagination)), def,
			})
		}
		printTable([]string{"Name", "Base URL", "Transport", "Search", "Chapters", "Default"}, rows)
		return nil
	},
}

func policyOf(p generic.SiteProfile) transport.Policy {
	pol, err := transport.ParsePolicy(string(p.Transport))
	if err != nil {
		return p.Transport
	}
	return pol
}

func paging(p generic.Pagination) generic.Pagination {
	if p == "" {
		return generic.PageNone
	}
	return p
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
