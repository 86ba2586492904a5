package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	headerStyle  = color.New(color.Bold, color.FgCyan)
	labelStyle   = color.New(color.FgHiBlue)
	warningStyle = color.New(color.FgYellow)
	mutedStyle   = color.New(color.FgHiBlack)
)

func printTable(headers []string, rows [][]string) {
	table := tablewriter.NewTable(os.Stdout)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Header.Alignment.Global = tw.AlignLeft
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	table.Header(headers)
	if err := table.Bulk(rows); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to build table: %v\n", err)
		return
	}
	if err := table.Render(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to render table: %v\n", err)
	}
}

// field prints one "Label: value" line of a details view.
func field(label, value string) {
	fmt.Printf("%s %s\n", labelStyle.Sprintf("%-8s", label+":"), value)
}

func warnf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, warningStyle.Sprintf(format, args...))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
