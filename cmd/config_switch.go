package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangasrc/internal/config"
)

var configSwitchCmd = &cobra.Command{
	Use:   "switch [label]",
	Short: "Activate another configuration profile",
	Long: `Activate another configuration profile.

The profile is loaded and its source profiles validated first; a profile
that would not load is never activated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var label string
		if len(args) == 1 {
			label = args[0]
		} else {
			picked, err := pickProfile()
			if err != nil {
				return err
			}
			label = picked
		}

		if err := config.SwitchConfig(label); err != nil {
			return err
		}

		cfg, err := config.LoadLabel(label)
		if err != nil {
			return err
		}

		fmt.Println(headerStyle.Sprint("Active profile: ") + label)
		field("Sources", sourceNames(cfg))
		if cfg.DefaultSource != "" {
			field("Default", cfg.DefaultSource)
		}
		return nil
	},
}

type profileOption struct {
	Label string
	Note  string
}

// pickProfile prompts for a stored profile, noting how many sources each
// one defines or that it does not load.
func pickProfile() (string, error) {
	list, err := config.ListConfigs()
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", errors.New("no profiles yet, run `mangasrc config init`")
	}

	opts := make([]profileOption, 0, len(list))
	for _, c := range list {
		opts = append(opts, profileOption{Label: c.Label, Note: profileNote(c)})
	}

	prompt := promptui.Select{
		Label: "Profile",
		Items: opts,
		Templates: &promptui.SelectTemplates{
			Active:   `> {{ .Label | cyan }} {{ .Note | faint }}`,
			Inactive: `  {{ .Label }} {{ .Note | faint }}`,
			Selected: `{{ "Profile:" | faint }} {{ .Label }}`,
		},
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return "", errors.New("selection cancelled")
	}

	return opts[idx].Label, nil
}

func profileNote(c config.ConfigInfo) string {
	note := "(does not load)"
	if cfg, err := config.LoadLabel(c.Label); err == nil {
		note = fmt.Sprintf("(%d sources)", len(cfg.Sources))
	}
	if c.Active {
		note += " active"
	}

	return note
}

func sourceNames(cfg *config.Config) string {
	names := make([]string, 0, len(cfg.Sources))
	for _, p := range cfg.Sources {
		names = append(names, p.Name)
	}
	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, ", ")
}

func init() {
	configCmd.AddCommand(configSwitchCmd)
}
