package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangasrc/internal/config"
)

var flagForceRemove bool

var configRemoveCmd = &cobra.Command{
	Use:   "remove <label>",
	Short: "Delete a configuration profile",
	Long: `Delete a configuration profile.

Removing the active profile makes Default active again. Without --force
you are asked to confirm, with the sources the profile would take along.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := args[0]

		if !flagForceRemove {
			ok, err := confirmRemove(label)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := config.RemoveConfig(label, flagForceRemove); err != nil {
			return err
		}

		fmt.Printf("Removed profile %q\n", label)
		return nil
	},
}

// confirmRemove asks before deleting the active profile or one that still
// defines sources of its own.
func confirmRemove(label string) (bool, error) {
	active, _ := config.CurrentLabel()

	var reasons []string
	if label == active {
		reasons = append(reasons, "it is the active profile")
	}
	if cfg, err := config.LoadLabel(label); err == nil {
		reasons = append(reasons, "it defines "+sourceNames(cfg))
	}
	if len(reasons) == 0 {
		return true, nil
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Remove %q (%s)", label, strings.Join(reasons, "; ")),
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func init() {
	configRemoveCmd.Flags().BoolVar(&flagForceRemove, "force", false, "remove without asking, even when Default is missing")
	configCmd.AddCommand(configRemoveCmd)
}
