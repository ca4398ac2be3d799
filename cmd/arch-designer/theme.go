package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/arch-designer/internal/prefs"
)

var themeCmd = &cobra.Command{
	Use:   "theme [light|dark|toggle]",
	Short: "Show or change the saved theme preference",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := prefs.Open(cfg.Storage.PrefsPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		var theme prefs.Theme
		switch {
		case len(args) == 0:
			theme, err = store.Theme(ctx)
		case args[0] == "toggle":
			theme, err = store.ToggleTheme(ctx)
		default:
			theme, err = prefs.ParseTheme(args[0])
			if err == nil {
				err = store.SetTheme(ctx, theme)
			}
		}
		if err != nil {
			return err
		}

		fmt.Println(theme)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)
}
