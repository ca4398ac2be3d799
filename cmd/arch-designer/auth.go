package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/arch-designer/internal/config"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Gemini API key stored in the OS keyring",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key [KEY]",
	Short: "Store the API key (read from stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			fmt.Fprint(os.Stderr, "Gemini API key: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read API key: %w", err)
			}
			key = strings.TrimSpace(line)
		}
		if err := config.SaveAPIKey(key); err != nil {
			return err
		}
		logger.Info("Stored API key in keyring", "service", config.KeyringService)
		return nil
	},
}

var clearKeyCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.DeleteAPIKey(); err != nil {
			return err
		}
		logger.Info("Removed API key from keyring", "service", config.KeyringService)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report where the API key is resolved from",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Generation.APIKey != "" {
			fmt.Println("API key: configured via " + config.EnvAPIKey + " or config file")
			return nil
		}
		if _, err := cfg.ResolveAPIKey(); err != nil {
			return err
		}
		fmt.Println("API key: stored in OS keyring")
		return nil
	},
}

func init() {
	authCmd.AddCommand(setKeyCmd, clearKeyCmd, statusCmd)
	rootCmd.AddCommand(authCmd)
}
