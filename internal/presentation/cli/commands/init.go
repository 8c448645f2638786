package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/viberater/viberater/internal/infrastructure/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Long: `Write a default configuration to ~/.viberater/config.yaml.

Edit the file afterwards to point at your server and set credentials:

  api:
    base_url: http://localhost:3001/api
    access_token: <token>
    refresh_token: <token>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")

	return cmd
}

func runInit(force bool) error {
	formatter := GetFormatter()

	loader, err := config.NewLoader("")
	if err != nil {
		return fmt.Errorf("failed to create config loader: %w", err)
	}

	configPath := globalFlags.ConfigFile
	if configPath == "" {
		configPath = filepath.Join(loader.Dir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		formatter.Warning("Config already exists at %s (use --force to overwrite)", configPath)
		return nil
	}

	if err := loader.Save(config.NewDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	formatter.Success("Wrote default config to %s", configPath)
	formatter.Info("Edit api.base_url and tokens before first sync")
	return nil
}
