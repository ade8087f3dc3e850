package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/marcindex/internal/config"
	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
	"github.com/Aman-CERP/marcindex/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the project and user configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/marcindex/config.yaml)
  3. Project config (.marcindex.yaml)
  4. Environment variables (MARCINDEX_*)`,
		Example: `  # Write .marcindex.yaml with the defaults
  marcindex config init

  # Show effective configuration
  marcindex config show

  # Undo the last 'config init --force'
  marcindex config restore`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

// configTarget returns the file the init and restore commands work on.
func configTarget(cmd *cobra.Command, user bool) (string, error) {
	if user {
		return config.GetUserConfigPath(), nil
	}
	root, err := filepath.Abs(projectDir(cmd))
	if err != nil {
		return "", fmt.Errorf("failed to resolve project directory: %w", err)
	}
	return filepath.Join(root, config.ProjectFile), nil
}

func newConfigInitCmd() *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file with the defaults",
		Long: `Write the default configuration to .marcindex.yaml in the project
directory, or to the user config with --user.

An existing file is kept unless --force is given; it is then backed up
next to the original before being replaced.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force, user)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force, user bool) error {
	out := output.New(cmd.OutOrStdout())

	path, err := configTarget(cmd, user)
	if err != nil {
		return err
	}

	var backup string
	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Newline()
			out.Status("💡", "Use --force to replace it with the defaults (a backup is kept)")
			return nil
		}
		backup, err = config.BackupFile(path)
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := config.NewConfig().WriteYAML(path); err != nil {
		return err
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	if backup != "" {
		out.Statusf("💾", "Backup: %s", backup)
	}
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Set index.id_spec and tracker.database for your catalog")
	out.Status("", "  2. Run 'marcindex config show' to verify")
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging all sources, or a
single source with --source.`,
		Example: `  marcindex config show
  marcindex config show --json
  marcindex config show --source project`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	var (
		cfg  *config.Config
		desc string
	)
	switch source {
	case "merged":
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		cfg = p.cfg
		desc = "merged (defaults + user + project + env)"

	case "user", "project":
		path, err := configTarget(cmd, source == "user")
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			out.Warningf("No %s configuration file found", source)
			out.Statusf("📁", "Expected at: %s", path)
			out.Status("💡", "Run 'marcindex config init' to create one")
			return nil
		}
		if err != nil {
			return ierrors.New(ierrors.ErrCodeConfigNotFound, "cannot read config file", err).WithDetail("path", path)
		}
		cfg = &config.Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return ierrors.ConfigError("cannot parse config file", err).WithDetail("path", path)
		}
		desc = fmt.Sprintf("%s (%s)", source, path)

	case "defaults":
		cfg = config.NewConfig()
		desc = "defaults (hardcoded)"

	default:
		return ierrors.ValidationError(fmt.Sprintf("invalid source: %s", source), nil).
			WithSuggestion("Use one of: merged, user, project, defaults")
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	out.Statusf("📋", "Configuration source: %s", desc)
	out.Newline()
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}

func newConfigPathCmd() *cobra.Command {
	var user bool

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configTarget(cmd, user)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Print the user config path")

	return cmd
}

func newConfigRestoreCmd() *cobra.Command {
	var user, list bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the most recent config backup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			path, err := configTarget(cmd, user)
			if err != nil {
				return err
			}
			backups, err := config.ListBackups(path)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				out.Warning("No backups found")
				out.Statusf("📁", "Looked next to: %s", path)
				return nil
			}
			if list {
				for _, b := range backups {
					out.Status("", b)
				}
				return nil
			}
			if err := config.RestoreBackup(path, backups[0]); err != nil {
				return err
			}
			out.Successf("Restored %s", path)
			out.Statusf("💾", "From: %s", backups[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Restore the user config")
	cmd.Flags().BoolVar(&list, "list", false, "List backups, newest first, without restoring")

	return cmd
}
