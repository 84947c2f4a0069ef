package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/semdesk/configs"
	"github.com/Aman-CERP/semdesk/internal/config"
	"github.com/Aman-CERP/semdesk/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long: `Manage the user configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config ($XDG_CONFIG_HOME/semdesk/config.yaml) or --config
  3. Environment variables (SEMDESK_*)
  4. Command line flags (--storage)`,
		Example: `  # Create user config from template
  semdesk config init

  # Show effective configuration
  semdesk config show

  # Print user config file path
  semdesk config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force, effective bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user configuration file from the commented template.

With --effective the file holds the configuration currently in force
instead: defaults, the existing file and SEMDESK_* overrides merged.

An existing file is left alone unless --force is given, in which case it is
first copied to a timestamped backup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force, effective)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration (keeps a backup)")
	cmd.Flags().BoolVar(&effective, "effective", false, "Write the effective configuration instead of the template")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		defaults   bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, defaults)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Show the built-in defaults only")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), userConfigTarget())
			return err
		},
	}
}

// userConfigTarget is the file config init writes: --config when given,
// otherwise the user config path.
func userConfigTarget() string {
	if configPath != "" {
		return configPath
	}
	return config.GetUserConfigPath()
}

func runConfigInit(cmd *cobra.Command, force, effective bool) error {
	out := output.New(cmd.OutOrStdout())
	path := userConfigTarget()

	// The effective configuration is read before the file is moved aside.
	var cfg *config.Config
	if effective {
		var err error
		if cfg, err = loadConfig(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.KeyValue("Location", path)
			out.Status("", "Use --force to replace it with the template (a backup is kept)")
			return nil
		}
		backup := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		if err := os.Rename(path, backup); err != nil {
			return fmt.Errorf("failed to back up %s: %w", path, err)
		}
		out.KeyValue("Backup", backup)
	}

	if cfg != nil {
		if err := cfg.WriteYAML(path); err != nil {
			return err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(configs.UserConfigTemplate), 0o644); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	out.Success("Created configuration")
	out.KeyValue("Location", path)
	out.Newline()
	out.Status("", "Next steps:")
	out.Status("", "  1. List the folders to index under indexing.folders")
	out.Status("", "  2. Run 'semdesk config show' to verify")
	out.Status("", "  3. Run 'semdesk daemon start'")

	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput, defaults bool) error {
	var (
		cfg *config.Config
		err error
	)
	if defaults {
		cfg = config.NewConfig()
	} else if cfg, err = loadConfig(); err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}
