package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sudo-kno3/analyte-resolver/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print or validate resolvectl configuration",
		Long:  "Show the effective configuration, or validate a config file against the gate-threshold invariants.",
		Example: `  resolvectl config show
  resolvectl config validate ./prod.yaml
  resolvectl config write ./prod.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	cmd.AddCommand(newConfigValidateCmd())
	cmd.AddCommand(newConfigWriteCmd())
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a config file's cross-field invariants without loading it into a resolver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(args[0]); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			fmt.Printf("%s is valid\n", args[0])
			return nil
		},
	}
}

func newConfigWriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write <path>",
		Short: "Write the effective (default or --config-loaded) configuration to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.WriteYAML(cfg, args[0]); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("wrote config to %s\n", args[0])
			return nil
		},
	}
}

func runConfigShow() error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
