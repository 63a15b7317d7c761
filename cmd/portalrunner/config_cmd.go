package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/portalrunner/pkg/config"
	"github.com/entrhq/portalrunner/pkg/workflow"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and write configuration files",
	}
	cmd.AddCommand(configInitCmd(), configShowCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <workflow> <path>",
		Short: "Write the default configuration of a workflow",
		Long: `Write the built-in selectors, columns and timeouts of a workflow to a
YAML file that can be edited and passed back with --config.

Workflows: ` + fmt.Sprint(workflow.Names),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default(args[0])
			if _, err := cfg.Build(); err != nil {
				return &config.ConfigError{Field: "workflow", Err: err}
			}
			if err := config.Save(args[1], cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s configuration to %s\n", args[0], args[1])
			return nil
		},
	}
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <workflow>",
		Short: "Print the effective configuration after --config and flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args[0])
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
