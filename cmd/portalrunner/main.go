// Package main provides the portalrunner CLI: one subcommand per portal
// workflow, each driving a headed browser through login, a CAPTCHA prompt
// and the item loop.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/portalrunner/pkg/config"
	"github.com/entrhq/portalrunner/pkg/lander"
	"github.com/entrhq/portalrunner/pkg/workflow"
)

const version = "0.1.0"

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitConfig  = 2
	exitSession = 3
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "portalrunner",
		Short:   "Automates UDISE+ student data workflows",
		Version: version,
		Long: `portalrunner logs in to the UDISE+ portal, waits for you to solve the
CAPTCHA, then works through every pending item of the chosen workflow,
writing results to an xlsx workbook as it goes.

Credentials are read from SSG_USER and SSG_PASS.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to configuration file (YAML)")
	flags.String("input", "", "Input workbook (overrides run.input)")
	flags.String("output", "", "Output workbook (overrides run.output)")
	flags.Bool("headless", false, "Run the browser without a window")
	flags.Bool("resume", false, "Continue from an existing output workbook")
	flags.String("verbosity", "", "Logging level: quiet, normal, verbose or debug")
	flags.String("log-dir", "", "Directory for run logs")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	root.AddCommand(workflowCmd(workflow.PEN, "Look up PEN and date of birth from Aadhaar and year of birth"))
	root.AddCommand(workflowCmd(workflow.School, "Look up each student's school by PEN and import untagged students"))
	root.AddCommand(workflowCmd(workflow.Release, "Raise release requests for students enrolled in other schools"))
	root.AddCommand(workflowCmd(workflow.Export, "Export every pending class/section to its own sheet"))
	root.AddCommand(configCmd())
	return root
}

func workflowCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, name)
			if err != nil {
				return err
			}
			if err := cfg.ResolveCredentials(os.Getenv); err != nil {
				return err
			}
			return execute(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// loadConfig reads --config over the workflow defaults, applies flag
// overrides and validates the result.
func loadConfig(cmd *cobra.Command, name string) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")

	cfg, err := config.Load(path, name)
	if err != nil {
		return nil, err
	}

	if flags.Changed("input") {
		cfg.Run.Input, _ = flags.GetString("input")
	}
	if flags.Changed("output") {
		cfg.Run.Output, _ = flags.GetString("output")
	}
	if flags.Changed("headless") {
		cfg.Portal.Headless, _ = flags.GetBool("headless")
	}
	if flags.Changed("resume") {
		cfg.Run.Resume, _ = flags.GetBool("resume")
	}
	if flags.Changed("verbosity") {
		cfg.Logging.Verbosity, _ = flags.GetString("verbosity")
	}
	if flags.Changed("log-dir") {
		cfg.Logging.Dir, _ = flags.GetString("log-dir")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func exitCode(err error) int {
	var ce *config.ConfigError
	var se *lander.SessionError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ce):
		return exitConfig
	case errors.As(err, &se):
		return exitSession
	default:
		return exitFailed
	}
}
