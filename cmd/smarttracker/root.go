package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smarttracker/internal/config"
	"smarttracker/internal/format"
)

type outputOptions struct {
	json bool
	yaml bool
}

// structured reports whether results should be written by a formatter.
func (o *outputOptions) structured() bool {
	return o.json || o.yaml
}

func (o *outputOptions) formatter() (format.Formatter, error) {
	switch {
	case o.json && o.yaml:
		return nil, fmt.Errorf("--json and --yaml are mutually exclusive")
	case o.yaml:
		return format.ByName("yaml")
	default:
		return format.ByName("json")
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	out := &outputOptions{}
	var logLevel string

	cmd := &cobra.Command{
		Use:           "smarttracker",
		Short:         "SmartTracker records geotagged activities with optional photos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}
			formatter, err := out.formatter()
			if err != nil {
				return err
			}
			outputFormatter = formatter
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&out.json, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&out.yaml, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newInfoCmd(cfg, out),
		newListCmd(cfg, out),
		newShowCmd(cfg, out),
		newCreateCmd(cfg, out),
		newUpdateCmd(cfg, out),
		newDeleteCmd(cfg, out),
		newSearchCmd(cfg, out),
		newConfigCmd(cfg),
	)

	return cmd
}
