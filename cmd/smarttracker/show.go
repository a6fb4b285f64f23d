package main

import (
	"github.com/spf13/cobra"

	"smarttracker/internal/api"
	"smarttracker/internal/config"
)

func newShowCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show activity details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				activity, err := client.GetActivity(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(cmd.OutOrStdout(), activity)
				}
				return writeActivityDetail(cmd.OutOrStdout(), activity)
			})
		},
	}
}

func newDeleteCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an activity and its image",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.DeleteActivity(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(cmd.OutOrStdout(), resp)
				}
				return writePlain(cmd.OutOrStdout(), "deleted %s\n", resp.ID)
			})
		},
	}
}

func newInfoCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				info, err := client.Info(cmd.Context())
				if err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(cmd.OutOrStdout(), info)
				}
				return writePlain(cmd.OutOrStdout(), "%s\nversion: %s\nactivities: %d\n", info.Message, info.Version, info.ActivityCount)
			})
		},
	}
}
