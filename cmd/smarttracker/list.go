package main

import (
	"github.com/spf13/cobra"

	"smarttracker/internal/api"
	"smarttracker/internal/config"
)

func newListCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List activities, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				activities, err := client.ListActivities(cmd.Context())
				if err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(cmd.OutOrStdout(), activities)
				}
				return writeActivityList(cmd.OutOrStdout(), activities)
			})
		},
	}
}

func newSearchCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search activities by description or \"lat,lon\" text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				activities, err := client.SearchActivities(cmd.Context(), query)
				if err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(cmd.OutOrStdout(), activities)
				}
				return writeActivityList(cmd.OutOrStdout(), activities)
			})
		},
	}
}
