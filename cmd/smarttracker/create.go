package main

import (
	"errors"

	"github.com/spf13/cobra"

	"smarttracker/internal/api"
	"smarttracker/internal/config"
	"smarttracker/internal/models"
)

type activityCmdOptions struct {
	latitude    string
	longitude   string
	description string
	timestamp   string
	imagePath   string
}

func (o *activityCmdOptions) request() api.ActivityRequest {
	return api.ActivityRequest{
		Latitude:    api.FlexString(o.latitude),
		Longitude:   api.FlexString(o.longitude),
		Description: o.description,
		Timestamp:   o.timestamp,
	}
}

// openImage opens the --image file, if any. The returned close func is never nil.
func (o *activityCmdOptions) openImage() (*api.ImageUpload, func(), error) {
	if o.imagePath == "" {
		return nil, func() {}, nil
	}
	image, f, err := api.OpenImage(o.imagePath)
	if err != nil {
		return nil, func() {}, err
	}
	return image, func() { _ = f.Close() }, nil
}

func bindActivityFlags(cmd *cobra.Command, opts *activityCmdOptions) {
	cmd.Flags().StringVar(&opts.latitude, "lat", "", "latitude in decimal degrees")
	cmd.Flags().StringVar(&opts.longitude, "lon", "", "longitude in decimal degrees")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "free-text description")
	cmd.Flags().StringVarP(&opts.imagePath, "image", "i", "", "path to a JPEG, PNG or GIF to attach")
}

func newCreateCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	opts := &activityCmdOptions{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a new activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.latitude == "" || opts.longitude == "" {
				return errors.New("--lat and --lon are required")
			}
			image, closeImage, err := opts.openImage()
			if err != nil {
				return err
			}
			defer closeImage()

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				activity, err := client.CreateActivity(cmd.Context(), opts.request(), image)
				if err != nil {
					return err
				}
				return writeActivityResult(cmd, out, activity)
			})
		},
	}

	bindActivityFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.timestamp, "timestamp", "", "ISO-8601 timestamp (defaults to now)")
	return cmd
}

func newUpdateCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	opts := &activityCmdOptions{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an activity; empty flags leave fields unchanged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, closeImage, err := opts.openImage()
			if err != nil {
				return err
			}
			defer closeImage()

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				activity, err := client.UpdateActivity(cmd.Context(), args[0], opts.request(), image)
				if err != nil {
					return err
				}
				return writeActivityResult(cmd, out, activity)
			})
		},
	}

	bindActivityFlags(cmd, opts)
	return cmd
}

func writeActivityResult(cmd *cobra.Command, out *outputOptions, activity models.Activity) error {
	if out.structured() {
		return writeStructured(cmd.OutOrStdout(), activity)
	}
	return writePlain(cmd.OutOrStdout(), "%s\n", activity.ID)
}
