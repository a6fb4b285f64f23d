package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smarttracker/internal/attachment"
	"smarttracker/internal/config"
	"smarttracker/internal/server"
	"smarttracker/internal/store"
	"smarttracker/internal/upload"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the smarttracker API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.UploadDir == "" {
				return fmt.Errorf("upload dir is required")
			}

			logger := componentLogger("server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("preparing upload directory", "path", cfg.UploadDir)
			receiver, err := upload.NewReceiver(cfg.UploadDir, upload.Policy{
				MaxBytes:          cfg.Uploads.MaxBytes,
				AllowedExtensions: cfg.Uploads.AllowedExtensions,
				AllowedMediaTypes: cfg.Uploads.AllowedMediaTypes,
			})
			if err != nil {
				return err
			}
			attachments, err := attachment.NewManager(receiver.Dir(), cfg.PublicPath, componentLogger("attachments"))
			if err != nil {
				return err
			}

			activities := store.New(attachments, componentLogger("store"))
			srv := server.New(addr, activities, receiver, server.Options{
				PublicURL:          cfg.PublicURL,
				PublicPath:         cfg.PublicPath,
				CORSOrigins:        cfg.CORSOrigins,
				MultipartMaxMemory: cfg.Uploads.MultipartMaxMemory,
				Version:            version,
			}, logger)
			return srv.ListenAndServe()
		},
	}
}
