package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/menta2k/arch-designer/internal/prefs"
	"github.com/menta2k/arch-designer/internal/server"
	"github.com/menta2k/arch-designer/pkg/cropper"
	"github.com/menta2k/arch-designer/pkg/gemini"
)

var (
	serveAddr      string
	serveAccessLog bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the editor and generation workflow over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().BoolVar(&serveAccessLog, "access-log", false, "log every HTTP request")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	apiKey, err := cfg.ResolveAPIKey()
	if err != nil {
		return err
	}
	backend, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:  apiKey,
		Model:   cfg.Generation.Model,
		Timeout: cfg.Timeout(),
	})
	if err != nil {
		return err
	}

	store, err := prefs.Open(cfg.Storage.PrefsPath)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := server.New(server.Config{
		SessionTTL:      cfg.SessionTTL(),
		MaxUploadBytes:  cfg.Server.MaxUploadMB << 20,
		ReadTimeout:     time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:    time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		GenerateTimeout: cfg.Timeout(),
		MinInterval:     cfg.MinInterval(),
		AccessLog:       serveAccessLog,
	}, backend, cropper.NewWithConfig(cropper.CropConfig{MaxCanvasArea: cfg.Editor.MaxCanvasArea}), store, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
