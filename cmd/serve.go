package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvasseur/streamsync/internal/api"
	"github.com/pvasseur/streamsync/internal/database"
	"github.com/pvasseur/streamsync/internal/shutdown"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp()
		if err != nil {
			return err
		}

		handler := shutdown.New(30 * time.Second)
		handler.Register(func(ctx context.Context) error {
			return database.Close()
		})

		server := api.NewServer(api.Config{
			Sources:    application.sources,
			Catalog:    application.catalog,
			Logs:       application.logs,
			Engine:     application.engine,
			Enricher:   application.enricher,
			Logger:     application.logger,
			HealthFunc: database.HealthCheck,
		})

		port := application.cfg.API.Port
		application.logger.WithFields(map[string]interface{}{
			"port": port,
		}).Info("starting API server")

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Run(port)
		}()

		go handler.Wait()

		select {
		case err := <-errChan:
			handler.Shutdown()
			return fmt.Errorf("server stopped: %w", err)
		case <-handler.ShutdownChan():
			application.logger.Info("shutting down")
			return nil
		}
	},
}
