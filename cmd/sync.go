package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pvasseur/streamsync/internal/models"
	"github.com/pvasseur/streamsync/internal/syncer"
)

var (
	syncSourceID uint
	syncForce    bool
	syncFull     bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync playlist sources into the catalog",
	Long: `Sync fetches each configured playlist source and upserts its entries into
the catalog. Sources synced within the freshness window are skipped unless
--force is given. --full wipes a source's entries and replaces them with the
fresh fetch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		targets, err := syncTargets(ctx, application)
		if err != nil {
			return err
		}

		var failures int
		for _, source := range targets {
			if err := runOneSync(ctx, application, &source); err != nil {
				failures++
				application.logger.WithFields(map[string]interface{}{
					"source": source.Name,
				}).Error("sync failed", err)
			}
		}
		if failures > 0 {
			return fmt.Errorf("%d of %d sources failed to sync", failures, len(targets))
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().UintVar(&syncSourceID, "source", 0, "sync only this source id (default: all)")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "sync even when the source is fresh")
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "purge stored entries and replace with a fresh fetch")
}

func syncTargets(ctx context.Context, application *app) ([]models.PlaylistSource, error) {
	if syncSourceID != 0 {
		source, err := application.sources.Get(ctx, syncSourceID)
		if err != nil {
			return nil, err
		}
		return []models.PlaylistSource{*source}, nil
	}
	return application.sources.List(ctx)
}

func runOneSync(ctx context.Context, application *app, source *models.PlaylistSource) error {
	progress := make(chan syncer.ProgressEvent, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range progress {
			fields := map[string]interface{}{
				"source": source.Name,
				"stage":  string(event.Stage),
			}
			if event.ContentType != "" {
				fields["content_type"] = string(event.ContentType)
			}
			if event.Stage == syncer.StageDone {
				fields["live"] = event.Stats.LiveCount
				fields["movies"] = event.Stats.MovieCount
				fields["series"] = event.Stats.SeriesCount
				fields["persisted"] = event.Stats.Persisted
			}
			application.logger.WithFields(fields).Info("sync progress")
		}
	}()

	var err error
	if syncFull {
		_, err = application.engine.FullResync(ctx, source.ID, progress)
	} else {
		_, err = application.engine.Sync(ctx, source.ID, syncForce, progress)
	}
	close(progress)
	<-done
	return err
}
