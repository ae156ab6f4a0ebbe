package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pvasseur/streamsync/internal/enrichment"
)

var (
	enrichSourceID uint
	enrichLimit    int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Backfill external metadata onto unmatched catalog entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp()
		if err != nil {
			return err
		}
		if application.enricher == nil {
			return fmt.Errorf("metadata catalog is disabled: set tmdb.enabled and tmdb.api_key")
		}

		result, err := application.enricher.EnrichLibrary(cmd.Context(), enrichment.Scope{
			SourceID: enrichSourceID,
			Limit:    enrichLimit,
		}, nil)
		if err != nil {
			return err
		}

		application.logger.WithFields(map[string]interface{}{
			"processed": result.Processed,
			"matched":   result.Matched,
			"failed":    result.Failed,
		}).Info("enrichment completed")
		return nil
	},
}

func init() {
	enrichCmd.Flags().UintVar(&enrichSourceID, "source", 0, "enrich only this source id (default: whole library)")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "maximum entries to process (default: all)")
}
