package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pvasseur/streamsync/internal/config"
	"github.com/pvasseur/streamsync/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "streamsync",
	Short: "StreamSync ingests IPTV playlists and reconciles them with external metadata",
	Long: `StreamSync fetches M3U playlists and Xtream-Codes panels, normalizes their
titles into a unified catalog stored in PostgreSQL, and enriches movie and
series entries with posters and identifiers from an external metadata catalog.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of StreamSync",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("StreamSync v0.1.0")
	},
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yml)")
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(enrichCmd)
}

func initConfig() {
	// Skip config loading for version command
	if len(os.Args) > 1 && os.Args[1] == "version" {
		return
	}

	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()
	logger.InitializeLoggers(cfg.GetAppLogLevel(), cfg.GetDatabaseLogLevel())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
