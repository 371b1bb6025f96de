package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"imgharvest/pkg/config"
	"imgharvest/pkg/store"
)

// recordsCmd represents the records command
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List every recorded download",
	Long: `List the append-only record log of accepted downloads.

This is the same log the gallery renders: one line per accepted download
with its filename, fingerprint (when the image was content-addressed) and
source locator.`,
	RunE: runRecords,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
}

func runRecords(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dataDirectory, err := cfg.DataDirectory()
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}

	fileStore, err := store.NewFileStore(filepath.Join(dataDirectory, "harvest.json"))
	if err != nil {
		return fmt.Errorf("failed to open durable store: %w", err)
	}

	records, err := store.NewRecordLog(fileStore).All()
	if err != nil {
		return fmt.Errorf("failed to read record log: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("no downloads recorded")
		return nil
	}

	for i, record := range records {
		fingerprint := record.Fingerprint
		if fingerprint == "" {
			fingerprint = "-"
		}
		locator := record.Locator
		if len(locator) > 80 {
			locator = locator[:77] + "..."
		}
		fmt.Printf("%4d  %-40s  %-16.16s  %s\n", i+1, record.Filename, fingerprint, locator)
	}

	fmt.Printf("\n%d download(s) recorded\n", len(records))
	return nil
}
