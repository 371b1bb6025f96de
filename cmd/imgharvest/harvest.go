package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"imgharvest/internal/downloader"
	"imgharvest/pkg/config"
	"imgharvest/pkg/fetch"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/orchestrator"
	"imgharvest/pkg/ratelimit"
	"imgharvest/pkg/scanner"
	"imgharvest/pkg/storage"
	"imgharvest/pkg/store"
)

var (
	// Harvest command flags
	outputDir  string
	dataDir    string
	concurrent int
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest <page-url> [page-url...]",
	Short: "Scan pages and download every distinct embedded image",
	Long: `Scan one or more pages on a fixed cadence and download each distinct
image exactly once.

Each page gets its own scanner; all scanners feed one shared orchestrator
that deduplicates against the durable cache, so the same image embedded in
several pages is downloaded only once. Interrupted downloads are rolled
back and retried on a later scan pass. Stop with Ctrl-C; committed state
survives restarts.`,
	Example: `  # Harvest a single page
  imgharvest harvest https://example.com/board

  # Harvest several pages into a custom directory
  imgharvest harvest https://a.example https://b.example --output ./images`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	harvestCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
	harvestCmd.Flags().StringVar(&dataDir, "data-dir", "", "directory for the dedup cache and record log")
	harvestCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
}

func runHarvest(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if dataDir != "" {
		flags["data-dir"] = dataDir
	}
	if concurrent > 0 {
		flags["concurrent"] = concurrent
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	dataDirectory, err := cfg.DataDirectory()
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}

	fileStore, err := store.NewFileStore(filepath.Join(dataDirectory, "harvest.json"))
	if err != nil {
		return fmt.Errorf("failed to open durable store: %w", err)
	}
	dedupCache := store.NewDedupCache(fileStore, log)
	recordLog := store.NewRecordLog(fileStore)

	storageManager, err := storage.NewManager(cfg.Output.BaseDirectory)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	client := fetch.NewClient(cfg.Download.DownloadTimeout, cfg.Scanner.ProbeTimeout, cfg.Retry, log)
	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)

	pool := downloader.NewWorkerPool(
		cfg.Download.ConcurrentDownloads,
		cfg.Download.QueueSize,
		client,
		storageManager,
		limiter,
		log,
	)
	pool.Start()

	orch := orchestrator.New(pool, dedupCache, recordLog, cfg.Download.QueueSize, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// Unwind order: cancel the context, drain the pool (which closes its
	// event feed), then wait for the orchestrator's consumers.
	defer orch.Stop()
	defer pool.Stop()
	defer stop()

	orch.Start(ctx)

	resolver := scanner.NewFetchResolver(client)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, pageURL := range args {
		page, err := scanner.NewHTMLPage(pageURL, client)
		if err != nil {
			return err
		}

		scn := scanner.New(cfg.Scanner, page, resolver, client, orch, log.WithField("page", pageURL))
		group.Go(func() error {
			return scn.Run(groupCtx)
		})

		log.InfoWithFields("scanning page", map[string]interface{}{
			"page": pageURL,
		})
	}

	if err := group.Wait(); err != nil && err != context.Canceled {
		return err
	}

	log.Info("harvest stopped")
	return nil
}
