package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facefind/internal/config"
	"github.com/kozaktomas/facefind/internal/extract"
	"github.com/kozaktomas/facefind/internal/match"
	"github.com/kozaktomas/facefind/internal/pipeline"
	"github.com/kozaktomas/facefind/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the facefind web server.
The server exposes the event upload, processing and selfie search API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Server.Host = host
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := pipeline.OpenEventStore(cfg.Pipeline.Path)
	if err != nil {
		return err
	}
	defer events.Close()

	// The index starts deferred: searches report unavailable until the
	// initial rebuild from the store finishes in the background.
	idx := newIndex(cfg, true)
	go func() {
		records, err := store.All(ctx)
		if err != nil {
			fmt.Printf("Warning: could not load embeddings for index build: %v\n", err)
			return
		}
		if err := idx.Rebuild(records); err != nil {
			fmt.Printf("Warning: index build failed: %v\n", err)
			return
		}
		fmt.Printf("Similarity index ready with %d embeddings\n", idx.Len())
	}()

	manager := pipeline.NewManager(events, store, idx, pipeline.LocalDisk(), pipeline.Options{
		StuckAfter:    cfg.Pipeline.StuckAfter,
		RecentWithin:  cfg.Pipeline.RecentWithin,
		MinFreeBytes:  cfg.Pipeline.MinFreeBytes,
		DataDir:       cfg.Pipeline.DataDir,
		ThumbnailSize: cfg.Pipeline.ThumbnailSize,
	})
	engine := match.NewEngine(store, idx, manager, float32(cfg.Index.MinScore))
	extractor := extract.NewClient(cfg.Extractor.URL)

	server := web.NewServer(cfg.Server.Host, cfg.Server.Port, manager, engine, store, idx, extractor)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting facefind on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
