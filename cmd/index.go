package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facefind/internal/config"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the similarity index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the similarity index from the embedding store",
	Long: `Build the configured similarity index from every stored embedding.
The server does this automatically at startup; this command is a smoke
check that every stored vector still indexes cleanly, and reports build
timing for capacity planning. With a PostgreSQL backend it also creates
the pgvector ivfflat index.`,
	RunE: runIndexBuild,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.All(ctx)
	if err != nil {
		return fmt.Errorf("loading embeddings: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No embeddings stored, nothing to index")
		return nil
	}

	bar := progressbar.NewOptions(len(records),
		progressbar.OptionSetDescription(fmt.Sprintf("Building %s index", cfg.Index.Backend)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("embeddings"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	idx := newIndex(cfg, false)
	start := time.Now()
	for _, rec := range records {
		if err := idx.Add(rec.ID, rec.Vector); err != nil {
			fmt.Printf("\nrecord %d failed to index: %v\n", rec.ID, err)
		}
		bar.Add(1)
	}
	fmt.Printf("\nIndexed %d of %d embeddings in %s\n", idx.Len(), len(records), time.Since(start).Round(time.Millisecond))

	if pg, ok := store.(pgStore); ok {
		fmt.Println("Creating pgvector ivfflat index...")
		if err := pg.pool.CreateVectorIndex(ctx); err != nil {
			return fmt.Errorf("creating pgvector index: %w", err)
		}
		fmt.Println("pgvector index ready")
	}
	return nil
}
