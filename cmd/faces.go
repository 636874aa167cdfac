package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facefind/internal/config"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Inspect and manage the embedding store",
}

var facesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print embedding store statistics",
	RunE:  runFacesStats,
}

var facesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all embeddings from the store",
	RunE:  runFacesClear,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesStatsCmd)
	facesCmd.AddCommand(facesClearCmd)

	facesClearCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
}

func runFacesStats(cmd *cobra.Command, args []string) error {
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

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Total embeddings: %d (dimension %d)\n", stats.TotalCount, store.Dimension())

	users := make([]string, 0, len(stats.PerUser))
	for user := range stats.PerUser {
		users = append(users, user)
	}
	sort.Strings(users)
	for _, user := range users {
		fmt.Printf("  %-36s %d\n", user, stats.PerUser[user])
	}
	return nil
}

func runFacesClear(cmd *cobra.Command, args []string) error {
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

	if !mustGetBool(cmd, "yes") {
		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("This will remove %d embeddings. Re-run with --yes to confirm.\n", stats.TotalCount)
		return nil
	}

	removed, err := store.ClearAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d embeddings\n", removed)
	return nil
}
