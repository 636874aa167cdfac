package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facefind/internal/config"
	"github.com/kozaktomas/facefind/internal/pipeline"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect event processing state",
}

var eventsStuckCmd = &cobra.Command{
	Use:   "stuck",
	Short: "List events whose processing appears stalled",
	RunE:  runEventsStuck,
}

var eventsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List events with recent upload activity and no completion yet",
	RunE:  runEventsRecent,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsStuckCmd)
	eventsCmd.AddCommand(eventsRecentCmd)
}

// openEventManager opens the event store and wraps it in a manager
// configured for read-only staleness queries.
func openEventManager(cfg *config.Config) (*pipeline.Manager, *pipeline.EventStore, error) {
	events, err := pipeline.OpenEventStore(cfg.Pipeline.Path)
	if err != nil {
		return nil, nil, err
	}
	manager := pipeline.NewManager(events, nil, nil, nil, pipeline.Options{
		StuckAfter:   cfg.Pipeline.StuckAfter,
		RecentWithin: cfg.Pipeline.RecentWithin,
	})
	return manager, events, nil
}

func runEventsStuck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	manager, events, err := openEventManager(cfg)
	if err != nil {
		return err
	}
	defer events.Close()

	stuck, err := manager.StuckEvents(time.Now().UTC())
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		fmt.Println("No stuck events")
		return nil
	}
	for _, event := range stuck {
		fmt.Printf("%s  %-20s  user=%s  state=%s  photos=%d\n",
			event.ID, event.Name, event.UserID, event.State, len(event.Photos))
	}
	return nil
}

func runEventsRecent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	manager, events, err := openEventManager(cfg)
	if err != nil {
		return err
	}
	defer events.Close()

	recent, err := manager.RecentlyActive(time.Now().UTC())
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		fmt.Println("No recently active events")
		return nil
	}
	for _, event := range recent {
		fmt.Printf("%s  %-20s  user=%s  state=%s  photos=%d\n",
			event.ID, event.Name, event.UserID, event.State, len(event.Photos))
	}
	return nil
}
