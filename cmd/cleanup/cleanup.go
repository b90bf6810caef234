// Package cleanup implements the one-shot retention pass subcommand.
package cleanup

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jefvlamings/reolink-feed/internal/conf"
	"github.com/jefvlamings/reolink-feed/internal/diskmanager"
	"github.com/jefvlamings/reolink-feed/internal/logging"
	"github.com/jefvlamings/reolink-feed/internal/model"
	"github.com/jefvlamings/reolink-feed/internal/store"
)

// Command creates the cleanup subcommand. It applies the age, count and
// storage limits to the persisted timeline without starting the daemon,
// for cron-style maintenance on stopped installations.
func Command(settings *conf.Settings) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Apply retention and storage limits once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(settings, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be removed without deleting anything")
	return cmd
}

func runCleanup(settings *conf.Settings, dryRun bool) error {
	logger := logging.ForService("cleanup")

	timelineStore := store.New(settings.Feed.StorePath, logger)
	items, err := timelineStore.Load()
	if err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}

	enforcer := diskmanager.NewEnforcer(settings.Feed.MediaRoot, settings.Feed.MediaSourceID, logger, nil)
	enforcer.SyncSizes(items)

	cutoff := settings.Feed.RetentionCutoff(time.Now())
	kept, byAge := diskmanager.TrimAge(items, cutoff)
	kept, byCount := diskmanager.TrimCount(kept, settings.Feed.MaxDetections)
	kept, byStorage := enforcer.TrimStorage(kept, settings.Feed.MaxStorageBytes())

	removed := len(byAge) + len(byCount) + len(byStorage)
	logger.Info("cleanup computed",
		"items", len(items), "by_age", len(byAge), "by_count", len(byCount),
		"by_storage", len(byStorage), "remaining", len(kept))

	if removed == 0 {
		fmt.Println("Nothing to remove.")
		return nil
	}
	if dryRun {
		fmt.Printf("Would remove %d of %d items (%d by age, %d by count, %d by storage).\n",
			removed, len(items), len(byAge), len(byCount), len(byStorage))
		return nil
	}

	for _, group := range [][]*model.Item{byAge, byCount, byStorage} {
		for _, item := range group {
			enforcer.DeleteAssets(item)
		}
	}
	if err := timelineStore.Save(kept); err != nil {
		return fmt.Errorf("failed to save trimmed timeline: %w", err)
	}

	fmt.Printf("Removed %d of %d items, %d remaining.\n", removed, len(items), len(kept))
	return nil
}
