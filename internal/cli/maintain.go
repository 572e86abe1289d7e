package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calebsage/fable/internal/engine"
	"github.com/calebsage/fable/internal/store"
)

var (
	maintainDBPath  string
	maintainDays    int
	maintainStoryID string
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run memory maintenance once and exit",
	Long:  "Runs cleanup and importance refresh against the database. With --story, also consolidates that story's duplicate facts.",
	RunE:  runMaintain,
}

func init() {
	maintainCmd.Flags().StringVar(&maintainDBPath, "db", "", "database path (default ~/.fable/fable.db)")
	maintainCmd.Flags().IntVar(&maintainDays, "days", 30, "age threshold in days for fact cleanup")
	maintainCmd.Flags().StringVar(&maintainStoryID, "story", "", "story ID to consolidate")
}

func runMaintain(cmd *cobra.Command, args []string) error {
	dbPath := maintainDBPath
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := engine.New(db)
	ctx := context.Background()

	removed, err := eng.Cleanup(ctx, maintainDays)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	fmt.Printf("cleanup: removed %d facts\n", removed)

	boosted, err := eng.RefreshImportance(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	fmt.Printf("refresh: boosted %d facts\n", boosted)

	if maintainStoryID != "" {
		merged, err := eng.Consolidate(ctx, maintainStoryID)
		if err != nil {
			return fmt.Errorf("consolidate: %w", err)
		}
		fmt.Printf("consolidate: merged %d facts\n", merged)
	}

	return nil
}
