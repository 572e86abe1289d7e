package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/calebsage/fable/internal/config"
	"github.com/calebsage/fable/internal/engine"
	"github.com/calebsage/fable/internal/narrator"
	"github.com/calebsage/fable/internal/server"
	"github.com/calebsage/fable/internal/store"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to config file (default ~/.fable/config.toml)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := serveConfigPath
	if cfgPath == "" {
		var err error
		cfgPath, err = config.DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
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

	gen, err := narrator.New(cfg.Narrator)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: narrator not configured (%v), generation disabled\n", err)
		gen = nil
	} else {
		fmt.Fprintf(os.Stderr, "  narrator: %s (%s)\n", cfg.Narrator.Provider, cfg.Narrator.Model)
	}

	// Nightly maintenance: cleanup then importance refresh.
	sched := cron.New()
	if _, err := sched.AddFunc("0 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if removed, err := eng.Cleanup(ctx, cfg.Memory.CleanupDays); err != nil {
			log.Error("scheduled cleanup", "err", err)
		} else if removed > 0 {
			log.Info("scheduled cleanup", "removed", removed)
		}
		if boosted, err := eng.RefreshImportance(ctx); err != nil {
			log.Error("scheduled refresh", "err", err)
		} else if boosted > 0 {
			log.Info("scheduled refresh", "boosted", boosted)
		}
		stories, err := db.ListStories(100)
		if err != nil {
			log.Error("scheduled consolidation: list stories", "err", err)
			return
		}
		for _, story := range stories {
			if _, err := eng.Consolidate(ctx, story.ID); err != nil {
				log.Error("scheduled consolidation", "story", story.ID, "err", err)
			}
		}
	}); err != nil {
		return fmt.Errorf("schedule maintenance: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(db, eng, gen, cfg.Memory.TokenBudget, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "fable serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
