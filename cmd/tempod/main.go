// Command tempod is the tempo server daemon. It wires the task store,
// the ordering planner, and the reminder scheduler together and serves
// the JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/GoCodeAlone/tempo/config"
	"github.com/GoCodeAlone/tempo/internal/version"
	"github.com/GoCodeAlone/tempo/notify"
	"github.com/GoCodeAlone/tempo/plan"
	"github.com/GoCodeAlone/tempo/remind"
	"github.com/GoCodeAlone/tempo/server"
	"github.com/GoCodeAlone/tempo/task"
)

var configPath = flag.String("config", "tempo.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	logger.Info("starting tempod",
		"version", version.Version,
		"commit", version.Commit,
	)

	store, err := task.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open task store: %v", err)
	}
	defer store.Close() //nolint:errcheck

	bus := notify.NewBus()
	reminders := remind.New(store, bus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reminders.Run(ctx)

	// Timers do not survive restarts; re-derive them from persisted
	// deadlines. Offsets already in the past are skipped.
	if err := rescheduleReminders(store, reminders, logger); err != nil {
		log.Fatalf("Failed to reschedule reminders: %v", err)
	}

	srv := server.New(*cfg, version.Version, logger)
	srv.SetStore(store)
	srv.SetPlanner(plan.NewPlanner(store, logger))
	srv.SetReminders(reminders)
	srv.SetBus(bus)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}

	cancel()
	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("server stop error", "err", err)
	}
	fmt.Println("Shutdown complete")
}

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == "tempo.yaml" {
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// rescheduleReminders registers deadline reminders for every pending
// task that still has one.
func rescheduleReminders(store task.Store, reminders *remind.Scheduler, logger *slog.Logger) error {
	pending, err := store.ListPending()
	if err != nil {
		return err
	}
	n := 0
	for _, t := range pending {
		if t.Deadline == nil {
			continue
		}
		reminders.Schedule(t.ID, *t.Deadline)
		n++
	}
	logger.Info("rescheduled reminders",
		"tasks", n,
		"timers", reminders.Pending(),
	)
	return nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
