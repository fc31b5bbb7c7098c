package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LoMein123/DecisionsBot-v2/internal/board"
	"github.com/LoMein123/DecisionsBot-v2/internal/httpapi"
	"github.com/LoMein123/DecisionsBot-v2/internal/modelclient"
	"github.com/LoMein123/DecisionsBot-v2/internal/modqueue"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/config"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/stats/chart"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store/sqlite"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := config.LoadEnv(".env"); err != nil {
		slog.Error("Failed to load .env", "error", err)
		os.Exit(1)
	}
	settings, err := config.ParseSettings("decisionsd", os.Args[1:])
	if err != nil {
		slog.Error("Invalid settings", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, logger, settings)
	stop()
	if err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Stopped")
}

// run serves until ctx is cancelled. Everything it opens is closed before it
// returns, on success or failure.
func run(ctx context.Context, logger *slog.Logger, settings config.Settings) error {
	// Load classification tables, model and speller
	loader := config.Loader{
		DataPath:   settings.DataPath,
		ModelPath:  settings.ModelPath,
		CorpusPath: settings.CorpusPath,
		Logger:     logger,
	}
	if settings.ModelURL != "" {
		loader.Model = &modelclient.Client{
			BaseURL: settings.ModelURL,
			APIKey:  os.Getenv("DECISIONS_MODEL_KEY"),
		}
	}
	components, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	charts, err := chart.NewPNGRenderer(settings.ChartDir)
	if err != nil {
		return fmt.Errorf("prepare chart directory: %w", err)
	}

	// Open database
	st, err := sqlite.OpenSQLite(ctx, settings.DBPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", settings.DBPath, err)
	}

	announcements := board.New(settings.AnnounceChannel)
	svc, err := decisions.New(decisions.Options{
		Store:         st,
		Classifier:    components.Classifier,
		Moderation:    modqueue.New(settings.ModQueue),
		Announcer:     announcements,
		Renderer:      charts,
		ApplicantYear: settings.ApplicantYear,
		Logger:        logger,
	})
	if err != nil {
		st.Close()
		return fmt.Errorf("create service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              settings.Addr,
		Handler:           httpapi.New(svc, announcements, charts, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	slog.Info("Listening",
		"addr", settings.Addr,
		"db", settings.DBPath,
		"schools", len(components.Data.Schools),
		"programs", len(components.Data.Programs),
		"mod_queue", settings.ModQueue,
		"channel", settings.AnnounceChannel,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", settings.Addr, err)
	}
	return nil
}
