package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/LoMein123/DecisionsBot-v2/internal/importer"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/config"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store/sqlite"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := config.LoadEnv(".env"); err != nil {
		slog.Error("Failed to load .env", "error", err)
		os.Exit(1)
	}

	var (
		exportPath string
		partition  string
		batch      int
		pause      time.Duration
	)
	settings, err := config.ParseSettings("import-channel", os.Args[1:], func(fs *flag.FlagSet) {
		fs.StringVar(&exportPath, "export", "", "Channel export, .html or .jsonl (required)")
		fs.StringVar(&partition, "partition", "", "Applicant year to import into (required)")
		fs.IntVar(&batch, "batch", importer.DefaultBatchSize, "Messages written per batch")
		fs.DurationVar(&pause, "pause", importer.DefaultPause, "Pause between batches")
	})
	if err != nil {
		slog.Error("Invalid settings", "error", err)
		os.Exit(2)
	}
	if exportPath == "" || partition == "" {
		slog.Error("--export and --partition are required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	msgs, err := readExport(exportPath)
	if err != nil {
		slog.Error("Failed to read export", "path", exportPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded export", "messages", len(msgs))

	loader := config.Loader{
		DataPath:   settings.DataPath,
		ModelPath:  settings.ModelPath,
		CorpusPath: settings.CorpusPath,
		Logger:     logger,
	}
	components, err := loader.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	st, err := sqlite.OpenSQLite(ctx, settings.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", settings.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	im, err := importer.New(importer.Options{
		Store:      st,
		Classifier: components.Classifier,
		Partition:  partition,
		BatchSize:  batch,
		Pause:      pause,
		Logger:     logger,
	})
	if err != nil {
		slog.Error("Failed to create importer", "error", err)
		os.Exit(1)
	}

	rep, err := im.Run(ctx, msgs)
	if err != nil {
		slog.Error("Import stopped", "error", err, "imported", rep.Imported)
		os.Exit(1)
	}
	slog.Info("✓ Import complete",
		"imported", rep.Imported,
		"duplicates", rep.Duplicates,
		"skipped", rep.Skipped,
	)
}

func readExport(path string) ([]importer.Message, error) {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return importer.LoadJSONL(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return importer.ParseHTMLExport(f)
}
