package main

import (
	"context"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/config"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store/sqlite"
)

func testSettings(t *testing.T, addr string) config.Settings {
	dir := t.TempDir()
	return config.Settings{
		Addr:            addr,
		DBPath:          filepath.Join(dir, "decisions.db"),
		ChartDir:        filepath.Join(dir, "charts"),
		ModQueue:        "mod-queue",
		AnnounceChannel: "decisions",
	}
}

func TestRunReturnsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	settings := testSettings(t, ln.Addr().String())
	if err := run(context.Background(), slog.Default(), settings); err == nil {
		t.Fatal("run should fail when the address is taken")
	}

	// The database was closed on the way out and opens again cleanly.
	st, err := sqlite.OpenSQLite(context.Background(), settings.DBPath)
	if err != nil {
		t.Fatalf("reopen database: %v", err)
	}
	st.Close()
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(100*time.Millisecond, cancel)

	if err := run(ctx, slog.Default(), testSettings(t, "127.0.0.1:0")); err != nil {
		t.Fatalf("run after cancel: %v", err)
	}
}

func TestRunRejectsBadData(t *testing.T) {
	settings := testSettings(t, "127.0.0.1:0")
	settings.DataPath = filepath.Join(t.TempDir(), "missing.yaml")
	if err := run(context.Background(), slog.Default(), settings); err == nil {
		t.Fatal("run should fail with a missing data file")
	}
}
