package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/orchestra-core/ledger/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		WorkspaceRoot:         root,
		SnapshotTTL:           config.Duration{Duration: time.Minute},
		SnapshotSweepInterval: config.Duration{Duration: 10 * time.Millisecond},
		SessionTTL:            config.Duration{Duration: time.Minute},
		SessionSweepInterval:  config.Duration{Duration: 10 * time.Millisecond},
		RevisionCacheTTL:      config.Duration{Duration: time.Second},
		LogLevel:              "info",
		LedgerIndexDSN:        filepath.Join(root, ".orchestration", "ledger_index.db"),
	}
}

func TestNewWiresComponentsWithoutHTTPAPI(t *testing.T) {
	cfg := testConfig(t)

	o, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { o.Stop(context.Background()) })

	if o.Snapshots == nil || o.Sessions == nil || o.Catalog == nil || o.Ledger == nil ||
		o.IntentMap == nil || o.Lessons == nil || o.Index == nil || o.Gate == nil || o.Recorder == nil {
		t.Fatalf("expected every component to be wired, got %+v", o)
	}
	if o.httpServer != nil {
		t.Fatalf("expected no HTTP server when http_addr is empty")
	}
}

func TestStartStopRunsSweepersAndShutsDownCleanly(t *testing.T) {
	cfg := testConfig(t)

	o, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	errCh := o.Start(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o.Stop(shutdownCtx)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected error on channel: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected error channel to close after Stop")
	}
}

func TestStartTwiceReportsAlreadyRunning(t *testing.T) {
	cfg := testConfig(t)

	o, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer o.Stop(context.Background())

	_ = o.Start(context.Background())
	errCh := o.Start(context.Background())

	err = <-errCh
	if err == nil {
		t.Fatalf("expected error starting an already-running orchestrator")
	}
}
