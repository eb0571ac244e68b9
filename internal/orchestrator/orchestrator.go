// Package orchestrator wires together every orchestration component --
// snapshot store, session registry, intent catalog, ledger writer, intent
// map writer, lessons store, gatekeeper, recorder, ledger query index, and
// operator HTTP API -- and manages their lifecycle through a shared
// context.
package orchestrator

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/orchestra-core/ledger/internal/config"
	"github.com/orchestra-core/ledger/internal/gatekeeper"
	"github.com/orchestra-core/ledger/internal/httpapi"
	"github.com/orchestra-core/ledger/internal/intent"
	"github.com/orchestra-core/ledger/internal/intentmap"
	"github.com/orchestra-core/ledger/internal/ledger"
	"github.com/orchestra-core/ledger/internal/ledgerindex"
	"github.com/orchestra-core/ledger/internal/lessons"
	"github.com/orchestra-core/ledger/internal/recorder"
	"github.com/orchestra-core/ledger/internal/revision"
	"github.com/orchestra-core/ledger/internal/session"
	"github.com/orchestra-core/ledger/internal/snapshot"
)

// Orchestrator owns every long-lived orchestration component and
// supervises their background sweepers and the operator HTTP API.
type Orchestrator struct {
	cfg    *config.Config
	logger *slog.Logger

	Revision  *revision.Probe
	Snapshots *snapshot.Store
	Sessions  *session.Registry
	Catalog   *intent.Catalog
	Ledger    *ledger.Writer
	IntentMap *intentmap.Writer
	Lessons   *lessons.Store
	Index     ledgerindex.Backend
	Gate      *gatekeeper.Gatekeeper
	Recorder  *recorder.Recorder

	httpServer *http.Server

	mu            sync.Mutex
	running       bool
	stopSnapshots func()
	stopSessions  func()
}

// New constructs an Orchestrator from cfg. It opens the ledger query
// index backend (SQLite path or postgres:// DSN); apart from the Postgres
// backend's flush loop it starts no background goroutine -- call Start for
// the sweepers and the HTTP API.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	revisionProbe := revision.NewWithTTL(cfg.RevisionCacheTTL.Duration)
	snapshots := snapshot.New()
	sessions := session.New()
	catalog := intent.NewCatalog()
	ledgerWriter := ledger.NewWriter(logger)
	intentMapWriter := intentmap.NewWriter()
	lessonsStore := lessons.New()

	index, err := openLedgerIndex(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open ledger index: %w", err)
	}

	gate := gatekeeper.New(snapshots, catalog, logger)
	rec := recorder.New(revisionProbe, ledgerWriter, intentMapWriter, snapshots, index, logger)

	o := &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		Revision:  revisionProbe,
		Snapshots: snapshots,
		Sessions:  sessions,
		Catalog:   catalog,
		Ledger:    ledgerWriter,
		IntentMap: intentMapWriter,
		Lessons:   lessonsStore,
		Index:     index,
		Gate:      gate,
		Recorder:  rec,
	}

	if cfg.HTTPAddr != "" {
		pubKey, err := loadJWTPublicKey(cfg.JWTPublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: load JWT public key: %w", err)
		}

		srv := httpapi.NewServer(httpapi.Deps{
			WorkspaceRoot: cfg.WorkspaceRoot,
			Index:         index,
			Lessons:       lessonsStore,
		}, logger)

		o.httpServer = &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      httpapi.NewRouter(srv, pubKey),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
	}

	return o, nil
}

func openLedgerIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledgerindex.Backend, error) {
	if cfg.LedgerIndexDSN == "" {
		return nil, nil
	}
	if strings.HasPrefix(cfg.LedgerIndexDSN, "postgres://") || strings.HasPrefix(cfg.LedgerIndexDSN, "postgresql://") {
		return ledgerindex.OpenPostgres(ctx, cfg.LedgerIndexDSN, 100, 5*time.Second, logger)
	}
	return ledgerindex.OpenSQLite(cfg.LedgerIndexDSN)
}

func loadJWTPublicKey(path string) (*rsa.PublicKey, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read JWT public key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("decode JWT public key: no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse JWT public key: %w", err)
	}
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("JWT public key is not RSA")
	}
	return rsaKey, nil
}

// Start launches the snapshot and session sweepers and, if configured,
// the operator HTTP API. It returns a channel on which a fatal HTTP
// server error is delivered (nil is never sent; the channel is closed on
// clean shutdown).
func (o *Orchestrator) Start(ctx context.Context) <-chan error {
	o.mu.Lock()
	defer o.mu.Unlock()

	errCh := make(chan error, 1)

	if o.running {
		errCh <- fmt.Errorf("orchestrator: already running")
		close(errCh)
		return errCh
	}
	o.running = true

	o.stopSnapshots = o.Snapshots.Run(o.cfg.SnapshotSweepInterval.Duration, o.cfg.SnapshotTTL.Duration)
	o.stopSessions = o.Sessions.Run(o.cfg.SessionSweepInterval.Duration, o.cfg.SessionTTL.Duration)

	if o.httpServer != nil {
		go func() {
			o.logger.Info("operator HTTP API listening", slog.String("addr", o.cfg.HTTPAddr))
			if err := o.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("operator HTTP API: %w", err)
			}
			close(errCh)
		}()
	} else {
		// With no HTTP API there is nothing to fail; the channel is closed
		// when Stop halts the sweepers.
		stopSnapshots := o.stopSnapshots
		o.stopSnapshots = func() {
			stopSnapshots()
			close(errCh)
		}
	}

	return errCh
}

// Stop halts the sweepers, shuts down the HTTP API within the given
// context's deadline, and closes the ledger query index. Safe to call
// once after Start.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return
	}
	o.running = false

	if o.stopSnapshots != nil {
		o.stopSnapshots()
	}
	if o.stopSessions != nil {
		o.stopSessions()
	}

	if o.httpServer != nil {
		if err := o.httpServer.Shutdown(ctx); err != nil {
			o.logger.Warn("operator HTTP API shutdown error", slog.Any("error", err))
		}
	}

	if o.Index != nil {
		if err := o.Index.Close(); err != nil {
			o.logger.Warn("ledger index close error", slog.Any("error", err))
		}
	}
}
