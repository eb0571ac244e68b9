package ledgerindex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orchestra-core/ledger/internal/ledger"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ledger_rows (
	entry_id       TEXT NOT NULL,
	relative_path  TEXT NOT NULL,
	timestamp      TEXT NOT NULL,
	revision_id    TEXT NOT NULL,
	mutation_class TEXT NOT NULL,
	intent_id      TEXT NOT NULL,
	content_hash   TEXT NOT NULL,
	UNIQUE(entry_id, relative_path)
);
CREATE INDEX IF NOT EXISTS idx_ledger_rows_path ON ledger_rows(relative_path);
CREATE INDEX IF NOT EXISTS idx_ledger_rows_intent ON ledger_rows(intent_id);
`

// PostgresIndex is the optional external mirror of the Ledger Query Index,
// for installations with a shared Postgres instance. Writes are buffered
// and flushed on the same threshold-or-ticker discipline the teacher's
// storage layer uses for alerts.
type PostgresIndex struct {
	pool          *pgxpool.Pool
	logger        *slog.Logger
	mu            sync.Mutex
	batch         []Row
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// OpenPostgres connects to connStr, ensures the schema exists, and starts a
// background flush loop.
func OpenPostgres(ctx context.Context, connStr string, batchSize int, flushInterval time.Duration, logger *slog.Logger) (*PostgresIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres ledger index: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres ledger index: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres ledger index schema: %w", err)
	}

	p := &PostgresIndex{
		pool:          pool,
		logger:        logger,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go p.flushLoop()

	return p, nil
}

func (p *PostgresIndex) flushLoop() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.Flush(context.Background()); err != nil {
				p.logger.Error("ledger index flush failed", "error", err)
			}
		case <-p.stopCh:
			_ = p.Flush(context.Background())
			return
		}
	}
}

// Project buffers one row per file entry, flushing synchronously once the
// buffer reaches batchSize (the teacher's backpressure discipline).
func (p *PostgresIndex) Project(entry ledger.Entry) error {
	rows := rowsFromEntry(entry)
	if len(rows) == 0 {
		return nil
	}

	p.mu.Lock()
	p.batch = append(p.batch, rows...)
	full := len(p.batch) >= p.batchSize
	p.mu.Unlock()

	if full {
		return p.Flush(context.Background())
	}
	return nil
}

// Flush drains the buffer under lock and writes it as a single pgx.Batch,
// idempotently (ON CONFLICT DO NOTHING keyed by entry_id, relative_path).
func (p *PostgresIndex) Flush(ctx context.Context) error {
	p.mu.Lock()
	if len(p.batch) == 0 {
		p.mu.Unlock()
		return nil
	}
	batch := p.batch
	p.batch = nil
	p.mu.Unlock()

	pgxBatch := &pgx.Batch{}
	for _, row := range batch {
		pgxBatch.Queue(`
			INSERT INTO ledger_rows (entry_id, relative_path, timestamp, revision_id, mutation_class, intent_id, content_hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (entry_id, relative_path) DO NOTHING
		`, row.EntryID, row.RelativePath, row.Timestamp, row.RevisionID, row.MutationClass, row.IntentID, row.ContentHash)
	}

	results := p.pool.SendBatch(ctx, pgxBatch)
	defer results.Close()

	for range batch {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("flush ledger index batch: %w", err)
		}
	}
	return nil
}

// Rebuild re-projects every entry and flushes the result.
func (p *PostgresIndex) Rebuild(ctx context.Context, entries []ledger.Entry) error {
	for _, entry := range entries {
		if err := p.Project(entry); err != nil {
			return err
		}
	}
	return p.Flush(ctx)
}

// Query answers a filtered read over the mirrored rows.
func (p *PostgresIndex) Query(ctx context.Context, q Query) ([]Row, error) {
	var clauses []string
	var args []any
	argN := 1

	add := func(clause string, arg any) {
		clauses = append(clauses, fmt.Sprintf(clause, argN))
		args = append(args, arg)
		argN++
	}

	if q.RelativePath != "" {
		add("relative_path = $%d", q.RelativePath)
	}
	if q.IntentID != "" {
		add("intent_id = $%d", q.IntentID)
	}
	if q.MutationClass != "" {
		add("mutation_class = $%d", q.MutationClass)
	}
	if q.Since != nil {
		add("timestamp >= $%d", q.Since.UTC().Format("2006-01-02T15:04:05.000Z"))
	}
	if q.Until != nil {
		add("timestamp <= $%d", q.Until.UTC().Format("2006-01-02T15:04:05.000Z"))
	}

	query := "SELECT entry_id, relative_path, timestamp, revision_id, mutation_class, intent_id, content_hash FROM ledger_rows"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp ASC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query postgres ledger index: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.EntryID, &r.RelativePath, &r.Timestamp, &r.RevisionID, &r.MutationClass, &r.IntentID, &r.ContentHash); err != nil {
			return nil, fmt.Errorf("scan postgres ledger index row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close stops the flush loop (flushing once more first) and closes the
// pool.
func (p *PostgresIndex) Close() error {
	close(p.stopCh)
	<-p.doneCh
	p.pool.Close()
	return nil
}
