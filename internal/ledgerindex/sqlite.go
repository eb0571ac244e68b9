package ledgerindex

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/orchestra-core/ledger/internal/ledger"
)

const sqliteSchema = `
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
CREATE INDEX IF NOT EXISTS idx_ledger_rows_class ON ledger_rows(mutation_class);
`

// SQLiteIndex is the default, embedded Ledger Query Index backend: a
// WAL-mode SQLite database with a single writer connection, adapted
// directly from the teacher's single-connection queue discipline.
type SQLiteIndex struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) a WAL-mode SQLite database at
// path and ensures its schema exists.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger index: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger index schema: %w", err)
	}

	return &SQLiteIndex{db: db}, nil
}

// Project idempotently inserts one row per file entry; a row already
// present for (entry_id, relative_path) is left untouched.
func (idx *SQLiteIndex) Project(entry ledger.Entry) error {
	rows := rowsFromEntry(entry)
	if len(rows) == 0 {
		return nil
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("begin projection tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO ledger_rows (entry_id, relative_path, timestamp, revision_id, mutation_class, intent_id, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_id, relative_path) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare projection insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(row.EntryID, row.RelativePath, row.Timestamp, row.RevisionID, row.MutationClass, row.IntentID, row.ContentHash); err != nil {
			return fmt.Errorf("insert projected row: %w", err)
		}
	}

	return tx.Commit()
}

// Rebuild re-projects every entry; already-projected rows are left
// untouched by the ON CONFLICT DO NOTHING clause, so calling Rebuild twice
// with the same entries leaves row counts unchanged.
func (idx *SQLiteIndex) Rebuild(ctx context.Context, entries []ledger.Entry) error {
	for _, entry := range entries {
		if err := idx.Project(entry); err != nil {
			return err
		}
	}
	return nil
}

// Query answers a filtered read over the projected rows.
func (idx *SQLiteIndex) Query(ctx context.Context, q Query) ([]Row, error) {
	var clauses []string
	var args []any

	if q.RelativePath != "" {
		clauses = append(clauses, "relative_path = ?")
		args = append(args, q.RelativePath)
	}
	if q.IntentID != "" {
		clauses = append(clauses, "intent_id = ?")
		args = append(args, q.IntentID)
	}
	if q.MutationClass != "" {
		clauses = append(clauses, "mutation_class = ?")
		args = append(args, q.MutationClass)
	}
	if q.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, q.Since.UTC().Format("2006-01-02T15:04:05.000Z"))
	}
	if q.Until != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, q.Until.UTC().Format("2006-01-02T15:04:05.000Z"))
	}

	query := "SELECT entry_id, relative_path, timestamp, revision_id, mutation_class, intent_id, content_hash FROM ledger_rows"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp ASC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger index: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.EntryID, &r.RelativePath, &r.Timestamp, &r.RevisionID, &r.MutationClass, &r.IntentID, &r.ContentHash); err != nil {
			return nil, fmt.Errorf("scan ledger index row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the underlying database connection.
func (idx *SQLiteIndex) Close() error {
	return idx.db.Close()
}
