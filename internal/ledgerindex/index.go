// Package ledgerindex implements the Ledger Query Index: a rebuildable SQL
// projection of the JSONL ledger used to answer filtered and aggregated
// reads (by file, by intent, by mutation class, by time window) without a
// full JSONL scan. It is never consulted by gatekeeper or recorder decision
// logic; it exists purely to serve the operator HTTP API and equivalent
// tooling.
package ledgerindex

import (
	"context"
	"time"

	"github.com/orchestra-core/ledger/internal/ledger"
)

// Row is a denormalised projection of one (trace entry, file entry) pair.
type Row struct {
	EntryID       string
	Timestamp     string
	RevisionID    string
	RelativePath  string
	MutationClass string
	IntentID      string
	ContentHash   string
}

// Query filters rows by any combination of these fields; zero values mean
// "unconstrained" for that field.
type Query struct {
	RelativePath  string
	IntentID      string
	MutationClass string
	Since         *time.Time
	Until         *time.Time
	Limit         int
}

// Backend is implemented by each storage engine the index can run against
// (embedded SQLite by default, optional Postgres mirror). Project must be
// idempotent when called twice with the same entry id and relative path.
type Backend interface {
	Project(entry ledger.Entry) error
	Query(ctx context.Context, q Query) ([]Row, error)
	Rebuild(ctx context.Context, entries []ledger.Entry) error
	Close() error
}

// rowsFromEntry derives one Row per file entry, per the data model's
// "one (trace entry, file entry) pair" contract. Recorder-built entries
// carry exactly one conversation and one range per file; the first of each
// is taken as the row's attribution.
func rowsFromEntry(entry ledger.Entry) []Row {
	rows := make([]Row, 0, len(entry.Files))

	for _, f := range entry.Files {
		var intentID, contentHash string

		if len(f.Conversations) > 0 {
			conv := f.Conversations[0]
			if len(conv.Ranges) > 0 {
				contentHash = conv.Ranges[0].ContentHash
			}
			for _, rel := range conv.Related {
				if rel.Type == ledger.RelatedSpecification {
					intentID = rel.Value
					break
				}
			}
		}

		rows = append(rows, Row{
			EntryID:       entry.ID,
			Timestamp:     entry.Timestamp,
			RevisionID:    entry.VCS.RevisionID,
			RelativePath:  f.RelativePath,
			MutationClass: string(entry.MutationClass),
			IntentID:      intentID,
			ContentHash:   contentHash,
		})
	}

	return rows
}
