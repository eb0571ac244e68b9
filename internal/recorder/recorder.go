// Package recorder implements the post-write flow: building a trace entry
// from the committed write, appending it to the ledger, re-materialising
// the intent map, releasing the writer's snapshot, and best-effort
// projecting the entry into the ledger query index. Every step after intent
// presence is wrapped so that a ledger-layer failure never escapes back to
// the caller.
package recorder

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orchestra-core/ledger/internal/classify"
	"github.com/orchestra-core/ledger/internal/hashutil"
	"github.com/orchestra-core/ledger/internal/intentmap"
	"github.com/orchestra-core/ledger/internal/ledger"
	"github.com/orchestra-core/ledger/internal/pathmatch"
	"github.com/orchestra-core/ledger/internal/revision"
	"github.com/orchestra-core/ledger/internal/snapshot"
)

// Indexer is the best-effort sink for step 8: the ledger query index (C13).
// Its failures are logged and never affect the outcome of a Record call.
type Indexer interface {
	Project(entry ledger.Entry) error
}

// Request carries everything the recorder needs to build and file a trace
// entry for one committed write.
type Request struct {
	WorkspaceRoot string
	Path          string
	Content       string
	// OldContent is nil when no prior content is available (e.g. a
	// first write), distinct from a legitimately empty old file.
	OldContent    *string
	ExplicitClass classify.MutationClass
	IntentID      string
	IntentName    string
	SessionID     string
	Model         string
	// AgentID, if present, releases that holder's snapshot on success.
	AgentID string
}

// Recorder wires the Revision Probe, Ledger Writer, Intent Map Writer, and
// Snapshot Store together to implement the post-write flow.
type Recorder struct {
	Revision  *revision.Probe
	Ledger    *ledger.Writer
	IntentMap *intentmap.Writer
	Snapshots *snapshot.Store
	Indexer   Indexer
	Logger    *slog.Logger
}

// New returns a Recorder. Indexer may be nil to disable step 8. A nil
// logger falls back to slog.Default().
func New(rev *revision.Probe, lw *ledger.Writer, mw *intentmap.Writer, snaps *snapshot.Store, indexer Indexer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{Revision: rev, Ledger: lw, IntentMap: mw, Snapshots: snaps, Indexer: indexer, Logger: logger}
}

// Record builds and files a trace entry for req. If req.IntentID is empty,
// Record is a no-op by design: writes without an intent leave no trace.
// Record returns the entry it built and whether it was successfully
// appended to the ledger; callers outside this package must not treat a
// false return as an error to surface to the end user.
func (r *Recorder) Record(req Request) (entry ledger.Entry, recorded bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("post-write recorder recovered from panic", "panic", rec)
			recorded = false
		}
	}()

	// Step 1.
	if req.IntentID == "" {
		return ledger.Entry{}, false
	}

	// Step 2.
	revisionID := r.Revision.CurrentRevision(req.WorkspaceRoot)

	// Step 3.
	var mutationClass classify.MutationClass
	switch {
	case classify.IsValid(req.ExplicitClass):
		mutationClass = req.ExplicitClass
	case req.OldContent != nil:
		mutationClass = classify.Classify(*req.OldContent, req.Content)
	default:
		mutationClass = classify.ASTRefactor
	}

	// Step 4.
	lineCount := len(strings.Split(req.Content, "\n"))
	rangeHash := "sha256:" + hashutil.DigestRange(req.Content, 1, lineCount)

	// Step 5.
	relativePath := pathmatch.Normalize(req.Path, req.WorkspaceRoot)

	url := req.SessionID
	if url == "" {
		url = "session://" + time.Now().UTC().Format(time.RFC3339Nano)
	}

	model := req.Model
	if model == "" {
		model = "unknown"
	}

	entry = ledger.Entry{
		ID:        strings.ReplaceAll(uuid.New().String(), "-", ""),
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		VCS:       ledger.VCS{RevisionID: revisionID},
		Files: []ledger.FileEntry{
			{
				RelativePath: relativePath,
				Conversations: []ledger.Conversation{
					{
						URL: url,
						Contributor: ledger.Contributor{
							EntityType:      ledger.EntityAI,
							ModelIdentifier: model,
						},
						Ranges: []ledger.Range{
							{StartLine: 1, EndLine: lineCount, ContentHash: rangeHash},
						},
						Related: []ledger.Related{
							{Type: ledger.RelatedSpecification, Value: req.IntentID},
						},
					},
				},
			},
		},
		MutationClass: mutationClass,
	}

	// Step 6.
	if err := r.Ledger.Append(req.WorkspaceRoot, entry); err != nil {
		r.Logger.Error("ledger append failed", "workspace_root", req.WorkspaceRoot, "error", err)
		return entry, false
	}

	if err := r.IntentMap.Upsert(req.WorkspaceRoot, req.IntentID, relativePath, req.IntentName); err != nil {
		r.Logger.Error("intent map upsert failed", "workspace_root", req.WorkspaceRoot, "error", err)
		// Documented transient inconsistency: the trace is the source of
		// truth and the next successful write for this intent repairs
		// the map.
	}

	// Step 7.
	if req.AgentID != "" {
		r.Snapshots.Release(req.Path, req.AgentID)
	}

	// Step 8: best-effort, fire-and-forget projection.
	if r.Indexer != nil {
		if err := r.Indexer.Project(entry); err != nil {
			r.Logger.Warn("ledger query index projection failed", "error", err)
		}
	}

	return entry, true
}
