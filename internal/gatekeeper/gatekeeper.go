// Package gatekeeper implements the pre-write enforcement pipeline: an
// optimistic staleness check, then intent presence and existence, then
// scope match. It returns a structured verdict rather than raising; it is
// the only stage whose failures block a user-initiated write.
package gatekeeper

import (
	"fmt"
	"log/slog"

	"github.com/orchestra-core/ledger/internal/intent"
	"github.com/orchestra-core/ledger/internal/pathmatch"
	"github.com/orchestra-core/ledger/internal/snapshot"
)

// Request is the gatekeeper's input: the write itself plus its context.
type Request struct {
	Path          string
	Content       string
	IntentID      string
	WorkspaceRoot string
	// OwnedScope, if non-empty, is used instead of a fresh catalog lookup.
	OwnedScope []string
	AgentID    string
}

// Result is the gatekeeper's verdict.
type Result struct {
	Blocked     bool
	Error       string
	Recoverable bool
}

// Gatekeeper runs the pre-write enforcement pipeline against a shared
// snapshot store and intent catalog.
type Gatekeeper struct {
	Snapshots *snapshot.Store
	Catalog   *intent.Catalog
	Logger    *slog.Logger
}

// New returns a Gatekeeper wired to the given snapshot store and intent
// catalog. A nil logger falls back to slog.Default().
func New(snapshots *snapshot.Store, catalog *intent.Catalog, logger *slog.Logger) *Gatekeeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gatekeeper{Snapshots: snapshots, Catalog: catalog, Logger: logger}
}

// Check runs the pipeline in its fixed order, short-circuiting on the first
// failing step. It performs at most one disk read against the snapshot
// store per call, and is deterministic and idempotent given unchanged
// state.
func (g *Gatekeeper) Check(req Request) Result {
	// Step 1: optimistic check.
	if req.AgentID != "" {
		if !g.Snapshots.Verify(req.Path, req.AgentID) {
			return Result{
				Blocked:     true,
				Error:       fmt.Sprintf("stale file: %q changed since %q last read it", req.Path, req.AgentID),
				Recoverable: true,
			}
		}
	}

	// Step 2: intent presence.
	if req.IntentID == "" {
		return Result{
			Blocked:     true,
			Error:       "must cite a valid active intent",
			Recoverable: false,
		}
	}

	// Step 3: intent existence (unless a cached scope was supplied).
	ownedScope := req.OwnedScope
	intentName := req.IntentID

	if len(ownedScope) == 0 {
		in, err := g.Catalog.FindByID(req.WorkspaceRoot, req.IntentID)
		if err != nil {
			g.Logger.Warn("intent catalog lookup failed", "intent_id", req.IntentID, "error", err)
			return Result{Blocked: true, Error: "intent not found", Recoverable: false}
		}
		if in == nil {
			return Result{Blocked: true, Error: "intent not found", Recoverable: false}
		}
		ownedScope = in.OwnedScope
		intentName = in.Name
	}

	// Step 4: scope presence.
	if len(ownedScope) == 0 {
		return Result{
			Blocked:     true,
			Error:       "intent has no owned_scope",
			Recoverable: false,
		}
	}

	// Step 5: scope match.
	if !pathmatch.MatchesAny(req.Path, ownedScope, req.WorkspaceRoot) {
		normalized := pathmatch.Normalize(req.Path, req.WorkspaceRoot)
		return Result{
			Blocked: true,
			Error: fmt.Sprintf("scope violation: intent %q (%s) is not authorised to edit %q",
				intentName, req.IntentID, normalized),
			Recoverable: false,
		}
	}

	// Step 6: pass.
	return Result{Blocked: false}
}
