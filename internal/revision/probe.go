// Package revision resolves the current VCS revision of a workspace by
// opening the repository in-process with go-git, rather than shelling out to
// a VCS binary. Every error class — missing repository, corrupt repository,
// permission denied, detached worktree — collapses to the literal string
// "unknown"; this probe never returns an error to its caller.
package revision

import (
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
)

// Unknown is returned whenever the revision cannot be resolved for any
// reason, or resolution exceeds the probe's internal deadline.
const Unknown = "unknown"

const defaultTTL = 5 * time.Second
const resolveDeadline = 2 * time.Second

type cacheEntry struct {
	revision string
	expires  time.Time
}

// Probe caches resolved revisions per workspace root for a short TTL so that
// bursts of post-write recordings do not each re-open the repository.
type Probe struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// New returns a Probe using the default 5 second cache TTL.
func New() *Probe {
	return NewWithTTL(defaultTTL)
}

// NewWithTTL returns a Probe with an explicit cache TTL, primarily for tests.
func NewWithTTL(ttl time.Duration) *Probe {
	return &Probe{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// CurrentRevision resolves the current revision id of the repository rooted
// at workspaceRoot. It never returns an error; on any failure it returns
// Unknown. Results are cached per workspaceRoot for the probe's TTL.
func (p *Probe) CurrentRevision(workspaceRoot string) string {
	p.mu.Lock()
	if entry, ok := p.entries[workspaceRoot]; ok && p.now().Before(entry.expires) {
		p.mu.Unlock()
		return entry.revision
	}
	p.mu.Unlock()

	revision := p.resolve(workspaceRoot)

	p.mu.Lock()
	p.entries[workspaceRoot] = cacheEntry{revision: revision, expires: p.now().Add(p.ttl)}
	p.mu.Unlock()

	return revision
}

// Invalidate clears the cached entry for workspaceRoot, if any, forcing the
// next call to CurrentRevision to re-resolve.
func (p *Probe) Invalidate(workspaceRoot string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, workspaceRoot)
}

func (p *Probe) resolve(workspaceRoot string) string {
	done := make(chan string, 1)
	go func() {
		done <- resolveHead(workspaceRoot)
	}()

	select {
	case revision := <-done:
		return revision
	case <-time.After(resolveDeadline):
		return Unknown
	}
}

func resolveHead(workspaceRoot string) string {
	repo, err := git.PlainOpenWithOptions(workspaceRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Unknown
	}

	head, err := repo.Head()
	if err != nil {
		return Unknown
	}

	hash := head.Hash()
	if hash.IsZero() {
		return Unknown
	}

	return hash.String()
}
