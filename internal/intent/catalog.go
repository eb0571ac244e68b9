// Package intent provides a read-only projection over the configured intent
// catalog file: declared units of business work, each with a name and an
// owned scope of glob patterns.
package intent

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Intent is a single declared unit of business work.
type Intent struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	OwnedScope  []string `yaml:"owned_scope"`
}

type catalogFile struct {
	Intents []Intent `yaml:"intents"`
}

// Catalog is a read-only, cached view over the active intents file. It is
// safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	byID  map[string]Intent
}

// NewCatalog returns an empty Catalog. Use FindByID to populate it by
// loading the workspace's active_intents.yaml.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]Intent)}
}

// intentFilePath returns the path to the intent catalog input file within
// workspaceRoot, per the orchestration directory convention.
func intentFilePath(workspaceRoot string) string {
	return workspaceRoot + "/.orchestration/active_intents.yaml"
}

// Load reads and parses the active intents file, replacing the catalog's
// cache wholesale. Intended to be called once at startup and whenever the
// file is known to have changed.
func (c *Catalog) Load(workspaceRoot string) error {
	raw, err := os.ReadFile(intentFilePath(workspaceRoot))
	if err != nil {
		return fmt.Errorf("read intent catalog: %w", err)
	}

	var parsed catalogFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse intent catalog: %w", err)
	}

	byID := make(map[string]Intent, len(parsed.Intents))
	for _, in := range parsed.Intents {
		byID[in.ID] = in
	}

	c.mu.Lock()
	c.byID = byID
	c.mu.Unlock()

	return nil
}

// FindByID resolves id against the active intents file, reloading the
// catalog from workspaceRoot first. It returns (nil, nil) if the file
// parses cleanly but no intent with that id exists.
func (c *Catalog) FindByID(workspaceRoot, id string) (*Intent, error) {
	if err := c.Load(workspaceRoot); err != nil {
		return nil, err
	}
	return c.GetCached(id), nil
}

// GetCached returns the intent last loaded under id, without touching disk.
// Returns nil if unknown.
func (c *Catalog) GetCached(id string) *Intent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	in, ok := c.byID[id]
	if !ok {
		return nil
	}
	cp := in
	return &cp
}
