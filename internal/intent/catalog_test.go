package intent

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, workspaceRoot, body string) {
	t.Helper()
	dir := filepath.Join(workspaceRoot, ".orchestration")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "active_intents.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestFindByIDResolvesKnownIntent(t *testing.T) {
	root := t.TempDir()
	writeCatalog(t, root, `
intents:
  - id: INT-001
    name: Build the thing
    owned_scope:
      - "src/**"
`)

	c := NewCatalog()
	in, err := c.FindByID(root, "INT-001")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if in == nil {
		t.Fatalf("expected intent INT-001 to resolve")
	}
	if in.Name != "Build the thing" || len(in.OwnedScope) != 1 || in.OwnedScope[0] != "src/**" {
		t.Fatalf("unexpected intent contents: %+v", in)
	}
}

func TestFindByIDUnknownReturnsNil(t *testing.T) {
	root := t.TempDir()
	writeCatalog(t, root, `
intents:
  - id: INT-001
    name: Build the thing
    owned_scope: ["src/**"]
`)

	c := NewCatalog()
	in, err := c.FindByID(root, "INT-999")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if in != nil {
		t.Fatalf("expected nil for unknown intent, got %+v", in)
	}
}

func TestGetCachedReflectsLastLoad(t *testing.T) {
	root := t.TempDir()
	writeCatalog(t, root, `
intents:
  - id: INT-001
    name: First
    owned_scope: ["src/**"]
`)

	c := NewCatalog()
	if _, err := c.FindByID(root, "INT-001"); err != nil {
		t.Fatalf("FindByID: %v", err)
	}

	if c.GetCached("INT-001") == nil {
		t.Fatalf("expected GetCached to return the loaded intent")
	}
}

func TestFindByIDMissingFileErrors(t *testing.T) {
	root := t.TempDir()
	c := NewCatalog()
	if _, err := c.FindByID(root, "INT-001"); err == nil {
		t.Fatalf("expected error for missing catalog file")
	}
}
