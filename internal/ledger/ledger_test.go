package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/orchestra-core/ledger/internal/classify"
)

func sampleEntry(id string) Entry {
	return Entry{
		ID:        id,
		Timestamp: "2026-07-30T12:00:00.000Z",
		VCS:       VCS{RevisionID: "unknown"},
		Files: []FileEntry{
			{
				RelativePath: "src/a.ts",
				Conversations: []Conversation{
					{
						URL: "session://test",
						Contributor: Contributor{
							EntityType:      EntityAI,
							ModelIdentifier: "unknown",
						},
						Ranges: []Range{
							{StartLine: 1, EndLine: 1, ContentHash: "sha256:" + strings.Repeat("a", 64)},
						},
						Related: []Related{
							{Type: RelatedSpecification, Value: "INT-001"},
						},
					},
				},
			},
		},
		MutationClass: classify.ASTRefactor,
	}
}

func TestAppendThenReadContainsEntry(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(nil)

	entry := sampleEntry("abc123")
	if err := w.Append(root, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := w.Read(root)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID != "abc123" {
		t.Fatalf("entries[0].ID = %q, want %q", entries[0].ID, "abc123")
	}
}

func TestAppendRejectsInvalidEntry(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(nil)

	bad := sampleEntry("bad")
	bad.Files = nil

	err := w.Append(root, bad)
	if err == nil {
		t.Fatalf("expected InvalidEntryError for empty files")
	}
	if _, ok := err.(*InvalidEntryError); !ok {
		t.Fatalf("expected *InvalidEntryError, got %T: %v", err, err)
	}
}

func TestReadMissingFileReturnsEmpty(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(nil)

	entries, err := w.Read(root)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestReadSkipsInvalidLines(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(nil)

	if err := w.Append(root, sampleEntry("good-1")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	path := tracePath(root)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open trace file: %v", err)
	}
	if _, err := f.WriteString("not valid json\n"); err != nil {
		t.Fatalf("write garbage line: %v", err)
	}
	f.Close()

	if err := w.Append(root, sampleEntry("good-2")); err != nil {
		t.Fatalf("Append second entry: %v", err)
	}

	entries, err := w.Read(root)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 valid entries, got %d", len(entries))
	}
}

func TestAppendCreatesOrchestrationDirectory(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(nil)

	if err := w.Append(root, sampleEntry("abc")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, ".orchestration")); err != nil {
		t.Fatalf("expected orchestration directory to exist: %v", err)
	}
}
