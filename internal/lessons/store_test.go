package lessons

import (
	"strings"
	"testing"
	"time"
)

func TestRecordThenDuplicateIsSkipped(t *testing.T) {
	root := t.TempDir()
	s := New()

	recorded, err := s.Record(root, Testing, "auth requires mock JWT")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !recorded {
		t.Fatalf("expected first Record to succeed")
	}

	recorded, err = s.Record(root, Testing, "auth requires mock JWT")
	if err != nil {
		t.Fatalf("Record (dup): %v", err)
	}
	if recorded {
		t.Fatalf("expected duplicate Record to be skipped")
	}

	sections, err := s.List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("expected exactly one section, got %d", len(sections))
	}
}

func TestRecordRejectsUnknownCategory(t *testing.T) {
	root := t.TempDir()
	s := New()

	if _, err := s.Record(root, Category("NOT_REAL"), "body"); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestRecordFormatsSectionWithMinutePrecisionTimestamp(t *testing.T) {
	root := t.TempDir()
	fixed := time.Date(2026, 7, 30, 14, 5, 30, 0, time.UTC)
	s := NewWithClock(func() time.Time { return fixed })

	if _, err := s.Record(root, Architecture, "split into modules"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	sections, err := s.List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("expected one section, got %d", len(sections))
	}
	if sections[0].Timestamp != "2026-07-30 14:05" {
		t.Fatalf("timestamp = %q, want minute precision", sections[0].Timestamp)
	}
}

func TestDedupWindowIsFiveMostRecentSections(t *testing.T) {
	root := t.TempDir()
	s := New()

	for i := 0; i < 5; i++ {
		body := strings_Repeat_unique(i)
		if _, err := s.Record(root, General, body); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	oldest := strings_Repeat_unique(0)
	recorded, err := s.Record(root, General, oldest)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if recorded {
		t.Fatalf("expected the oldest of exactly 5 prior sections to still be within the dedup window")
	}
}

func strings_Repeat_unique(i int) string {
	return "lesson body number " + string(rune('A'+i))
}

func TestListByCategoryFiltersCorrectly(t *testing.T) {
	root := t.TempDir()
	s := New()

	if _, err := s.Record(root, Testing, "lesson one"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := s.Record(root, Security, "lesson two"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	sections, err := s.ListByCategory(root, Testing)
	if err != nil {
		t.Fatalf("ListByCategory: %v", err)
	}
	if len(sections) != 1 || sections[0].Body != "lesson one" {
		t.Fatalf("unexpected filtered sections: %+v", sections)
	}
}

func TestSearchScoresByDistinctKeywordMatches(t *testing.T) {
	root := t.TempDir()
	s := New()

	if _, err := s.Record(root, General, "mock jwt tokens for auth tests"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := s.Record(root, General, "auth only, no jwt mention here"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	results, err := s.Search(root, []string{"mock", "jwt"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matching sections, got %d", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Fatalf("expected descending score order, got %+v", results)
	}
	if !strings.Contains(results[0].Body, "mock jwt") {
		t.Fatalf("expected the double-match section to rank first, got %+v", results[0])
	}
}
