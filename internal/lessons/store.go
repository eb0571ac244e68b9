// Package lessons implements the shared, append-only, categorised notes
// document at .orchestration/CLAUDE.md, with a recent-window duplicate
// check so agents do not pile up repeats of the same observation.
package lessons

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileName is the lessons document's name within the orchestration
// directory.
const FileName = "CLAUDE.md"

const header = "# Lessons\n\nAccumulated notes shared across agents working in this workspace.\n\n"

// dedupWindow is the number of most-recent sections inspected for an
// exact-substring duplicate before a new lesson is recorded.
const dedupWindow = 5

// Category is one of the fixed lesson categories.
type Category string

const (
	Architecture  Category = "ARCHITECTURE"
	Testing       Category = "TESTING"
	Linter        Category = "LINTER"
	Build         Category = "BUILD"
	UserFeedback  Category = "USER_FEEDBACK"
	Style         Category = "STYLE"
	Performance   Category = "PERFORMANCE"
	Security      Category = "SECURITY"
	General       Category = "GENERAL"
)

var validCategories = map[Category]struct{}{
	Architecture: {}, Testing: {}, Linter: {}, Build: {},
	UserFeedback: {}, Style: {}, Performance: {}, Security: {}, General: {},
}

// IsValidCategory reports whether category names one of the fixed lesson
// categories.
func IsValidCategory(category Category) bool {
	_, ok := validCategories[category]
	return ok
}

// Section is one parsed lesson entry.
type Section struct {
	Category  Category
	Timestamp string
	Body      string
}

var headingRe = regexp.MustCompile(`(?m)^## \[([A-Za-z_]+)\] (\d{4}-\d{2}-\d{2} \d{2}:\d{2})$`)

func parseSections(content string) []Section {
	matches := headingRe.FindAllStringSubmatchIndex(content, -1)
	sections := make([]Section, 0, len(matches))

	for i, m := range matches {
		category := content[m[2]:m[3]]
		timestamp := content[m[4]:m[5]]

		bodyStart := m[1]
		if bodyStart < len(content) && content[bodyStart] == '\n' {
			bodyStart++
		}
		bodyEnd := len(content)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}

		raw := strings.TrimSpace(content[bodyStart:bodyEnd])
		raw = strings.TrimSuffix(raw, "---")
		raw = strings.TrimSpace(raw)

		sections = append(sections, Section{
			Category:  Category(category),
			Timestamp: timestamp,
			Body:      raw,
		})
	}

	return sections
}

func lessonsPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".orchestration", FileName)
}

// Store records and retrieves lessons, serialised per workspace root.
type Store struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	now   func() time.Time
}

// New returns a Store using the real wall clock.
func New() *Store {
	return &Store{locks: make(map[string]*sync.Mutex), now: time.Now}
}

// NewWithClock returns a Store using an injected clock, for tests.
func NewWithClock(now func() time.Time) *Store {
	return &Store{locks: make(map[string]*sync.Mutex), now: now}
}

func (s *Store) lockFor(workspaceRoot string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[workspaceRoot]
	if !ok {
		m = &sync.Mutex{}
		s.locks[workspaceRoot] = m
	}
	return m
}

func readDocument(workspaceRoot string) (string, error) {
	data, err := os.ReadFile(lessonsPath(workspaceRoot))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lessons document: %w", err)
	}
	return string(data), nil
}

// Record appends a new lesson under category if its body is not a
// duplicate of any of the most recent dedupWindow sections. It returns
// true if the lesson was recorded, false if skipped as a duplicate.
func (s *Store) Record(workspaceRoot string, category Category, body string) (bool, error) {
	if !IsValidCategory(category) {
		return false, fmt.Errorf("invalid lesson category: %q", category)
	}

	lock := s.lockFor(workspaceRoot)
	lock.Lock()
	defer lock.Unlock()

	content, err := readDocument(workspaceRoot)
	if err != nil {
		return false, err
	}

	trimmedBody := strings.TrimSpace(body)
	sections := parseSections(content)

	start := 0
	if len(sections) > dedupWindow {
		start = len(sections) - dedupWindow
	}
	for _, sec := range sections[start:] {
		if strings.Contains(sec.Body, trimmedBody) {
			return false, nil
		}
	}

	if content == "" {
		content = header
	}

	timestamp := s.now().UTC().Format("2006-01-02 15:04")
	entry := fmt.Sprintf("## [%s] %s\n%s\n---\n", category, timestamp, trimmedBody)

	dir := filepath.Join(workspaceRoot, ".orchestration")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create orchestration directory: %w", err)
	}

	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += entry

	if err := os.WriteFile(lessonsPath(workspaceRoot), []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write lessons document: %w", err)
	}

	return true, nil
}

// List returns every parsed lesson in file order.
func (s *Store) List(workspaceRoot string) ([]Section, error) {
	content, err := readDocument(workspaceRoot)
	if err != nil {
		return nil, err
	}
	return parseSections(content), nil
}

// ListByCategory returns every parsed lesson matching category, in file
// order.
func (s *Store) ListByCategory(workspaceRoot string, category Category) ([]Section, error) {
	all, err := s.List(workspaceRoot)
	if err != nil {
		return nil, err
	}
	out := make([]Section, 0, len(all))
	for _, sec := range all {
		if sec.Category == category {
			out = append(out, sec)
		}
	}
	return out, nil
}

// ScoredSection pairs a lesson section with its keyword match score.
type ScoredSection struct {
	Section
	Score int
}

// Search returns every lesson matching at least one keyword, scored by the
// count of distinct keywords (case-insensitive) it matches and sorted
// descending by score, ties broken by file order.
func (s *Store) Search(workspaceRoot string, keywords []string) ([]ScoredSection, error) {
	all, err := s.List(workspaceRoot)
	if err != nil {
		return nil, err
	}

	lowerKeywords := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		lk := strings.ToLower(k)
		if _, dup := seen[lk]; dup {
			continue
		}
		seen[lk] = struct{}{}
		lowerKeywords = append(lowerKeywords, lk)
	}

	results := make([]ScoredSection, 0, len(all))
	for _, sec := range all {
		lowerBody := strings.ToLower(sec.Body)
		score := 0
		for _, k := range lowerKeywords {
			if k == "" {
				continue
			}
			if strings.Contains(lowerBody, k) {
				score++
			}
		}
		if score > 0 {
			results = append(results, ScoredSection{Section: sec, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}
