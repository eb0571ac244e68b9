// Package intentmap maintains the derived markdown document mapping each
// intent to the ordered, deduplicated set of files it has touched. It is a
// read-modify-write document, serialised per workspace root.
package intentmap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// FileName is the intent map's name within the orchestration directory.
const FileName = "intent_map.md"

const header = "# Intent File Map\n\nAuto-generated mapping of business intents to the files they touch. Do not edit by hand.\n\n"

const noFilesMarker = "*No files mapped yet*"

var headingRe = regexp.MustCompile(`^## ([^:\n]+?)(?:: (.+))?$`)

type document struct {
	names map[string]string
	paths map[string]map[string]struct{}
}

func newDocument() *document {
	return &document{
		names: make(map[string]string),
		paths: make(map[string]map[string]struct{}),
	}
}

func (d *document) ensure(id string) {
	if _, ok := d.paths[id]; !ok {
		d.paths[id] = make(map[string]struct{})
	}
}

func parse(content string) *document {
	d := newDocument()
	lines := strings.Split(content, "\n")

	currentID := ""
	for _, line := range lines {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			currentID = strings.TrimSpace(m[1])
			d.ensure(currentID)
			if m[2] != "" {
				d.names[currentID] = strings.TrimSpace(m[2])
			}
			continue
		}
		if currentID == "" {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == noFilesMarker {
			continue
		}
		if strings.HasPrefix(trimmed, "- ") {
			d.paths[currentID][strings.TrimSpace(strings.TrimPrefix(trimmed, "- "))] = struct{}{}
		}
	}

	return d
}

func (d *document) render() string {
	var b strings.Builder
	b.WriteString(header)

	ids := make([]string, 0, len(d.paths))
	for id := range d.paths {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		name := d.names[id]
		if name != "" {
			fmt.Fprintf(&b, "## %s: %s\n\n", id, name)
		} else {
			fmt.Fprintf(&b, "## %s\n\n", id)
		}

		paths := make([]string, 0, len(d.paths[id]))
		for p := range d.paths[id] {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		if len(paths) == 0 {
			b.WriteString(noFilesMarker + "\n\n")
			continue
		}
		for _, p := range paths {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func mapPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".orchestration", FileName)
}

// Writer upserts and removes intent-to-file associations, serialised per
// workspace root.
type Writer struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWriter returns a Writer.
func NewWriter() *Writer {
	return &Writer{locks: make(map[string]*sync.Mutex)}
}

func (w *Writer) lockFor(workspaceRoot string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.locks[workspaceRoot]
	if !ok {
		m = &sync.Mutex{}
		w.locks[workspaceRoot] = m
	}
	return m
}

func load(workspaceRoot string) (*document, error) {
	data, err := os.ReadFile(mapPath(workspaceRoot))
	if errors.Is(err, os.ErrNotExist) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read intent map: %w", err)
	}
	return parse(string(data)), nil
}

func save(workspaceRoot string, d *document) error {
	dir := filepath.Join(workspaceRoot, ".orchestration")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create orchestration directory: %w", err)
	}
	return os.WriteFile(mapPath(workspaceRoot), []byte(d.render()), 0o644)
}

// Upsert records path under intentID, creating the section if needed and
// setting its display name if intentName is non-empty. The path is
// deduplicated and the document re-serialised with ascending id and path
// ordering.
func (w *Writer) Upsert(workspaceRoot, intentID, path, intentName string) error {
	lock := w.lockFor(workspaceRoot)
	lock.Lock()
	defer lock.Unlock()

	d, err := load(workspaceRoot)
	if err != nil {
		return err
	}

	d.ensure(intentID)
	if intentName != "" {
		d.names[intentID] = intentName
	}
	d.paths[intentID][path] = struct{}{}

	return save(workspaceRoot, d)
}

// Files returns the sorted, deduplicated paths recorded for intentID. A
// missing map file or an intentID with no section both return an empty
// slice rather than an error; this is a read-only helper for observational
// consumers such as the operator HTTP API.
func Files(workspaceRoot, intentID string) ([]string, error) {
	d, err := load(workspaceRoot)
	if err != nil {
		return nil, err
	}

	paths, ok := d.paths[intentID]
	if !ok {
		return []string{}, nil
	}

	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Remove forgets path under intentID. If that leaves the section with no
// paths, the entire section is dropped. If the map file does not exist,
// Remove is a no-op.
func (w *Writer) Remove(workspaceRoot, intentID, path string) error {
	lock := w.lockFor(workspaceRoot)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(mapPath(workspaceRoot)); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	d, err := load(workspaceRoot)
	if err != nil {
		return err
	}

	if paths, ok := d.paths[intentID]; ok {
		delete(paths, path)
		if len(paths) == 0 {
			delete(d.paths, intentID)
			delete(d.names, intentID)
		}
	}

	return save(workspaceRoot, d)
}
