// Package backlog turns the Markdown checklist into the ordered sequence of
// work items the orchestrator processes, and records completions back into
// the checklist.
package backlog

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/kingrea/calcforge/internal/fsx"
	"github.com/kingrea/calcforge/internal/workitem"
)

var (
	pendingLine  = regexp.MustCompile(`^(\s*[-*]\s+)\[ \]\s+(.+?)\s*$`)
	trailingNote = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
)

// errorMarkers flag entries a previous run or a human annotated as broken.
var errorMarkers = []string{"ERROR", "FAILED", "❌", "[error]", "[failed]"}

// Backlog is the parse result: items to process in order plus the names
// withheld for manual review.
type Backlog struct {
	Items   []workitem.Item
	Skipped []Skipped
}

// Skipped records a checklist entry that was not queued.
type Skipped struct {
	Line   int
	Name   string
	Reason string
}

// Parse extracts pending items from checklist text, classifies them and
// sorts them by category priority. Relative checklist order is kept within
// a category.
func Parse(text string) Backlog {
	var out Backlog
	seen := map[string]struct{}{}
	slugs := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw, name, ok := pendingEntry(scanner.Text())
		if !ok {
			continue
		}
		if marker, bad := errorMarker(raw); bad {
			out.Skipped = append(out.Skipped, Skipped{Line: lineNo, Name: name, Reason: fmt.Sprintf("contains error marker %q", marker)})
			continue
		}
		if _, dup := seen[name]; dup {
			out.Skipped = append(out.Skipped, Skipped{Line: lineNo, Name: name, Reason: "duplicate entry"})
			continue
		}
		seen[name] = struct{}{}
		item := workitem.New(name, Classify(name))
		// Artifact directories and import paths are keyed by slug.
		if first, taken := slugs[item.Slug()]; taken {
			out.Skipped = append(out.Skipped, Skipped{Line: lineNo, Name: name, Reason: fmt.Sprintf("slug collision with %q", first)})
			continue
		}
		slugs[item.Slug()] = name
		out.Items = append(out.Items, item)
	}
	sort.SliceStable(out.Items, func(i, j int) bool {
		return out.Items[i].Priority < out.Items[j].Priority
	})
	return out
}

// Load reads and parses the checklist at path.
func Load(path string) (Backlog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Backlog{}, fmt.Errorf("backlog: read %s: %w", path, err)
	}
	return Parse(string(data)), nil
}

// MarkDone rewrites the pending line for name into a checked line carrying
// annotation. Every other line is preserved byte for byte. It reports
// whether a line was rewritten.
func MarkDone(path, name, annotation string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("backlog: read %s: %w", path, err)
	}
	lines := strings.SplitAfter(string(data), "\n")
	changed := false
	for i, line := range lines {
		body := strings.TrimRight(line, "\r\n")
		ending := line[len(body):]
		_, got, ok := pendingEntry(body)
		if !ok || got != name {
			continue
		}
		prefix := pendingLine.FindStringSubmatch(body)[1]
		rewritten := prefix + "[x] " + name
		if note := strings.TrimSpace(annotation); note != "" {
			rewritten += " (" + note + ")"
		}
		lines[i] = rewritten + ending
		changed = true
		break
	}
	if !changed {
		return false, nil
	}
	if err := fsx.WriteFileAtomic(path, []byte(strings.Join(lines, "")), 0o644); err != nil {
		return false, fmt.Errorf("backlog: %w", err)
	}
	return true, nil
}

// pendingEntry returns the raw entry text and the item name with any
// trailing parenthesized annotation removed.
func pendingEntry(line string) (string, string, bool) {
	m := pendingLine.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	name := strings.TrimSpace(trailingNote.ReplaceAllString(m[2], ""))
	if name == "" {
		return "", "", false
	}
	return m[2], name, true
}

func errorMarker(entry string) (string, bool) {
	for _, marker := range errorMarkers {
		if strings.Contains(entry, marker) {
			return marker, true
		}
	}
	return "", false
}
