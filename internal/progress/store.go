// Package progress persists which work items have been completed so an
// interrupted run resumes without redoing or duplicating work.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kingrea/calcforge/internal/fsx"
)

// ErrCorrupt is returned alongside an empty state when the progress file
// exists but cannot be decoded.
var ErrCorrupt = errors.New("progress: state file corrupt")

// State is the durable completion record. Completed only grows.
type State struct {
	LastProcessed *string  `json:"lastProcessed"`
	Completed     []string `json:"completed"`

	index map[string]struct{}
}

// IsCompleted reports whether name was recorded as done.
func (s *State) IsCompleted(name string) bool {
	s.ensureIndex()
	_, ok := s.index[name]
	return ok
}

// MarkCompleted records name as done and as the last processed item.
// Repeated calls for the same name leave Completed unchanged.
func (s *State) MarkCompleted(name string) {
	s.ensureIndex()
	last := name
	s.LastProcessed = &last
	if _, ok := s.index[name]; ok {
		return
	}
	s.index[name] = struct{}{}
	s.Completed = append(s.Completed, name)
}

// Clone returns an independent copy.
func (s State) Clone() State {
	out := State{Completed: append([]string(nil), s.Completed...)}
	if s.LastProcessed != nil {
		last := *s.LastProcessed
		out.LastProcessed = &last
	}
	return out
}

func (s *State) ensureIndex() {
	if s.index != nil && len(s.index) == len(s.Completed) {
		return
	}
	s.index = make(map[string]struct{}, len(s.Completed))
	deduped := s.Completed[:0]
	for _, name := range s.Completed {
		if _, ok := s.index[name]; ok {
			continue
		}
		s.index[name] = struct{}{}
		deduped = append(deduped, name)
	}
	s.Completed = deduped
}

// Store reads and writes the progress file.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// FileStore keeps State as JSON at a fixed path.
type FileStore struct {
	path string
}

// NewFileStore creates a store for the given progress file.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the progress file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the persisted state. A missing file yields an empty state and
// no error; an undecodable file yields an empty state and ErrCorrupt.
func (s *FileStore) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("%w: read %s: %v", ErrCorrupt, s.path, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	state.ensureIndex()
	return state, nil
}

// Save fully overwrites the progress file.
func (s *FileStore) Save(state State) error {
	if state.Completed == nil {
		state.Completed = []string{}
	}
	encoded, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("progress: encode: %w", err)
	}
	if err := fsx.WriteFileAtomic(s.path, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("progress: save: %w", err)
	}
	return nil
}
