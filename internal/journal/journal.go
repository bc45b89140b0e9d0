// internal/journal is the append-only record of every transition and
// evolution event: one JSON object per line in events.jsonl, optionally
// mirrored into a SQLite store for per-entity history queries. Journal
// failures are the caller's to log; they must never reach the tick path.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sonigraph/sonigraph/internal/types"
)

// Kind separates the two event streams in one journal
type Kind string

const (
	KindTransition Kind = "transition"
	KindEvolution  Kind = "evolution"
)

// Entry is one journaled event
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Kind      Kind      `json:"kind"`
	Type      string    `json:"type"`
	EntityID  string    `json:"entity_id"`
	NodeID    string    `json:"node_id,omitempty"`
	Intensity float64   `json:"intensity,omitempty"`
	Members   int       `json:"members,omitempty"`
	Sources   []string  `json:"sources,omitempty"`
	Targets   []string  `json:"targets,omitempty"`
}

// Journal appends event entries to events.jsonl under the state directory
type Journal struct {
	path  string
	mu    sync.Mutex
	store *Store // optional SQLite mirror
}

// New creates a journal writer rooted at the state directory
func New(statePath string) *Journal {
	return &Journal{
		path: filepath.Join(statePath, "events.jsonl"),
	}
}

// AttachStore mirrors every entry into a SQLite store
func (j *Journal) AttachStore(s *Store) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.store = s
}

// LogTransition records one transition event
func (j *Journal) LogTransition(ev types.TransitionEvent) error {
	return j.log(Entry{
		Timestamp: ev.Timestamp,
		Kind:      KindTransition,
		Type:      string(ev.Type),
		EntityID:  ev.EntityID,
		NodeID:    ev.NodeID,
	})
}

// LogEvolution records one evolution event
func (j *Journal) LogEvolution(ev types.EvolutionEvent) error {
	return j.log(Entry{
		Timestamp: ev.Timestamp,
		Kind:      KindEvolution,
		Type:      string(ev.Type),
		EntityID:  ev.EntityID,
		Intensity: ev.Intensity,
		Members:   ev.AffectedMembers,
		Sources:   ev.SourceIDs,
		Targets:   ev.TargetIDs,
	})
}

func (j *Journal) log(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}

	if j.store != nil {
		return j.store.Insert(entry)
	}
	return nil
}

// Recent returns the last n entries from the journal file
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, entry)
	}

	if n >= len(entries) {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

// RecentFor returns the last n entries touching one entity. The SQLite
// store answers when attached; otherwise the journal file is scanned.
func (j *Journal) RecentFor(entityID string, n int) ([]Entry, error) {
	j.mu.Lock()
	store := j.store
	j.mu.Unlock()

	if store != nil {
		return store.RecentFor(entityID, n)
	}

	all, err := j.Recent(10000)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	if n >= len(out) {
		return out, nil
	}
	return out[len(out)-n:], nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
