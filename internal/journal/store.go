package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// storedTimeFormat is how timestamps are rendered into the events table
const storedTimeFormat = "2006-01-02T15:04:05.000Z"

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(storedTimeFormat, s)
}

// Store is the SQLite mirror of the event journal, used for per-entity
// history queries behind the analysis API
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the event history database
func OpenStore(statePath string) (*Store, error) {
	dbPath := filepath.Join(statePath, "events.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TEXT NOT NULL,
		kind TEXT NOT NULL,
		type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		node_id TEXT,
		intensity REAL,
		members INTEGER,
		sources TEXT,
		targets TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_entity ON events(entity_id, id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Insert appends one entry to the history
func (s *Store) Insert(e Entry) error {
	sources, err := json.Marshal(e.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	targets, err := json.Marshal(e.Targets)
	if err != nil {
		return fmt.Errorf("failed to marshal targets: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO events (ts, kind, type, entity_id, node_id, intensity, members, sources, targets)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UTC().Format(storedTimeFormat),
		string(e.Kind), e.Type, e.EntityID, e.NodeID, e.Intensity, e.Members,
		string(sources), string(targets),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// RecentFor returns up to n most recent entries touching one entity, oldest
// first
func (s *Store) RecentFor(entityID string, n int) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT ts, kind, type, entity_id, node_id, intensity, members, sources, targets
		FROM events WHERE entity_id = ?
		ORDER BY id DESC LIMIT ?`, entityID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts, sources, targets string
		var nodeID sql.NullString
		if err := rows.Scan(&ts, &e.Kind, &e.Type, &e.EntityID, &nodeID,
			&e.Intensity, &e.Members, &sources, &targets); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.NodeID = nodeID.String
		if t, err := parseTimestamp(ts); err == nil {
			e.Timestamp = t
		}
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			e.Sources = nil
		}
		if err := json.Unmarshal([]byte(targets), &e.Targets); err != nil {
			e.Targets = nil
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	// Reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Count returns the total number of journaled events
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}
