// Package transcript persists finished conversations in a SQLite database.
//
// A Store is a toolloop.Observer: attached to a Loop, it saves one Record for
// every run when the loop terminates, whether the run succeeded or failed.
package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spachava753/toolloop"
	"github.com/spachava753/toolloop/log"
)

// NotFoundErr is returned by Load when no transcript has the requested id.
type NotFoundErr string

func (n NotFoundErr) Error() string {
	return fmt.Sprintf("transcript %q not found", string(n))
}

// Record is a saved conversation.
type Record struct {
	ID         string                `json:"id"`
	State      string                `json:"state"`
	Iterations int                   `json:"iterations"`
	Error      string                `json:"error,omitempty"`
	SavedAt    time.Time             `json:"saved_at"`
	Turns      toolloop.Conversation `json:"turns"`
}

// Query returns the caller's query, which is the first turn of every conversation.
func (r Record) Query() string {
	if r.Turns.Len() == 0 {
		return ""
	}
	return r.Turns.At(0).Content
}

type idKey struct{}

// WithID sets the id under which the run using ctx is saved. Runs without an id
// are saved under their termination time.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// Store is a SQLite backed transcript store. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// Open opens or creates the database at path. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("transcript: path required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("transcript: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		saved_at INTEGER NOT NULL,
		blob BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("transcript: create table: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts r, replacing any record with the same id. A zero SavedAt is set
// to the current time.
func (s *Store) Save(ctx context.Context, r Record) error {
	if r.ID == "" {
		return errors.New("transcript: record id required")
	}
	if r.SavedAt.IsZero() {
		r.SavedAt = s.now().UTC()
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("transcript: marshal: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO transcripts(id, saved_at, blob) VALUES(?,?,?)`,
		r.ID, r.SavedAt.UnixNano(), b)
	return err
}

func (s *Store) Load(ctx context.Context, id string) (Record, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM transcripts WHERE id = ?`, id).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, NotFoundErr(id)
	}
	if err != nil {
		return Record{}, err
	}
	return decode(b)
}

// List returns up to limit records, most recent first. A limit of zero or less
// returns every record.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT blob FROM transcripts ORDER BY saved_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		r, err := decode(b)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decode(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("transcript: unmarshal: %w", err)
	}
	return r, nil
}

// Observe saves the conversation of a terminated loop. Other events are ignored.
// Save failures are logged, not returned, so they never affect the loop.
func (s *Store) Observe(ctx context.Context, e toolloop.Event) {
	if e.Kind != toolloop.EventLoopTerminated {
		return
	}
	now := s.now().UTC()
	id, _ := ctx.Value(idKey{}).(string)
	if id == "" {
		id = now.Format("20060102T150405.000000000Z")
	}
	r := Record{
		ID:         id,
		State:      e.State.String(),
		Iterations: e.Iteration,
		SavedAt:    now,
		Turns:      e.Conversation,
	}
	if e.Err != nil {
		r.Error = e.Err.Error()
	}
	// the run's context may already be cancelled
	if err := s.Save(context.WithoutCancel(ctx), r); err != nil {
		log.Error(ctx, "failed to save transcript", err, "id", id)
		return
	}
	log.Debug(ctx, "transcript saved", "id", id, "turns", e.Conversation.Len())
}

var _ toolloop.Observer = (*Store)(nil)
