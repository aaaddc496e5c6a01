// Package record stores replay results in a SQLite database.
package record

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/csim/replay"
)

const schema = `
CREATE TABLE IF NOT EXISTS csim_runs (
	id TEXT PRIMARY KEY,
	trace TEXT,
	s INTEGER,
	e INTEGER,
	b INTEGER,
	hits INTEGER,
	misses INTEGER,
	evictions INTEGER,
	accesses INTEGER,
	complete INTEGER
);
CREATE TABLE IF NOT EXISTS csim_accesses (
	run_id TEXT,
	seq INTEGER,
	kind TEXT,
	address TEXT,
	size INTEGER,
	outcome TEXT
);
CREATE INDEX IF NOT EXISTS csim_accesses_run ON csim_accesses (run_id, seq);
`

// RunEntry is one row of csim_runs.
type RunEntry struct {
	ID              string
	Trace           string
	SetIndexBits    int
	Associativity   int
	BlockOffsetBits int
	Hits            uint64
	Misses          uint64
	Evictions       uint64
	Accesses        uint64
	Complete        bool
}

// AccessEntry is one row of csim_accesses.
type AccessEntry struct {
	RunID   string
	Seq     uint64
	Kind    string
	Address string
	Size    uint32
	Outcome string
}

// Recorder writes runs and per-access outcomes into SQLite. Access rows
// are buffered and written in batches.
type Recorder struct {
	*sql.DB

	path      string
	batchSize int
	pending   []AccessEntry
	err       error
	closed    bool
}

// New opens the database file at path, creating it and its tables if
// needed, so that many runs can share one file. An empty path picks a
// fresh csim_<xid>.sqlite3 name in the working directory, which must not
// exist yet. A notice naming the file goes to notice unless it is nil.
// Buffered rows are flushed when the program exits through atexit.
func New(path string, notice io.Writer) (*Recorder, error) {
	generated := path == ""
	if generated {
		path = "csim_" + xid.New().String() + ".sqlite3"
	}

	_, statErr := os.Stat(path)
	exists := statErr == nil
	if exists && generated {
		return nil, fmt.Errorf("file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	r, err := NewWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	r.path = path

	if notice != nil {
		if exists {
			fmt.Fprintf(notice, "Recording into existing database: %s\n", path)
		} else {
			fmt.Fprintf(notice, "Database created for recording: %s\n", path)
		}
	}

	atexit.Register(func() { _ = r.Close() })

	return r, nil
}

// NewWithDB creates a Recorder over an open database.
func NewWithDB(db *sql.DB) (*Recorder, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Recorder{
		DB:        db,
		batchSize: 100000,
	}, nil
}

// Path returns the database file, or "" for a Recorder built on an
// existing connection.
func (r *Recorder) Path() string {
	return r.path
}

// NewRunID returns a fresh unique run id.
func (r *Recorder) NewRunID() string {
	return xid.New().String()
}

// RecordRun inserts the summary of a run.
func (r *Recorder) RecordRun(run RunEntry) error {
	_, err := r.Exec(
		`INSERT INTO csim_runs
			(id, trace, s, e, b, hits, misses, evictions, accesses, complete)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Trace,
		run.SetIndexBits, run.Associativity, run.BlockOffsetBits,
		int64(run.Hits), int64(run.Misses), int64(run.Evictions),
		int64(run.Accesses), run.Complete,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}

	return nil
}

// Runs returns every recorded run in insertion order.
func (r *Recorder) Runs() ([]RunEntry, error) {
	rows, err := r.Query(`SELECT id, trace, s, e, b, hits, misses, evictions,
		accesses, complete FROM csim_runs ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunEntry
	for rows.Next() {
		var (
			run                               RunEntry
			hits, misses, evictions, accesses int64
		)

		err := rows.Scan(&run.ID, &run.Trace,
			&run.SetIndexBits, &run.Associativity, &run.BlockOffsetBits,
			&hits, &misses, &evictions, &accesses, &run.Complete)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.Hits = uint64(hits)
		run.Misses = uint64(misses)
		run.Evictions = uint64(evictions)
		run.Accesses = uint64(accesses)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Accesses returns the recorded accesses of a run in trace order.
func (r *Recorder) Accesses(runID string) ([]AccessEntry, error) {
	rows, err := r.Query(`SELECT run_id, seq, kind, address, size, outcome
		FROM csim_accesses WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accesses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AccessEntry
	for rows.Next() {
		var (
			e   AccessEntry
			seq int64
		)

		err := rows.Scan(&e.RunID, &seq, &e.Kind, &e.Address, &e.Size, &e.Outcome)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access: %w", err)
		}

		e.Seq = uint64(seq)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (r *Recorder) insertAccess(entry AccessEntry) {
	r.pending = append(r.pending, entry)

	if len(r.pending) >= r.batchSize {
		if err := r.Flush(); err != nil && r.err == nil {
			r.err = err
		}
	}
}

// Flush writes all buffered access rows. It also reports any error that
// happened during an automatic flush from a hook.
func (r *Recorder) Flush() error {
	if r.err != nil {
		return r.err
	}

	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO csim_accesses
		(run_id, seq, kind, address, size, outcome) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range r.pending {
		_, err := stmt.Exec(e.RunID, int64(e.Seq), e.Kind, e.Address, e.Size, e.Outcome)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert access: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accesses: %w", err)
	}

	r.pending = r.pending[:0]

	return nil
}

// Close flushes and closes the database. Closing twice is a no-op.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	return errors.Join(r.Flush(), r.DB.Close())
}

// Hook returns a hook that records every access of a replay under runID.
func (r *Recorder) Hook(runID string) sim.Hook {
	return &accessHook{recorder: r, runID: runID}
}

type accessHook struct {
	recorder *Recorder
	runID    string
	seq      uint64
}

func (h *accessHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != replay.HookPosAccess {
		return
	}

	event, ok := ctx.Detail.(replay.AccessEvent)
	if !ok {
		return
	}

	outcomes := make([]string, len(event.Outcomes))
	for i, o := range event.Outcomes {
		outcomes[i] = o.String()
	}

	h.seq++
	h.recorder.insertAccess(AccessEntry{
		RunID:   h.runID,
		Seq:     h.seq,
		Kind:    event.Access.Kind.String(),
		Address: fmt.Sprintf("0x%x", event.Access.Address),
		Size:    event.Access.Size,
		Outcome: strings.Join(outcomes, " "),
	})
}
