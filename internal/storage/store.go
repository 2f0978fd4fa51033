// Package storage persists telemetry sessions and their per-cycle
// records in a local sqlite database, so reports survive connectivity
// gaps and can be rendered offline.
package storage

import (
	"context"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages the node's local telemetry database. All writes are
// atomic; readers iterate stored cycles without blocking the writer.
type Store interface {
	// CreateSession registers a new run of the telemetry loop and
	// returns its identifier. config may be a string, []byte or any
	// JSON-serializable value; it is stored for later inspection.
	CreateSession(ctx context.Context, nodeID int64, config any) (sessionID int64, err error)

	// Session retrieves a session by ID, or nil if it does not exist.
	Session(ctx context.Context, id int64) (*Session, error)

	// Sessions returns all sessions ordered by start time.
	Sessions(ctx context.Context) ([]*Session, error)

	// StoreCycle appends one completed report cycle to a session.
	StoreCycle(ctx context.Context, sessionID int64, c CycleData) (cycleID int64, err error)

	// ReadCycles returns an iterator over a session's cycles in
	// timestamp order. The iterator must be closed after use.
	ReadCycles(ctx context.Context, sessionID int64, opts ...ReaderOption) (CycleReader, error)

	// Close releases all database connections. Safe to call more
	// than once.
	Close() error
}

// CycleReader iterates stored cycles. Next/Current/Error follow the
// database/sql rows convention: when Next returns false, Error
// distinguishes end of data from a fault.
type CycleReader interface {
	Next() bool
	Current() *Cycle
	Error() error
	Close() error
}

// Session is one run of the telemetry loop.
type Session struct {
	ID        int64
	StartTime time.Time
	NodeID    int64
	Config    *string
}

// CycleData is the writable portion of a cycle.
type CycleData struct {
	Timestamp time.Time
	Record    string
	Posted    bool
	EndLoop   bool
}

// Cycle is a stored cycle, as read back for rendering.
type Cycle struct {
	ID        int64
	SessionID int64
	CycleData
}
