package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ReaderOption configures a CycleReader with filtering criteria.
type ReaderOption func(*SqliteCycleReader)

// WithStartTime excludes cycles recorded before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteCycleReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes cycles recorded after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteCycleReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteCycleReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithPostedOnly excludes cycles whose report never reached the
// endpoint.
func WithPostedOnly() ReaderOption {
	return func(r *SqliteCycleReader) {
		r.postedOnly = true
	}
}

// SqliteCycleReader iterates a session's cycles in timestamp order.
// A reader instance must only be used from a single goroutine.
type SqliteCycleReader struct {
	rows *sql.Rows

	startTime  *time.Time
	endTime    *time.Time
	postedOnly bool

	current *Cycle
	err     error
}

var _ CycleReader = (*SqliteCycleReader)(nil)

func newSqliteCycleReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteCycleReader, error) {
	r := SqliteCycleReader{}
	for _, opt := range opts {
		opt(&r)
	}

	var sb strings.Builder
	sb.WriteString(selectCyclesSQL)
	args := []any{sessionID}

	if r.startTime != nil {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, r.startTime.UTC())
	}
	if r.endTime != nil {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, r.endTime.UTC())
	}
	if r.postedOnly {
		sb.WriteString(" AND posted = 1")
	}
	sb.WriteString(" ORDER BY timestamp, id")

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying cycles: %w", err)
	}

	r.rows = rows
	return &r, nil
}

// Next advances to the next cycle, returning false at the end of data
// or on error; Error tells the two apart.
func (r *SqliteCycleReader) Next() bool {
	if r.err != nil || !r.rows.Next() {
		if r.err == nil {
			r.err = r.rows.Err()
		}
		return false
	}

	var c Cycle
	if err := r.rows.Scan(&c.ID, &c.SessionID, &c.Timestamp, &c.Record, &c.Posted, &c.EndLoop); err != nil {
		r.err = fmt.Errorf("scanning cycle: %w", err)
		return false
	}

	r.current = &c
	return true
}

// Current returns the cycle Next advanced to. Undefined after Next
// returns false.
func (r *SqliteCycleReader) Current() *Cycle {
	return r.current
}

// Error returns the first error encountered during iteration.
func (r *SqliteCycleReader) Error() error {
	return r.err
}

// Close releases the underlying rows.
func (r *SqliteCycleReader) Close() error {
	return r.rows.Close()
}
