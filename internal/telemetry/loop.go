// Package telemetry sequences sensor acquisition and reporting for a
// rover node: every cycle it polls the rangers and the analog bank,
// posts the encoded record to the remote endpoint and reacts to the
// reply, recovering from link loss without dropping out of the loop.
package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/devitia/rover-telemetry/internal/ranger"
)

const (
	// DefaultPace bounds the request rate and the reconnect-attempt
	// rate alike: one cycle per pace interval regardless of outcome.
	DefaultPace = 100 * time.Millisecond

	// DefaultReportTimeout bounds a single post/reply exchange.
	DefaultReportTimeout = 5 * time.Second

	// maxRangers is how many configured rangers contribute distance
	// fields to the record. Extra rangers are held but not polled.
	maxRangers = 2

	// rangerFault is the distance sentinel reported when a ranger
	// times out, mirroring the analog bank's per-channel sentinel so
	// the record keeps its shape.
	rangerFault = -1
)

// state of the reporting cycle. The loop moves Connecting -> Polling
// <-> Reporting, falls back to Connecting when the link drops during
// Reporting, and reaches Stopped only on the remote termination flag
// or cancellation.
type state int

const (
	stateConnecting state = iota
	statePolling
	stateReporting
	stateStopped
)

// DistanceSensor is the loop's view of one ranger. An out-of-range
// result must be reported as ranger.ErrOutOfRange so the loop can
// degrade it to the distance sentinel.
type DistanceSensor interface {
	DistanceMillimeters() (int64, error)
}

// BankReader is the loop's view of the analog sensor bank.
type BankReader interface {
	ReadAll(order string) []float64
}

// Link is the wireless association the transport rides on. The loop
// observes and drives it but the association itself is external.
type Link interface {
	IsConnected() bool
	Connect() error
	Disconnect() error
	Activate(on bool) error

	// Idle yields control briefly while the loop waits on the
	// association, so waiting never busy-spins.
	Idle()
}

// Reply is the structured response to a report. The endpoint owns the
// full shape; the loop only requires the termination flag.
type Reply struct {
	EndLoop bool
}

// Transport posts one encoded record and returns the parsed reply.
// Implementations own the wire format beyond the data query parameter.
type Transport interface {
	Post(ctx context.Context, data string) (*Reply, error)
}

// CycleRecorder persists completed cycles. Recording is best-effort:
// failures are logged and never influence loop state.
type CycleRecorder interface {
	RecordCycle(ctx context.Context, c Cycle) error
}

// Cycle is one completed acquisition/report attempt.
type Cycle struct {
	Timestamp time.Time
	Record    string
	Posted    bool
	EndLoop   bool
}

// WithLogger sets the logger for the loop.
func WithLogger(logger *slog.Logger) func(*Loop) {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithPace overrides the fixed inter-cycle delay.
func WithPace(pace time.Duration) func(*Loop) {
	return func(l *Loop) {
		l.pace = pace
	}
}

// WithRecorder attaches a best-effort cycle recorder.
func WithRecorder(r CycleRecorder) func(*Loop) {
	return func(l *Loop) {
		l.recorder = r
	}
}

// WithReportTimeout overrides the bound on a single report exchange.
func WithReportTimeout(timeout time.Duration) func(*Loop) {
	return func(l *Loop) {
		l.reportTimeout = timeout
	}
}

// WithSleep overrides how the loop paces itself, for tests.
func WithSleep(sleep func(time.Duration)) func(*Loop) {
	return func(l *Loop) {
		l.sleep = sleep
	}
}

// Loop owns the node's acquisition and reporting cycle. It is a single
// sequential control flow: nothing here is called concurrently and the
// only suspension points are the link wait and the report exchange.
type Loop struct {
	nodeID    int64
	rangers   []DistanceSensor
	bank      BankReader
	order     string
	link      Link
	transport Transport

	pace          time.Duration
	reportTimeout time.Duration
	recorder      CycleRecorder
	logger        *slog.Logger
	sleep         func(time.Duration)

	cycles int64
}

// NewLoop assembles a telemetry loop over the node's sensors and
// collaborators. Only the first two rangers contribute to the record.
func NewLoop(nodeID int64, rangers []DistanceSensor, bank BankReader, order string, link Link, transport Transport, options ...func(*Loop)) *Loop {
	l := Loop{
		nodeID:        nodeID,
		rangers:       rangers,
		bank:          bank,
		order:         order,
		link:          link,
		transport:     transport,
		pace:          DefaultPace,
		reportTimeout: DefaultReportTimeout,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		sleep:         time.Sleep,
	}

	for _, option := range options {
		option(&l)
	}

	return &l
}

// Run drives the loop until the remote endpoint sets the termination
// flag, or ctx is cancelled. Both paths release the link the same way:
// disconnect, then deactivate, exactly once. Run returns ctx.Err when
// cancelled and nil on a remote stop.
func (l *Loop) Run(ctx context.Context) error {
	defer l.release()

	s := stateConnecting
	var record *Record

	for s != stateStopped {
		if err := ctx.Err(); err != nil {
			l.logger.Info("interrupted, shutting down")
			return err
		}

		switch s {
		case stateConnecting:
			if err := l.awaitLink(ctx); err != nil {
				l.logger.Info("interrupted while waiting for link")
				return err
			}
			l.logger.Info("link associated")
			s = statePolling

		case statePolling:
			record = l.poll()
			s = stateReporting

		case stateReporting:
			s = l.report(ctx, record)
			record = nil
			l.sleep(l.pace)
		}
	}

	l.logger.Info("remote endpoint issued stop signal")
	return nil
}

// awaitLink blocks until the link reports connected, yielding through
// the link's idle primitive between checks.
func (l *Loop) awaitLink(ctx context.Context) error {
	for !l.link.IsConnected() {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.link.Idle()
	}
	return nil
}

// poll reads every sensor and assembles the cycle's record. Reads are
// best-effort: an out-of-range ranger degrades to the sentinel so the
// record shape never varies.
func (l *Loop) poll() *Record {
	record := Record{
		NodeID:    l.nodeID,
		Distances: make([]int64, 0, maxRangers),
	}

	for i, r := range l.rangers {
		if i == maxRangers {
			break
		}

		mm, err := r.DistanceMillimeters()
		if err != nil {
			mm = rangerFault
			if errors.Is(err, ranger.ErrOutOfRange) {
				l.logger.Debug("ranger out of range", slog.Int("ranger", i))
			} else {
				l.logger.Warn("ranger measurement failed",
					slog.Int("ranger", i),
					slog.String("error", err.Error()))
			}
		}
		record.Distances = append(record.Distances, mm)
	}

	record.Analog = l.bank.ReadAll(l.order)
	return &record
}

// report posts the record and decides the next state. A failed
// exchange is a transient miss while the link holds; with the link
// down the loop goes back to re-associating. Only a reply with the
// termination flag set stops the loop.
func (l *Loop) report(ctx context.Context, record *Record) state {
	data := record.Encode()

	reply, err := l.post(ctx, data)
	if err != nil {
		l.logger.Warn("report failed", slog.String("error", err.Error()))
		l.record(ctx, data, false, false)

		if !l.link.IsConnected() {
			l.logger.Info("link lost, re-associating")
			if err := l.reassociate(); err != nil {
				l.logger.Warn("re-association failed", slog.String("error", err.Error()))
			}
			return stateConnecting
		}
		return statePolling
	}

	l.cycles++
	l.logger.Debug("posted record",
		slog.Int64("cycle", l.cycles),
		slog.String("data", data))
	l.record(ctx, data, true, reply.EndLoop)

	if reply.EndLoop {
		return stateStopped
	}
	return statePolling
}

func (l *Loop) post(ctx context.Context, data string) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, l.reportTimeout)
	defer cancel()
	return l.transport.Post(ctx, data)
}

func (l *Loop) reassociate() error {
	if err := l.link.Activate(true); err != nil {
		return err
	}
	return l.link.Connect()
}

func (l *Loop) record(ctx context.Context, data string, posted, endLoop bool) {
	if l.recorder == nil {
		return
	}

	c := Cycle{
		Timestamp: time.Now().UTC(),
		Record:    data,
		Posted:    posted,
		EndLoop:   endLoop,
	}
	if err := l.recorder.RecordCycle(ctx, c); err != nil {
		l.logger.Warn("recording cycle failed", slog.String("error", err.Error()))
	}
}

// release tears the link down on the way out: disconnect, then
// deactivate. Run's defer makes this the single exit path for both
// remote stop and interruption.
func (l *Loop) release() {
	if l.link.IsConnected() {
		if err := l.link.Disconnect(); err != nil {
			l.logger.Warn("link disconnect failed", slog.String("error", err.Error()))
		}
	}
	if err := l.link.Activate(false); err != nil {
		l.logger.Warn("link deactivate failed", slog.String("error", err.Error()))
	}
}
