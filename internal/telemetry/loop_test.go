package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devitia/rover-telemetry/internal/ranger"
)

type fakeRanger struct {
	mm  int64
	err error
}

func (f *fakeRanger) DistanceMillimeters() (int64, error) {
	return f.mm, f.err
}

type fakeBank struct {
	readings []float64
	orders   []string
}

func (f *fakeBank) ReadAll(order string) []float64 {
	f.orders = append(f.orders, order)
	out := make([]float64, len(f.readings))
	copy(out, f.readings)
	return out
}

// fakeLink serves scripted connectivity states, then stays in the last
// one.
type fakeLink struct {
	states []bool
	calls  int

	connects    int
	disconnects int
	activations []bool
	idles       int
}

func (f *fakeLink) IsConnected() bool {
	state := f.states[min(f.calls, len(f.states)-1)]
	f.calls++
	return state
}

func (f *fakeLink) Connect() error    { f.connects++; return nil }
func (f *fakeLink) Disconnect() error { f.disconnects++; return nil }
func (f *fakeLink) Idle()             { f.idles++ }

func (f *fakeLink) Activate(on bool) error {
	f.activations = append(f.activations, on)
	return nil
}

type postResult struct {
	reply *Reply
	err   error
}

// fakeTransport serves scripted replies, then keeps serving the last
// one.
type fakeTransport struct {
	results []postResult
	posted  []string
}

func (f *fakeTransport) Post(_ context.Context, data string) (*Reply, error) {
	f.posted = append(f.posted, data)
	r := f.results[min(len(f.posted)-1, len(f.results)-1)]
	return r.reply, r.err
}

type fakeRecorder struct {
	cycles []Cycle
	err    error
}

func (f *fakeRecorder) RecordCycle(_ context.Context, c Cycle) error {
	f.cycles = append(f.cycles, c)
	return f.err
}

func newTestLoop(link *fakeLink, transport *fakeTransport, options ...func(*Loop)) *Loop {
	rangers := []DistanceSensor{
		&fakeRanger{mm: 812},
		&fakeRanger{mm: 634},
	}
	bank := &fakeBank{readings: []float64{40, 160, 0, 20}}

	options = append([]func(*Loop){WithSleep(func(time.Duration) {})}, options...)
	return NewLoop(7, rangers, bank, "vvll", link, transport, options...)
}

func TestLoop_RunsUntilEndLoop(t *testing.T) {
	link := &fakeLink{states: []bool{true}}
	transport := &fakeTransport{results: []postResult{
		{reply: &Reply{}},
		{reply: &Reply{}},
		{reply: &Reply{EndLoop: true}},
	}}

	loop := newTestLoop(link, transport)
	err := loop.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, transport.posted, 3)
	for _, data := range transport.posted {
		assert.Equal(t, "[7,812,634,40,160,0,20]", data)
	}

	// Remote stop releases the link exactly once: disconnect, then
	// radio off.
	assert.Equal(t, 1, link.disconnects)
	assert.Equal(t, []bool{false}, link.activations)
}

func TestLoop_OutOfRangeDegradesToSentinel(t *testing.T) {
	link := &fakeLink{states: []bool{true}}
	transport := &fakeTransport{results: []postResult{
		{reply: &Reply{EndLoop: true}},
	}}

	rangers := []DistanceSensor{
		&fakeRanger{mm: 812},
		&fakeRanger{err: ranger.ErrOutOfRange},
	}
	bank := &fakeBank{readings: []float64{40, 160}}

	loop := NewLoop(7, rangers, bank, "vv", link, transport,
		WithSleep(func(time.Duration) {}))

	err := loop.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, transport.posted, 1)
	assert.Equal(t, "[7,812,-1,40,160]", transport.posted[0])
}

func TestLoop_OnlyFirstTwoRangersPolled(t *testing.T) {
	link := &fakeLink{states: []bool{true}}
	transport := &fakeTransport{results: []postResult{
		{reply: &Reply{EndLoop: true}},
	}}

	third := &fakeRanger{mm: 999}
	rangers := []DistanceSensor{
		&fakeRanger{mm: 1}, &fakeRanger{mm: 2}, third,
	}
	bank := &fakeBank{}

	loop := NewLoop(7, rangers, bank, "", link, transport,
		WithSleep(func(time.Duration) {}))

	err := loop.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, transport.posted, 1)
	assert.Equal(t, "[7,1,2]", transport.posted[0])
}

func TestLoop_TransientMissContinuesPolling(t *testing.T) {
	// Link stays up while the endpoint misbehaves: the loop treats the
	// failure as a transient miss and keeps cycling.
	link := &fakeLink{states: []bool{true}}
	transport := &fakeTransport{results: []postResult{
		{err: errors.New("malformed reply")},
		{reply: &Reply{EndLoop: true}},
	}}

	loop := newTestLoop(link, transport)
	err := loop.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, transport.posted, 2)
	// No re-association happened.
	assert.Zero(t, link.connects)
	// Record shape is identical across the failed and successful cycle.
	assert.Equal(t, transport.posted[0], transport.posted[1])
}

func TestLoop_LinkLossReconnects(t *testing.T) {
	// Connected for the first cycle's checks, down when the failed
	// report re-checks, up again for the reconnect wait.
	link := &fakeLink{states: []bool{true, false, false, true}}
	transport := &fakeTransport{results: []postResult{
		{err: errors.New("connection reset")},
		{reply: &Reply{EndLoop: true}},
	}}

	loop := newTestLoop(link, transport)
	err := loop.Run(context.Background())
	require.NoError(t, err)

	// The loop re-associated: radio on, connect, then released on stop.
	assert.Equal(t, 1, link.connects)
	assert.Equal(t, []bool{true, false}, link.activations)

	// A fresh record was polled after reconnecting, not a stale one.
	require.Len(t, transport.posted, 2)
	assert.Equal(t, "[7,812,634,40,160,0,20]", transport.posted[1])
}

func TestLoop_ConnectingYieldsWhileWaiting(t *testing.T) {
	link := &fakeLink{states: []bool{false, false, false, true}}
	transport := &fakeTransport{results: []postResult{
		{reply: &Reply{EndLoop: true}},
	}}

	loop := newTestLoop(link, transport)
	err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, link.idles)
	require.Len(t, transport.posted, 1)
}

func TestLoop_InterruptReleasesLinkOnce(t *testing.T) {
	link := &fakeLink{states: []bool{true}}

	ctx, cancel := context.WithCancel(context.Background())
	transport := &fakeTransport{results: []postResult{
		{reply: &Reply{}},
	}}

	loop := newTestLoop(link, transport, WithSleep(func(time.Duration) {
		cancel() // interrupt during pacing
	}))

	err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, link.disconnects)
	assert.Equal(t, []bool{false}, link.activations)
}

func TestLoop_InterruptWhileConnecting(t *testing.T) {
	link := &fakeLink{states: []bool{false}}
	transport := &fakeTransport{results: []postResult{
		{reply: &Reply{}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	loop := newTestLoop(link, transport)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, transport.posted)

	// The radio is still deactivated on the way out, but there is no
	// association to drop.
	assert.Equal(t, 0, link.disconnects)
	assert.Equal(t, []bool{false}, link.activations)
}

func TestLoop_RecordsCycles(t *testing.T) {
	link := &fakeLink{states: []bool{true}}
	transport := &fakeTransport{results: []postResult{
		{err: errors.New("timeout")},
		{reply: &Reply{EndLoop: true}},
	}}
	recorder := &fakeRecorder{}

	loop := newTestLoop(link, transport, WithRecorder(recorder))
	err := loop.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, recorder.cycles, 2)
	assert.False(t, recorder.cycles[0].Posted)
	assert.True(t, recorder.cycles[1].Posted)
	assert.True(t, recorder.cycles[1].EndLoop)
}

func TestLoop_RecorderFailureDoesNotStopLoop(t *testing.T) {
	link := &fakeLink{states: []bool{true}}
	transport := &fakeTransport{results: []postResult{
		{reply: &Reply{}},
		{reply: &Reply{EndLoop: true}},
	}}
	recorder := &fakeRecorder{err: errors.New("disk full")}

	loop := newTestLoop(link, transport, WithRecorder(recorder))
	err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, transport.posted, 2)
}
