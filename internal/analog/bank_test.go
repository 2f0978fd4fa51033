package analog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeADC serves scripted raw values per channel; channels listed in
// faults fail instead.
type fakeADC struct {
	raw    [4]int
	faults map[int]error
	reads  []int
}

func (f *fakeADC) ReadChannel(channel int) (int, error) {
	f.reads = append(f.reads, channel)
	if err, ok := f.faults[channel]; ok {
		return 0, err
	}
	return f.raw[channel], nil
}

func TestParseLayout(t *testing.T) {
	roles, err := ParseLayout("vvll_x9!")
	require.NoError(t, err)

	want := [8]Role{Voltage, Voltage, Light, Light, Generic, Generic, Generic, Generic}
	assert.Equal(t, want, roles)
}

func TestParseLayout_WrongLength(t *testing.T) {
	_, err := ParseLayout("vvll")
	assert.Error(t, err)

	_, err = ParseLayout("vvll_____")
	assert.Error(t, err)
}

func TestBucket(t *testing.T) {
	tests := []struct {
		fraction float64
		want     float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.1, 0},
		{0.2, 20},
		{0.3, 20},
		{0.4, 40},
		{0.59, 40},
		{0.6, 80},
		{0.8, 160},
		{0.99, 160},
		{1.0, 220},
		{1.5, 220},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, bucket(tt.fraction), "fraction %f", tt.fraction)
	}
}

func TestBucket_Monotone(t *testing.T) {
	prev := bucket(-1)
	for f := -1.0; f <= 2.0; f += 0.01 {
		b := bucket(f)
		assert.GreaterOrEqual(t, b, prev, "fraction %f", f)
		prev = b
	}
}

func TestBank_LightCalibration(t *testing.T) {
	// Known calibration points: raw 30818 normalizes to exactly 1.0,
	// raw 335 to 0.0, raw 9580 to ~0.303.
	tests := []struct {
		raw  int
		want float64
	}{
		{30818, 220},
		{335, 0},
		{9580, 20}, // fraction ~0.303, above the 0.2 breakpoint only
	}

	for _, tt := range tests {
		devA := &fakeADC{raw: [4]int{tt.raw, 0, 0, 0}}
		devB := &fakeADC{}

		bank, err := NewBank(devA, devB, "l_______")
		require.NoError(t, err)

		got := bank.ReadAll("l")
		assert.Equal(t, []float64{tt.want}, got, "raw %d", tt.raw)
	}
}

func TestBank_VoltageCalibration(t *testing.T) {
	// raw 5169 normalizes to 0.0; raw 32236 to exactly 1.0.
	devA := &fakeADC{raw: [4]int{5169, 32236, 0, 0}}
	devB := &fakeADC{}

	bank, err := NewBank(devA, devB, "vv______")
	require.NoError(t, err)

	got := bank.ReadAll("vv")
	assert.Equal(t, []float64{0, 220}, got)
}

func TestBank_GenericPassThrough(t *testing.T) {
	devA := &fakeADC{raw: [4]int{123, 0, 0, 0}}
	devB := &fakeADC{raw: [4]int{0, 0, 0, -42}}

	bank, err := NewBank(devA, devB, "________")
	require.NoError(t, err)

	got := bank.ReadAll("__")
	assert.Equal(t, []float64{123, 0}, got)
}

func TestBank_Reassembly(t *testing.T) {
	// Layout vvll____: devA channels 0,1 voltage and 2,3 light.
	// voltage raws normalize to 0.0 and 1.0; light raws to 1.0 and 0.0.
	devA := &fakeADC{raw: [4]int{5169, 32236, 30818, 335}}
	devB := &fakeADC{}

	bank, err := NewBank(devA, devB, "vvll____")
	require.NoError(t, err)

	// Requested order interleaves roles; queues pop in physical read
	// order: light0, voltage0, light1, voltage1.
	got := bank.ReadAll("lvlv")
	assert.Equal(t, []float64{220, 0, 0, 220}, got)
}

func TestBank_ExhaustedRoleYieldsZero(t *testing.T) {
	devA := &fakeADC{raw: [4]int{30818, 0, 0, 0}}
	devB := &fakeADC{}

	bank, err := NewBank(devA, devB, "l_______")
	require.NoError(t, err)

	// Only one light channel exists; the second request degrades to 0.
	got := bank.ReadAll("ll")
	assert.Equal(t, []float64{220, 0}, got)
}

func TestBank_ChannelFaultIsIsolated(t *testing.T) {
	devA := &fakeADC{
		raw:    [4]int{100, 200, 300, 400},
		faults: map[int]error{1: errors.New("device did not acknowledge")},
	}
	devB := &fakeADC{raw: [4]int{500, 600, 700, 800}}

	bank, err := NewBank(devA, devB, "________")
	require.NoError(t, err)

	got := bank.ReadAll("________")
	assert.Equal(t, []float64{100, FaultReading, 300, 400, 500, 600, 700, 800}, got)

	// Every channel of both devices was still read.
	assert.Equal(t, []int{0, 1, 2, 3}, devA.reads)
	assert.Equal(t, []int{0, 1, 2, 3}, devB.reads)
}

func TestBank_ReadsBothDevices(t *testing.T) {
	devA := &fakeADC{raw: [4]int{30818, 30818, 30818, 30818}}
	devB := &fakeADC{raw: [4]int{32236, 32236, 32236, 32236}}

	bank, err := NewBank(devA, devB, "llllvvvv")
	require.NoError(t, err)

	got := bank.ReadAll("lvlvlvlv")
	assert.Equal(t, []float64{220, 220, 220, 220, 220, 220, 220, 220}, got)
}
