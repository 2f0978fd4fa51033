// Package analog reads the rover's multiplexed analog sensors: two
// 4-channel ADS1115 converters carrying a mix of light sensors,
// voltage dividers and uncommitted generic inputs.
package analog

import (
	"fmt"
	"io"
	"log/slog"
)

const (
	perDeviceChannels = 4
	channelCount      = 2 * perDeviceChannels

	// FaultReading is emitted for a channel whose read failed.
	// Acquisition is best-effort per channel; one bad channel never
	// aborts the rest of the bank.
	FaultReading = -1
)

// The bucket table is a calibration contract shared with the fleet's
// consumers: changing breakpoints or labels is a recalibration, not a
// refactor. A normalized fraction maps to the largest label whose
// breakpoint does not exceed it.
var (
	bucketBreaks = [...]float64{0.0, 0.2, 0.4, 0.6, 0.8, 1.0}
	bucketLabels = [...]float64{0, 20, 40, 80, 160, 220}
)

// Per-role normalization offsets and scales, measured against the
// deployed sensor boards.
const (
	lightOffset   = 335
	lightScale    = 30483
	voltageOffset = 5169
	voltageScale  = 27067
)

// ADC is a single analog-to-digital converter handle. ReadChannel
// performs a one-shot conversion on one of the four single-ended
// inputs and returns the raw register value.
type ADC interface {
	ReadChannel(channel int) (int, error)
}

// WithLogger sets the logger for the bank.
func WithLogger(logger *slog.Logger) func(*Bank) {
	return func(b *Bank) {
		b.logger = logger
	}
}

// Bank reads both converters as one 8-channel unit. The channel
// layout is fixed at construction; ReadAll reassembles readings into
// whatever order the caller asks for.
type Bank struct {
	devices [2]ADC
	roles   [channelCount]Role

	logger *slog.Logger
}

// NewBank creates a Bank over the two converters. The layout string
// assigns a role per physical channel ('l' light, 'v' voltage,
// anything else generic); its first half describes devA, the second
// half devB.
func NewBank(devA, devB ADC, layout string, options ...func(*Bank)) (*Bank, error) {
	roles, err := ParseLayout(layout)
	if err != nil {
		return nil, fmt.Errorf("parsing channel layout: %w", err)
	}

	b := Bank{
		devices: [2]ADC{devA, devB},
		roles:   roles,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&b)
	}

	return &b, nil
}

// ReadAll samples every channel of both converters and returns one
// reading per tag in order. Readings are queued per role in physical
// read order and popped as the requested order consumes them; a role
// requested more times than it has channels yields zero, a defined
// degradation rather than an error.
func (b *Bank) ReadAll(order string) []float64 {
	// Per-cycle role queues, discarded after reassembly.
	queues := [3][]float64{
		Light:   make([]float64, 0, perDeviceChannels),
		Voltage: make([]float64, 0, perDeviceChannels),
		Generic: make([]float64, 0, perDeviceChannels),
	}

	for i := 0; i < channelCount; i++ {
		role := b.roles[i]
		value := b.readChannel(b.devices[i/perDeviceChannels], i%perDeviceChannels, role)
		queues[role] = append(queues[role], value)
	}

	out := make([]float64, len(order))
	for i := 0; i < len(order); i++ {
		role := roleForTag(order[i])
		if len(queues[role]) == 0 {
			out[i] = 0
			continue
		}
		out[i] = queues[role][0]
		queues[role] = queues[role][1:]
	}
	return out
}

func (b *Bank) readChannel(dev ADC, channel int, role Role) float64 {
	raw, err := dev.ReadChannel(channel)
	if err != nil {
		b.logger.Warn("channel read failed",
			slog.Int("channel", channel),
			slog.String("role", role.String()),
			slog.String("error", err.Error()))
		return FaultReading
	}

	switch role {
	case Light:
		return bucket(normalize(raw, lightOffset, lightScale))
	case Voltage:
		return bucket(normalize(raw, voltageOffset, voltageScale))
	default:
		return float64(raw)
	}
}

func normalize(raw, offset, scale int) float64 {
	return float64(raw-offset) / float64(scale)
}

// bucket maps a normalized fraction to its calibration tier: the
// largest bucket label whose breakpoint is at or below the fraction.
// Fractions below every breakpoint collapse to 0. This is a monotone
// step function, not interpolation.
func bucket(fraction float64) float64 {
	value := float64(0)
	for i := range bucketBreaks {
		if fraction >= bucketBreaks[i] {
			value = bucketLabels[i]
		}
	}
	return value
}
