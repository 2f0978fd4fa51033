// Package ranger drives HC-SR04 ultrasonic time-of-flight sensors.
// The usable range of the sensor is between 2cm and 4m; echoes that
// do not return within the configured timeout are reported as
// ErrOutOfRange rather than a generic I/O fault.
package ranger

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// DefaultEchoTimeout bounds the wait for an echo pulse. It is derived
// from the sensor's 4m range limit: 500us * 2 (round trip) * 30.
const DefaultEchoTimeout = 500 * 2 * 30 * time.Microsecond

const (
	settleDelay  = 5 * time.Microsecond
	triggerPulse = 10 * time.Microsecond
)

// ErrOutOfRange is returned when no echo completes within the timeout,
// which the sensor produces for targets beyond its range limit.
var ErrOutOfRange = errors.New("ranger: out of range")

// TriggerPin is the output line used to request a measurement.
type TriggerPin interface {
	Out(high bool) error
}

// EchoPulser measures the width of the next high pulse on the echo
// line. Implementations must return os.ErrDeadlineExceeded (possibly
// wrapped) when no complete pulse is observed within the timeout, and
// propagate any other transport fault unchanged.
type EchoPulser interface {
	TimePulse(timeout time.Duration) (time.Duration, error)
}

// WithEchoTimeout overrides the default echo timeout.
func WithEchoTimeout(timeout time.Duration) func(*Ranger) {
	return func(r *Ranger) {
		r.echoTimeout = timeout
	}
}

// Ranger is a single ultrasonic sensor bound to a trigger/echo pin
// pair. It keeps no state between measurements and is not safe for
// concurrent use; the acquisition loop is the only caller by design.
type Ranger struct {
	trigger TriggerPin
	echo    EchoPulser

	echoTimeout time.Duration
	sleep       func(time.Duration)
}

// New creates a Ranger for the given trigger and echo lines.
func New(trigger TriggerPin, echo EchoPulser, options ...func(*Ranger)) *Ranger {
	r := Ranger{
		trigger:     trigger,
		echo:        echo,
		echoTimeout: DefaultEchoTimeout,
		sleep:       sleepFor,
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// measure runs one trigger/echo exchange and returns the echo pulse
// width. A timeout on the echo line maps to ErrOutOfRange; every other
// fault propagates unchanged.
func (r *Ranger) measure() (time.Duration, error) {
	// Hold the trigger low first so a late echo from a previous
	// measurement settles before the next request.
	if err := r.trigger.Out(false); err != nil {
		return 0, fmt.Errorf("stabilizing trigger: %w", err)
	}
	r.sleep(settleDelay)

	if err := r.trigger.Out(true); err != nil {
		return 0, fmt.Errorf("raising trigger: %w", err)
	}
	r.sleep(triggerPulse)
	if err := r.trigger.Out(false); err != nil {
		return 0, fmt.Errorf("lowering trigger: %w", err)
	}

	pulse, err := r.echo.TimePulse(r.echoTimeout)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, ErrOutOfRange
		}
		return 0, fmt.Errorf("timing echo pulse: %w", err)
	}

	return pulse, nil
}

// DistanceMillimeters performs one measurement and returns the distance
// in integer millimeters, using integer arithmetic only. This is the
// fast path used by the telemetry loop.
func (r *Ranger) DistanceMillimeters() (int64, error) {
	pulse, err := r.measure()
	if err != nil {
		return 0, err
	}
	return PulseToMillimeters(pulse.Microseconds()), nil
}

// DistanceCentimeters performs one measurement and returns the distance
// in fractional centimeters for callers that want the precision path.
func (r *Ranger) DistanceCentimeters() (float64, error) {
	pulse, err := r.measure()
	if err != nil {
		return 0, err
	}
	return PulseToCentimeters(float64(pulse.Microseconds())), nil
}

// PulseToMillimeters converts an echo pulse width in microseconds to a
// distance in millimeters. The pulse travels the distance twice and
// sound moves at 343.2 m/s, i.e. 1mm each 2.91us:
// us / 2 / 2.91 -> us / 5.82 -> us * 100 / 582, kept as truncating
// integer division for bit compatibility with deployed nodes.
func PulseToMillimeters(us int64) int64 {
	return us * 100 / 582
}

// PulseToCentimeters converts an echo pulse width in microseconds to a
// distance in centimeters: half the round trip at 29.1us per cm.
func PulseToCentimeters(us float64) float64 {
	return (us / 2) / 29.1
}

func sleepFor(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
