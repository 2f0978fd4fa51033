// Package hwio adapts periph.io GPIO and I2C primitives to the sensor
// packages' interfaces. It is the only package that touches hardware;
// everything above it takes injected pins and bus connections.
package hwio

import (
	"fmt"
	"os"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Init loads the platform's GPIO and I2C drivers. It must be called
// once before opening any line or bus.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("initializing host drivers: %w", err)
	}
	return nil
}

// TriggerLine is an output GPIO line, used as a ranger trigger.
type TriggerLine struct {
	pin gpio.PinIO
}

// OpenTrigger opens the named GPIO line as an output, driven low.
func OpenTrigger(name string) (*TriggerLine, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no such GPIO line %q", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("configuring %q as output: %w", name, err)
	}
	return &TriggerLine{pin: pin}, nil
}

// Out drives the line high or low.
func (t *TriggerLine) Out(high bool) error {
	return t.pin.Out(gpio.Level(high))
}

// EchoLine is an input GPIO line with edge detection, used as a ranger
// echo. The line should be protected with a 1k resistor.
type EchoLine struct {
	pin gpio.PinIO
}

// OpenEcho opens the named GPIO line as an input watching both edges.
func OpenEcho(name string) (*EchoLine, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no such GPIO line %q", name)
	}
	if err := pin.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("configuring %q as input: %w", name, err)
	}
	return &EchoLine{pin: pin}, nil
}

// TimePulse measures the width of the next high pulse on the line,
// returning os.ErrDeadlineExceeded if the pulse does not complete
// within the timeout.
func (e *EchoLine) TimePulse(timeout time.Duration) (time.Duration, error) {
	deadline := time.Now().Add(timeout)

	for e.pin.Read() != gpio.High {
		if !e.waitEdge(deadline) {
			return 0, os.ErrDeadlineExceeded
		}
	}
	start := time.Now()

	for e.pin.Read() != gpio.Low {
		if !e.waitEdge(deadline) {
			return 0, os.ErrDeadlineExceeded
		}
	}
	return time.Since(start), nil
}

func (e *EchoLine) waitEdge(deadline time.Time) bool {
	// WaitForEdge blocks indefinitely on a negative timeout, so an
	// expired deadline must be caught before the call.
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	return e.pin.WaitForEdge(remaining)
}

// Bus wraps an open I2C bus and hands out device connections.
type Bus struct {
	bus i2c.BusCloser
}

// OpenBus opens the named I2C bus ("" selects the platform default).
func OpenBus(name string) (*Bus, error) {
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening I2C bus %q: %w", name, err)
	}
	return &Bus{bus: bus}, nil
}

// Device returns a connection to the device at the given bus address.
func (b *Bus) Device(addr uint16) *i2c.Dev {
	return &i2c.Dev{Bus: b.bus, Addr: addr}
}

// Close releases the bus.
func (b *Bus) Close() error {
	return b.bus.Close()
}
