package analog

import "fmt"

// Role classifies what is attached to a physical ADC channel. The
// layout string maps to roles once at construction; readings are
// calibrated per role and reassembled by role on output.
type Role uint8

const (
	// Generic passes the raw register value through uncalibrated.
	Generic Role = iota

	// Light applies the photoresistor calibration and bucketing.
	Light

	// Voltage applies the divider calibration and bucketing.
	Voltage
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case Light:
		return "light"
	case Voltage:
		return "voltage"
	default:
		return "generic"
	}
}

// roleForTag maps a single layout/order character to a Role. Any
// character other than 'l' and 'v' selects the generic pass-through.
func roleForTag(c byte) Role {
	switch c {
	case 'l':
		return Light
	case 'v':
		return Voltage
	default:
		return Generic
	}
}

// ParseLayout converts an 8-character layout string into per-channel
// roles. The first four characters address device A, the last four
// device B.
func ParseLayout(layout string) ([channelCount]Role, error) {
	var roles [channelCount]Role
	if len(layout) != channelCount {
		return roles, fmt.Errorf("layout must have %d channels, got %d", channelCount, len(layout))
	}

	for i := 0; i < channelCount; i++ {
		roles[i] = roleForTag(layout[i])
	}
	return roles, nil
}
