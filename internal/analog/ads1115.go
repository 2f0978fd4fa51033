package analog

import (
	"fmt"
	"time"
)

// ADS1115 register map and config bits for one-shot single-ended
// conversions. See the TI datasheet, section 9.6.
const (
	regConversion = 0x00
	regConfig     = 0x01

	configOS         = 0x8000 // begin single conversion / conversion ready
	configMuxSingle0 = 0x4000 // AINp = AIN0, AINn = GND
	configMuxShift   = 12
	configPGA4V      = 0x0200 // +/-4.096V full scale
	configModeSingle = 0x0100
	configRate128    = 0x0080 // 128 samples per second
	configCompOff    = 0x0003

	// 128 SPS completes in under 8ms; allow a generous margin before
	// declaring the device unresponsive.
	conversionTimeout = 25 * time.Millisecond
	conversionPoll    = time.Millisecond
)

// I2CConn is a combined write/read transaction against a single bus
// device. periph.io's i2c.Dev satisfies it.
type I2CConn interface {
	Tx(w, r []byte) error
}

// ADS1115 drives one TI ADS1115 16-bit converter in single-shot mode.
type ADS1115 struct {
	conn I2CConn
}

// NewADS1115 wraps an I2C device connection addressed at the
// converter's bus address.
func NewADS1115(conn I2CConn) *ADS1115 {
	return &ADS1115{conn: conn}
}

// ReadChannel performs a one-shot conversion of the given single-ended
// input (0-3) and returns the signed 16-bit result.
func (a *ADS1115) ReadChannel(channel int) (int, error) {
	if channel < 0 || channel >= perDeviceChannels {
		return 0, fmt.Errorf("channel %d out of range", channel)
	}

	config := uint16(configOS | configMuxSingle0 | configPGA4V | configModeSingle | configRate128 | configCompOff)
	config |= uint16(channel) << configMuxShift

	if err := a.conn.Tx([]byte{regConfig, byte(config >> 8), byte(config)}, nil); err != nil {
		return 0, fmt.Errorf("starting conversion: %w", err)
	}

	if err := a.waitReady(); err != nil {
		return 0, err
	}

	var buf [2]byte
	if err := a.conn.Tx([]byte{regConversion}, buf[:]); err != nil {
		return 0, fmt.Errorf("reading conversion: %w", err)
	}

	return int(int16(uint16(buf[0])<<8 | uint16(buf[1]))), nil
}

// waitReady polls the OS bit until the conversion completes.
func (a *ADS1115) waitReady() error {
	deadline := time.Now().Add(conversionTimeout)
	for {
		var buf [2]byte
		if err := a.conn.Tx([]byte{regConfig}, buf[:]); err != nil {
			return fmt.Errorf("polling conversion state: %w", err)
		}
		if uint16(buf[0])<<8&configOS != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("conversion timed out after %s", conversionTimeout)
		}
		time.Sleep(conversionPoll)
	}
}
