package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from yaml duration
// strings like "100ms" or "5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration: %w", err)
	}

	*d = Duration(duration)
	return nil
}

func (d *Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(*d).String(), nil
}

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Node     NodeConfig     `yaml:"node"`
	Wifi     WifiConfig     `yaml:"wifi"`
	Endpoint EndpointConfig `yaml:"endpoint"`
	Rangers  []RangerConfig `yaml:"rangers"`
	Analog   AnalogConfig   `yaml:"analog"`
	Loop     LoopConfig     `yaml:"loop"`
	Storage  StorageConfig  `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// NodeConfig identifies this node to the remote endpoint
type NodeConfig struct {
	ID int64 `yaml:"id"`
}

// WifiConfig carries the wireless association credentials
type WifiConfig struct {
	Interface string `yaml:"interface"`
	SSID      string `yaml:"ssid"`
	Password  string `yaml:"password"`
}

// EndpointConfig is the remote telemetry endpoint
type EndpointConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// RangerConfig is one ultrasonic sensor's pin pair. Pin names use the
// platform's GPIO line naming, e.g. "GPIO5".
type RangerConfig struct {
	Name    string `yaml:"name"`
	Trigger string `yaml:"trigger"`
	Echo    string `yaml:"echo"`
}

// AnalogConfig describes the two ADS1115 converters and their channel
// layout. Order is the per-cycle output order of role tags.
type AnalogConfig struct {
	Bus      string `yaml:"bus"`
	AddressA uint16 `yaml:"addressA"`
	AddressB uint16 `yaml:"addressB"`
	Layout   string `yaml:"layout"`
	Order    string `yaml:"order"`
}

// LoopConfig tunes the telemetry loop
type LoopConfig struct {
	Pace Duration `yaml:"pace"`
}

// StorageConfig represents local cycle storage settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
}

// LoadConfig reads and validates the yaml configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err = config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch {
	case c.Endpoint.URL == "":
		return fmt.Errorf("endpoint URL is required")
	case c.Wifi.Interface == "":
		return fmt.Errorf("wifi interface is required")
	case c.Wifi.SSID == "":
		return fmt.Errorf("wifi SSID is required")
	case c.Analog.Layout == "":
		return fmt.Errorf("analog channel layout is required")
	case c.Analog.Order == "":
		return fmt.Errorf("analog output order is required")
	}

	for i, r := range c.Rangers {
		if r.Trigger == "" || r.Echo == "" {
			return fmt.Errorf("ranger %d (%s): trigger and echo pins are required", i, r.Name)
		}
	}
	return nil
}
