package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/devitia/rover-telemetry/internal/analog"
	"github.com/devitia/rover-telemetry/internal/hwio"
	"github.com/devitia/rover-telemetry/internal/ranger"
	"github.com/devitia/rover-telemetry/internal/storage"
	"github.com/devitia/rover-telemetry/internal/telemetry"
	"github.com/devitia/rover-telemetry/internal/wifi"
)

const (
	storageDir = "data"
)

// Run wires the node together and drives the telemetry loop until the
// remote endpoint stops it or ctx is cancelled. Cancellation is the
// user-interrupt path and returns nil after a clean release.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	var options []func(*telemetry.Loop)
	options = append(options, telemetry.WithLogger(logger))

	if config.Loop.Pace > 0 {
		options = append(options, telemetry.WithPace(time.Duration(config.Loop.Pace)))
	}
	if config.Endpoint.Timeout > 0 {
		options = append(options, telemetry.WithReportTimeout(time.Duration(config.Endpoint.Timeout)))
	}

	if config.Storage.Enabled {
		store, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()

		sessionID, err := store.CreateSession(ctx, config.Node.ID, config)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		options = append(options, telemetry.WithRecorder(storage.NewSessionRecorder(store, sessionID)))
	}

	if err := hwio.Init(); err != nil {
		return fmt.Errorf("failed to initialize hardware: %w", err)
	}

	bank, closeBus, err := createBank(&config.Analog, logger)
	if err != nil {
		return fmt.Errorf("failed to create sensor bank: %w", err)
	}
	defer closeBus()

	rangers, err := createRangers(config.Rangers)
	if err != nil {
		return fmt.Errorf("failed to create rangers: %w", err)
	}

	link := wifi.NewManager(config.Wifi.Interface, config.Wifi.SSID, config.Wifi.Password,
		wifi.WithLogger(logger))

	// Bring the radio up and request the initial association; the
	// loop's Connecting state waits for it to complete.
	if err = link.Activate(true); err != nil {
		return fmt.Errorf("failed to activate wireless radio: %w", err)
	}
	if err = link.Connect(); err != nil {
		logger.Warn("initial association request failed, loop will retry",
			slog.String("error", err.Error()))
	}

	transport := telemetry.NewHTTPTransport(config.Endpoint.URL)
	loop := telemetry.NewLoop(config.Node.ID, rangers, bank, config.Analog.Order, link, transport, options...)

	if err = loop.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}

func createBank(config *AnalogConfig, logger *slog.Logger) (*analog.Bank, func() error, error) {
	bus, err := hwio.OpenBus(config.Bus)
	if err != nil {
		return nil, nil, fmt.Errorf("opening I2C bus: %w", err)
	}

	devA := analog.NewADS1115(bus.Device(config.AddressA))
	devB := analog.NewADS1115(bus.Device(config.AddressB))

	bank, err := analog.NewBank(devA, devB, config.Layout, analog.WithLogger(logger))
	if err != nil {
		_ = bus.Close()
		return nil, nil, err
	}

	return bank, bus.Close, nil
}

func createRangers(config []RangerConfig) ([]telemetry.DistanceSensor, error) {
	var rangers []telemetry.DistanceSensor
	for _, rangerConfig := range config {
		trigger, err := hwio.OpenTrigger(rangerConfig.Trigger)
		if err != nil {
			return nil, fmt.Errorf("opening trigger for %q: %w", rangerConfig.Name, err)
		}

		echo, err := hwio.OpenEcho(rangerConfig.Echo)
		if err != nil {
			return nil, fmt.Errorf("opening echo for %q: %w", rangerConfig.Name, err)
		}

		rangers = append(rangers, ranger.New(trigger, echo))
	}
	return rangers, nil
}

func createStorage(config *StorageConfig) (storage.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	var dbPath string
	switch {
	case filepath.IsAbs(config.DataDirectory):
		dbPath = config.DataDirectory
	case config.DataDirectory != "":
		dbPath = filepath.Join(wd, config.DataDirectory)
	default:
		dbPath = filepath.Join(wd, storageDir)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("telemetry_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
