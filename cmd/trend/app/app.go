package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/devitia/rover-telemetry/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	return renderTrend(ctx, store, config, logger)
}

func renderTrend(ctx context.Context, store storage.Store, config *Config, logger *slog.Logger) error {
	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("session %d does not exist", config.SessionID)
	}

	logger.Info("reading session cycles",
		slog.Int64("session", session.ID),
		slog.Int64("node", session.NodeID),
		slog.String("started", session.StartTime.Local().Format(time.DateTime)))

	var opts []storage.ReaderOption
	if config.PostedOnly {
		opts = append(opts, storage.WithPostedOnly())
	}

	iter, err := store.ReadCycles(ctx, config.SessionID, opts...)
	if err != nil {
		return err
	}
	defer iter.Close()

	trend := NewTrendData()
	for iter.Next() {
		c := iter.Current()
		trend.Update(c.Timestamp, c.Record)
	}
	if err = iter.Error(); err != nil {
		return err
	}
	if trend.Cycles() == 0 {
		return fmt.Errorf("session %d has no cycles to render", config.SessionID)
	}

	logger.Info("finished reading cycles",
		slog.Group("stats",
			slog.String("cycles", humanize.Comma(int64(trend.Cycles()))),
			slog.Int("fields", len(trend.Fields)),
			slog.Int("skipped", trend.Skipped),
			slog.String("minTimestamp", trend.TimestampStart.Local().Format(time.DateTime)),
			slog.String("maxTimestamp", trend.TimestampEnd.Local().Format(time.DateTime)),
		))

	renderer := NewTrendRenderer(RenderConfig{
		FontFile:    config.FontFile,
		Annotations: !config.NoAnnotations,
	})

	logger.Info("rendering trend",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
		))

	img, err := renderer.Render(trend)
	if err != nil {
		return fmt.Errorf("rendering trend: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}
