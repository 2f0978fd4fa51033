package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"
)

const (
	laneHeight = 80
	laneGap    = 12
	minWidth   = 640
	maxWidth   = 4096

	// Default border sizes in pixels
	defaultTopBorder    = 20
	defaultLeftBorder   = 90
	defaultBottomBorder = 90
	defaultRightBorder  = 20
)

// BorderConfig defines the sizes of white space around the chart
type BorderConfig struct {
	Top    int
	Left   int // Space for field labels
	Bottom int // Space for time scale and the info block
	Right  int
}

// RenderConfig holds the configuration options for trend visualization
type RenderConfig struct {
	TimeFormat string         // Format string for time display (e.g. "15:04")
	Location   *time.Location // Timezone for time display

	FontFile    string // TTF font used for annotations
	Annotations bool

	BorderConfig BorderConfig
}

var laneColor = color.RGBA{R: 0x2b, G: 0x6c, B: 0xb0, A: 0xff}

// TrendRenderer draws per-field strip charts of a session's records.
type TrendRenderer struct {
	config RenderConfig
}

// NewTrendRenderer creates a renderer with the given configuration.
func NewTrendRenderer(config RenderConfig) *TrendRenderer {
	if config.TimeFormat == "" {
		config.TimeFormat = "15:04:05"
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &TrendRenderer{config: config}
}

// Render draws the whole trend image: one lane per record field, time
// running left to right, with optional annotations.
func (r *TrendRenderer) Render(trend *TrendData) (image.Image, error) {
	if trend.Cycles() == 0 {
		return nil, fmt.Errorf("no cycles to render")
	}

	chartWidth := trend.Cycles()
	if chartWidth < minWidth {
		chartWidth = minWidth
	}
	if chartWidth > maxWidth {
		chartWidth = maxWidth
	}
	chartHeight := len(trend.Fields)*(laneHeight+laneGap) - laneGap

	borders := r.config.BorderConfig
	fullWidth := chartWidth + borders.Left + borders.Right
	fullHeight := chartHeight + borders.Top + borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	for i := range trend.Fields {
		lane := image.Rect(
			borders.Left,
			borders.Top+i*(laneHeight+laneGap),
			borders.Left+chartWidth,
			borders.Top+i*(laneHeight+laneGap)+laneHeight,
		)
		r.renderLane(img, lane, &trend.Fields[i])
	}

	if r.config.Annotations {
		ann, err := newAnnotator(annotatorConfig{
			TimeFormat: r.config.TimeFormat,
			Location:   r.config.Location,
			FontFile:   r.config.FontFile,
			Borders:    borders,
			LaneStride: laneHeight + laneGap,
			ChartWidth: chartWidth,
		})
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}

		if err = ann.annotate(img, trend); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	return img, nil
}

// renderLane draws one field's polyline scaled into its lane. Constant
// series render as a midline rather than degenerating to a division by
// zero.
func (r *TrendRenderer) renderLane(img *image.RGBA, lane image.Rectangle, field *FieldSeries) {
	// Lane background and baseline
	bg := color.RGBA{R: 0xf2, G: 0xf4, B: 0xf7, A: 0xff}
	draw.Draw(img, lane, &image.Uniform{C: bg}, image.Point{}, draw.Src)

	span := field.Max - field.Min
	scale := func(v float64) int {
		if span == 0 {
			return lane.Min.Y + lane.Dy()/2
		}
		norm := (v - field.Min) / span
		return lane.Max.Y - 1 - int(math.Round(norm*float64(lane.Dy()-1)))
	}

	step := float64(lane.Dx()) / float64(len(field.Values))
	prevX, prevY := -1, 0
	for i, v := range field.Values {
		x := lane.Min.X + int(float64(i)*step)
		y := scale(v)

		if prevX >= 0 {
			drawLine(img, prevX, prevY, x, y, laneColor)
		} else {
			img.Set(x, y, laneColor)
		}
		prevX, prevY = x, y
	}
}

// drawLine draws a straight segment between two points. Charts only
// ever step one column at a time, so a simple DDA is enough.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := x1 - x0
	dy := y1 - y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		img.Set(x0, y0, c)
		return
	}

	for i := 0; i <= steps; i++ {
		x := x0 + dx*i/steps
		y := y0 + dy*i/steps
		img.Set(x, y, c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
