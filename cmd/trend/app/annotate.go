package app

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"
)

const (
	dpi      float64 = 72
	fontSize float64 = 12
	lineGap          = 4

	defaultFontFile = "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf"

	timeLabelSpacing = 220 // pixels between time scale labels
)

type annotatorConfig struct {
	TimeFormat string
	Location   *time.Location
	FontFile   string
	Borders    BorderConfig
	LaneStride int
	ChartWidth int
}

type annotator struct {
	context *freetype.Context
	config  annotatorConfig
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	if config.FontFile == "" {
		config.FontFile = defaultFontFile
	}

	fontBytes, err := os.ReadFile(config.FontFile)
	if err != nil {
		return nil, fmt.Errorf("reading font file: %w", err)
	}

	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingFull)
	ctx.SetSrc(image.Black)

	return &annotator{context: ctx, config: config}, nil
}

func (a *annotator) annotate(img *image.RGBA, trend *TrendData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *TrendData) error
	}{
		{"drawing field labels", a.drawFieldLabels},
		{"drawing time scale", a.drawTimeScale},
		{"drawing info", a.drawInfo},
	}
	for _, op := range ops {
		if err := op.fn(img, trend); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

// drawFieldLabels writes each lane's name and value range into the
// left border.
func (a *annotator) drawFieldLabels(img *image.RGBA, trend *TrendData) error {
	for i := range trend.Fields {
		f := &trend.Fields[i]
		top := a.config.Borders.Top + i*a.config.LaneStride

		pt := freetype.Pt(3, top+int(fontSize)+2)
		if _, err := a.context.DrawString(f.Label, pt); err != nil {
			return err
		}

		span := fmt.Sprintf("%g..%g", f.Min, f.Max)
		pt = freetype.Pt(3, top+2*(int(fontSize)+lineGap))
		if _, err := a.context.DrawString(span, pt); err != nil {
			return err
		}
	}
	return nil
}

// drawTimeScale writes session timestamps under the chart area.
func (a *annotator) drawTimeScale(img *image.RGBA, trend *TrendData) error {
	count := a.config.ChartWidth / timeLabelSpacing
	if count == 0 {
		count = 1
	}

	total := trend.TimestampEnd.Sub(trend.TimestampStart)
	y := img.Bounds().Dy() - a.config.Borders.Bottom + int(fontSize) + lineGap

	for si := 0; si < count; si++ {
		px := a.config.Borders.Left + si*(a.config.ChartWidth/count)
		point := trend.TimestampStart.Add(total * time.Duration(si) / time.Duration(count))
		str := point.In(a.config.Location).Format(a.config.TimeFormat)

		// draw a guideline on the exact time
		guideTop := img.Bounds().Dy() - a.config.Borders.Bottom
		for i := 0; i < 6; i++ {
			img.Set(px, guideTop+i, image.Black)
		}

		pt := freetype.Pt(px+3, y+6)
		if _, err := a.context.DrawString(str, pt); err != nil {
			return err
		}
	}
	return nil
}

// drawInfo writes the session summary block into the bottom border.
func (a *annotator) drawInfo(img *image.RGBA, trend *TrendData) error {
	duration := trend.TimestampEnd.Sub(trend.TimestampStart).Round(time.Second)

	lines := []string{
		fmt.Sprintf("Session start: %s", trend.TimestampStart.In(a.config.Location).Format(time.DateTime)),
		fmt.Sprintf("Cycles: %s over %s (%d skipped)",
			humanize.Comma(int64(trend.Cycles())), duration, trend.Skipped),
	}

	top := img.Bounds().Dy() - a.config.Borders.Bottom + 2*(int(fontSize)+lineGap)
	for i, line := range lines {
		pt := freetype.Pt(3, top+(i+1)*(int(fontSize)+lineGap))
		if _, err := a.context.DrawString(line, pt); err != nil {
			return err
		}
	}
	return nil
}
