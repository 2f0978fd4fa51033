package app

import (
	"fmt"
	"math"
	"time"

	"github.com/devitia/rover-telemetry/internal/telemetry"
)

// FieldSeries is one record field's history across a session.
type FieldSeries struct {
	Label  string
	Values []float64
	Min    float64
	Max    float64
}

// TrendData accumulates decoded cycles into per-field series. The
// record shape is fixed per session, so the first decoded cycle pins
// the number of fields; cycles with a different shape are counted and
// skipped rather than corrupting the chart.
type TrendData struct {
	Fields     []FieldSeries
	Timestamps []time.Time

	TimestampStart time.Time
	TimestampEnd   time.Time

	Skipped int
}

// NewTrendData creates an empty trend accumulator.
func NewTrendData() *TrendData {
	return &TrendData{}
}

// Update decodes one stored cycle into the series.
func (t *TrendData) Update(timestamp time.Time, record string) {
	values, err := telemetry.DecodeRecord(record)
	if err != nil {
		t.Skipped++
		return
	}

	if t.Fields == nil {
		t.Fields = make([]FieldSeries, len(values))
		for i := range t.Fields {
			t.Fields[i] = FieldSeries{
				Label: fieldLabel(i),
				Min:   math.Inf(1),
				Max:   math.Inf(-1),
			}
		}
		t.TimestampStart = timestamp
	}
	if len(values) != len(t.Fields) {
		t.Skipped++
		return
	}

	for i, v := range values {
		f := &t.Fields[i]
		f.Values = append(f.Values, v)
		f.Min = math.Min(f.Min, v)
		f.Max = math.Max(f.Max, v)
	}
	t.Timestamps = append(t.Timestamps, timestamp)
	t.TimestampEnd = timestamp
}

// Cycles returns the number of accumulated cycles.
func (t *TrendData) Cycles() int {
	return len(t.Timestamps)
}

// fieldLabel names a record position. The renderer cannot tell ranger
// fields from analog ones, so positions after the node id get neutral
// labels.
func fieldLabel(i int) string {
	if i == 0 {
		return "node"
	}
	return fmt.Sprintf("field %d", i)
}
