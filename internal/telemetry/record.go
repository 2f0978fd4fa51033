package telemetry

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is the fixed-shape numeric payload sent each cycle: the node
// identifier, one distance per configured ranger (first two only),
// then the analog readings in the cycle's output order. The shape is
// fixed once configuration is loaded and must not vary cycle to cycle;
// failed readings are carried as sentinels, never dropped.
type Record struct {
	NodeID    int64
	Distances []int64
	Analog    []float64
}

// Len returns the number of fields in the encoded record.
func (r *Record) Len() int {
	return 1 + len(r.Distances) + len(r.Analog)
}

// Encode renders the record as the endpoint's bracketed,
// comma-separated, whitespace-free list, e.g. [7,812,634,40,160,0,20].
// Whole-valued analog readings render without a decimal point.
func (r *Record) Encode() string {
	var sb strings.Builder
	sb.Grow(4 * r.Len())

	sb.WriteByte('[')
	sb.WriteString(strconv.FormatInt(r.NodeID, 10))
	for _, d := range r.Distances {
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatInt(d, 10))
	}
	for _, a := range r.Analog {
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(a, 'f', -1, 64))
	}
	sb.WriteByte(']')

	return sb.String()
}

// DecodeRecord parses an encoded record back into its numeric fields.
// It is the inverse of Encode for the renderer reading stored cycles.
func DecodeRecord(s string) ([]float64, error) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("record %q is not a bracketed list", s)
	}

	body := s[1 : len(s)-1]
	if body == "" {
		return nil, nil
	}

	fields := strings.Split(body, ",")
	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid record field %q: %w", field, err)
		}
		values[i] = v
	}
	return values, nil
}
