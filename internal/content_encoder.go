package internal

import (
	"math"
	"time"

	"github.com/lychee-technology/lowcoder"
)

// EncodeRows snapshots a frame as JSON ready rows keyed by column name.
// Naive datetimes are read as wall clock time in loc, zoned ones keep their
// instant; both are written as UTC ISO-8601. NaN and infinities become null.
func EncodeRows(frame *Frame, loc *time.Location) []lowcoder.Row {
	if loc == nil {
		loc = time.UTC
	}
	n := frame.RowCount()
	rows := make([]lowcoder.Row, n)
	for i := range n {
		row := make(lowcoder.Row, len(frame.Columns))
		for _, col := range frame.Columns {
			row[col.Name] = encodeCell(col.Values[i], loc)
		}
		rows[i] = row
	}
	return rows
}

func encodeCell(v any, loc *time.Location) any {
	switch x := v.(type) {
	case time.Time:
		if x.Location() == naiveZone {
			x = time.Date(x.Year(), x.Month(), x.Day(), x.Hour(), x.Minute(), x.Second(), x.Nanosecond(), loc)
		}
		return x.UTC().Format(time.RFC3339Nano)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	default:
		return v
	}
}
