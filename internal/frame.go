package internal

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// SeriesKind is the native scalar kind detected for a column.
type SeriesKind int

const (
	KindUnknown SeriesKind = iota
	KindText
	KindBool
	KindInt
	KindFloat
	KindDateTime
)

func (k SeriesKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDateTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// Series is one typed column. A nil entry is a missing value. Values hold
// string, bool, int64, float64 or time.Time depending on Kind; datetimes
// parsed without an offset carry the naiveZone location.
type Series struct {
	Name   string
	Kind   SeriesKind
	Values []any
}

// Len returns the number of rows including missing values.
func (s *Series) Len() int { return len(s.Values) }

// Frame is a sheet of typed columns with equal length.
type Frame struct {
	Columns []*Series
}

// RowCount returns the number of data rows.
func (f *Frame) RowCount() int {
	if f == nil || len(f.Columns) == 0 {
		return 0
	}
	return f.Columns[0].Len()
}

// Column returns the column with the given name.
func (f *Frame) Column(name string) *Series {
	for _, c := range f.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

const errorColumnName = "error"

// NewErrorFrame builds the single cell diagnostic table that replaces a
// sheet that failed to read.
func NewErrorFrame(err error) *Frame {
	return &Frame{Columns: []*Series{{
		Name:   errorColumnName,
		Kind:   KindText,
		Values: []any{err.Error()},
	}}}
}

var naMarkers = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NULL": {}, "null": {}, "NaN": {},
	"nan": {}, "-NaN": {}, "-nan": {}, "None": {}, "#N/A": {}, "<NA>": {},
}

func isMissing(raw string) bool {
	_, ok := naMarkers[strings.TrimSpace(raw)]
	return ok
}

// dateTimeLayouts lists the zoned layout first; the rest are naive.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"1/2/06 15:04",
	"1/2/06",
	"01-02-06",
}

// naiveZone marks wall clock values whose source text had no offset.
var naiveZone = time.FixedZone("", 0)

func parseDateTime(s string) (time.Time, bool) {
	for i, layout := range dateTimeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if i == 0 {
			return t, true
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), naiveZone), true
	}
	return time.Time{}, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func parseFloat(s, decimal string) (float64, bool) {
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
		return f, true
	}
	if decimal != "" && decimal != "." && !strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s, decimal, "."), 64); err == nil && !math.IsInf(f, 0) {
			return f, true
		}
	}
	return 0, false
}

// TypeSeries detects the native kind of raw cell strings and converts them.
// The first kind that every present value satisfies wins, in the order
// bool, int, float, datetime, text.
func TypeSeries(name string, raw []string, decimal string) *Series {
	present := make([]string, 0, len(raw))
	for _, r := range raw {
		if !isMissing(r) {
			present = append(present, strings.TrimSpace(r))
		}
	}

	s := &Series{Name: name, Values: make([]any, len(raw))}
	if len(present) == 0 {
		s.Kind = KindUnknown
		return s
	}
	s.Kind = detectKind(present, decimal)

	for i, r := range raw {
		if isMissing(r) {
			continue
		}
		v := strings.TrimSpace(r)
		switch s.Kind {
		case KindBool:
			b, _ := parseBool(v)
			s.Values[i] = b
		case KindInt:
			n, _ := strconv.ParseInt(v, 10, 64)
			s.Values[i] = n
		case KindFloat:
			f, _ := parseFloat(v, decimal)
			s.Values[i] = f
		case KindDateTime:
			t, _ := parseDateTime(v)
			s.Values[i] = t
		default:
			s.Values[i] = v
		}
	}
	return s
}

func detectKind(values []string, decimal string) SeriesKind {
	all := func(pred func(string) bool) bool {
		for _, v := range values {
			if !pred(v) {
				return false
			}
		}
		return true
	}
	switch {
	case all(func(v string) bool { _, ok := parseBool(v); return ok }):
		return KindBool
	case all(func(v string) bool { _, err := strconv.ParseInt(v, 10, 64); return err == nil }):
		return KindInt
	case all(func(v string) bool { _, ok := parseFloat(v, decimal); return ok }):
		return KindFloat
	case all(func(v string) bool { _, ok := parseDateTime(v); return ok }):
		return KindDateTime
	default:
		return KindText
	}
}
