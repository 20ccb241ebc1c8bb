package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"banalert/internal/model"
)

// isoLayouts are tried in order after the input has been rewritten to use
// 'T' and an explicit offset. Layouts without an offset parse as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e12

// Timestamp renders an arbitrary timestamp value as an RFC 3339 UTC string
// for display. It never fails: inputs that cannot be interpreted come back
// as text, and absent values become the absent marker.
func Timestamp(v any) string {
	switch t := v.(type) {
	case nil:
		return model.AbsentMarker
	case string:
		return fromString(t)
	case time.Time:
		return Format(t)
	case []any:
		return fromComponents(t)
	case map[string]any:
		return fromMapping(t)
	case bool:
		return strconv.FormatBool(t)
	}
	if f, ok := toFloat(v); ok {
		return fromEpoch(f, v)
	}
	return fmt.Sprint(v)
}

// Format is the single output format for normalized timestamps.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fromString(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.AbsentMarker
	}
	if t, ok := ParseISO(s); ok {
		return Format(t)
	}
	return raw
}

// ParseISO parses an ISO-8601 string, accepting a space instead of 'T' and a
// trailing 'Z' for UTC.
func ParseISO(s string) (time.Time, bool) {
	s = strings.Replace(strings.TrimSpace(s), " ", "T", 1)
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "+00:00"
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func fromEpoch(f float64, orig any) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return textOf(orig)
	}
	var micros float64
	if math.Abs(f) > epochMillisThreshold {
		micros = math.Round(f * 1e3)
	} else {
		micros = math.Round(f * 1e6)
	}
	if math.Abs(micros) > 3e17 {
		return textOf(orig)
	}
	t := time.UnixMicro(int64(micros)).UTC()
	if !displayableYear(t.Year()) {
		return textOf(orig)
	}
	return Format(t)
}

func fromComponents(parts []any) string {
	if len(parts) < 3 {
		return compactJSON(parts)
	}
	if len(parts) > 7 {
		parts = parts[:7]
	}
	var c [7]int
	for i, p := range parts {
		n, ok := toInt(p)
		if !ok {
			return compactJSON(parts)
		}
		c[i] = n
	}
	t, ok := buildTime(c)
	if !ok {
		return compactJSON(parts)
	}
	return Format(t)
}

var mappingKeys = [7]string{"year", "month", "day", "hour", "minute", "second", "nano"}

func fromMapping(m map[string]any) string {
	var c [7]int
	for i, key := range mappingKeys {
		v, present := m[key]
		if !present || v == nil {
			if i < 3 {
				return compactJSON(m)
			}
			continue
		}
		n, ok := toInt(v)
		if !ok {
			return compactJSON(m)
		}
		c[i] = n
	}
	t, ok := buildTime(c)
	if !ok {
		return compactJSON(m)
	}
	return Format(t)
}

// buildTime takes (year, month, day, hour, minute, second, nanos) and keeps
// microsecond precision. Out-of-range components are rejected instead of
// being carried into the next unit.
func buildTime(c [7]int) (time.Time, bool) {
	year, month, day, hour, minute, second, nanos := c[0], c[1], c[2], c[3], c[4], c[5], c[6]
	if !displayableYear(year) || month < 1 || month > 12 {
		return time.Time{}, false
	}
	if day < 1 || day > daysIn(year, time.Month(month)) {
		return time.Time{}, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, false
	}
	if nanos < 0 || nanos > 999_999_999 {
		return time.Time{}, false
	}
	micros := nanos / 1000
	return time.Date(year, time.Month(month), day, hour, minute, second, micros*1000, time.UTC), true
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func displayableYear(y int) bool {
	return y >= 1 && y <= 9999
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// toInt accepts integral numbers only.
func toInt(v any) (int, bool) {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func textOf(v any) string {
	switch n := v.(type) {
	case json.Number:
		return n.String()
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}
