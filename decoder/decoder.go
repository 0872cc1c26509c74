// Package decoder turns raw telemetry records into typed status rows using
// the field layouts of the schema package.
package decoder

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/eddielth/signal-monitor/schema"
	"github.com/eddielth/signal-monitor/telemetry"
)

// Options tune a Decoder.
type Options struct {
	// Location is used for receipt dates that carry no zone. Defaults to UTC.
	Location *time.Location
	// Strict makes types without a field layout fail instead of producing an
	// identifier-only row.
	Strict bool
	// Workers bounds DecodeBatch parallelism. Zero or less means one worker
	// per CPU.
	Workers int
}

// Decoder is safe for concurrent use. It holds no state besides its options.
type Decoder struct {
	opts Options
}

// NewDecoder creates a decoder.
func NewDecoder(opts Options) *Decoder {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Decoder{opts: opts}
}

// Unix seconds between 1973 and 5138.
const (
	minUnixDigits = 9
	maxUnixDigits = 11
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02",
	"20060102150405",
	"200601021504",
	"20060102",
}

// ParseTimestamp parses a receipt date. Zone-less layouts are read in loc.
// Compact yyyymmdd[hhmm[ss]] dates are tried first; any other all-digit value
// of 9 to 11 digits is taken as unix seconds.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if len(s) < minUnixDigits || len(s) > maxUnixDigits {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseUint(s, 10, 64); err == nil {
		return time.Unix(int64(secs), 0).In(loc), true
	}
	return time.Time{}, false
}

// SplitPayload breaks a raw payload into positional values. Values are
// newline separated; a payload without any newline is read as the compact
// comma separated form.
func SplitPayload(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r", "")
	raw = strings.TrimRight(raw, "\n")
	if raw == "" {
		return nil
	}
	if strings.Contains(raw, "\n") {
		return strings.Split(raw, "\n")
	}
	return strings.Split(raw, ",")
}

// Decode converts one record. The returned error is always a *DecodeError.
func (d *Decoder) Decode(t telemetry.EquipmentType, rec telemetry.RawTelemetryRecord) (telemetry.DecodedStatusRow, error) {
	fail := func(err error) *DecodeError {
		return &DecodeError{RecordID: rec.ID, Type: t, Err: err}
	}

	known, err := telemetry.ParseEquipmentType(string(t))
	if err != nil {
		e := fail(ErrUnsupportedEquipmentType)
		e.Value = string(t)
		return telemetry.DecodedStatusRow{}, e
	}
	t = known

	receivedAt, ok := ParseTimestamp(rec.ReceiveDate, d.opts.Location)
	if !ok {
		e := fail(ErrInvalidTimestamp)
		e.Value = rec.ReceiveDate
		return telemetry.DecodedStatusRow{}, e
	}

	count := schema.FieldCount(t)
	if count == 0 {
		if d.opts.Strict {
			return telemetry.DecodedStatusRow{}, fail(ErrUnsupportedEquipmentType)
		}
		return telemetry.NewDecodedStatusRow(rec, t, receivedAt, nil), nil
	}

	values := SplitPayload(rec.RawData)
	if len(values) != count {
		e := fail(ErrFieldCountMismatch)
		e.Expected, e.Got = count, len(values)
		return telemetry.DecodedStatusRow{}, e
	}

	fields := make([]telemetry.Field, 0, count)
	for idx, raw := range values {
		name, _ := schema.FieldAt(t, idx)
		v, ok := convert(schema.Descriptor(name).Rule, raw)
		if !ok {
			e := fail(ErrFieldConversion)
			e.Field, e.Value = name, raw
			return telemetry.DecodedStatusRow{}, e
		}
		fields = append(fields, telemetry.Field{Name: name, Value: v})
	}

	return telemetry.NewDecodedStatusRow(rec, t, receivedAt, fields), nil
}

func convert(rule schema.Rule, raw string) (telemetry.Value, bool) {
	switch rule {
	case schema.RuleTenths:
		f, ok := parseNumber(raw)
		return telemetry.Number(f / 10), ok
	case schema.RuleTemperature:
		f, ok := parseNumber(raw)
		return telemetry.Number((f - 400) / 10), ok
	case schema.RuleInteger:
		f, ok := parseNumber(raw)
		return telemetry.Number(f), ok
	case schema.RuleCurrent:
		if strings.Contains(raw, ",") {
			return telemetry.Text(raw), true
		}
		f, ok := parseNumber(raw)
		return telemetry.Number(f), ok
	case schema.RuleVersion:
		f, ok := parseNumber(raw)
		return telemetry.Text(strconv.FormatFloat(f/100, 'f', -1, 64)), ok
	case schema.RuleAbnormalPairs:
		return telemetry.Text(abnormalLines(raw)), true
	case schema.RuleClock:
		return telemetry.Text(clock(raw)), true
	default:
		return telemetry.Text(raw), true
	}
}

func parseNumber(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// abnormalLines renders "id,code,id,code" as one "id = description" line per
// pair.
func abnormalLines(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, ",")
	var b strings.Builder
	for i := 0; i < len(parts); i += 2 {
		desc := schema.AbnormalDescription(-1)
		if i+1 < len(parts) {
			if code, err := strconv.Atoi(strings.TrimSpace(parts[i+1])); err == nil {
				desc = schema.AbnormalDescription(code)
			}
		}
		b.WriteString(strings.TrimSpace(parts[i]))
		b.WriteString(" = ")
		b.WriteString(desc)
		b.WriteByte('\n')
	}
	return b.String()
}

func clock(raw string) string {
	return slice(raw, 4, 6) + "시 " + slice(raw, 6, 8) + "분"
}

func slice(s string, from, to int) string {
	if from >= len(s) {
		return ""
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}
