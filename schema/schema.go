// Package schema holds the static field layout of every equipment type and
// the descriptor of every known field. The tables are built once at package
// initialisation and are only ever read afterwards.
package schema

import "github.com/eddielth/signal-monitor/telemetry"

// Rule selects the conversion the decoder applies to a raw field value.
type Rule int

const (
	// RulePassthrough keeps the raw text.
	RulePassthrough Rule = iota
	// RuleTenths divides by ten (tenths of a volt to volts).
	RuleTenths
	// RuleTemperature applies (raw - 400) / 10.
	RuleTemperature
	// RuleInteger parses a plain number without scaling.
	RuleInteger
	// RuleCurrent parses a number unless the value is an "installed,current" pair.
	RuleCurrent
	// RuleAbnormalPairs expands "id,code,id,code..." into description lines.
	RuleAbnormalPairs
	// RuleVersion divides by one hundred and renders text.
	RuleVersion
	// RuleClock extracts hour and minute from a digit string.
	RuleClock
)

// Numeric reports whether values under this rule must parse to a finite number.
func (r Rule) Numeric() bool {
	switch r {
	case RuleTenths, RuleTemperature, RuleInteger, RuleCurrent, RuleVersion:
		return true
	}
	return false
}

var ruleNames = [...]string{
	RulePassthrough:   "passthrough",
	RuleTenths:        "tenths",
	RuleTemperature:   "temperature",
	RuleInteger:       "integer",
	RuleCurrent:       "current",
	RuleAbnormalPairs: "abnormal_pairs",
	RuleVersion:       "version",
	RuleClock:         "clock",
}

func (r Rule) String() string {
	if r < 0 || int(r) >= len(ruleNames) {
		return "unknown"
	}
	return ruleNames[r]
}

// MarshalText encodes the rule by name.
func (r Rule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Formatter renders a decoded value for display. It never changes the value.
type Formatter func(v telemetry.Value) string

// FieldDescriptor describes one named telemetry field.
type FieldDescriptor struct {
	Name   string    `json:"name"`
	Label  string    `json:"label"`
	Unit   string    `json:"unit,omitempty"`
	Rule   Rule      `json:"rule"`
	Format Formatter `json:"-"`
}

var fieldsByType = map[telemetry.EquipmentType][]string{
	telemetry.AGL: {
		"voltR",
		"voltG",
		"ampR",
		"ampG",
		"ampOff",
		"dutyR",
		"dutyG",
		"outStat",
		"tempStat",
		"powerLimit",
		"dirStat",
		"modeStat",
		"commStat",
		"pubNo",
		"firmwareResetCount",
		"dispErrId",
		"dispAbnormalStat",
		"version",
		"timestamp",
	},
	telemetry.DGL: {
		"voltR",
		"voltG",
		"ampR",
		"ampG",
		"tempStat",
	},
	telemetry.VGL: {},
	telemetry.BGL: {},
	telemetry.LGL: {},
}

var descriptors = map[string]FieldDescriptor{
	"voltR":              {Label: "전압 R", Unit: "V", Rule: RuleTenths, Format: suffix("V")},
	"voltG":              {Label: "전압 G", Unit: "V", Rule: RuleTenths, Format: suffix("V")},
	"ampR":               {Label: "전류 R", Unit: "mA", Rule: RuleCurrent, Format: formatCurrent},
	"ampG":               {Label: "전류 G", Unit: "mA", Rule: RuleCurrent, Format: formatCurrent},
	"ampOff":             {Label: "전원 Off 전류", Unit: "mA", Rule: RuleCurrent, Format: formatCurrent},
	"dutyR":              {Label: "듀티비 R", Unit: "%", Rule: RuleInteger, Format: suffix("%")},
	"dutyG":              {Label: "듀티비 G", Unit: "%", Rule: RuleInteger, Format: suffix("%")},
	"outStat":            {Label: "현재 출력 상태", Rule: RuleInteger, Format: formatOutput},
	"tempStat":           {Label: "온도", Unit: "°C", Rule: RuleTemperature, Format: suffix("°C")},
	"powerLimit":         {Label: "전원(MAX)", Unit: "W", Rule: RuleInteger, Format: suffix("W")},
	"dirStat":            {Label: "방향", Rule: RuleInteger, Format: formatDirection},
	"modeStat":           {Label: "동작 모드 상태", Rule: RuleInteger, Format: formatMode},
	"commStat":           {Label: "RS485", Rule: RuleInteger, Format: formatSwitch},
	"pubNo":              {Label: "토픽", Rule: RuleInteger},
	"firmwareResetCount": {Label: "리셋", Rule: RuleInteger},
	"dispErrId":          {Label: "오류 번호", Rule: RuleInteger},
	"dispAbnormalStat":   {Label: "오류ID", Rule: RuleAbnormalPairs},
	"version":            {Label: "버전", Rule: RuleVersion},
	"timestamp":          {Label: "시간 정보", Rule: RuleClock},
}

func init() {
	for name, d := range descriptors {
		d.Name = name
		descriptors[name] = d
	}
}

// Fields returns the ordered field names of an equipment type. An empty
// result means the payload of that type is opaque.
func Fields(t telemetry.EquipmentType) []string {
	names := fieldsByType[t]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// FieldCount is len(Fields(t)) without the copy.
func FieldCount(t telemetry.EquipmentType) int {
	return len(fieldsByType[t])
}

// FieldAt returns the field name at a payload position.
func FieldAt(t telemetry.EquipmentType, idx int) (string, bool) {
	names := fieldsByType[t]
	if idx < 0 || idx >= len(names) {
		return "", false
	}
	return names[idx], true
}

// Descriptor returns the descriptor of a field. Unknown names fall back to
// the raw name as label and no conversion.
func Descriptor(name string) FieldDescriptor {
	if d, ok := descriptors[name]; ok {
		return d
	}
	return FieldDescriptor{Name: name, Label: name, Rule: RulePassthrough}
}

// Descriptors returns the descriptors of an equipment type in payload order.
func Descriptors(t telemetry.EquipmentType) []FieldDescriptor {
	names := fieldsByType[t]
	out := make([]FieldDescriptor, 0, len(names))
	for _, n := range names {
		out = append(out, Descriptor(n))
	}
	return out
}

// Format renders a value with the field's formatter, or its plain text form
// when the field has none.
func Format(name string, v telemetry.Value) string {
	d := Descriptor(name)
	if d.Format == nil {
		return v.String()
	}
	return d.Format(v)
}
