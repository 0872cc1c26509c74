package telemetry

import (
	"encoding/json"
	"strconv"
)

// Value is a decoded field value. It holds either a number or a text.
type Value struct {
	num    float64
	text   string
	isText bool
}

// Number wraps a numeric value.
func Number(f float64) Value {
	return Value{num: f}
}

// Text wraps a textual value.
func Text(s string) Value {
	return Value{text: s, isText: true}
}

// Float returns the numeric value. ok is false for text values.
func (v Value) Float() (float64, bool) {
	if v.isText {
		return 0, false
	}
	return v.num, true
}

// IsText reports whether the value carries text.
func (v Value) IsText() bool {
	return v.isText
}

// String renders the value the way it is shown in a grid cell.
func (v Value) String() string {
	if v.isText {
		return v.text
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.isText {
		return json.Marshal(v.text)
	}
	return json.Marshal(v.num)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = Text(s)
	return nil
}
