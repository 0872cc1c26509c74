package telemetry

import (
	"bytes"
	"encoding/json"
	"time"
)

// State is the coarse state tag the backend attaches to a record.
type State string

const (
	StateNormal   State = "normal"
	StateAbnormal State = "abnormal"
	StateFault    State = "fault"
)

// RawTelemetryRecord is one device transmission as delivered by the backend
// API. RawData holds the positional field values.
type RawTelemetryRecord struct {
	ID          int64  `json:"id"`
	RawData     string `json:"rawData"`
	State       State  `json:"state"`
	Abnormal    bool   `json:"abnormal"`
	ReceiveDate string `json:"receive_date"`
}

// Field is a named decoded value.
type Field struct {
	Name  string
	Value Value
}

// DecodedStatusRow is the typed form of a RawTelemetryRecord. A row is never
// modified after construction; accessors hand out copies.
type DecodedStatusRow struct {
	id         int64
	typ        EquipmentType
	state      State
	abnormal   bool
	receivedAt time.Time
	fields     []Field
	index      map[string]int
}

// NewDecodedStatusRow builds a row from already converted fields.
func NewDecodedStatusRow(rec RawTelemetryRecord, typ EquipmentType, receivedAt time.Time, fields []Field) DecodedStatusRow {
	row := DecodedStatusRow{
		id:         rec.ID,
		typ:        typ,
		state:      rec.State,
		abnormal:   rec.Abnormal,
		receivedAt: receivedAt,
		fields:     make([]Field, len(fields)),
		index:      make(map[string]int, len(fields)),
	}
	copy(row.fields, fields)
	for i, f := range fields {
		row.index[f.Name] = i
	}
	return row
}

func (r DecodedStatusRow) ID() int64 { return r.id }
func (r DecodedStatusRow) Type() EquipmentType { return r.typ }
func (r DecodedStatusRow) State() State { return r.state }
func (r DecodedStatusRow) Abnormal() bool { return r.abnormal }
func (r DecodedStatusRow) ReceivedAt() time.Time { return r.receivedAt }
func (r DecodedStatusRow) Len() int { return len(r.fields) }

// Fields returns the decoded fields in schema order.
func (r DecodedStatusRow) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Get looks a field up by name.
func (r DecodedStatusRow) Get(name string) (Value, bool) {
	i, ok := r.index[name]
	if !ok {
		return Value{}, false
	}
	return r.fields[i].Value, true
}

// Number returns a field as a float. ok is false when the field is missing
// or holds text.
func (r DecodedStatusRow) Number(name string) (float64, bool) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}
	return v.Float()
}

// MarshalJSON flattens the row into the column layout the dashboard grids use.
func (r DecodedStatusRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, v interface{}) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	head := []struct {
		key string
		val interface{}
	}{
		{"id", r.id},
		{"equipment_type", r.typ},
		{"state", r.state},
		{"abnormal", r.abnormal},
		{"receive_date", r.receivedAt},
	}
	for _, h := range head {
		if err := write(h.key, h.val); err != nil {
			return nil, err
		}
	}
	for _, f := range r.fields {
		if err := write(f.Name, f.Value); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
