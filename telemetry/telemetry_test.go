package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEquipmentType(t *testing.T) {
	got, err := ParseEquipmentType(" dgl ")
	require.NoError(t, err)
	assert.Equal(t, DGL, got)

	_, err = ParseEquipmentType("XYZ")
	assert.Error(t, err)

	assert.Len(t, EquipmentTypes(), 5)
}

func TestParseEquipmentID(t *testing.T) {
	typ, num, err := ParseEquipmentID("agl123")
	require.NoError(t, err)
	assert.Equal(t, AGL, typ)
	assert.Equal(t, "123", num)

	for _, bad := range []string{"", "AGL", "123", "XYZ1", "AGL1a"} {
		_, _, err := ParseEquipmentID(bad)
		assert.Error(t, err, bad)
	}
}

func TestValueJSON(t *testing.T) {
	data, err := json.Marshal([]Value{Number(32), Text("3,200")})
	require.NoError(t, err)
	assert.JSONEq(t, `[32, "3,200"]`, string(data))

	var back []Value
	require.NoError(t, json.Unmarshal(data, &back))
	f, ok := back[0].Float()
	assert.True(t, ok)
	assert.Equal(t, 32.0, f)
	assert.True(t, back[1].IsText())
	assert.Equal(t, "3,200", back[1].String())
}

func TestDecodedStatusRowIsImmutable(t *testing.T) {
	at := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	fields := []Field{{Name: "voltR", Value: Number(32)}, {Name: "ampR", Value: Text("1,505")}}
	row := NewDecodedStatusRow(RawTelemetryRecord{ID: 7, State: StateNormal}, DGL, at, fields)

	fields[0].Value = Number(0)
	got := row.Fields()
	got[0].Value = Number(1)

	v, ok := row.Number("voltR")
	assert.True(t, ok)
	assert.Equal(t, 32.0, v)

	_, ok = row.Number("ampR")
	assert.False(t, ok)
	_, ok = row.Get("missing")
	assert.False(t, ok)
}

func TestDecodedStatusRowJSON(t *testing.T) {
	at := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	row := NewDecodedStatusRow(RawTelemetryRecord{ID: 7, State: StateNormal}, DGL, at,
		[]Field{{Name: "voltR", Value: Number(32)}})

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 7,
		"equipment_type": "DGL",
		"state": "normal",
		"abnormal": false,
		"receive_date": "2024-05-17T09:00:00Z",
		"voltR": 32
	}`, string(data))
}
