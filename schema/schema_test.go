package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddielth/signal-monitor/telemetry"
)

func TestFieldsLayout(t *testing.T) {
	agl := Fields(telemetry.AGL)
	require.Len(t, agl, 19)
	assert.Equal(t, "voltR", agl[0])
	assert.Equal(t, "dispAbnormalStat", agl[16])
	assert.Equal(t, "timestamp", agl[18])

	assert.Equal(t, []string{"voltR", "voltG", "ampR", "ampG", "tempStat"}, Fields(telemetry.DGL))

	for _, typ := range []telemetry.EquipmentType{telemetry.VGL, telemetry.BGL, telemetry.LGL} {
		assert.Empty(t, Fields(typ), typ)
		assert.Zero(t, FieldCount(typ), typ)
	}
}

func TestFieldsReturnsCopy(t *testing.T) {
	f := Fields(telemetry.DGL)
	f[0] = "mutated"
	assert.Equal(t, "voltR", Fields(telemetry.DGL)[0])
}

func TestFieldAt(t *testing.T) {
	name, ok := FieldAt(telemetry.DGL, 4)
	require.True(t, ok)
	assert.Equal(t, "tempStat", name)

	_, ok = FieldAt(telemetry.DGL, 5)
	assert.False(t, ok)
	_, ok = FieldAt(telemetry.DGL, -1)
	assert.False(t, ok)
}

func TestDescriptor(t *testing.T) {
	d := Descriptor("tempStat")
	assert.Equal(t, "tempStat", d.Name)
	assert.Equal(t, "온도", d.Label)
	assert.Equal(t, RuleTemperature, d.Rule)
	assert.True(t, d.Rule.Numeric())

	unknown := Descriptor("somethingElse")
	assert.Equal(t, "somethingElse", unknown.Label)
	assert.Equal(t, RulePassthrough, unknown.Rule)
	assert.False(t, unknown.Rule.Numeric())
}

func TestDescriptorsCoverEveryField(t *testing.T) {
	for _, typ := range telemetry.EquipmentTypes() {
		for _, d := range Descriptors(typ) {
			assert.NotEqual(t, d.Name, d.Label, "field %s has no label", d.Name)
		}
	}
}

func TestAbnormalDescription(t *testing.T) {
	assert.Equal(t, "정상", AbnormalDescription(0))
	assert.Equal(t, "과전류", AbnormalDescription(3))
	assert.Equal(t, "알 수 없음", AbnormalDescription(99))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		field string
		value telemetry.Value
		want  string
	}{
		{"voltR", telemetry.Number(32), "32V"},
		{"dutyG", telemetry.Number(45), "45%"},
		{"tempStat", telemetry.Number(2.5), "2.5°C"},
		{"powerLimit", telemetry.Number(60), "60W"},
		{"ampR", telemetry.Number(500), "500mA"},
		{"ampR", telemetry.Text("480,500"), "480mA"},
		{"outStat", telemetry.Number(3), "녹색 점멸"},
		{"outStat", telemetry.Number(9), "-"},
		{"dirStat", telemetry.Number(6), "남서"},
		{"modeStat", telemetry.Number(1), "정상 모드"},
		{"modeStat", telemetry.Number(7), "데모 모드"},
		{"modeStat", telemetry.Number(12), "테스트 모드"},
		{"commStat", telemetry.Number(1), "ON"},
		{"commStat", telemetry.Number(0), "OFF"},
		{"pubNo", telemetry.Number(12), "12"},
		{"unknown", telemetry.Text("raw"), "raw"},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.field, tt.value))
		})
	}
}

func TestFormatDoesNotChangeValue(t *testing.T) {
	v := telemetry.Number(32)
	_ = Format("voltR", v)
	f, ok := v.Float()
	require.True(t, ok)
	assert.Equal(t, 32.0, f)
}

func TestRuleNames(t *testing.T) {
	assert.Equal(t, "tenths", RuleTenths.String())
	assert.Equal(t, "abnormal_pairs", RuleAbnormalPairs.String())
	assert.Equal(t, "unknown", Rule(42).String())

	text, err := RuleClock.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "clock", string(text))
}
