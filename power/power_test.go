package power

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddielth/signal-monitor/decoder"
	"github.com/eddielth/signal-monitor/telemetry"
)

func statusRow(t *testing.T, voltR, voltG, ampR, ampG string, at time.Time) telemetry.DecodedStatusRow {
	t.Helper()
	rec := telemetry.RawTelemetryRecord{
		ID:          at.Unix(),
		RawData:     strings.Join([]string{voltR, voltG, ampR, ampG, "650"}, "\n"),
		ReceiveDate: at.Format(time.RFC3339),
	}
	row, err := decoder.NewDecoder(decoder.Options{}).Decode(telemetry.DGL, rec)
	require.NoError(t, err)
	return row
}

func TestStatusWattage(t *testing.T) {
	row := statusRow(t, "320", "880", "505", "429", time.Now())

	red, ok := StatusWattage(row, Red)
	require.True(t, ok)
	assert.InDelta(t, 32*0.50, red, 1e-9)

	green, ok := StatusWattage(row, Green)
	require.True(t, ok)
	assert.InDelta(t, 88*0.42, green, 1e-9)
}

func TestStatusWattageSkipsCompositeCurrent(t *testing.T) {
	row := statusRow(t, "320", "880", "480,500", "429", time.Now())

	_, ok := StatusWattage(row, Red)
	assert.False(t, ok)
	_, ok = StatusWattage(row, Green)
	assert.True(t, ok)
}

func TestDisplayWattage(t *testing.T) {
	s := telemetry.DeviceSample{
		VoltageRed:   telemetry.Float(220),
		CurrentRed:   telemetry.Float(930),
		VoltageGreen: telemetry.Float(220),
	}

	red, ok := DisplayWattage(s, Red)
	require.True(t, ok)
	assert.InDelta(t, 204.6, red, 1e-9)

	_, ok = DisplayWattage(s, Green)
	assert.False(t, ok)
}

func TestCalculateEmpty(t *testing.T) {
	st := Calculate(nil, 3)
	assert.Equal(t, ChannelStats{}, st.Red)
	assert.Equal(t, ChannelStats{}, st.Green)
}

func TestCalculateAggregates(t *testing.T) {
	samples := []Sample{
		{Red: 10, HasRed: true, Green: 1, HasGreen: true},
		{Red: 20, HasRed: true},
		{Red: 33.333, HasRed: true, Green: 3, HasGreen: true},
	}

	st := Calculate(samples, 1)
	assert.InDelta(t, 21.11, st.Red.Avg, 1e-9)
	assert.Equal(t, 10.0, st.Red.Min)
	assert.InDelta(t, 33.33, st.Red.Max, 1e-9)
	assert.Equal(t, 3, st.Red.Count)
	assert.Zero(t, st.Red.PerUnitAvg)

	assert.Equal(t, 2.0, st.Green.Avg)
	assert.Equal(t, 2, st.Green.Count)
}

func TestCalculatePerUnit(t *testing.T) {
	samples := []Sample{{Red: 30, HasRed: true}, {Red: 60, HasRed: true}}

	st := Calculate(samples, 4)
	assert.Equal(t, 45.0, st.Red.Avg)
	assert.InDelta(t, 11.25, st.Red.PerUnitAvg, 1e-9)
	assert.Equal(t, 4, st.Units)
	assert.Equal(t, st.Red, st.Channel(Red))
	assert.Zero(t, st.Channel(Green).Count)
}

func TestCalculateIsReproducible(t *testing.T) {
	samples := []Sample{{Red: 1.005, HasRed: true}, {Red: 2.115, HasRed: true}, {Red: 0.1, HasRed: true}}
	a := Calculate(samples, 2)
	b := Calculate(samples, 2)
	assert.Equal(t, a, b)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.24, Round(1.235000001))
	assert.Equal(t, 2.5, Round(2.499999))
	assert.Equal(t, 0.0, Round(0))
}

func TestWindow(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	now := time.Date(2024, 5, 17, 15, 0, 0, 0, kst)

	today := Today(now)
	assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 0, 0, kst), today.From)
	assert.True(t, today.Contains(today.From))
	assert.True(t, today.Contains(now))
	assert.False(t, today.Contains(now.Add(time.Second)))

	month := LastDays(now, 30)
	assert.Equal(t, time.Date(2024, 4, 17, 0, 0, 0, 0, kst), month.From)
	assert.True(t, month.Contains(time.Date(2024, 4, 17, 0, 0, 0, 0, kst)))
	assert.True(t, month.Contains(time.Date(2024, 4, 17, 9, 0, 0, 0, kst)))
	assert.False(t, month.Contains(month.From.Add(-time.Nanosecond)))
	assert.Equal(t, now, month.To)

	day := Day(now)
	assert.True(t, day.Contains(time.Date(2024, 5, 17, 23, 59, 59, 0, kst)))
	assert.False(t, day.Contains(time.Date(2024, 5, 18, 0, 0, 0, 0, kst)))

	assert.True(t, Window{}.Contains(now))
}

func TestFromDeviceSamplesFiltersWindow(t *testing.T) {
	now := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)
	samples := []telemetry.DeviceSample{
		{UpdatedAt: now.Add(-2 * time.Hour), VoltageRed: telemetry.Float(220), CurrentRed: telemetry.Float(1000)},
		{UpdatedAt: now.Add(-48 * time.Hour), VoltageRed: telemetry.Float(220), CurrentRed: telemetry.Float(1000)},
	}

	out := FromDeviceSamples(samples, LastDays(now, 1))
	require.Len(t, out, 1)
	assert.True(t, out[0].HasRed)
	assert.Equal(t, 220.0, out[0].Red)
	assert.False(t, out[0].HasGreen)
}

// A day of hourly AGL-style rows yields non-zero statistics over 24h.
func TestDecodedRowsOverDay(t *testing.T) {
	now := time.Date(2024, 5, 17, 23, 0, 0, 0, time.UTC)

	var rows []telemetry.DecodedStatusRow
	for i := 0; i < 24; i++ {
		at := now.Add(-time.Duration(23-i) * time.Hour)
		rows = append(rows, statusRow(t, "320", "880", fmt.Sprint(500+10*i), "420", at))
	}

	samples := FromStatusRows(rows, LastDays(now, 1))
	require.Len(t, samples, 24)

	st := Calculate(samples, 1)
	assert.InDelta(t, 19.68, st.Red.Avg, 1e-9)
	assert.InDelta(t, 16.0, st.Red.Min, 1e-9)
	assert.InDelta(t, 23.36, st.Red.Max, 1e-9)
	assert.InDelta(t, 36.96, st.Green.Avg, 1e-9)
	assert.Equal(t, st.Green.Min, st.Green.Max)
}
