package decoder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddielth/signal-monitor/telemetry"
)

// aglValues is one complete AGL transmission in payload order.
var aglValues = []string{
	"320", "880", "500", "420", "15", "70", "65", "2", "650", "60",
	"4", "1", "1", "12", "3", "0", "7", "152", "20240517",
}

func aglRecord(id int64, receiveDate string) telemetry.RawTelemetryRecord {
	return telemetry.RawTelemetryRecord{
		ID:          id,
		RawData:     strings.Join(aglValues, "\n"),
		State:       telemetry.StateNormal,
		ReceiveDate: receiveDate,
	}
}

func TestDecodeAGL(t *testing.T) {
	d := NewDecoder(Options{})
	row, err := d.Decode(telemetry.AGL, aglRecord(7, "2024-05-17T14:30:00Z"))
	require.NoError(t, err)

	assert.Equal(t, int64(7), row.ID())
	assert.Equal(t, telemetry.AGL, row.Type())
	assert.Equal(t, telemetry.StateNormal, row.State())
	assert.Equal(t, time.Date(2024, 5, 17, 14, 30, 0, 0, time.UTC), row.ReceivedAt().UTC())
	assert.Equal(t, 19, row.Len())

	num := func(name string) float64 {
		f, ok := row.Number(name)
		require.True(t, ok, name)
		return f
	}
	assert.Equal(t, 32.0, num("voltR"))
	assert.Equal(t, 88.0, num("voltG"))
	assert.Equal(t, 500.0, num("ampR"))
	assert.Equal(t, 25.0, num("tempStat"))
	assert.Equal(t, 60.0, num("powerLimit"))
	assert.Equal(t, 12.0, num("pubNo"))

	version, _ := row.Get("version")
	assert.Equal(t, "1.52", version.String())
	assert.True(t, version.IsText())

	ts, _ := row.Get("timestamp")
	assert.Equal(t, "05시 17분", ts.String())

	abnormal, _ := row.Get("dispAbnormalStat")
	assert.Equal(t, "7 = 알 수 없음\n", abnormal.String())
}

func TestDecodeCompactPayload(t *testing.T) {
	d := NewDecoder(Options{})
	rec := aglRecord(1, "2024-05-17 14:30:00")
	rec.RawData = strings.Join(aglValues, ",")

	row, err := d.Decode(telemetry.AGL, rec)
	require.NoError(t, err)

	voltR, _ := row.Number("voltR")
	voltG, _ := row.Number("voltG")
	assert.Equal(t, 32.0, voltR)
	assert.Equal(t, 88.0, voltG)
}

func TestDecodeScaling(t *testing.T) {
	d := NewDecoder(Options{})
	for v := -50; v <= 1200; v += 37 {
		rec := telemetry.RawTelemetryRecord{
			ID:          int64(v),
			RawData:     fmt.Sprintf("%d\n0\n0\n0\n%d", v, v),
			ReceiveDate: "2024-05-17",
		}
		row, err := d.Decode(telemetry.DGL, rec)
		require.NoError(t, err)

		voltR, _ := row.Number("voltR")
		temp, _ := row.Number("tempStat")
		assert.Equal(t, float64(v)/10, voltR)
		assert.Equal(t, (float64(v)-400)/10, temp)
	}
}

func TestDecodeIsIdempotent(t *testing.T) {
	d := NewDecoder(Options{})
	rec := aglRecord(3, "2024-05-17T14:30:00+09:00")

	a, err := d.Decode(telemetry.AGL, rec)
	require.NoError(t, err)
	b, err := d.Decode(telemetry.AGL, rec)
	require.NoError(t, err)

	assert.Equal(t, a.Fields(), b.Fields())
	assert.True(t, a.ReceivedAt().Equal(b.ReceivedAt()))
}

func TestDecodeCompositeCurrent(t *testing.T) {
	d := NewDecoder(Options{})
	rec := telemetry.RawTelemetryRecord{ID: 1, RawData: "220\n220\n480,500\n300\n650", ReceiveDate: "2024-05-17"}

	row, err := d.Decode(telemetry.DGL, rec)
	require.NoError(t, err)

	amp, _ := row.Get("ampR")
	assert.True(t, amp.IsText())
	assert.Equal(t, "480,500", amp.String())
	_, ok := row.Number("ampR")
	assert.False(t, ok)
}

func TestDecodeAbnormalPairs(t *testing.T) {
	values := append([]string(nil), aglValues...)
	values[16] = "11,1,12,3"
	rec := telemetry.RawTelemetryRecord{ID: 1, RawData: strings.Join(values, "\n"), ReceiveDate: "2024-05-17"}

	row, err := NewDecoder(Options{}).Decode(telemetry.AGL, rec)
	require.NoError(t, err)

	v, _ := row.Get("dispAbnormalStat")
	assert.Equal(t, "11 = 단선\n12 = 과전류\n", v.String())
}

func TestDecodeFieldCountMismatch(t *testing.T) {
	rec := telemetry.RawTelemetryRecord{ID: 42, RawData: "220\n220\n300", ReceiveDate: "2024-05-17"}

	_, err := NewDecoder(Options{}).Decode(telemetry.DGL, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFieldCountMismatch))

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, int64(42), de.RecordID)
	assert.Equal(t, 5, de.Expected)
	assert.Equal(t, 3, de.Got)
}

func TestDecodeFieldConversion(t *testing.T) {
	rec := telemetry.RawTelemetryRecord{ID: 9, RawData: "220\nabc\n300\n300\n650", ReceiveDate: "2024-05-17"}

	_, err := NewDecoder(Options{}).Decode(telemetry.DGL, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFieldConversion))

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "voltG", de.Field)
	assert.Equal(t, "abc", de.Value)
	assert.Contains(t, err.Error(), "voltG")
}

func TestDecodeRejectsNonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "Inf", "", " "} {
		rec := telemetry.RawTelemetryRecord{ID: 1, RawData: raw + "\n220\n300\n300\n650", ReceiveDate: "2024-05-17"}
		_, err := NewDecoder(Options{}).Decode(telemetry.DGL, rec)
		assert.ErrorIs(t, err, ErrFieldConversion, "raw %q", raw)
	}
}

func TestDecodeInvalidTimestamp(t *testing.T) {
	rec := telemetry.RawTelemetryRecord{ID: 1, RawData: "220\n220\n300\n300\n650", ReceiveDate: "yesterday"}

	_, err := NewDecoder(Options{}).Decode(telemetry.DGL, rec)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestDecodeTimestampLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	d := NewDecoder(Options{Location: seoul})
	rec := telemetry.RawTelemetryRecord{ID: 1, RawData: "220\n220\n300\n300\n650", ReceiveDate: "2024-05-17 09:00:00"}

	row, err := d.Decode(telemetry.DGL, rec)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), row.ReceivedAt().UTC())

	rec.ReceiveDate = "1715904000"
	row, err = d.Decode(telemetry.DGL, rec)
	require.NoError(t, err)
	assert.Equal(t, int64(1715904000), row.ReceivedAt().Unix())
}

func TestParseTimestampCompactDates(t *testing.T) {
	got, ok := ParseTimestamp("20240517", time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), got)

	got, ok = ParseTimestamp("20240517093015", time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 17, 9, 30, 15, 0, time.UTC), got)

	got, ok = ParseTimestamp("1715904000", time.UTC)
	require.True(t, ok)
	assert.Equal(t, int64(1715904000), got.Unix())

	for _, bad := range []string{"20241399", "1234", "12345678", "-1715904000", "123456789012345678"} {
		_, ok := ParseTimestamp(bad, time.UTC)
		assert.False(t, ok, bad)
	}

	rec := telemetry.RawTelemetryRecord{ID: 1, RawData: "220\n220\n300\n300\n650", ReceiveDate: "20241399"}
	_, err := NewDecoder(Options{}).Decode(telemetry.DGL, rec)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestDecodeOpaqueType(t *testing.T) {
	rec := telemetry.RawTelemetryRecord{ID: 5, RawData: "anything", State: telemetry.StateFault, Abnormal: true, ReceiveDate: "2024-05-17"}

	row, err := NewDecoder(Options{}).Decode(telemetry.VGL, rec)
	require.NoError(t, err)
	assert.Equal(t, int64(5), row.ID())
	assert.Equal(t, telemetry.StateFault, row.State())
	assert.True(t, row.Abnormal())
	assert.Zero(t, row.Len())

	_, err = NewDecoder(Options{Strict: true}).Decode(telemetry.VGL, rec)
	assert.ErrorIs(t, err, ErrUnsupportedEquipmentType)
}

func TestDecodeUnknownType(t *testing.T) {
	rec := telemetry.RawTelemetryRecord{ID: 5, ReceiveDate: "2024-05-17"}
	_, err := NewDecoder(Options{}).Decode("XYZ", rec)
	assert.ErrorIs(t, err, ErrUnsupportedEquipmentType)
}

func TestSplitPayload(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, SplitPayload("1\r\n2\r\n3\r\n"))
	assert.Equal(t, []string{"1", "2,3"}, SplitPayload("1\n2,3"))
	assert.Equal(t, []string{"1", "2", "3"}, SplitPayload("1,2,3"))
	assert.Nil(t, SplitPayload(""))
}

func TestDecodeBatchKeepsOrderAndIsolatesFailures(t *testing.T) {
	d := NewDecoder(Options{Workers: 4})

	var recs []telemetry.RawTelemetryRecord
	for i := 0; i < 50; i++ {
		rec := telemetry.RawTelemetryRecord{
			ID:          int64(i),
			RawData:     fmt.Sprintf("%d\n220\n300\n300\n650", 200+i),
			ReceiveDate: "2024-05-17",
		}
		if i%10 == 3 {
			rec.RawData = "broken"
		}
		recs = append(recs, rec)
	}

	res := d.DecodeBatch(telemetry.DGL, recs)
	require.Len(t, res.Rows, 45)
	require.Equal(t, 5, res.Skipped())

	prev := int64(-1)
	for _, row := range res.Rows {
		assert.Greater(t, row.ID(), prev)
		prev = row.ID()
	}
	for _, f := range res.Failures {
		assert.Equal(t, int64(f.Index), f.RecordID)
		assert.ErrorIs(t, f.Err, ErrFieldCountMismatch)
		assert.True(t, IsDecodeError(f.Err))
	}
}

func TestDecodeBatchEmpty(t *testing.T) {
	res := NewDecoder(Options{}).DecodeBatch(telemetry.AGL, nil)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Failures)
}

func TestDecodeBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDecoder(Options{}).DecodeBatchContext(ctx, telemetry.AGL, []telemetry.RawTelemetryRecord{aglRecord(1, "2024-05-17")})
	assert.ErrorIs(t, err, context.Canceled)
}
