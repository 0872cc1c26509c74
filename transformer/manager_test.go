package transformer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddielth/signal-monitor/config"
	"github.com/eddielth/signal-monitor/telemetry"
)

var fixedNow = time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, configs map[string]config.Transformer) *Manager {
	t.Helper()
	m, err := NewManager(configs)
	require.NoError(t, err)
	m.now = func() time.Time { return fixedNow }
	return m
}

func TestTransformWithoutScriptStatus(t *testing.T) {
	m := newTestManager(t, nil)

	msg, err := m.Transform(telemetry.AGL, "AGL1", []byte(`{"id": 17, "rawData": "320\n880", "abnormal": true, "receive_date": "2024-05-17T11:00:00Z"}`))
	require.NoError(t, err)
	require.Equal(t, KindStatus, msg.Kind)
	assert.Equal(t, int64(17), msg.Status.ID)
	assert.Equal(t, "320\n880", msg.Status.RawData)
	assert.True(t, msg.Status.Abnormal)
	assert.Equal(t, telemetry.StateNormal, msg.Status.State)
	assert.Equal(t, "2024-05-17T11:00:00Z", msg.Status.ReceiveDate)
}

func TestTransformPlainPayload(t *testing.T) {
	m := newTestManager(t, nil)

	msg, err := m.Transform(telemetry.DGL, "DGL4", []byte("220\n220\n300\n300\n650\n"))
	require.NoError(t, err)
	require.Equal(t, KindStatus, msg.Kind)
	assert.Equal(t, "220\n220\n300\n300\n650\n", msg.Status.RawData)
	assert.Equal(t, fixedNow.Format(time.RFC3339Nano), msg.Status.ReceiveDate)
}

func TestTransformSample(t *testing.T) {
	m := newTestManager(t, nil)

	msg, err := m.Transform(telemetry.AGL, "AGL12", []byte(`{"deviceid": 3, "current_red": 930, "current_green": 880.5, "updated_at": 1715947200}`))
	require.NoError(t, err)
	require.Equal(t, KindSample, msg.Kind)

	s := msg.Sample
	assert.Equal(t, 3, s.DeviceID)
	require.NotNil(t, s.CurrentRed)
	assert.Equal(t, 930.0, *s.CurrentRed)
	assert.Equal(t, 880.5, *s.CurrentGreen)
	assert.Nil(t, s.VoltageRed)
	assert.Equal(t, int64(1715947200), s.UpdatedAt.Unix())
	assert.Equal(t, telemetry.AGL, s.EquipmentType)
	assert.Equal(t, "AGL12", s.EquipmentID)
}

func TestTransformRejectsUnknownShape(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.Transform(telemetry.AGL, "AGL1", []byte(`{"foo": 1}`))
	assert.Error(t, err)
	_, err = m.Transform(telemetry.AGL, "AGL1", []byte(`   `))
	assert.Error(t, err)
	_, err = m.Transform(telemetry.AGL, "AGL1", []byte(`{"rawData": `))
	assert.Error(t, err)
}

const vendorScript = `
function transform(data) {
	var doc = parseJSON(data);
	var values = splitPayload(doc.payload);
	log("vendor payload with " + values.length + " values");
	return {
		deviceid: doc.unit,
		current_red: Number(values[0]),
		current_green: Number(values[1]),
		updated_at: formatDate(doc.ts, "")
	};
}
`

func TestTransformWithScript(t *testing.T) {
	m := newTestManager(t, map[string]config.Transformer{"agl": {ScriptCode: vendorScript}})
	assert.True(t, m.Has(telemetry.AGL))
	assert.False(t, m.Has(telemetry.DGL))

	msg, err := m.Transform(telemetry.AGL, "AGL7", []byte(`{"unit": 5, "payload": "931,879", "ts": 1715947200}`))
	require.NoError(t, err)
	require.Equal(t, KindSample, msg.Kind)
	assert.Equal(t, 5, msg.Sample.DeviceID)
	assert.Equal(t, 931.0, *msg.Sample.CurrentRed)
	assert.Equal(t, 879.0, *msg.Sample.CurrentGreen)
	assert.True(t, msg.Sample.UpdatedAt.Equal(time.Unix(1715947200, 0)))
	assert.Equal(t, "AGL7", msg.Sample.EquipmentID)
}

func TestTransformScriptReturningText(t *testing.T) {
	script := `function transform(data) { return data.split(";").join("\n"); }`
	m := newTestManager(t, map[string]config.Transformer{"DGL": {ScriptCode: script}})

	msg, err := m.Transform(telemetry.DGL, "DGL1", []byte("220;220;300;300;650"))
	require.NoError(t, err)
	require.Equal(t, KindStatus, msg.Kind)
	assert.Equal(t, "220\n220\n300\n300\n650", msg.Status.RawData)
}

func TestTransformIsSafeForConcurrentUse(t *testing.T) {
	m := newTestManager(t, map[string]config.Transformer{"AGL": {ScriptCode: vendorScript}})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Transform(telemetry.AGL, "AGL1", []byte(`{"unit": 1, "payload": "930\n880", "ts": 1715947200}`))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestNewManagerErrors(t *testing.T) {
	_, err := NewManager(map[string]config.Transformer{"AGL": {}})
	assert.Error(t, err)

	_, err = NewManager(map[string]config.Transformer{"AGL": {ScriptCode: "var x = 1;"}})
	assert.Error(t, err)

	_, err = NewManager(map[string]config.Transformer{"XYZ": {ScriptCode: vendorScript}})
	assert.Error(t, err)

	_, err = NewManager(map[string]config.Transformer{"AGL": {ScriptPath: filepath.Join(t.TempDir(), "missing.js")}})
	assert.Error(t, err)
}

func TestReloadTransformer(t *testing.T) {
	m := newTestManager(t, nil)
	path := filepath.Join(t.TempDir(), "dgl.js")
	require.NoError(t, os.WriteFile(path, []byte(`function transform(data) { return "1\n2\n3\n4\n5"; }`), 0644))

	require.NoError(t, m.ReloadTransformer("dgl", config.Transformer{ScriptPath: path}))

	msg, err := m.Transform(telemetry.DGL, "DGL1", []byte("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n4\n5", msg.Status.RawData)

	assert.Error(t, m.ReloadTransformer("dgl", config.Transformer{ScriptCode: "broken("}))
	assert.True(t, m.Has(telemetry.DGL))
}
