package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const records = `[
	{"id": 1, "rawData": "320\n880\n505\n429\n650", "state": "normal", "receive_date": "2024-05-17T09:00:00Z"},
	{"id": 2, "rawData": "320", "state": "normal", "receive_date": "2024-05-17T09:01:00Z"}
]`

func runDecode(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := decodeCmd()
	cmd.SetIn(strings.NewReader(records))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestDecodeCommandJSON(t *testing.T) {
	configPath = "testdata/missing.yaml"

	out, errOut, err := runDecode(t, "--type", "dgl")
	require.NoError(t, err)

	var got struct {
		Rows     []map[string]interface{} `json:"rows"`
		Failures []struct {
			RecordID int64 `json:"record_id"`
		} `json:"failures"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Rows, 1)
	assert.Equal(t, 32.0, got.Rows[0]["voltR"])
	require.Len(t, got.Failures, 1)
	assert.Equal(t, int64(2), got.Failures[0].RecordID)
	assert.Contains(t, errOut, "decoded 1 of 2 records, 1 skipped")
}

func TestDecodeCommandDisplay(t *testing.T) {
	configPath = "testdata/missing.yaml"

	out, _, err := runDecode(t, "--type", "DGL", "--display")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "32V")
	assert.Contains(t, lines[1], "505mA")
}

func TestDecodeCommandErrors(t *testing.T) {
	configPath = "testdata/missing.yaml"

	_, _, err := runDecode(t, "--type", "XYZ")
	assert.Error(t, err)

	_, _, err = runDecode(t)
	assert.Error(t, err)

	_, _, err = runDecode(t, "--type", "AGL", "--file", "testdata/nope.json")
	assert.Error(t, err)
}
