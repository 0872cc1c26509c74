package transformer

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/telemetry"
)

// Kind tells which of the two ingest shapes a message carries.
type Kind string

const (
	KindStatus Kind = "status"
	KindSample Kind = "sample"
)

// Message is a normalised device payload: either a raw status record to be
// decoded, or an mqtt_db style per-device sample.
type Message struct {
	Kind   Kind
	Status *telemetry.RawTelemetryRecord
	Sample *telemetry.DeviceSample
}

// normalize reads a JSON document (or plain positional text) into a Message.
// Missing equipment fields are taken from the topic.
func normalize(data []byte, t telemetry.EquipmentType, equipmentID string, now time.Time) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Message{}, errors.New("empty payload")
	}

	if trimmed[0] != '{' {
		// bare positional payload as sent by the field units
		return Message{
			Kind: KindStatus,
			Status: &telemetry.RawTelemetryRecord{
				RawData:     string(data),
				State:       telemetry.StateNormal,
				ReceiveDate: now.Format(time.RFC3339Nano),
			},
		}, nil
	}

	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Message{}, errors.Wrap(err, "parse payload")
	}

	switch {
	case has(doc, "rawData"):
		return statusMessage(doc, now)
	case has(doc, "deviceid"):
		return sampleMessage(doc, t, equipmentID, now)
	default:
		return Message{}, errors.New("payload has neither rawData nor deviceid")
	}
}

func has(doc map[string]interface{}, key string) bool {
	_, ok := doc[key]
	return ok
}

func statusMessage(doc map[string]interface{}, now time.Time) (Message, error) {
	if v, ok := doc["receive_date"]; !ok || v == nil || v == "" {
		doc["receive_date"] = now.Format(time.RFC3339Nano)
	} else if n, ok := v.(json.Number); ok {
		doc["receive_date"] = n.String()
	}
	if v, ok := doc["state"]; !ok || v == nil || v == "" {
		doc["state"] = string(telemetry.StateNormal)
	}

	var rec telemetry.RawTelemetryRecord
	if err := remarshal(doc, &rec); err != nil {
		return Message{}, errors.Wrap(err, "read status record")
	}
	return Message{Kind: KindStatus, Status: &rec}, nil
}

func sampleMessage(doc map[string]interface{}, t telemetry.EquipmentType, equipmentID string, now time.Time) (Message, error) {
	switch v := doc["updated_at"].(type) {
	case nil:
		doc["updated_at"] = now.Format(time.RFC3339Nano)
	case json.Number:
		secs, err := v.Int64()
		if err != nil {
			return Message{}, errors.Wrapf(err, "updated_at %s", v)
		}
		doc["updated_at"] = time.Unix(secs, 0).UTC().Format(time.RFC3339Nano)
	case string:
		if strings.TrimSpace(v) == "" {
			doc["updated_at"] = now.Format(time.RFC3339Nano)
		}
	}
	if v, _ := doc["equipment_type"].(string); v == "" {
		doc["equipment_type"] = string(t)
	}
	if v, _ := doc["equipment_id"].(string); v == "" {
		doc["equipment_id"] = equipmentID
	}

	var s telemetry.DeviceSample
	if err := remarshal(doc, &s); err != nil {
		return Message{}, errors.Wrap(err, "read device sample")
	}
	if parsed, err := telemetry.ParseEquipmentType(string(s.EquipmentType)); err == nil {
		s.EquipmentType = parsed
	}
	return Message{Kind: KindSample, Sample: &s}, nil
}

func remarshal(in interface{}, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
