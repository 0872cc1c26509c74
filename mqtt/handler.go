package mqtt

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/decoder"
	"github.com/eddielth/signal-monitor/logger"
	"github.com/eddielth/signal-monitor/storage"
	"github.com/eddielth/signal-monitor/telemetry"
	"github.com/eddielth/signal-monitor/transformer"
	"github.com/eddielth/signal-monitor/validator"
)

// Transformer turns a device payload into a normalised message
type Transformer interface {
	Transform(t telemetry.EquipmentType, equipmentID string, data []byte) (transformer.Message, error)
}

// Store persists ingested telemetry
type Store interface {
	StoreStatus(ctx context.Context, entry storage.StatusEntry) error
	StoreSample(ctx context.Context, sample telemetry.DeviceSample) error
}

// Topic is a parsed devices/{TYPE}/{equipmentID} topic
type Topic struct {
	Type        telemetry.EquipmentType
	EquipmentID string
}

// ParseTopic reads the equipment type and id out of a topic of the form
// devices/{TYPE}/{equipmentID}. When the id carries a type prefix it must
// agree with the type segment.
func ParseTopic(topic string) (Topic, error) {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) != 3 || parts[0] != "devices" || parts[2] == "" {
		return Topic{}, errors.Errorf("unexpected topic %q, want devices/{type}/{equipment}", topic)
	}

	t, err := telemetry.ParseEquipmentType(parts[1])
	if err != nil {
		return Topic{}, errors.Wrapf(err, "topic %s", topic)
	}

	id := strings.ToUpper(strings.TrimSpace(parts[2]))
	if prefix, _, err := telemetry.ParseEquipmentID(id); err == nil && prefix != t {
		return Topic{}, errors.Errorf("topic %s: equipment %s is not of type %s", topic, id, t)
	}
	return Topic{Type: t, EquipmentID: id}, nil
}

// Handler decodes and stores the messages of one broker connection.
type Handler struct {
	transformers Transformer
	decoder      *decoder.Decoder
	store        Store
	validator    validator.Validator
}

// NewHandler creates an ingest handler. A nil validator checks struct tags
// only.
func NewHandler(transformers Transformer, dec *decoder.Decoder, store Store, v validator.Validator) *Handler {
	if v == nil {
		v = validator.TagValidator{}
	}
	return &Handler{
		transformers: transformers,
		decoder:      dec,
		store:        store,
		validator:    v,
	}
}

// Handle processes one message. Status records are decoded against the
// schema of the topic's equipment type before they are stored; samples are
// validated.
func (h *Handler) Handle(ctx context.Context, topic string, payload []byte) error {
	tp, err := ParseTopic(topic)
	if err != nil {
		return err
	}

	logger.Debug("received data from %s: %s", tp.EquipmentID, string(payload))

	msg, err := h.transformers.Transform(tp.Type, tp.EquipmentID, payload)
	if err != nil {
		return errors.Wrapf(err, "transform payload of %s", tp.EquipmentID)
	}

	switch msg.Kind {
	case transformer.KindStatus:
		row, err := h.decoder.Decode(tp.Type, *msg.Status)
		if err != nil {
			return errors.Wrapf(err, "decode record %d of %s", msg.Status.ID, tp.EquipmentID)
		}
		entry := storage.StatusEntry{EquipmentID: tp.EquipmentID, Record: *msg.Status, Row: row}
		if err := h.store.StoreStatus(ctx, entry); err != nil {
			return errors.Wrapf(err, "store record %d of %s", msg.Status.ID, tp.EquipmentID)
		}
		logger.Info("stored %s status record %d of %s", tp.Type, msg.Status.ID, tp.EquipmentID)

	case transformer.KindSample:
		sample := *msg.Sample
		if sample.EquipmentID != "" && !strings.EqualFold(sample.EquipmentID, tp.EquipmentID) {
			return errors.Errorf("sample of device %d names equipment %q, published on %s", sample.DeviceID, sample.EquipmentID, tp.EquipmentID)
		}
		sample.EquipmentID = tp.EquipmentID
		if err := h.validator.Validate(sample); err != nil {
			return errors.Wrapf(err, "invalid sample of device %d on %s", sample.DeviceID, tp.EquipmentID)
		}
		if err := h.store.StoreSample(ctx, sample); err != nil {
			return errors.Wrapf(err, "store sample of device %d on %s", sample.DeviceID, tp.EquipmentID)
		}
		logger.Debug("stored sample of device %d on %s", sample.DeviceID, tp.EquipmentID)

	default:
		return errors.Errorf("unknown message kind %q", msg.Kind)
	}
	return nil
}
