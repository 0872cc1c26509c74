package storage

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/logger"
	"github.com/eddielth/signal-monitor/telemetry"
)

// ErrNoSource is returned when no configured backend can answer a query.
var ErrNoSource = errors.New("no readable storage backend configured")

// StatusEntry is one decoded transmission together with the record it came
// from.
type StatusEntry struct {
	EquipmentID string                       `json:"equipment_id"`
	Record      telemetry.RawTelemetryRecord `json:"record"`
	Row         telemetry.DecodedStatusRow   `json:"row"`
}

// StorageBackend persists ingested telemetry
type StorageBackend interface {
	StoreStatus(ctx context.Context, entry StatusEntry) error
	StoreSample(ctx context.Context, sample telemetry.DeviceSample) error
	Close() error
}

// SampleQuery selects device samples of one equipment unit. From and To are
// inclusive; a nil DeviceID selects every device.
type SampleQuery struct {
	EquipmentID string
	DeviceID    *int
	From        time.Time
	To          time.Time
}

// RecordQuery selects raw status records of one equipment unit.
type RecordQuery struct {
	EquipmentID string
	From        time.Time
	To          time.Time
	Limit       int
}

// SampleSource is a backend that can read samples back.
type SampleSource interface {
	Samples(ctx context.Context, q SampleQuery) ([]telemetry.DeviceSample, error)
}

// RecordSource is a backend that can read raw status records back, oldest
// first.
type RecordSource interface {
	Records(ctx context.Context, q RecordQuery) ([]telemetry.RawTelemetryRecord, error)
}

// Manager fans writes out to every backend and serves reads from the first
// backend able to answer them.
type Manager struct {
	backends []StorageBackend
	mutex    sync.RWMutex
}

// NewManager creates a storage manager
func NewManager(backends []StorageBackend) *Manager {
	return &Manager{
		backends: backends,
	}
}

func (m *Manager) fanOut(what string, store func(StorageBackend) error) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var first error
	failed := 0
	for _, backend := range m.backends {
		if err := store(backend); err != nil {
			// keep going, one broken backend must not block the others
			logger.Error("failed to store %s in %T: %v", what, backend, err)
			failed++
			if first == nil {
				first = err
			}
		}
	}
	if first != nil {
		return errors.Wrapf(first, "%d of %d backends failed to store %s", failed, len(m.backends), what)
	}
	return nil
}

// StoreStatus writes a decoded status to all backends
func (m *Manager) StoreStatus(ctx context.Context, entry StatusEntry) error {
	return m.fanOut("status", func(b StorageBackend) error {
		return b.StoreStatus(ctx, entry)
	})
}

// StoreSample writes a device sample to all backends
func (m *Manager) StoreSample(ctx context.Context, sample telemetry.DeviceSample) error {
	return m.fanOut("sample", func(b StorageBackend) error {
		return b.StoreSample(ctx, sample)
	})
}

// Samples reads from the first backend implementing SampleSource
func (m *Manager) Samples(ctx context.Context, q SampleQuery) ([]telemetry.DeviceSample, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, backend := range m.backends {
		if src, ok := backend.(SampleSource); ok {
			return src.Samples(ctx, q)
		}
	}
	return nil, ErrNoSource
}

// Records reads from the first backend implementing RecordSource
func (m *Manager) Records(ctx context.Context, q RecordQuery) ([]telemetry.RawTelemetryRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, backend := range m.backends {
		if src, ok := backend.(RecordSource); ok {
			return src.Records(ctx, q)
		}
	}
	return nil, ErrNoSource
}

// Len is the number of configured backends
func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.backends)
}

// Close closes all backends
func (m *Manager) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, backend := range m.backends {
		if err := backend.Close(); err != nil {
			logger.Error("failed to close storage backend: %v", err)
		}
	}
}

// AddBackend adds a backend
func (m *Manager) AddBackend(backend StorageBackend) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.backends = append(m.backends, backend)
}
