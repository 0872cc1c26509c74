package monitor

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/decoder"
	"github.com/eddielth/signal-monitor/health"
	"github.com/eddielth/signal-monitor/logger"
	"github.com/eddielth/signal-monitor/power"
	"github.com/eddielth/signal-monitor/storage"
	"github.com/eddielth/signal-monitor/telemetry"
)

// MonthlyDays is the length of the monthly power window.
const MonthlyDays = 30

// Source is the storage the service reads from.
type Source interface {
	storage.SampleSource
	storage.RecordSource
}

// PowerSource selects where wattage readings come from.
type PowerSource string

const (
	// FromSamples uses the per-device mqtt_db samples (V*mA/1000).
	FromSamples PowerSource = "samples"
	// FromStatus decodes the stored status records (V*floor(A/10)/100).
	FromStatus PowerSource = "status"
)

// ParsePowerSource accepts "", samples and status.
func ParsePowerSource(s string) (PowerSource, error) {
	switch PowerSource(strings.ToLower(strings.TrimSpace(s))) {
	case "", FromSamples:
		return FromSamples, nil
	case FromStatus:
		return FromStatus, nil
	default:
		return "", errors.Errorf("unknown power source %q", s)
	}
}

// Facility is one monitored equipment unit
type Facility struct {
	EquipmentID string `json:"equipment_id"`
	Units       int    `json:"units"`
}

// PowerQuery selects the wattage statistics of one equipment unit.
type PowerQuery struct {
	EquipmentID string
	Window      power.Window
	Units       int
	Source      PowerSource
}

// Snapshot is the last evaluation of a facility.
type Snapshot struct {
	EquipmentID string           `json:"equipment_id"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
	Health      health.Report    `json:"health"`
	Today       power.Statistics `json:"today"`
	Monthly     power.Statistics `json:"monthly"`
	Devices     []health.Slot    `json:"devices"`
}

// Options configures a Service.
type Options struct {
	Decoder    *decoder.Decoder
	Classifier *health.Classifier
	Slots      int
	StaleAfter time.Duration
	Location   *time.Location
}

// Service evaluates device health, power and connectivity of equipment
// units from stored telemetry, and caches the last result per unit.
type Service struct {
	source     Source
	decoder    *decoder.Decoder
	slots      int
	staleAfter time.Duration
	location   *time.Location

	mu         sync.RWMutex
	classifier *health.Classifier
	snapshots  map[string]Snapshot

	now func() time.Time
}

// NewService creates a monitor service
func NewService(source Source, opts Options) *Service {
	if opts.Decoder == nil {
		opts.Decoder = decoder.NewDecoder(decoder.Options{Location: opts.Location})
	}
	if opts.Classifier == nil {
		opts.Classifier = health.NewClassifier(nil, nil, 0)
	}
	if opts.Slots <= 0 {
		opts.Slots = health.DefaultSlots
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = health.DefaultStaleAfter
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Service{
		source:     source,
		decoder:    opts.Decoder,
		slots:      opts.Slots,
		staleAfter: opts.StaleAfter,
		location:   opts.Location,
		classifier: opts.Classifier,
		snapshots:  make(map[string]Snapshot),
		now:        time.Now,
	}
}

// Now is the current time in the service location.
func (s *Service) Now() time.Time {
	return s.now().In(s.location)
}

// Location is the time zone of the day-based windows.
func (s *Service) Location() *time.Location {
	return s.location
}

// Classifier returns the classifier in use
func (s *Service) Classifier() *health.Classifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classifier
}

// UpdateClassifier swaps the classifier, e.g. after a config reload.
func (s *Service) UpdateClassifier(c *health.Classifier) {
	if c == nil {
		return
	}
	s.mu.Lock()
	s.classifier = c
	s.mu.Unlock()
	logger.Info("health classifier updated")
}

// Health classifies the devices of one unit over the lookback window ending
// at now.
func (s *Service) Health(ctx context.Context, equipmentID string, now time.Time) (health.Report, error) {
	c := s.Classifier()
	samples, err := s.source.Samples(ctx, storage.SampleQuery{
		EquipmentID: equipmentID,
		From:        now.Add(-c.Lookback),
		To:          now,
	})
	if err != nil {
		return health.Report{}, errors.Wrapf(err, "load samples of %s", equipmentID)
	}
	return c.Evaluate(samples, now), nil
}

// Power aggregates the wattage of one unit over a window.
func (s *Service) Power(ctx context.Context, q PowerQuery) (power.Statistics, error) {
	switch q.Source {
	case "", FromSamples:
		samples, err := s.source.Samples(ctx, storage.SampleQuery{
			EquipmentID: q.EquipmentID,
			From:        q.Window.From,
			To:          q.Window.To,
		})
		if err != nil {
			return power.Statistics{}, errors.Wrapf(err, "load samples of %s", q.EquipmentID)
		}
		return power.Calculate(power.FromDeviceSamples(samples, q.Window), q.Units), nil

	case FromStatus:
		rows, err := s.statusRows(ctx, q.EquipmentID, q.Window)
		if err != nil {
			return power.Statistics{}, err
		}
		return power.Calculate(power.FromStatusRows(rows, q.Window), q.Units), nil

	default:
		return power.Statistics{}, errors.Errorf("unknown power source %q", q.Source)
	}
}

// statusRows decodes the stored records of a unit. Records that fail to
// decode are logged and skipped.
func (s *Service) statusRows(ctx context.Context, equipmentID string, w power.Window) ([]telemetry.DecodedStatusRow, error) {
	t, _, err := telemetry.ParseEquipmentID(equipmentID)
	if err != nil {
		return nil, err
	}

	recs, err := s.source.Records(ctx, storage.RecordQuery{
		EquipmentID: equipmentID,
		From:        w.From,
		To:          w.To,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load records of %s", equipmentID)
	}

	res, err := s.decoder.DecodeBatchContext(ctx, t, recs)
	if err != nil {
		return nil, errors.Wrapf(err, "decode records of %s", equipmentID)
	}
	for _, f := range res.Failures {
		logger.Warn("skipped record %d of %s: %s", f.RecordID, equipmentID, f.Message)
	}
	return res.Rows, nil
}

// Devices lays the devices of one unit out over the slot grid. Samples of
// the last MonthlyDays days are considered.
func (s *Service) Devices(ctx context.Context, equipmentID string, now time.Time) ([]health.Slot, error) {
	now = now.In(s.location)
	w := power.LastDays(now, MonthlyDays)
	samples, err := s.source.Samples(ctx, storage.SampleQuery{
		EquipmentID: equipmentID,
		From:        w.From,
		To:          w.To,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load samples of %s", equipmentID)
	}
	return health.Connectivity(samples, s.slots, now, s.staleAfter), nil
}

// Evaluate computes a fresh snapshot of a facility and caches it.
func (s *Service) Evaluate(ctx context.Context, f Facility, now time.Time) (Snapshot, error) {
	now = now.In(s.location)
	snap := Snapshot{EquipmentID: f.EquipmentID, EvaluatedAt: now}

	var err error
	if snap.Health, err = s.Health(ctx, f.EquipmentID, now); err != nil {
		return Snapshot{}, err
	}

	w := power.LastDays(now, MonthlyDays)
	samples, err := s.source.Samples(ctx, storage.SampleQuery{
		EquipmentID: f.EquipmentID,
		From:        w.From,
		To:          w.To,
	})
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "load samples of %s", f.EquipmentID)
	}
	snap.Today = power.Calculate(power.FromDeviceSamples(samples, power.Today(now)), f.Units)
	snap.Monthly = power.Calculate(power.FromDeviceSamples(samples, w), f.Units)
	snap.Devices = health.Connectivity(samples, s.slots, now, s.staleAfter)

	s.mu.Lock()
	s.snapshots[f.EquipmentID] = snap
	s.mu.Unlock()
	return snap, nil
}

// Snapshot returns the cached snapshot of a unit.
func (s *Service) Snapshot(equipmentID string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[equipmentID]
	return snap, ok
}

// Snapshots returns every cached snapshot ordered by equipment id.
func (s *Service) Snapshots() []Snapshot {
	s.mu.RLock()
	out := make([]Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EquipmentID < out[j].EquipmentID })
	return out
}

// Sweep evaluates every facility. A failing facility is logged and the
// sweep goes on; the number of failures is returned.
func (s *Service) Sweep(ctx context.Context, facilities []Facility) int {
	now := s.Now()
	failed := 0
	for _, f := range facilities {
		if ctx.Err() != nil {
			return failed
		}
		snap, err := s.Evaluate(ctx, f, now)
		if err != nil {
			logger.Error("failed to evaluate %s: %v", f.EquipmentID, err)
			failed++
			continue
		}
		if snap.Health.Overall != health.LevelNone {
			logger.Warn("%s: %s, %d device(s) with warnings", f.EquipmentID, snap.Health.Overall, snap.Health.WarningCount)
		} else {
			logger.Debug("%s: no warnings", f.EquipmentID)
		}
	}
	return failed
}
