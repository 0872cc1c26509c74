package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/logger"
)

// Scheduler re-evaluates the configured facilities at a fixed interval.
type Scheduler struct {
	service  *Service
	interval time.Duration

	mu         sync.RWMutex
	facilities []Facility
}

// NewScheduler creates a sweep scheduler
func NewScheduler(service *Service, interval time.Duration, facilities []Facility) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s := &Scheduler{service: service, interval: interval}
	s.SetFacilities(facilities)
	return s
}

// SetFacilities replaces the facility list used by the next sweep.
func (s *Scheduler) SetFacilities(facilities []Facility) {
	list := make([]Facility, len(facilities))
	copy(list, facilities)

	s.mu.Lock()
	s.facilities = list
	s.mu.Unlock()
}

func (s *Scheduler) current() []Facility {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facilities
}

// Run sweeps once immediately, then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(s.service.Location()))
	if err != nil {
		return errors.Wrap(err, "create scheduler")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			facilities := s.current()
			logger.Debug("running health sweep over %d facilities", len(facilities))
			if failed := s.service.Sweep(ctx, facilities); failed > 0 {
				logger.Warn("health sweep: %d of %d facilities failed", failed, len(facilities))
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.Wrap(err, "schedule health sweep")
	}

	scheduler.Start()
	logger.Info("health sweep scheduled every %s", s.interval)

	<-ctx.Done()

	return scheduler.Shutdown()
}
