package cmd

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/config"
	"github.com/eddielth/signal-monitor/decoder"
	"github.com/eddielth/signal-monitor/logger"
	"github.com/eddielth/signal-monitor/monitor"
	"github.com/eddielth/signal-monitor/storage"
	"github.com/eddielth/signal-monitor/validator"
)

// newStorage opens every enabled backend. The document store comes first
// so reads are served from the mqtt_db collection when it is configured.
func newStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Manager, error) {
	manager := storage.NewManager(nil)

	if cfg.Document.Enabled {
		mongo, err := storage.NewMongoStorage(ctx, cfg.Document)
		if err != nil {
			manager.Close()
			return nil, errors.Wrap(err, "document storage")
		}
		manager.AddBackend(mongo)
	}

	if cfg.Database.Enabled {
		db, err := storage.NewDatabaseStorage(cfg.Database.Type, cfg.Database.DSN)
		if err != nil {
			manager.Close()
			return nil, errors.Wrap(err, "database storage")
		}
		manager.AddBackend(db)
	}

	if cfg.File.Enabled {
		fs, err := storage.NewFileStorage(cfg.File.Path)
		if err != nil {
			manager.Close()
			return nil, errors.Wrap(err, "file storage")
		}
		manager.AddBackend(fs)
	}

	if manager.Len() == 0 {
		logger.Warn("no storage backend enabled, ingested data is dropped")
	}
	return manager, nil
}

func newDecoder(cfg config.DecoderConfig) (*decoder.Decoder, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return decoder.NewDecoder(decoder.Options{
		Location: loc,
		Strict:   cfg.Strict,
		Workers:  cfg.Workers,
	}), nil
}

func newMonitor(cfg *config.Config, source monitor.Source, dec *decoder.Decoder) (*monitor.Service, error) {
	loc, err := cfg.Decoder.Location()
	if err != nil {
		return nil, err
	}
	return monitor.NewService(source, monitor.Options{
		Decoder:    dec,
		Classifier: cfg.Health.Classifier(),
		Slots:      cfg.Health.Slots,
		StaleAfter: cfg.Health.StaleAfter,
		Location:   loc,
	}), nil
}

func facilities(cfg config.MonitorConfig) []monitor.Facility {
	out := make([]monitor.Facility, len(cfg.Facilities))
	for i, f := range cfg.Facilities {
		out[i] = monitor.Facility{EquipmentID: strings.ToUpper(strings.TrimSpace(f.EquipmentID)), Units: f.Units}
	}
	return out
}

func sampleValidator(cfg config.ValidationConfig) validator.Validator {
	ranges := make(map[string]validator.Range, len(cfg.Ranges))
	for name, r := range cfg.Ranges {
		ranges[name] = validator.Range{Min: r.Min, Max: r.Max}
	}
	return validator.NewSampleValidator(ranges)
}
