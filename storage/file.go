package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/decoder"
	"github.com/eddielth/signal-monitor/logger"
	"github.com/eddielth/signal-monitor/telemetry"
)

const dayLayout = "20060102"

// FileStorage appends JSON lines under basePath/<equipmentID>/, one file
// per kind and UTC day.
type FileStorage struct {
	basePath string
	mu       sync.Mutex
}

// NewFileStorage creates the base directory.
func NewFileStorage(basePath string) (*FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, errors.Wrapf(err, "create dir %s", basePath)
	}

	logger.Info("init file storage: %s", basePath)
	return &FileStorage{
		basePath: basePath,
	}, nil
}

// ErrInvalidEquipmentID is returned for ids that are not a single path element.
var ErrInvalidEquipmentID = errors.New("invalid equipment id")

func checkEquipmentID(id string) error {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id || strings.ContainsAny(id, `/\`) {
		return errors.Wrapf(ErrInvalidEquipmentID, "%q", id)
	}
	return nil
}

func (fs *FileStorage) file(equipmentID, kind string, day time.Time) string {
	return filepath.Join(fs.basePath, equipmentID, kind+"-"+day.UTC().Format(dayLayout)+".jsonl")
}

func (fs *FileStorage) appendLine(path string, v interface{}) error {
	line, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "serialize data")
	}
	line = append(line, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "create dir %s", filepath.Dir(path))
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "open file %s", path)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return errors.Wrapf(err, "write file %s", path)
	}
	logger.Debug("stored data in file: %s", path)
	return nil
}

// StoreStatus appends the entry to the status file of its receipt day
func (fs *FileStorage) StoreStatus(_ context.Context, entry StatusEntry) error {
	if err := checkEquipmentID(entry.EquipmentID); err != nil {
		return err
	}
	entry.Record.ReceiveDate = entry.Row.ReceivedAt().UTC().Format(time.RFC3339Nano)
	return fs.appendLine(fs.file(entry.EquipmentID, "status", entry.Row.ReceivedAt()), entry)
}

// StoreSample appends the sample to the sample file of its update day
func (fs *FileStorage) StoreSample(_ context.Context, sample telemetry.DeviceSample) error {
	if err := checkEquipmentID(sample.EquipmentID); err != nil {
		return err
	}
	return fs.appendLine(fs.file(sample.EquipmentID, "samples", sample.UpdatedAt), sample)
}

// days lists the files of one kind that can hold data between from and to.
func (fs *FileStorage) days(equipmentID, kind string, from, to time.Time) []string {
	var paths []string
	start := from.UTC().Truncate(24 * time.Hour)
	for d := start; !d.After(to.UTC()); d = d.Add(24 * time.Hour) {
		p := fs.file(equipmentID, kind, d)
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

func (fs *FileStorage) scan(ctx context.Context, paths []string, fn func([]byte) error) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return errors.Wrapf(err, "open file %s", p)
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for sc.Scan() {
			if err := fn(sc.Bytes()); err != nil {
				f.Close()
				return errors.Wrapf(err, "read file %s", p)
			}
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return errors.Wrapf(err, "read file %s", p)
		}
	}
	return nil
}

// Samples reads samples back from the daily files
func (fs *FileStorage) Samples(ctx context.Context, q SampleQuery) ([]telemetry.DeviceSample, error) {
	if err := checkEquipmentID(q.EquipmentID); err != nil {
		return nil, err
	}
	var out []telemetry.DeviceSample
	err := fs.scan(ctx, fs.days(q.EquipmentID, "samples", q.From, q.To), func(line []byte) error {
		var s telemetry.DeviceSample
		if err := json.Unmarshal(line, &s); err != nil {
			return err
		}
		if s.UpdatedAt.Before(q.From) || s.UpdatedAt.After(q.To) {
			return nil
		}
		if q.DeviceID != nil && s.DeviceID != *q.DeviceID {
			return nil
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// fileStatusLine is what StoreStatus wrote, minus the decoded row.
type fileStatusLine struct {
	Record telemetry.RawTelemetryRecord `json:"record"`
}

// Records reads raw status records back from the daily files
func (fs *FileStorage) Records(ctx context.Context, q RecordQuery) ([]telemetry.RawTelemetryRecord, error) {
	if err := checkEquipmentID(q.EquipmentID); err != nil {
		return nil, err
	}
	type dated struct {
		rec telemetry.RawTelemetryRecord
		at  time.Time
	}
	var all []dated
	err := fs.scan(ctx, fs.days(q.EquipmentID, "status", q.From, q.To), func(line []byte) error {
		var l fileStatusLine
		if err := json.Unmarshal(line, &l); err != nil {
			return err
		}
		at, ok := decoder.ParseTimestamp(l.Record.ReceiveDate, time.UTC)
		if !ok || at.Before(q.From) || at.After(q.To) {
			return nil
		}
		all = append(all, dated{l.Record, at})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
	if q.Limit > 0 && len(all) > q.Limit {
		all = all[:q.Limit]
	}
	out := make([]telemetry.RawTelemetryRecord, len(all))
	for i, d := range all {
		out[i] = d.rec
	}
	return out, nil
}

// Close implements StorageBackend
func (fs *FileStorage) Close() error {
	return nil
}
