package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/logger"
	"github.com/eddielth/signal-monitor/telemetry"
)

// dialect holds what differs between the SQL backends.
type dialect struct {
	name        string
	placeholder func(n int) string
	schema      []string
}

func questionMarks(int) string { return "?" }

func dollarNumbers(n int) string { return fmt.Sprintf("$%d", n) }

// sqlStore implements DatabaseStorage on top of database/sql. The concrete
// backends only differ in how they connect and in their dialect.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *sqlStore) InitDatabase() error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "%s: create schema", s.dialect.name)
		}
	}
	logger.Info("%s tables initialised", s.dialect.name)
	return nil
}

// rebind turns ? placeholders into the dialect's form.
func (s *sqlStore) rebind(query string) string {
	if s.dialect.placeholder == nil {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) StoreStatus(ctx context.Context, entry StatusEntry) error {
	fields, err := json.Marshal(entry.Row)
	if err != nil {
		return errors.Wrap(err, "serialize decoded row")
	}

	query := s.rebind(`INSERT INTO equipment_status
		(record_id, equipment_id, equipment_type, state, abnormal, raw_data, fields, receive_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		entry.Record.ID,
		entry.EquipmentID,
		string(entry.Row.Type()),
		string(entry.Record.State),
		entry.Record.Abnormal,
		entry.Record.RawData,
		string(fields),
		entry.Row.ReceivedAt().UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "%s: insert status", s.dialect.name)
	}

	logger.Debug("stored status record %d of %s in %s", entry.Record.ID, entry.EquipmentID, s.dialect.name)
	return nil
}

func nullable(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func (s *sqlStore) StoreSample(ctx context.Context, sample telemetry.DeviceSample) error {
	query := s.rebind(`INSERT INTO device_samples
		(equipment_id, equipment_type, device_id, current_red, current_green, voltage_red, voltage_green,
		 off_current_red, off_current_green, temperature, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		sample.EquipmentID,
		string(sample.EquipmentType),
		sample.DeviceID,
		nullable(sample.CurrentRed),
		nullable(sample.CurrentGreen),
		nullable(sample.VoltageRed),
		nullable(sample.VoltageGreen),
		nullable(sample.OffCurrentRed),
		nullable(sample.OffCurrentGreen),
		nullable(sample.Temperature),
		sample.UpdatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "%s: insert sample", s.dialect.name)
	}
	return nil
}

func pointer(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return telemetry.Float(n.Float64)
}

func (s *sqlStore) Samples(ctx context.Context, q SampleQuery) ([]telemetry.DeviceSample, error) {
	query := `SELECT equipment_id, equipment_type, device_id, current_red, current_green, voltage_red,
		voltage_green, off_current_red, off_current_green, temperature, updated_at
		FROM device_samples WHERE equipment_id = ? AND updated_at >= ? AND updated_at <= ?`
	args := []interface{}{q.EquipmentID, q.From.UTC(), q.To.UTC()}
	if q.DeviceID != nil {
		query += " AND device_id = ?"
		args = append(args, *q.DeviceID)
	}
	query += " ORDER BY updated_at, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: query samples", s.dialect.name)
	}
	defer rows.Close()

	var out []telemetry.DeviceSample
	for rows.Next() {
		var (
			sample                                   telemetry.DeviceSample
			typ                                      string
			red, green, vRed, vGreen, offRed, offGrn sql.NullFloat64
			temp                                     sql.NullFloat64
		)
		if err := rows.Scan(&sample.EquipmentID, &typ, &sample.DeviceID, &red, &green, &vRed, &vGreen,
			&offRed, &offGrn, &temp, &sample.UpdatedAt); err != nil {
			return nil, errors.Wrapf(err, "%s: scan sample", s.dialect.name)
		}
		sample.EquipmentType = telemetry.EquipmentType(typ)
		sample.CurrentRed = pointer(red)
		sample.CurrentGreen = pointer(green)
		sample.VoltageRed = pointer(vRed)
		sample.VoltageGreen = pointer(vGreen)
		sample.OffCurrentRed = pointer(offRed)
		sample.OffCurrentGreen = pointer(offGrn)
		sample.Temperature = pointer(temp)
		out = append(out, sample)
	}
	return out, errors.Wrapf(rows.Err(), "%s: read samples", s.dialect.name)
}

func (s *sqlStore) Records(ctx context.Context, q RecordQuery) ([]telemetry.RawTelemetryRecord, error) {
	query := `SELECT record_id, raw_data, state, abnormal, receive_date
		FROM equipment_status WHERE equipment_id = ? AND receive_date >= ? AND receive_date <= ?
		ORDER BY receive_date, id`
	args := []interface{}{q.EquipmentID, q.From.UTC(), q.To.UTC()}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: query records", s.dialect.name)
	}
	defer rows.Close()

	var out []telemetry.RawTelemetryRecord
	for rows.Next() {
		var (
			rec      telemetry.RawTelemetryRecord
			state    string
			received time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.RawData, &state, &rec.Abnormal, &received); err != nil {
			return nil, errors.Wrapf(err, "%s: scan record", s.dialect.name)
		}
		rec.State = telemetry.State(state)
		rec.ReceiveDate = received.UTC().Format(time.RFC3339Nano)
		out = append(out, rec)
	}
	return out, errors.Wrapf(rows.Err(), "%s: read records", s.dialect.name)
}

func (s *sqlStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return errors.Wrapf(err, "close %s", s.dialect.name)
	}
	logger.Info("%s connection closed", s.dialect.name)
	return nil
}
