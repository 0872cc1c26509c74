package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/logger"
)

var sqliteDialect = dialect{
	name: "SQLite",
	schema: []string{`
	CREATE TABLE IF NOT EXISTS equipment_status (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id INTEGER NOT NULL,
		equipment_id TEXT NOT NULL,
		equipment_type TEXT NOT NULL,
		state TEXT NOT NULL,
		abnormal BOOLEAN NOT NULL DEFAULT 0,
		raw_data TEXT NOT NULL,
		fields TEXT,
		receive_date DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_status_equipment_date ON equipment_status(equipment_id, receive_date);
	`, `
	CREATE TABLE IF NOT EXISTS device_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		equipment_id TEXT NOT NULL,
		equipment_type TEXT NOT NULL,
		device_id INTEGER NOT NULL,
		current_red REAL,
		current_green REAL,
		voltage_red REAL,
		voltage_green REAL,
		off_current_red REAL,
		off_current_green REAL,
		temperature REAL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_samples_equipment_date ON device_samples(equipment_id, updated_at);
	CREATE INDEX IF NOT EXISTS idx_samples_device ON device_samples(device_id);
	`},
}

// SQLiteStorage is a single-file backend for small sites and tests
type SQLiteStorage struct {
	sqlStore
	path string
}

// NewSQLiteStorage opens the database file in WAL mode and creates the
// tables.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	connStr := path
	if !strings.Contains(path, "?") {
		connStr = fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "open SQLite database")
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	storage := &SQLiteStorage{
		sqlStore: sqlStore{db: db, dialect: sqliteDialect},
		path:     path,
	}

	if err := storage.InitDatabase(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage ready: %s", path)
	return storage, nil
}
