package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/logger"
)

var mysqlDialect = dialect{
	name: "MySQL",
	schema: []string{`
	CREATE TABLE IF NOT EXISTS equipment_status (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		record_id BIGINT NOT NULL,
		equipment_id VARCHAR(64) NOT NULL,
		equipment_type VARCHAR(8) NOT NULL,
		state VARCHAR(16) NOT NULL,
		abnormal BOOLEAN NOT NULL DEFAULT FALSE,
		raw_data TEXT NOT NULL,
		fields JSON,
		receive_date DATETIME(3) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_status_equipment_date (equipment_id, receive_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`, `
	CREATE TABLE IF NOT EXISTS device_samples (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		equipment_id VARCHAR(64) NOT NULL,
		equipment_type VARCHAR(8) NOT NULL,
		device_id INT NOT NULL,
		current_red DOUBLE NULL,
		current_green DOUBLE NULL,
		voltage_red DOUBLE NULL,
		voltage_green DOUBLE NULL,
		off_current_red DOUBLE NULL,
		off_current_green DOUBLE NULL,
		temperature DOUBLE NULL,
		updated_at DATETIME(3) NOT NULL,
		INDEX idx_samples_equipment_date (equipment_id, updated_at),
		INDEX idx_samples_device (device_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`},
}

// MySQLStorage is the MySQL backend
type MySQLStorage struct {
	sqlStore
	dsn      string
	database string
}

// NewMySQLStorage creates the database if needed, connects and creates the
// tables.
func NewMySQLStorage(dsn string) (*MySQLStorage, error) {
	dsn = withParseTime(dsn)

	database, serverDSN, err := parseMySQLDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse MySQL DSN")
	}

	serverDB, err := sql.Open("mysql", serverDSN)
	if err != nil {
		return nil, errors.Wrap(err, "connect to MySQL server")
	}
	defer serverDB.Close()

	_, err = serverDB.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", database))
	if err != nil {
		return nil, errors.Wrap(err, "create MySQL database")
	}

	logger.Info("MySQL database %s ensured", database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open MySQL database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping MySQL database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Minute * 5)

	storage := &MySQLStorage{
		sqlStore: sqlStore{db: db, dialect: mysqlDialect},
		dsn:      dsn,
		database: database,
	}

	if err := storage.InitDatabase(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("MySQL storage ready")
	return storage, nil
}

// withParseTime makes the driver return DATETIME columns as time.Time.
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// parseMySQLDSN splits a DSN into the database name and a DSN without it
func parseMySQLDSN(dsn string) (database string, serverDSN string, err error) {
	parts := strings.Split(dsn, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("invalid DSN, no database name")
	}

	dbParts := strings.Split(parts[len(parts)-1], "?")
	database = dbParts[0]
	if database == "" {
		return "", "", fmt.Errorf("invalid DSN, empty database name")
	}

	serverDSN = strings.Join(parts[:len(parts)-1], "/") + "/"
	if len(dbParts) > 1 {
		serverDSN += "?" + dbParts[1]
	}

	return database, serverDSN, nil
}
