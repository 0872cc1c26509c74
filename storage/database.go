package storage

import (
	"fmt"
	"strings"
)

// DatabaseType names a SQL backend
type DatabaseType string

const (
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgresql"
	SQLite     DatabaseType = "sqlite3"
)

// ParseDatabaseType accepts the common aliases of each database type.
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql":
		return MySQL, nil
	case "postgresql", "postgres":
		return PostgreSQL, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", s)
	}
}

// DatabaseStorage is a SQL backend
type DatabaseStorage interface {
	StorageBackend
	SampleSource
	RecordSource
	InitDatabase() error
}

// NewDatabaseStorage opens the SQL backend of the given type
func NewDatabaseStorage(dbType string, dsn string) (DatabaseStorage, error) {
	t, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, err
	}
	switch t {
	case MySQL:
		return NewMySQLStorage(dsn)
	case PostgreSQL:
		return NewPostgreSQLStorage(dsn)
	default:
		return NewSQLiteStorage(dsn)
	}
}
