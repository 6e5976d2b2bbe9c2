package database

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"tenauth/internal/platform/config"
)

func New(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.Path
	if dsn != ":memory:" {
		// Serialize writers at the driver level so a key rotation transaction
		// never interleaves with another writer on the same connection.
		dsn = dsn + "?_busy_timeout=5000&_journal_mode=WAL&_fk=1"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}
