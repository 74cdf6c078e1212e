package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/iliyamo/event-ticket-booking/internal/config"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

// Open connects to the configured database and verifies the connection.
func Open(cfg config.Config) (*sql.DB, error) {
	switch cfg.DBDriver {
	case DriverMySQL:
		return OpenMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	case DriverSQLite:
		return OpenSQLite(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// mysqlConfig builds the driver config. parseTime maps DATETIME to
// time.Time and loc=UTC keeps stored times consistent. clientFoundRows makes
// RowsAffected count matched rows, so an update that writes the current
// values is not mistaken for a missing row.
func mysqlConfig(user, pass, host, port, name string) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = user
	mc.Passwd = pass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(host, port)
	mc.DBName = name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.ClientFoundRows = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc
}

// OpenMySQL connects to MySQL.
func OpenMySQL(user, pass, host, port, name string) (*sql.DB, error) {
	db, err := sql.Open(DriverMySQL, mysqlConfig(user, pass, host, port, name).FormatDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database at path. ":memory:" is
// accepted and pinned to a single connection so every query sees the same
// in-memory database.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_busy_timeout=5000&_txlock=immediate"
	if path == ":memory:" {
		dsn = "file::memory:?_txlock=immediate"
	}
	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY
	// between pooled connections.
	db.SetMaxOpenConns(1)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
