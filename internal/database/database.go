// Package database opens the gorm connection for either supported backend.
package database

import (
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to the database described by dsn. postgres:// URLs and
// keyword DSNs go to the postgres driver; anything else is treated as a
// SQLite file path, the default deployment.
//
// SQLite files are opened with journal_mode=WAL and busy_timeout=5000 so
// overlapping writers wait briefly instead of failing, and the pool is capped
// at one connection so writes serialize in-process rather than racing for the
// file lock.
func Open(dsn string) (*gorm.DB, error) {
	if IsPostgres(dsn) {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(dsn)), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// IsPostgres reports whether dsn selects the postgres backend.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// FilePath strips DSN decorations from a sqlite dsn, leaving the on-disk path.
func FilePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

// sqliteDSN appends the WAL and busy-timeout pragmas unless the caller
// already passed their own.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
