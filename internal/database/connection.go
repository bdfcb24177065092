package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the default database connection used by main.
var DB *sqlx.DB

// Connect establishes a connection to the database. If DATABASE_URL is set to
// a Postgres DSN, that server is used; otherwise a SQLite database is opened
// at the given path, creating the parent directory if needed.
func Connect(path string) (*sqlx.DB, error) {
	if dsn := os.Getenv("DATABASE_URL"); strings.HasPrefix(dsn, "postgres") {
		db, err := sqlx.Connect("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %v", err)
		}
		if err := initializeSchema(db); err != nil {
			return nil, err
		}
		DB = db
		return db, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %v", err)
		}
	}
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	// SQLite doesn't support multiple writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %v", err)
	}

	if err := initializeSchema(db); err != nil {
		return nil, err
	}
	DB = db
	return db, nil
}

// Close closes the default database connection.
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// serialType returns the autoincrementing primary key column for the
// connected driver.
func serialType(db *sqlx.DB) string {
	if db.DriverName() == "postgres" {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// initializeSchema creates necessary tables if they don't exist.
func initializeSchema(db *sqlx.DB) error {
	serial := serialType(db)

	// Trials are append-only; the index serves the reverse-chronological
	// reads done by the scorer.
	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS trials (
			id %s,
			exercise_id TEXT NOT NULL,
			score REAL NOT NULL,
			timestamp INTEGER NOT NULL
		)
	`, serial))
	if err != nil {
		return fmt.Errorf("failed to create trials table: %v", err)
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS trials_exercise_timestamp
		ON trials (exercise_id, timestamp)
	`)
	if err != nil {
		return fmt.Errorf("failed to create trials index: %v", err)
	}

	_, err = db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS rewards (
			id %s,
			unit_id TEXT NOT NULL,
			reward REAL NOT NULL,
			weight REAL NOT NULL,
			timestamp INTEGER NOT NULL
		)
	`, serial))
	if err != nil {
		return fmt.Errorf("failed to create rewards table: %v", err)
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS rewards_unit_timestamp
		ON rewards (unit_id, timestamp)
	`)
	if err != nil {
		return fmt.Errorf("failed to create rewards index: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS blacklist (
			unit_id TEXT PRIMARY KEY
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create blacklist table: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS review_list (
			unit_id TEXT PRIMARY KEY
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create review_list table: %v", err)
	}

	return nil
}
