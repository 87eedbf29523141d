package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ccsit-tools/schedule-api/pkg/config"
)

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// catalogSchema holds the catalog tables. Section and slot rows keep an
// explicit position column because feed order is what the generator
// enumerates in.
var catalogSchema = []string{
	`CREATE TABLE IF NOT EXISTS courses (
		course_code  TEXT PRIMARY KEY,
		course_name  TEXT NOT NULL DEFAULT '',
		credit_hours TEXT NOT NULL DEFAULT '',
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sections (
		crn          TEXT PRIMARY KEY,
		course_code  TEXT NOT NULL REFERENCES courses(course_code) ON DELETE CASCADE,
		section_id   TEXT NOT NULL DEFAULT '',
		section_type TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT '',
		instructor   TEXT NOT NULL DEFAULT '',
		position     INT  NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS section_slots (
		crn        TEXT NOT NULL REFERENCES sections(crn) ON DELETE CASCADE,
		day_token  TEXT NOT NULL DEFAULT '',
		time_range TEXT NOT NULL DEFAULT '',
		position   INT  NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sections_course_code ON sections (course_code)`,
	`CREATE INDEX IF NOT EXISTS idx_section_slots_crn ON section_slots (crn)`,
}

// EnsureSchema creates the catalog tables and indexes when missing.
func EnsureSchema(db *sqlx.DB) error {
	for _, stmt := range catalogSchema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply catalog schema: %w", err)
		}
	}
	return nil
}
