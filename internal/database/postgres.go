package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrQuotaExceeded is returned when a counter reserve inside a
	// transaction finds the per-user cap already reached.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrDuplicate is returned on unique-constraint violations
	// (username, email, wifi_ssid, (user_id, room_id)).
	ErrDuplicate = errors.New("duplicate entry")
)

type PgGeoPingRepository struct {
	conn *sql.DB
}

func NewPgGeoPingRepository(dsn string) (*PgGeoPingRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgGeoPingRepository{conn: db}, nil
}

func (db *PgGeoPingRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgGeoPingRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// mapError translates driver-level unique violations into ErrDuplicate so
// callers never have to inspect pq error codes.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return ErrDuplicate
	}

	return err
}
