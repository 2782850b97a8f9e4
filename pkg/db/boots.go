package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrBootNotFound = errors.New("boot not found")

// Boot is one supervisor start.
type Boot struct {
	ID        int64
	Session   string
	Timezone  string
	StartedAt time.Time
}

// BootStore provides access to recorded boots.
type BootStore interface {
	Start(ctx context.Context) (*Boot, error)
	Get(ctx context.Context, id int64) (*Boot, error)
	Latest(ctx context.Context) (*Boot, error)
	List(ctx context.Context, limit int) ([]*Boot, error)
}

// Boots returns a BootStore for this database.
func (db *DB) Boots() BootStore {
	return &bootStore{db: db}
}

type bootStore struct {
	db *DB
}

// Start records a new boot with a fresh session id and the system timezone.
func (s *bootStore) Start(ctx context.Context) (*Boot, error) {
	b := &Boot{
		Session:   uuid.NewString(),
		Timezone:  detectTimezone(),
		StartedAt: time.Now().UTC(),
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO boots (session, timezone, started_at)
		VALUES (?, ?, ?)
	`, b.Session, b.Timezone, b.StartedAt.Format(time.DateTime))
	if err != nil {
		return nil, fmt.Errorf("failed to record boot: %w", err)
	}

	b.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get boot ID: %w", err)
	}
	return b, nil
}

func (s *bootStore) Get(ctx context.Context, id int64) (*Boot, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, session, timezone, started_at FROM boots WHERE id = ?
	`, id))
}

func (s *bootStore) Latest(ctx context.Context) (*Boot, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, session, timezone, started_at FROM boots ORDER BY id DESC LIMIT 1
	`))
}

func (s *bootStore) List(ctx context.Context, limit int) ([]*Boot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session, timezone, started_at FROM boots ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boots []*Boot
	for rows.Next() {
		b := &Boot{}
		var startedAt string
		if err := rows.Scan(&b.ID, &b.Session, &b.Timezone, &startedAt); err != nil {
			return nil, err
		}
		b.StartedAt, _ = time.Parse(time.DateTime, startedAt)
		boots = append(boots, b)
	}
	return boots, rows.Err()
}

func (s *bootStore) scanOne(row *sql.Row) (*Boot, error) {
	b := &Boot{}
	var startedAt string
	err := row.Scan(&b.ID, &b.Session, &b.Timezone, &startedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBootNotFound
	}
	if err != nil {
		return nil, err
	}
	b.StartedAt, _ = time.Parse(time.DateTime, startedAt)
	return b, nil
}

// detectTimezone attempts to detect the system timezone.
func detectTimezone() string {
	// Try timedatectl first (systemd)
	out, err := exec.Command("timedatectl", "show", "--property=Timezone", "--value").Output()
	if err == nil {
		if tz := strings.TrimSpace(string(out)); tz != "" {
			return tz
		}
	}

	// Fallback: /etc/timezone file
	if data, err := os.ReadFile("/etc/timezone"); err == nil {
		return strings.TrimSpace(string(data))
	}

	// Fallback: /etc/localtime symlink
	if link, err := os.Readlink("/etc/localtime"); err == nil {
		if idx := strings.Index(link, "zoneinfo/"); idx != -1 {
			return link[idx+9:]
		}
	}

	return "UTC"
}
