package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Log entry kinds.
const (
	KindSystem        = "system"
	KindDeviceVoltage = "device.voltage"
)

// System event values.
const (
	EventBoot       = "boot"
	EventModuleInit = "module_init"
	EventMainLoop   = "main_loop"
	EventShutdown   = "shutdown"
	EventHalt       = "halt"
)

// Entry is one event log row.
type Entry struct {
	ID        int64
	BootID    int64
	Kind      string
	Value     string
	CreatedAt time.Time
}

// ListOptions filters entry listings. Zero values mean no filter.
type ListOptions struct {
	BootID int64
	Kind   string
	Limit  int
}

// EntryStore provides access to the event log.
type EntryStore interface {
	Insert(ctx context.Context, bootID int64, kind, value string) error
	List(ctx context.Context, opts ListOptions) ([]*Entry, error)
}

// Entries returns an EntryStore for this database.
func (db *DB) Entries() EntryStore {
	return &entryStore{db: db}
}

type entryStore struct {
	db *DB
}

func (s *entryStore) Insert(ctx context.Context, bootID int64, kind, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO log_entries (boot_id, kind, value, created_at)
		VALUES (?, ?, ?, ?)
	`, bootID, kind, value, time.Now().UTC().Format(time.DateTime))
	if err != nil {
		return fmt.Errorf("failed to insert %s entry: %w", kind, err)
	}
	return nil
}

// List returns the newest entries first.
func (s *entryStore) List(ctx context.Context, opts ListOptions) ([]*Entry, error) {
	var where []string
	var args []any
	if opts.BootID != 0 {
		where = append(where, "boot_id = ?")
		args = append(args, opts.BootID)
	}
	if opts.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, opts.Kind)
	}

	query := `SELECT id, boot_id, kind, value, created_at FROM log_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var createdAt string
		if err := rows.Scan(&e.ID, &e.BootID, &e.Kind, &e.Value, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Journal appends entries to the log of a single boot. It is the supervisor's
// event log.
type Journal struct {
	db   *DB
	boot *Boot
}

// StartJournal migrates the schema, records a new boot and returns its journal.
func (db *DB) StartJournal(ctx context.Context) (*Journal, error) {
	if err := db.Migrate(ctx); err != nil {
		return nil, err
	}
	boot, err := db.Boots().Start(ctx)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db, boot: boot}, nil
}

// Boot returns the boot this journal writes to.
func (j *Journal) Boot() *Boot {
	return j.boot
}

// Insert appends an entry.
func (j *Journal) Insert(ctx context.Context, kind, value string) error {
	return j.db.Entries().Insert(ctx, j.boot.ID, kind, value)
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
