package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tickets (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	customer_id    TEXT,
	customer_name  TEXT NOT NULL,
	customer_email TEXT NOT NULL,
	subject        TEXT NOT NULL,
	description    TEXT NOT NULL,
	category       TEXT,
	priority       TEXT,
	status         TEXT NOT NULL DEFAULT 'new',
	source         TEXT,
	device_type    TEXT,
	browser        TEXT,
	tags           TEXT NOT NULL DEFAULT '[]',
	classification TEXT,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_category ON tickets(category);
CREATE INDEX IF NOT EXISTS idx_tickets_priority ON tickets(priority);
CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
CREATE INDEX IF NOT EXISTS idx_tickets_customer_id ON tickets(customer_id);
`

// SQLite stores tickets in a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Health pings the database.
func (s *SQLite) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Save(ctx context.Context, t ticket.Ticket) (ticket.Persisted, error) {
	row := prepare(t)

	tags, err := encodeTags(row.Tags)
	if err != nil {
		return ticket.Persisted{}, fmt.Errorf("save ticket: %w", err)
	}
	classification, err := encodeClassification(row.Classification)
	if err != nil {
		return ticket.Persisted{}, fmt.Errorf("save ticket: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tickets (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID,
		nullString(row.CustomerID),
		row.CustomerName,
		row.CustomerEmail,
		row.Subject,
		row.Description,
		nullString(string(row.Category)),
		nullString(string(row.Priority)),
		string(row.Status),
		nullString(string(row.Source)),
		nullString(string(row.DeviceType)),
		nullString(row.Browser),
		tags,
		classification,
		formatTime(row.CreatedAt),
		formatTime(row.UpdatedAt),
	)
	if err != nil {
		return ticket.Persisted{}, fmt.Errorf("save ticket: %w", sqliteError(err))
	}
	return row, nil
}

func (s *SQLite) FindByID(ctx context.Context, id string) (ticket.Persisted, error) {
	t, err := scanSQLiteTicket(s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM tickets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ticket.Persisted{}, ErrNotFound
	}
	return t, err
}

func (s *SQLite) FindAll(ctx context.Context) ([]ticket.Persisted, error) {
	return s.FindByFilters(ctx, ticket.Filter{})
}

func (s *SQLite) FindByFilters(ctx context.Context, f ticket.Filter) ([]ticket.Persisted, error) {
	where, args := whereClause(f, func(int) string { return "?" })
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM tickets`+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("find tickets: %w", err)
	}
	defer rows.Close()

	out := make([]ticket.Persisted, 0)
	for rows.Next() {
		t, err := scanSQLiteTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("find tickets: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find tickets: %w", err)
	}
	return out, nil
}

func (s *SQLite) Update(ctx context.Context, id string, patch ticket.Patch) (ticket.Persisted, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ticket.Persisted{}, fmt.Errorf("update ticket: %w", err)
	}
	defer tx.Rollback()

	current, err := scanSQLiteTicket(tx.QueryRowContext(ctx,
		`SELECT `+columns+` FROM tickets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ticket.Persisted{}, ErrNotFound
	}
	if err != nil {
		return ticket.Persisted{}, fmt.Errorf("update ticket: %w", err)
	}

	updated := patch.Apply(current)
	updated.UpdatedAt = now()

	_, err = tx.ExecContext(ctx,
		`UPDATE tickets SET category = ?, priority = ?, status = ?, updated_at = ? WHERE id = ?`,
		nullString(string(updated.Category)),
		nullString(string(updated.Priority)),
		string(updated.Status),
		formatTime(updated.UpdatedAt),
		id,
	)
	if err != nil {
		return ticket.Persisted{}, fmt.Errorf("update ticket: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ticket.Persisted{}, fmt.Errorf("update ticket: %w", err)
	}
	return updated, nil
}

func (s *SQLite) DeleteByID(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ticket: %w", err)
	}
	return exists, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTicket(row scanner) (ticket.Persisted, error) {
	var (
		t              ticket.Persisted
		customerID     sql.NullString
		category       sql.NullString
		priority       sql.NullString
		status         string
		source         sql.NullString
		deviceType     sql.NullString
		browser        sql.NullString
		tags           string
		classification sql.NullString
		createdAt      string
		updatedAt      string
	)
	if err := row.Scan(
		&t.ID,
		&customerID,
		&t.CustomerName,
		&t.CustomerEmail,
		&t.Subject,
		&t.Description,
		&category,
		&priority,
		&status,
		&source,
		&deviceType,
		&browser,
		&tags,
		&classification,
		&createdAt,
		&updatedAt,
	); err != nil {
		return ticket.Persisted{}, err
	}

	t.CustomerID = customerID.String
	t.Category = ticket.Category(category.String)
	t.Priority = ticket.Priority(priority.String)
	t.Status = ticket.Status(status)
	t.Source = ticket.Source(source.String)
	t.DeviceType = ticket.DeviceType(deviceType.String)
	t.Browser = browser.String

	var err error
	if t.Tags, err = decodeTags(tags); err != nil {
		return ticket.Persisted{}, err
	}
	if classification.Valid {
		if t.Classification, err = decodeClassification(&classification.String); err != nil {
			return ticket.Persisted{}, err
		}
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return ticket.Persisted{}, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ticket.Persisted{}, err
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// sqliteError names unique violations the way MapError expects.
func sqliteError(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("duplicate key: %w", err)
	}
	return err
}
