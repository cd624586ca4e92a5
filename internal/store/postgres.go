package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

// pgSchema creates the tickets table. seq keeps save order stable when
// several tickets share a timestamp.
var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		seq            BIGSERIAL,
		id             UUID PRIMARY KEY,
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
		tags           JSONB NOT NULL DEFAULT '[]',
		classification JSONB,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tickets_category_idx ON tickets (category)`,
	`CREATE INDEX IF NOT EXISTS tickets_priority_idx ON tickets (priority)`,
	`CREATE INDEX IF NOT EXISTS tickets_status_idx ON tickets (status)`,
	`CREATE INDEX IF NOT EXISTS tickets_customer_id_idx ON tickets (customer_id)`,
}

// PoolOptions tunes the pgx connection pool. Zero fields keep pgx defaults.
type PoolOptions struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Postgres stores tickets in PostgreSQL through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, verifies the connection and creates the schema.
func NewPostgres(ctx context.Context, databaseURL string, opts PoolOptions) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// EnsureSchema creates the tickets table and its indexes if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range pgSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Health pings the database.
func (p *Postgres) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Save(ctx context.Context, t ticket.Ticket) (ticket.Persisted, error) {
	row := prepare(t)

	tags, err := encodeTags(row.Tags)
	if err != nil {
		return ticket.Persisted{}, fmt.Errorf("save ticket: %w", err)
	}
	classification, err := encodeClassification(row.Classification)
	if err != nil {
		return ticket.Persisted{}, fmt.Errorf("save ticket: %w", err)
	}
	var classJSON []byte
	if classification != nil {
		classJSON = []byte(*classification)
	}

	saved, err := scanPgTicket(p.pool.QueryRow(ctx,
		`INSERT INTO tickets (`+columns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING `+columns,
		toPgUUID(row.ID),
		toPgText(row.CustomerID),
		row.CustomerName,
		row.CustomerEmail,
		row.Subject,
		row.Description,
		toPgText(string(row.Category)),
		toPgText(string(row.Priority)),
		string(row.Status),
		toPgText(string(row.Source)),
		toPgText(string(row.DeviceType)),
		toPgText(row.Browser),
		[]byte(tags),
		classJSON,
		row.CreatedAt,
		row.UpdatedAt,
	))
	if err != nil {
		return ticket.Persisted{}, fmt.Errorf("save ticket: %w", pgError(err))
	}
	return saved, nil
}

func (p *Postgres) FindByID(ctx context.Context, id string) (ticket.Persisted, error) {
	if !validID(id) {
		return ticket.Persisted{}, ErrNotFound
	}
	t, err := scanPgTicket(p.pool.QueryRow(ctx,
		`SELECT `+columns+` FROM tickets WHERE id = $1`, toPgUUID(id)))
	if err != nil {
		return ticket.Persisted{}, pgError(err)
	}
	return t, nil
}

func (p *Postgres) FindAll(ctx context.Context) ([]ticket.Persisted, error) {
	return p.FindByFilters(ctx, ticket.Filter{})
}

func (p *Postgres) FindByFilters(ctx context.Context, f ticket.Filter) ([]ticket.Persisted, error) {
	where, args := whereClause(f, pgPlaceholder)
	rows, err := p.pool.Query(ctx, `SELECT `+columns+` FROM tickets`+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("find tickets: %w", err)
	}
	defer rows.Close()

	out := make([]ticket.Persisted, 0)
	for rows.Next() {
		t, err := scanPgTicket(rows)
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

func (p *Postgres) Update(ctx context.Context, id string, patch ticket.Patch) (ticket.Persisted, error) {
	if !validID(id) {
		return ticket.Persisted{}, ErrNotFound
	}
	t, err := scanPgTicket(p.pool.QueryRow(ctx,
		`UPDATE tickets SET
			category   = COALESCE($2, category),
			priority   = COALESCE($3, priority),
			status     = COALESCE($4, status),
			updated_at = $5
		 WHERE id = $1
		 RETURNING `+columns,
		toPgUUID(id),
		toPgTextPtr(patch.Category),
		toPgTextPtr(patch.Priority),
		toPgTextPtr(patch.Status),
		now(),
	))
	if err != nil {
		return ticket.Persisted{}, pgError(err)
	}
	return t, nil
}

func (p *Postgres) DeleteByID(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, toPgUUID(id))
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ExistsByID(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	var exists bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, toPgUUID(id)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ticket: %w", err)
	}
	return exists, nil
}

func pgPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// scanPgTicket reads one row in columns order.
func scanPgTicket(row pgx.Row) (ticket.Persisted, error) {
	var (
		t              ticket.Persisted
		id             pgtype.UUID
		customerID     pgtype.Text
		category       pgtype.Text
		priority       pgtype.Text
		status         string
		source         pgtype.Text
		deviceType     pgtype.Text
		browser        pgtype.Text
		tags           []byte
		classification []byte
	)
	if err := row.Scan(
		&id,
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
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return ticket.Persisted{}, err
	}

	t.ID = pgUUIDToString(id)
	t.CustomerID = fromPgText(customerID)
	t.Category = ticket.Category(fromPgText(category))
	t.Priority = ticket.Priority(fromPgText(priority))
	t.Status = ticket.Status(status)
	t.Source = ticket.Source(fromPgText(source))
	t.DeviceType = ticket.DeviceType(fromPgText(deviceType))
	t.Browser = fromPgText(browser)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()

	var err error
	if t.Tags, err = decodeTags(string(tags)); err != nil {
		return ticket.Persisted{}, err
	}
	if classification != nil {
		s := string(classification)
		if t.Classification, err = decodeClassification(&s); err != nil {
			return ticket.Persisted{}, err
		}
	}
	return t, nil
}

// pgError maps pgx errors onto store errors and messages MapError knows.
func pgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("duplicate key (%s): %w", pgErr.ConstraintName, err)
	}
	return err
}
