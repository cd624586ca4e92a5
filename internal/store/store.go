// Package store persists imported tickets.
//
// Three implementations share the Store interface: Memory for tests and
// throwaway runs, Postgres (pgx) for production and SQLite for single-node
// deployments. All are safe for concurrent use, so concurrent import
// batches never serialize on a global lock.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

// ErrNotFound is returned when no ticket has the requested ID.
var ErrNotFound = errors.New("ticket not found")

// Store is the ticket persistence collaborator.
type Store interface {
	// Save assigns an ID, defaults the status and stamps both timestamps.
	Save(ctx context.Context, t ticket.Ticket) (ticket.Persisted, error)
	FindByID(ctx context.Context, id string) (ticket.Persisted, error)
	// FindAll returns every ticket in save order.
	FindAll(ctx context.Context) ([]ticket.Persisted, error)
	FindByFilters(ctx context.Context, f ticket.Filter) ([]ticket.Persisted, error)
	Update(ctx context.Context, id string, p ticket.Patch) (ticket.Persisted, error)
	DeleteByID(ctx context.Context, id string) error
	ExistsByID(ctx context.Context, id string) (bool, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// prepare turns a validated ticket into the row a store will write.
func prepare(t ticket.Ticket) ticket.Persisted {
	ts := now()
	if t.Status == "" {
		t.Status = ticket.DefaultStatus
	}
	return ticket.Persisted{
		ID:        uuid.NewString(),
		Ticket:    clone(t),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// clone deep-copies the slice and pointer fields of a ticket.
func clone(t ticket.Ticket) ticket.Ticket {
	if t.Tags != nil {
		t.Tags = append([]string(nil), t.Tags...)
	}
	if t.Classification != nil {
		c := *t.Classification
		c.Keywords = append([]string(nil), c.Keywords...)
		t.Classification = &c
	}
	return t
}

// validID reports whether id could have been issued by prepare.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ============================================================================
// SQL helpers shared by the Postgres and SQLite stores
// ============================================================================

// columns lists the ticket columns in scan order.
const columns = `id, customer_id, customer_name, customer_email, subject, description,
	category, priority, status, source, device_type, browser, tags, classification,
	created_at, updated_at`

// whereClause renders the set fields of f as an AND-ed WHERE clause using
// placeholder to number parameters. It returns "" for a zero filter.
func whereClause(f ticket.Filter, placeholder func(n int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = %s", column, placeholder(len(args))))
	}

	if f.Category != "" {
		add("category", string(f.Category))
	}
	if f.Priority != "" {
		add("priority", string(f.Priority))
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	if f.CustomerID != "" {
		add("customer_id", f.CustomerID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// encodeTags stores tags as a JSON array; nil becomes an empty array.
func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	return string(b), err
}

func decodeTags(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return tags, nil
}

// encodeClassification returns nil for a ticket without a classification
// so the column stays NULL.
func encodeClassification(c *ticket.Classification) (*string, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func decodeClassification(s *string) (*ticket.Classification, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var c ticket.Classification
	if err := json.Unmarshal([]byte(*s), &c); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	return &c, nil
}
