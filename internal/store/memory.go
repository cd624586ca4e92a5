package store

import (
	"context"
	"sync"

	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

// Memory is an in-process Store. Returned tickets are copies.
type Memory struct {
	mu      sync.RWMutex
	tickets map[string]ticket.Persisted
	order   []string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tickets: make(map[string]ticket.Persisted)}
}

func (m *Memory) Save(ctx context.Context, t ticket.Ticket) (ticket.Persisted, error) {
	if err := ctx.Err(); err != nil {
		return ticket.Persisted{}, err
	}

	p := prepare(t)

	m.mu.Lock()
	m.tickets[p.ID] = p
	m.order = append(m.order, p.ID)
	m.mu.Unlock()

	return copyPersisted(p), nil
}

func (m *Memory) FindByID(ctx context.Context, id string) (ticket.Persisted, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.tickets[id]
	if !ok {
		return ticket.Persisted{}, ErrNotFound
	}
	return copyPersisted(p), nil
}

func (m *Memory) FindAll(ctx context.Context) ([]ticket.Persisted, error) {
	return m.FindByFilters(ctx, ticket.Filter{})
}

func (m *Memory) FindByFilters(ctx context.Context, f ticket.Filter) ([]ticket.Persisted, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ticket.Persisted, 0, len(m.order))
	for _, id := range m.order {
		p := m.tickets[id]
		if f.Match(p) {
			out = append(out, copyPersisted(p))
		}
	}
	return out, nil
}

func (m *Memory) Update(ctx context.Context, id string, patch ticket.Patch) (ticket.Persisted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.tickets[id]
	if !ok {
		return ticket.Persisted{}, ErrNotFound
	}
	p = patch.Apply(p)
	p.UpdatedAt = now()
	m.tickets[id] = p
	return copyPersisted(p), nil
}

func (m *Memory) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(m.tickets, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) ExistsByID(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tickets[id]
	return ok, nil
}

// Len returns the number of stored tickets.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tickets)
}

func (m *Memory) Close() error { return nil }

func copyPersisted(p ticket.Persisted) ticket.Persisted {
	p.Ticket = clone(p.Ticket)
	return p
}
