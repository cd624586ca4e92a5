package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/ticketimport/internal/archive"
	"github.com/JonMunkholm/ticketimport/internal/classify"
	"github.com/JonMunkholm/ticketimport/internal/events"
	"github.com/JonMunkholm/ticketimport/internal/store"
	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

// Defaults applied by NewService to zero ServiceConfig fields.
const (
	DefaultMaxFileSize  int64 = 10 << 20
	DefaultStoreTimeout       = 5 * time.Second
)

// ServiceConfig holds the collaborators and limits of a Service. Only Store
// is required.
type ServiceConfig struct {
	Store      store.Store
	Classifier *classify.Engine
	Archiver   archive.Archiver
	Publisher  events.Publisher
	Limiter    *ImportLimiter

	EnumPolicy   EnumPolicy
	MaxFileSize  int64
	StoreTimeout time.Duration
}

// Service is the entry point for imports, classification and ticket
// queries. It is safe for concurrent use.
type Service struct {
	store      store.Store
	classifier *classify.Engine
	archiver   archive.Archiver
	publisher  events.Publisher
	limiter    *ImportLimiter
	validator  *Validator

	maxFileSize  int64
	storeTimeout time.Duration
}

// NewService creates a Service. Missing optional collaborators are replaced
// with the default keyword table, no-op archive and event sinks, and a
// limiter with default capacity.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("service requires a store")
	}
	if cfg.EnumPolicy != "" {
		if _, err := ParseEnumPolicy(string(cfg.EnumPolicy)); err != nil {
			return nil, err
		}
	}

	s := &Service{
		store:        cfg.Store,
		classifier:   cfg.Classifier,
		archiver:     cfg.Archiver,
		publisher:    cfg.Publisher,
		limiter:      cfg.Limiter,
		validator:    NewValidator(cfg.EnumPolicy),
		maxFileSize:  cfg.MaxFileSize,
		storeTimeout: cfg.StoreTimeout,
	}
	if s.classifier == nil {
		s.classifier = classify.New(classify.DefaultTable())
	}
	if s.archiver == nil {
		s.archiver = archive.Noop{}
	}
	if s.publisher == nil {
		s.publisher = events.Noop{}
	}
	if s.limiter == nil {
		s.limiter = NewImportLimiter(DefaultMaxConcurrentImports, DefaultMaxWaitTime)
	}
	if s.maxFileSize <= 0 {
		s.maxFileSize = DefaultMaxFileSize
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = DefaultStoreTimeout
	}
	return s, nil
}

// MaxFileSize returns the largest accepted import in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

func (s *Service) EnumPolicy() EnumPolicy {
	return s.validator.Policy()
}

// Classify runs the keyword classifier on free text without storing
// anything.
func (s *Service) Classify(subject, description string) ticket.Classification {
	return s.classifier.Classify(subject, description)
}

// ============================================================================
// Ticket queries and mutations
// ============================================================================

func (s *Service) GetTicket(ctx context.Context, id string) (ticket.Persisted, error) {
	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		return ticket.Persisted{}, fmt.Errorf("get ticket %s: %w", id, err)
	}
	return t, nil
}

// ListTickets returns tickets matching f in insertion order. A zero filter
// returns every ticket.
func (s *Service) ListTickets(ctx context.Context, f ticket.Filter) ([]ticket.Persisted, error) {
	if f.IsZero() {
		return s.store.FindAll(ctx)
	}
	return s.store.FindByFilters(ctx, f)
}

// UpdateTicket applies patch to the ticket with the given id.
func (s *Service) UpdateTicket(ctx context.Context, id string, patch ticket.Patch) (ticket.Persisted, error) {
	t, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return ticket.Persisted{}, fmt.Errorf("update ticket %s: %w", id, err)
	}
	return t, nil
}

func (s *Service) DeleteTicket(ctx context.Context, id string) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete ticket %s: %w", id, err)
	}
	return nil
}

// Health checks the store when it can report on its connection. The
// memory store always reports healthy.
func (s *Service) Health(ctx context.Context) error {
	h, ok := s.store.(interface{ Health(context.Context) error })
	if !ok {
		return nil
	}
	if err := h.Health(ctx); err != nil {
		return fmt.Errorf("store health: %w", err)
	}
	return nil
}

// ============================================================================
// Import limiter
// ============================================================================

// LimiterStatus returns a snapshot of import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until no import is running or ctx is done. Used
// during graceful shutdown.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
