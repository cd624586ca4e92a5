package store

import (
	"context"
	"errors"
	"os"
	"reflect"
	"sync"
	"testing"

	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

func sampleTicket(subject string) ticket.Ticket {
	return ticket.Ticket{
		CustomerID:    "cust-1",
		CustomerName:  "Ann Example",
		CustomerEmail: "ann@example.com",
		Subject:       subject,
		Description:   "Something needs attention",
		Category:      ticket.CategoryBillingQuestion,
		Priority:      ticket.PriorityHigh,
		Source:        ticket.SourceEmail,
		DeviceType:    ticket.DeviceMobile,
		Browser:       "Firefox 130",
		Tags:          []string{"billing", "vip"},
	}
}

// ============================================================================
// Conformance suite run against every implementation
// ============================================================================

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("save assigns identity and defaults", func(t *testing.T) {
		in := sampleTicket("Save")
		in.Classification = &ticket.Classification{
			Category:   ticket.CategoryBillingQuestion,
			Priority:   ticket.PriorityMedium,
			Confidence: 0.5,
			Reasoning:  "matched keywords: refund",
			Keywords:   []string{"refund"},
		}

		p, err := s.Save(ctx, in)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if !validID(p.ID) {
			t.Errorf("ID = %q, want a UUID", p.ID)
		}
		if p.Status != ticket.StatusNew {
			t.Errorf("Status = %q, want new", p.Status)
		}
		if p.CreatedAt.IsZero() || !p.CreatedAt.Equal(p.UpdatedAt) {
			t.Errorf("timestamps = %v / %v", p.CreatedAt, p.UpdatedAt)
		}

		got, err := s.FindByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if !reflect.DeepEqual(got, p) {
			t.Errorf("FindByID() = %+v\nwant %+v", got, p)
		}
	})

	t.Run("explicit status kept", func(t *testing.T) {
		in := sampleTicket("Resolved")
		in.Status = ticket.StatusResolved
		p, err := s.Save(ctx, in)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if p.Status != ticket.StatusResolved {
			t.Errorf("Status = %q, want resolved", p.Status)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		if _, err := s.FindByID(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotFound) {
			t.Errorf("FindByID(missing) error = %v, want ErrNotFound", err)
		}
		if _, err := s.FindByID(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
			t.Errorf("FindByID(garbage) error = %v, want ErrNotFound", err)
		}
		ok, err := s.ExistsByID(ctx, "00000000-0000-0000-0000-000000000000")
		if err != nil || ok {
			t.Errorf("ExistsByID(missing) = %v, %v", ok, err)
		}
	})

	t.Run("filters and order", func(t *testing.T) {
		first := sampleTicket("Filter A")
		first.CustomerID = "filter-cust"
		second := sampleTicket("Filter B")
		second.CustomerID = "filter-cust"
		second.Priority = ticket.PriorityLow
		other := sampleTicket("Filter C")
		other.CustomerID = "someone-else"

		var ids []string
		for _, tk := range []ticket.Ticket{first, second, other} {
			p, err := s.Save(ctx, tk)
			if err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			ids = append(ids, p.ID)
		}

		got, err := s.FindByFilters(ctx, ticket.Filter{CustomerID: "filter-cust"})
		if err != nil {
			t.Fatalf("FindByFilters() error = %v", err)
		}
		if len(got) != 2 || got[0].ID != ids[0] || got[1].ID != ids[1] {
			t.Fatalf("FindByFilters(customer) = %d tickets, want first two in save order", len(got))
		}

		got, err = s.FindByFilters(ctx, ticket.Filter{CustomerID: "filter-cust", Priority: ticket.PriorityLow})
		if err != nil {
			t.Fatalf("FindByFilters() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != ids[1] {
			t.Errorf("FindByFilters(customer+priority) = %v, want only the second", got)
		}

		all, err := s.FindAll(ctx)
		if err != nil {
			t.Fatalf("FindAll() error = %v", err)
		}
		if len(all) < 3 || all[len(all)-1].ID != ids[2] {
			t.Errorf("FindAll() should end with the last saved ticket")
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		p, err := s.Save(ctx, sampleTicket("Update"))
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		status := ticket.StatusInProgress
		updated, err := s.Update(ctx, p.ID, ticket.Patch{Status: &status})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if updated.Status != ticket.StatusInProgress || updated.Priority != p.Priority {
			t.Errorf("Update() = %s/%s, want in_progress/%s", updated.Status, updated.Priority, p.Priority)
		}
		if updated.UpdatedAt.Before(p.UpdatedAt) {
			t.Errorf("UpdatedAt went backwards")
		}

		if _, err := s.Update(ctx, "00000000-0000-0000-0000-000000000000", ticket.Patch{Status: &status}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
		}

		if err := s.DeleteByID(ctx, p.ID); err != nil {
			t.Fatalf("DeleteByID() error = %v", err)
		}
		if ok, _ := s.ExistsByID(ctx, p.ID); ok {
			t.Error("ticket still exists after delete")
		}
		if err := s.DeleteByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second DeleteByID() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent saves", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Save(ctx, sampleTicket("Concurrent")); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("concurrent Save() error = %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestSQLiteStore_File(t *testing.T) {
	path := t.TempDir() + "/tickets.db"
	ctx := context.Background()

	s, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	p, err := s.Save(ctx, sampleTicket("Persisted"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	s.Close()

	reopened, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindByID() after reopen error = %v", err)
	}
	if !reflect.DeepEqual(got.Tags, []string{"billing", "vip"}) {
		t.Errorf("Tags = %v", got.Tags)
	}
}

// TestPostgresStore runs against a real database when TEST_DATABASE_URL is set.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgres(ctx, url, PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	defer s.Close()
	if _, err := s.pool.Exec(ctx, `TRUNCATE tickets`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	testStore(t, s)
}

// ============================================================================
// Helper Tests
// ============================================================================

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	p, _ := m.Save(context.Background(), sampleTicket("Copy"))
	p.Tags[0] = "mutated"

	got, _ := m.FindByID(context.Background(), p.ID)
	if got.Tags[0] != "billing" {
		t.Errorf("stored tags changed through a returned copy: %v", got.Tags)
	}
}

func TestWhereClause(t *testing.T) {
	tests := []struct {
		name     string
		filter   ticket.Filter
		wantSQL  string
		wantArgs []any
	}{
		{"zero filter", ticket.Filter{}, "", nil},
		{
			"single field",
			ticket.Filter{Status: ticket.StatusNew},
			" WHERE status = $1",
			[]any{"new"},
		},
		{
			"all fields",
			ticket.Filter{Category: ticket.CategoryBugReport, Priority: ticket.PriorityUrgent, Status: ticket.StatusClosed, CustomerID: "c-9"},
			" WHERE category = $1 AND priority = $2 AND status = $3 AND customer_id = $4",
			[]any{"bug_report", "urgent", "closed", "c-9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs := whereClause(tt.filter, pgPlaceholder)
			if gotSQL != tt.wantSQL {
				t.Errorf("whereClause() sql = %q, want %q", gotSQL, tt.wantSQL)
			}
			if !reflect.DeepEqual(gotArgs, tt.wantArgs) {
				t.Errorf("whereClause() args = %v, want %v", gotArgs, tt.wantArgs)
			}
		})
	}
}

func TestTagsRoundTrip(t *testing.T) {
	for _, tags := range [][]string{nil, {"a"}, {"a", "b c"}} {
		enc, err := encodeTags(tags)
		if err != nil {
			t.Fatalf("encodeTags(%v) error = %v", tags, err)
		}
		dec, err := decodeTags(enc)
		if err != nil {
			t.Fatalf("decodeTags(%q) error = %v", enc, err)
		}
		if !reflect.DeepEqual(dec, tags) {
			t.Errorf("round trip of %v = %v", tags, dec)
		}
	}
}

func TestPgConversions(t *testing.T) {
	if toPgText("  ").Valid {
		t.Error("toPgText(blank) should be NULL")
	}
	if got := fromPgText(toPgText(" x ")); got != "x" {
		t.Errorf("fromPgText(toPgText(\" x \")) = %q", got)
	}
	if toPgTextPtr[ticket.Status](nil).Valid {
		t.Error("toPgTextPtr(nil) should be NULL")
	}
	id := "2b1f9a3e-6c1d-4f67-9a1e-2a4c7f3b8d10"
	if got := pgUUIDToString(toPgUUID(id)); got != id {
		t.Errorf("uuid round trip = %q, want %q", got, id)
	}
	if toPgUUID("nope").Valid {
		t.Error("toPgUUID(invalid) should be invalid")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, OpenOptions{Driver: DriverMemory})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := mem.(*Memory); !ok {
		t.Errorf("Open(memory) = %T, want *Memory", mem)
	}

	lite, err := Open(ctx, OpenOptions{Driver: DriverSQLite, SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	defer lite.Close()
	if _, ok := lite.(*SQLite); !ok {
		t.Errorf("Open(sqlite) = %T, want *SQLite", lite)
	}

	if _, err := Open(ctx, OpenOptions{Driver: "mysql"}); err == nil {
		t.Error("Open(mysql) should fail")
	}
}
