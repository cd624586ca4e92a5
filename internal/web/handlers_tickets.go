package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

// maxJSONBody bounds classify and patch request bodies.
const maxJSONBody = 1 << 20

// TicketList is the body of GET /api/tickets.
type TicketList struct {
	Tickets []ticket.Persisted `json:"tickets"`
	Count   int                `json:"count"`
}

type classifyRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// handleClassify runs the keyword classifier without storing anything.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Subject) == "" && strings.TrimSpace(req.Description) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid request: subject or description is required")
		return
	}

	writeJSON(w, http.StatusOK, s.service.Classify(req.Subject, req.Description))
}

// handleListTickets lists tickets, optionally narrowed by the category,
// priority, status and customerId query parameters.
func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tickets, err := s.service.ListTickets(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if tickets == nil {
		tickets = []ticket.Persisted{}
	}
	writeJSON(w, http.StatusOK, TicketList{Tickets: tickets, Count: len(tickets)})
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.GetTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type patchRequest struct {
	Category *string `json:"category"`
	Priority *string `json:"priority"`
	Status   *string `json:"status"`
}

// handleUpdateTicket changes the category, priority or status of a ticket.
func (s *Server) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	t, err := s.service.UpdateTicket(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTicket(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p patchRequest) toPatch() (ticket.Patch, error) {
	var patch ticket.Patch
	if p.Category == nil && p.Priority == nil && p.Status == nil {
		return patch, fmt.Errorf("invalid request: nothing to update")
	}
	if p.Category != nil {
		c, ok := ticket.ParseCategory(*p.Category)
		if !ok {
			return patch, enumError("category", *p.Category, ticket.Names(ticket.Categories))
		}
		patch.Category = &c
	}
	if p.Priority != nil {
		v, ok := ticket.ParsePriority(*p.Priority)
		if !ok {
			return patch, enumError("priority", *p.Priority, ticket.Names(ticket.Priorities))
		}
		patch.Priority = &v
	}
	if p.Status != nil {
		v, ok := ticket.ParseStatus(*p.Status)
		if !ok {
			return patch, enumError("status", *p.Status, ticket.Names(ticket.Statuses))
		}
		patch.Status = &v
	}
	return patch, nil
}

// parseFilter reads ticket filters from the query string. Unknown enum
// values are rejected rather than silently matching nothing.
func parseFilter(r *http.Request) (ticket.Filter, error) {
	q := r.URL.Query()
	f := ticket.Filter{CustomerID: strings.TrimSpace(q.Get("customerId"))}

	if v := q.Get("category"); v != "" {
		c, ok := ticket.ParseCategory(v)
		if !ok {
			return f, enumError("category", v, ticket.Names(ticket.Categories))
		}
		f.Category = c
	}
	if v := q.Get("priority"); v != "" {
		p, ok := ticket.ParsePriority(v)
		if !ok {
			return f, enumError("priority", v, ticket.Names(ticket.Priorities))
		}
		f.Priority = p
	}
	if v := q.Get("status"); v != "" {
		st, ok := ticket.ParseStatus(v)
		if !ok {
			return f, enumError("status", v, ticket.Names(ticket.Statuses))
		}
		f.Status = st
	}
	return f, nil
}

func enumError(field, value string, allowed []string) error {
	return fmt.Errorf("%s: invalid enum value %q, must be one of: %s", field, value, strings.Join(allowed, ", "))
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
