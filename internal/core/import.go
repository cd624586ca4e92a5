package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ticketimport/internal/archive"
	"github.com/JonMunkholm/ticketimport/internal/events"
	"github.com/JonMunkholm/ticketimport/internal/logging"
	"github.com/JonMunkholm/ticketimport/internal/parse"
	"github.com/JonMunkholm/ticketimport/internal/ticket"
)

// ErrFileTooLarge is returned when an import exceeds the configured size.
var ErrFileTooLarge = errors.New("file too large")

// publishTimeout bounds how long a finished batch waits on the event stream.
const publishTimeout = 5 * time.Second

// ImportRequest is one file submitted for import.
type ImportRequest struct {
	Data         []byte
	FileName     string
	ContentType  string
	AutoClassify bool
}

// RecordFailure describes why one record was not imported.
type RecordFailure struct {
	RecordIndex int      `json:"recordIndex"`
	Line        int      `json:"line,omitempty"`
	Errors      []string `json:"errors"`
	Code        string   `json:"code"`
}

// CreatedTicket is a stored ticket together with the record it came from.
type CreatedTicket struct {
	RecordIndex int `json:"recordIndex"`
	ticket.Persisted
}

// ImportOutcome summarizes one batch. Failures and CreatedTickets are in
// file order and their record indices never overlap. When the batch was
// cancelled, Unprocessed counts the records that were never looked at, so
// Successful + Failed + Unprocessed == TotalRecords always holds.
type ImportOutcome struct {
	BatchID        string          `json:"batchId"`
	FileName       string          `json:"fileName"`
	Format         parse.Format    `json:"format"`
	ContentHash    string          `json:"contentHash"`
	ArchiveKey     string          `json:"archiveKey,omitempty"`
	TotalRecords   int             `json:"totalRecords"`
	Successful     int             `json:"successful"`
	Failed         int             `json:"failed"`
	Failures       []RecordFailure `json:"failures"`
	CreatedTickets []CreatedTicket `json:"createdTickets"`
	Cancelled      bool            `json:"cancelled"`
	Unprocessed    int             `json:"unprocessed"`
	Duration       time.Duration   `json:"-"`
	DurationMs     int64           `json:"durationMs"`
}

// ImportBatch parses req and saves every valid record as a ticket.
//
// Errors are returned only for problems with the batch as a whole: no free
// import slot, an oversized file, an unknown format or a file that cannot
// be decoded. In those cases nothing is stored. Problems with individual
// records are reported in the outcome and never stop the batch.
//
// Cancelling ctx stops the batch before the next record; the partial
// outcome is returned with Cancelled set and a nil error.
func (s *Service) ImportBatch(ctx context.Context, req ImportRequest) (*ImportOutcome, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()

	if s.maxFileSize > 0 && int64(len(req.Data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, len(req.Data), s.maxFileSize)
	}

	format, err := parse.Detect(req.FileName, req.ContentType)
	if err != nil {
		return nil, err
	}

	records, err := parse.Parse(format, bytes.NewReader(req.Data))
	if err != nil {
		return nil, err
	}

	outcome := &ImportOutcome{
		BatchID:        uuid.New().String(),
		FileName:       req.FileName,
		Format:         format,
		ContentHash:    archive.ContentHash(req.Data),
		TotalRecords:   len(records),
		Failures:       []RecordFailure{},
		CreatedTickets: []CreatedTicket{},
	}

	logger := logging.WithFields(ctx,
		"batch_id", outcome.BatchID,
		"file", req.FileName,
		"format", format,
	)
	logger.Info("import started", append([]any{
		"records", len(records),
		"bytes", len(req.Data),
		"auto_classify", req.AutoClassify,
	}, submitter(ctx)...)...)

	outcome.ArchiveKey = s.archiveFile(ctx, logger, outcome.BatchID, req)

	for i, rec := range records {
		if ctx.Err() != nil {
			outcome.Cancelled = true
			outcome.Unprocessed = len(records) - i
			logger.Warn("import cancelled", "processed", i, "unprocessed", outcome.Unprocessed)
			break
		}

		created, failure := s.processRecord(ctx, logger, rec, req.AutoClassify)
		if failure != nil {
			outcome.Failures = append(outcome.Failures, *failure)
			continue
		}
		outcome.CreatedTickets = append(outcome.CreatedTickets, *created)
	}

	outcome.Successful = len(outcome.CreatedTickets)
	outcome.Failed = len(outcome.Failures)
	outcome.Duration = time.Since(start)
	outcome.DurationMs = outcome.Duration.Milliseconds()

	s.publish(ctx, logger, outcome)

	logger.Info("import finished",
		"successful", outcome.Successful,
		"failed", outcome.Failed,
		"cancelled", outcome.Cancelled,
		"duration_ms", outcome.DurationMs,
	)
	return outcome, nil
}

// processRecord takes one record through validation, optional
// classification and storage. Exactly one of the results is non-nil.
func (s *Service) processRecord(ctx context.Context, logger *slog.Logger, rec parse.Record, autoClassify bool) (created *CreatedTicket, failure *RecordFailure) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while importing record",
				"record", rec.Index,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			created = nil
			failure = recordFailure(rec, fmt.Errorf("panic: %v", r))
		}
	}()

	if rec.Err != nil {
		return nil, recordFailure(rec, rec.Err)
	}

	t, verrs := s.validator.Validate(rec)
	if len(verrs) > 0 {
		f := &RecordFailure{
			RecordIndex: rec.Index,
			Line:        rec.Line,
			Errors:      make([]string, len(verrs)),
			Code:        MapError(verrs[0]).Code,
		}
		for i, ve := range verrs {
			f.Errors[i] = ve.Error()
		}
		return nil, f
	}

	if autoClassify && t.Category == "" {
		c := s.classifier.Classify(t.Subject, t.Description)
		t.Classification = &c
		t.Category = c.Category
		if t.Priority == "" {
			t.Priority = c.Priority
		}
	}

	p, err := s.save(ctx, logger, t)
	if err != nil {
		logger.Warn("record not saved", "record", rec.Index, "error", err)
		return nil, recordFailure(rec, err)
	}
	return &CreatedTicket{RecordIndex: rec.Index, Persisted: p}, nil
}

type saveResult struct {
	ticket ticket.Persisted
	err    error
}

// save stores t, giving up after the store timeout even when the store
// ignores its context. A panic inside the store becomes an error. A save
// that succeeds after save has given up is deleted again, so the store
// never holds a ticket the outcome reports as failed.
func (s *Service) save(ctx context.Context, logger *slog.Logger, t ticket.Ticket) (ticket.Persisted, error) {
	saveCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		gaveUp bool
	)
	done := make(chan saveResult, 1)
	deliver := func(res saveResult) {
		mu.Lock()
		defer mu.Unlock()
		if !gaveUp {
			done <- res
			return
		}
		if res.err == nil {
			s.discardLateSave(ctx, logger, res.ticket)
		}
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				deliver(saveResult{err: fmt.Errorf("panic in store: %v", r)})
			}
		}()
		p, err := s.store.Save(saveCtx, t)
		deliver(saveResult{ticket: p, err: err})
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(saveCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return ticket.Persisted{}, fmt.Errorf("save ticket: store timeout after %s: %w", s.storeTimeout, res.err)
		}
		return res.ticket, res.err
	case <-saveCtx.Done():
	}

	mu.Lock()
	gaveUp = true
	mu.Unlock()

	// The store may have answered just as the deadline passed.
	select {
	case res := <-done:
		if res.err == nil {
			return res.ticket, nil
		}
	default:
	}

	if ctx.Err() != nil {
		return ticket.Persisted{}, fmt.Errorf("save ticket: %w", ctx.Err())
	}
	return ticket.Persisted{}, fmt.Errorf("save ticket: store timeout after %s", s.storeTimeout)
}

// discardLateSave deletes a ticket whose save finished after the record
// was already reported as failed.
func (s *Service) discardLateSave(ctx context.Context, logger *slog.Logger, p ticket.Persisted) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	if err := s.store.DeleteByID(delCtx, p.ID); err != nil {
		logger.Error("late save not rolled back", "ticket_id", p.ID, "error", err)
		return
	}
	logger.Warn("late save rolled back", "ticket_id", p.ID)
}

// recordFailure keeps the raw text of parse and validation problems, which
// name the field at fault, and shows the mapped message for everything else.
func recordFailure(rec parse.Record, err error) *RecordFailure {
	msg := MapError(err)
	text := err.Error()
	if IsUserFacing(err) && !strings.HasPrefix(msg.Code, "VAL") {
		text = msg.Message
	}
	return &RecordFailure{
		RecordIndex: rec.Index,
		Line:        rec.Line,
		Errors:      []string{text},
		Code:        msg.Code,
	}
}

// archiveFile keeps a copy of the raw upload. Failures are logged only.
func (s *Service) archiveFile(ctx context.Context, logger *slog.Logger, batchID string, req ImportRequest) string {
	key, err := s.archiver.Archive(ctx, archive.Object{
		BatchID:     batchID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Data:        req.Data,
	})
	if err != nil {
		logger.Warn("archive failed", "error", err)
		return ""
	}
	if key != "" {
		logger.Debug("import file archived", "key", key)
	}
	return key
}

// publish announces the finished batch. It runs even when ctx was
// cancelled so consumers also learn about partial batches.
func (s *Service) publish(ctx context.Context, logger *slog.Logger, o *ImportOutcome) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.Publish(pubCtx, events.Summary{
		BatchID:      o.BatchID,
		FileName:     o.FileName,
		Format:       string(o.Format),
		TotalRecords: o.TotalRecords,
		Successful:   o.Successful,
		Failed:       o.Failed,
		Cancelled:    o.Cancelled,
		ContentHash:  o.ContentHash,
		ArchiveKey:   o.ArchiveKey,
		DurationMs:   o.DurationMs,
		FinishedAt:   time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("publish import summary failed", "error", err)
	}
}
