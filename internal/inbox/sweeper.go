// Package inbox imports files dropped into a directory on a schedule.
//
// Each sweep imports every supported file at the top of the inbox directory
// in name order. A file whose batch finished is moved to processed/, one
// the batch rejected (or that was cut short by shutdown) to failed/. Next to
// the moved file the sweeper writes <name>.outcome.json holding the import
// outcome or the user-facing error. Files that could not get an import slot
// stay where they are and are retried on the next sweep.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JonMunkholm/ticketimport/internal/core"
	"github.com/JonMunkholm/ticketimport/internal/parse"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// DefaultSchedule sweeps once a minute.
const DefaultSchedule = "* * * * *"

// Importer runs one import batch. *core.Service satisfies it.
type Importer interface {
	ImportBatch(ctx context.Context, req core.ImportRequest) (*core.ImportOutcome, error)
}

// Config configures a Sweeper.
type Config struct {
	Dir          string
	Schedule     string // five-field cron expression or descriptor such as "@every 30s"
	AutoClassify bool
}

// SweepResult counts what one sweep did with the files it found.
type SweepResult struct {
	Processed int
	Failed    int
	Deferred  int
}

// Sweeper watches an inbox directory.
type Sweeper struct {
	importer     Importer
	dir          string
	schedule     cron.Schedule
	expr         string
	autoClassify bool

	mu sync.Mutex // one sweep at a time
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewSweeper validates the schedule and creates the inbox directories.
func NewSweeper(importer Importer, cfg Config) (*Sweeper, error) {
	if cfg.Dir == "" {
		return nil, errors.New("inbox directory is required")
	}
	expr := strings.TrimSpace(cfg.Schedule)
	if expr == "" {
		expr = DefaultSchedule
	}
	sched, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid inbox schedule %q: %w", expr, err)
	}

	for _, sub := range []string{"", ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(cfg.Dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create inbox directory: %w", err)
		}
	}

	return &Sweeper{
		importer:     importer,
		dir:          cfg.Dir,
		schedule:     sched,
		expr:         expr,
		autoClassify: cfg.AutoClassify,
	}, nil
}

// Run sweeps on every schedule tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("inbox sweeper started", "dir", s.dir, "schedule", s.expr)

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("inbox sweeper stopped")
			return
		case <-timer.C:
			start := time.Now()
			res, err := s.Sweep(ctx)
			if err != nil {
				slog.Error("inbox sweep failed", "error", err)
				continue
			}
			if res.Processed+res.Failed+res.Deferred > 0 {
				slog.Info("inbox sweep completed",
					"processed", res.Processed,
					"failed", res.Failed,
					"deferred", res.Deferred,
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}
		}
	}
}

// Sweep imports every pending file once.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res SweepResult

	names, err := s.pending()
	if err != nil {
		return res, err
	}

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}

		moved, err := s.importFile(ctx, name)
		if err != nil {
			slog.Error("inbox file not handled", "file", name, "error", err)
			continue
		}
		switch moved {
		case ProcessedDir:
			res.Processed++
		case FailedDir:
			res.Failed++
		default:
			res.Deferred++
		}
	}
	return res, nil
}

// pending lists importable files at the top of the inbox.
func (s *Sweeper) pending() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if parse.SupportedExtension(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// fileReport is written next to a file that failed as a whole.
type fileReport struct {
	FileName string           `json:"fileName"`
	Error    core.UserMessage `json:"error"`
	Detail   string           `json:"detail"`
}

// importFile imports one file and returns the directory it was moved to,
// or "" when it was left in place.
func (s *Sweeper) importFile(ctx context.Context, name string) (string, error) {
	src := filepath.Join(s.dir, name)
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}

	outcome, err := s.importer.ImportBatch(ctx, core.ImportRequest{
		Data:         data,
		FileName:     name,
		AutoClassify: s.autoClassify,
	})

	switch {
	case errors.Is(err, core.ErrTooManyImports), errors.Is(err, context.Canceled):
		return "", nil
	case err != nil:
		slog.Warn("inbox file rejected", "file", name, "error", err)
		return FailedDir, s.finish(src, FailedDir, fileReport{
			FileName: name,
			Error:    core.MapError(err),
			Detail:   err.Error(),
		})
	case outcome.Cancelled:
		return FailedDir, s.finish(src, FailedDir, outcome)
	default:
		return ProcessedDir, s.finish(src, ProcessedDir, outcome)
	}
}

// finish moves src into sub and writes the report beside it.
func (s *Sweeper) finish(src, sub string, report any) error {
	dst := uniquePath(filepath.Join(s.dir, sub), filepath.Base(src))
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	if err := os.WriteFile(dst+".outcome.json", body, 0o644); err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	return nil
}

// uniquePath returns dir/name, or dir/name-<n><ext> when a file with that
// name was already moved there by an earlier sweep.
func uniquePath(dir, name string) string {
	p := filepath.Join(dir, name)
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return p
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		p = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return p
		}
	}
}
