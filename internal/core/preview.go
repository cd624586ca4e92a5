package core

import (
	"bytes"
	"fmt"

	"github.com/JonMunkholm/ticketimport/internal/parse"
)

// PreviewRecord is one parsed record with the outcome validation would give
// it. Fields holds a string, a list of strings or nil for each field.
type PreviewRecord struct {
	RecordIndex int            `json:"recordIndex"`
	Line        int            `json:"line,omitempty"`
	Fields      map[string]any `json:"fields"`
	Errors      []string       `json:"errors,omitempty"`
}

// PreviewResult is a dry run of an import.
type PreviewResult struct {
	FileName     string          `json:"fileName"`
	Format       parse.Format    `json:"format"`
	TotalRecords int             `json:"totalRecords"`
	Valid        int             `json:"valid"`
	Invalid      int             `json:"invalid"`
	Records      []PreviewRecord `json:"records"`
}

// Preview parses and validates req without storing, archiving or
// publishing anything. It fails for the same batch-level reasons as
// ImportBatch, except that it never waits for an import slot.
func (s *Service) Preview(req ImportRequest) (*PreviewResult, error) {
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

	res := &PreviewResult{
		FileName:     req.FileName,
		Format:       format,
		TotalRecords: len(records),
		Records:      make([]PreviewRecord, 0, len(records)),
	}
	for _, rec := range records {
		pr := PreviewRecord{
			RecordIndex: rec.Index,
			Line:        rec.Line,
			Fields:      make(map[string]any, rec.Len()),
		}
		for _, f := range rec.Fields() {
			switch {
			case f.List != nil:
				pr.Fields[f.Name] = f.List
			case f.Value != nil:
				pr.Fields[f.Name] = *f.Value
			default:
				pr.Fields[f.Name] = nil
			}
		}

		if rec.Err != nil {
			pr.Errors = []string{rec.Err.Error()}
		} else if _, verrs := s.validator.Validate(rec); len(verrs) > 0 {
			for _, ve := range verrs {
				pr.Errors = append(pr.Errors, ve.Error())
			}
		}

		if len(pr.Errors) > 0 {
			res.Invalid++
		} else {
			res.Valid++
		}
		res.Records = append(res.Records, pr)
	}
	return res, nil
}
