package store

// pgconv.go converts between ticket fields and pgx column types. Optional
// text fields travel as pgtype.Text so an empty value is stored as NULL.

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// toPgText returns an invalid (NULL) Text for blank strings.
func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgTextPtr maps a nil patch field to NULL.
func toPgTextPtr[T ~string](v *T) pgtype.Text {
	if v == nil {
		return pgtype.Text{Valid: false}
	}
	return toPgText(string(*v))
}

func fromPgText(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// toPgUUID returns an invalid UUID when s does not parse.
func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// pgUUIDToString returns "" for an invalid UUID.
func pgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
