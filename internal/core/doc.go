// Package core provides the business logic for batch ticket imports.
//
// The package holds the domain logic independent of any transport. It is
// used by the HTTP server, the inbox sweeper and the importctl CLI without
// modification.
//
// # Import pipeline
//
// [Service.ImportBatch] takes a whole file and runs it through:
//
//  1. An import slot from the [ImportLimiter]
//  2. Format detection and parsing (package parse)
//  3. A best-effort copy of the raw file through the archive.Archiver
//  4. Per record: [Validator.Validate], optional keyword classification,
//     and Store.Save under a timeout
//  5. A best-effort summary on the events.Publisher
//
// A record that fails at any step is reported in [ImportOutcome.Failures]
// and the next record is processed. Only batch-wide problems are returned
// as errors: [ErrTooManyImports], [ErrFileTooLarge],
// *parse.UnsupportedFormatError and *parse.MalformedFileError.
//
// # Validation
//
// Rules run in a fixed order and every failing rule is reported. Unknown
// enumeration values are rejected under [EnumStrict] and replaced with the
// field default under [EnumLenient].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB008: Store errors (duplicates, connections, timeouts)
//   - VAL001-VAL006: Validation errors inside a record
//   - FILE001-FILE006: File errors (size, encoding, format)
//   - IMP001-IMP004: Import errors (busy, cancelled, crashed record)
package core
