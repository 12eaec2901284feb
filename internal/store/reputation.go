// Package store defines the reputation store for human-triaged Telegram
// link identifiers, with in-memory, SQLite and Postgres backends.
package store

import "context"

// Classification is the triage state of a Telegram identifier.
// Unknown means the id has never been triaged (absent from the store).
type Classification int

const (
	Unknown Classification = iota
	Safe
	Malicious
)

func (c Classification) String() string {
	switch c {
	case Safe:
		return "safe"
	case Malicious:
		return "malicious"
	default:
		return "unknown"
	}
}

// ParseClassification maps a stored column value back to a Classification.
func ParseClassification(s string) Classification {
	switch s {
	case "safe":
		return Safe
	case "malicious":
		return Malicious
	default:
		return Unknown
	}
}

// ReputationStore persists reviewer verdicts keyed by Telegram identifier.
// An id is in exactly one of the safe or malicious states, or in neither
// (Unknown). Mark and Reset operations are atomic per id: no reader may
// observe an id as both safe and malicious.
type ReputationStore interface {
	// Lookup returns the current classification, Unknown when untriaged.
	Lookup(ctx context.Context, id string) (Classification, error)

	// MarkSafe records the id as safe, clearing any malicious record.
	// Idempotent.
	MarkSafe(ctx context.Context, id string) error

	// MarkMalicious records the id as malicious, clearing any safe record.
	// Idempotent.
	MarkMalicious(ctx context.Context, id string) error

	// Reset removes the id entirely, returning it to Unknown.
	Reset(ctx context.Context, id string) error

	// Close releases the underlying storage.
	Close() error
}
