package store

import (
	"context"
	"time"
)

// ReservedPartition is never listed as an applicant year.
const ReservedPartition = "Home"

// Copy selects which of the two copies of a decision an operation targets.
type Copy string

const (
	// Public rows are anonymized: no identity and, for anonymous decisions,
	// no identifier.
	Public Copy = "public"
	// Private rows keep the true identity and a tombstone flag.
	Private Copy = "private"
)

// Store persists decisions in tables partitioned by applicant year.
// Row indexes are 1-based positions within a partition; deleting a row
// shifts the rows after it up by one.
//
// Lookups that miss return internalerr.ErrNotFound. Appending a row whose
// identifier already exists in the same copy and partition returns
// internalerr.ErrDuplicate.
type Store interface {
	Close() error

	AppendRow(ctx context.Context, c Copy, partition string, r Row) error
	FindRowByIdentifier(ctx context.Context, c Copy, identifier string) (Location, error)
	ReadAllRows(ctx context.Context, c Copy, partition string) ([]Row, error)
	ListPartitions(ctx context.Context) ([]string, error)

	// DeleteRow physically removes a public row.
	DeleteRow(ctx context.Context, partition string, index int) error
	// MarkTombstone flags a private row as deleted.
	MarkTombstone(ctx context.Context, partition string, index int) error
}

// Location addresses a row.
type Location struct {
	Partition string
	Index     int
}

// Row is one persisted decision.
type Row struct {
	Status        string
	School        string // canonical
	Program       string // canonical
	Average       string
	Date          string
	ApplicantType string
	Submitter     string // display name, or the anonymous placeholder
	Note          string
	Tags          string // comma-joined, see tags.Join
	Identifier    string // external identifier of the announcement

	// Private copy only.
	SubmitterID string
	Anonymous   bool
	Deleted     bool

	CreatedAt time.Time
}
