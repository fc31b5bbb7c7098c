// Package verify runs submitted decisions and deletion requests through
// moderator approval. Each pending item is a Record held by a Moderation
// surface under an opaque handle; approval and rejection are transition
// functions over that record.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/admission"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
)

// Kind distinguishes the two verification workflows.
type Kind string

const (
	KindDecision Kind = "decision"
	KindDeletion Kind = "deletion"
)

// State is the position of a record in its workflow.
type State string

const (
	Submitted         State = "submitted"
	PendingModeration State = "pending"
	Persisted         State = "persisted"
	Discarded         State = "discarded"
)

var transitions = map[State][]State{
	Submitted:         {PendingModeration},
	PendingModeration: {Persisted, Discarded},
}

// CanTransition reports whether a record may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Record is a pending verification item. It carries everything approval
// needs, so nothing is re-derived from what the moderators were shown.
type Record struct {
	Handle      string
	Kind        Kind
	State       State
	Decision    admission.Submission      // KindDecision
	Deletion    admission.DeletionRequest // KindDeletion
	Progress    Progress
	SubmittedAt time.Time
}

// Progress checkpoints the side effects of an approval that has been
// attempted but not completed. A retried approval resumes after the last
// recorded step.
type Progress struct {
	// Decision approval.
	Partition      string
	AnnouncementID string
	Reaction       string
	PublicWritten  bool
	PrivateWritten bool

	// Deletion approval.
	PublicDeleted     bool
	PrivateTombstoned bool
	PostDeleted       bool
	Notified          bool
}

func (r *Record) transition(next State) error {
	if !r.State.CanTransition(next) {
		return fmt.Errorf("%w: %s record %s cannot move from %s to %s",
			internalerr.ErrInvalidInput, r.Kind, r.Handle, r.State, next)
	}
	r.State = next
	return nil
}

// Moderation is the surface where pending records wait for a moderator.
// Records are listed in arrival order.
type Moderation interface {
	Post(ctx context.Context, rec Record) (handle string, err error)
	Get(ctx context.Context, handle string) (Record, error)
	// Claim is Get that also marks the record in flight; a record that is
	// already claimed yields internalerr.ErrConflict.
	Claim(ctx context.Context, handle string) (Record, error)
	Release(ctx context.Context, handle string) error
	Update(ctx context.Context, rec Record) error
	Remove(ctx context.Context, handle string) error
	List(ctx context.Context) ([]Record, error)
}

// Summary is the public announcement of an approved decision.
type Summary struct {
	Title         string // "School - Program"
	Submitter     string
	Status        admission.Status
	Average       string
	Date          string
	ApplicantType admission.ApplicantType
	Note          string
	Tags          []string
	Reaction      string
}

// Announcer is the public announcement surface. Post returns the external
// identifier later used to locate and delete the decision.
type Announcer interface {
	Post(ctx context.Context, s Summary) (id string, err error)
	Delete(ctx context.Context, id string) error
	NotifyUser(ctx context.Context, userID, message string) error
}

// claim takes exclusive hold of a pending record of the given kind. The
// caller must call release when done; releasing after Remove is harmless.
func claim(ctx context.Context, queue Moderation, handle string, kind Kind) (Record, error) {
	rec, err := queue.Claim(ctx, handle)
	if err != nil {
		return Record{}, err
	}
	if rec.Kind != kind {
		release(ctx, queue, handle)
		return Record{}, fmt.Errorf("%w: record %s is a %s, not a %s",
			internalerr.ErrInvalidInput, handle, rec.Kind, kind)
	}
	return rec, nil
}

func release(ctx context.Context, queue Moderation, handle string) {
	if err := queue.Release(context.WithoutCancel(ctx), handle); err != nil {
		slog.Warn("could not release pending record", "handle", handle, "error", err)
	}
}

// discard removes a pending record without any side effects.
func discard(ctx context.Context, queue Moderation, handle string, kind Kind) (Record, error) {
	rec, err := claim(ctx, queue, handle, kind)
	if err != nil {
		return Record{}, err
	}
	defer release(ctx, queue, handle)

	if err := rec.transition(Discarded); err != nil {
		return Record{}, err
	}
	if err := queue.Remove(ctx, handle); err != nil {
		return Record{}, err
	}
	return rec, nil
}
