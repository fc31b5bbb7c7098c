package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/admission"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store"
)

// Messages shown to a user whose deletion request is refused.
const (
	MsgNotFound  = "Decision not found."
	MsgNotOwner  = "You cannot delete someone else's decision."
	MsgAnonymous = "You cannot delete an anonymous decision."
)

// DeletionOptions configures a DeletionFlow. Now and Logger are optional.
type DeletionOptions struct {
	Moderation Moderation
	Announcer  Announcer
	Store      store.Store
	Now        func() time.Time
	Logger     *slog.Logger
}

// DeletionFlow moves deletion requests through moderation.
type DeletionFlow struct {
	queue  Moderation
	board  Announcer
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewDeletionFlow creates a DeletionFlow.
func NewDeletionFlow(opts DeletionOptions) *DeletionFlow {
	f := &DeletionFlow{
		queue:  opts.Moderation,
		board:  opts.Announcer,
		store:  opts.Store,
		now:    opts.Now,
		logger: opts.Logger,
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// DeletedMessage is sent to the requester once a deletion is approved.
func DeletedMessage(partition, identifier string) string {
	return fmt.Sprintf("Decision deleted (Year: %s, Decision ID: %s).", partition, identifier)
}

// Request checks that requester may delete the decision announced as
// identifier and posts the request for moderation. Refusals are returned
// as *internalerr.UserError and leave no trace.
func (f *DeletionFlow) Request(ctx context.Context, requester admission.User, identifier string) (Record, error) {
	private, err := f.locate(ctx, store.Private, identifier)
	if err != nil {
		return Record{}, err
	}

	rows, err := f.store.ReadAllRows(ctx, store.Private, private.Partition)
	if err != nil {
		return Record{}, fmt.Errorf("read %s: %w", private.Partition, err)
	}
	if private.Index > len(rows) {
		return Record{}, internalerr.NewUserError(internalerr.ErrNotFound, MsgNotFound)
	}
	row := rows[private.Index-1]

	if row.Anonymous {
		return Record{}, internalerr.NewUserError(internalerr.ErrForbidden, MsgAnonymous)
	}
	if row.SubmitterID != requester.ID {
		return Record{}, internalerr.NewUserError(internalerr.ErrForbidden, MsgNotOwner)
	}

	public, err := f.locate(ctx, store.Public, identifier)
	if err != nil {
		return Record{}, err
	}

	status, _ := admission.ParseStatus(row.Status)
	rec := Record{
		Kind:  KindDeletion,
		State: Submitted,
		Deletion: admission.DeletionRequest{
			Requester:  requester,
			Identifier: identifier,
			Partition:  public.Partition,
			Row:        public.Index,
			School:     row.School,
			Program:    row.Program,
			Status:     status,
			Average:    row.Average,
		},
		SubmittedAt: f.now(),
	}
	if err := rec.transition(PendingModeration); err != nil {
		return Record{}, err
	}

	handle, err := f.queue.Post(ctx, rec)
	if err != nil {
		return Record{}, fmt.Errorf("post deletion for moderation: %w", err)
	}
	rec.Handle = handle

	f.logger.Info("deletion requested",
		"handle", handle,
		"requester", requester.ID,
		"id", identifier,
		"partition", public.Partition,
		"row", public.Index,
	)
	return rec, nil
}

func (f *DeletionFlow) locate(ctx context.Context, c store.Copy, identifier string) (store.Location, error) {
	loc, err := f.store.FindRowByIdentifier(ctx, c, identifier)
	if errors.Is(err, internalerr.ErrNotFound) {
		return store.Location{}, internalerr.NewUserError(internalerr.ErrNotFound, MsgNotFound)
	}
	if err != nil {
		return store.Location{}, fmt.Errorf("find %s: %w", identifier, err)
	}
	return loc, nil
}

// Approve deletes the public row, tombstones the private row, removes the
// announcement and notifies the requester. Rows that are already gone are
// skipped. On any other failure the record stays pending with its progress
// saved.
func (f *DeletionFlow) Approve(ctx context.Context, handle string) (Record, error) {
	rec, err := claim(ctx, f.queue, handle, KindDeletion)
	if err != nil {
		return Record{}, err
	}
	defer release(ctx, f.queue, handle)
	req := rec.Deletion
	p := &rec.Progress

	if !p.PublicDeleted {
		if err := f.deletePublic(ctx, req); err != nil {
			return Record{}, saveProgress(ctx, f.queue, f.logger, rec, err)
		}
		p.PublicDeleted = true
	}

	if !p.PrivateTombstoned {
		if err := f.tombstonePrivate(ctx, req); err != nil {
			return Record{}, saveProgress(ctx, f.queue, f.logger, rec, err)
		}
		p.PrivateTombstoned = true
	}

	if !p.PostDeleted {
		err := f.board.Delete(ctx, req.Identifier)
		if err != nil && !errors.Is(err, internalerr.ErrNotFound) {
			return Record{}, saveProgress(ctx, f.queue, f.logger, rec,
				fmt.Errorf("delete announcement %s: %w", req.Identifier, err))
		}
		p.PostDeleted = true
	}

	if !p.Notified {
		msg := DeletedMessage(req.Partition, req.Identifier)
		if err := f.board.NotifyUser(ctx, req.Requester.ID, msg); err != nil {
			f.logger.Warn("could not notify requester", "user", req.Requester.ID, "error", err)
		}
		p.Notified = true
	}

	if err := rec.transition(Persisted); err != nil {
		return Record{}, err
	}
	if err := f.queue.Remove(ctx, handle); err != nil {
		return Record{}, fmt.Errorf("remove approved deletion %s: %w", handle, err)
	}

	f.logger.Info("deletion approved", "handle", handle, "id", req.Identifier, "partition", req.Partition)
	return rec, nil
}

// deletePublic removes the public row recorded on the request. Rows shift
// up as others are deleted, so a row that no longer carries the identifier
// is located again before deleting.
func (f *DeletionFlow) deletePublic(ctx context.Context, req admission.DeletionRequest) error {
	partition, index := req.Partition, req.Row

	rows, err := f.store.ReadAllRows(ctx, store.Public, partition)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", internalerr.ErrStoreUnavailable, partition, err)
	}
	if index < 1 || index > len(rows) || rows[index-1].Identifier != req.Identifier {
		loc, err := f.store.FindRowByIdentifier(ctx, store.Public, req.Identifier)
		if errors.Is(err, internalerr.ErrNotFound) {
			f.logger.Warn("public row already deleted", "id", req.Identifier, "partition", partition)
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: find %s: %w", internalerr.ErrStoreUnavailable, req.Identifier, err)
		}
		partition, index = loc.Partition, loc.Index
	}

	err = f.store.DeleteRow(ctx, partition, index)
	if errors.Is(err, internalerr.ErrNotFound) {
		f.logger.Warn("public row already deleted", "id", req.Identifier, "partition", partition)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: delete row %s/%d: %w", internalerr.ErrStoreUnavailable, partition, index, err)
	}
	return nil
}

func (f *DeletionFlow) tombstonePrivate(ctx context.Context, req admission.DeletionRequest) error {
	loc, err := f.store.FindRowByIdentifier(ctx, store.Private, req.Identifier)
	if errors.Is(err, internalerr.ErrNotFound) {
		f.logger.Warn("private row already tombstoned", "id", req.Identifier)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: find %s: %w", internalerr.ErrStoreUnavailable, req.Identifier, err)
	}

	err = f.store.MarkTombstone(ctx, loc.Partition, loc.Index)
	if errors.Is(err, internalerr.ErrNotFound) {
		f.logger.Warn("private row already tombstoned", "id", req.Identifier)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: tombstone %s/%d: %w", internalerr.ErrStoreUnavailable, loc.Partition, loc.Index, err)
	}
	return nil
}

// Reject discards a pending deletion request.
func (f *DeletionFlow) Reject(ctx context.Context, handle string) (Record, error) {
	rec, err := discard(ctx, f.queue, handle, KindDeletion)
	if err != nil {
		return Record{}, err
	}
	f.logger.Info("deletion rejected", "handle", handle)
	return rec, nil
}
