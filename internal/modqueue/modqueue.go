// Package modqueue is an in-process moderation queue. Pending records are
// kept in arrival order under random handles until a moderator resolves
// them.
package modqueue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/verify"
)

// Queue implements verify.Moderation.
type Queue struct {
	name string

	mu      sync.Mutex
	order   []string
	records map[string]verify.Record
	claimed map[string]bool
}

// New creates an empty queue. name identifies the moderation target in logs
// and API responses.
func New(name string) *Queue {
	return &Queue{
		name:    name,
		records: make(map[string]verify.Record),
		claimed: make(map[string]bool),
	}
}

// Name returns the moderation target.
func (q *Queue) Name() string { return q.name }

// Post adds rec to the end of the queue and assigns its handle.
func (q *Queue) Post(ctx context.Context, rec verify.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	handle := uuid.NewString()
	rec.Handle = handle
	q.records[handle] = rec
	q.order = append(q.order, handle)
	return handle, nil
}

// Get returns the pending record for handle.
func (q *Queue) Get(ctx context.Context, handle string) (verify.Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[handle]
	if !ok {
		return verify.Record{}, fmt.Errorf("%w: pending record %s", internalerr.ErrNotFound, handle)
	}
	return rec, nil
}

// Claim returns the pending record for handle and marks it in flight until
// Release or Remove. A second claim fails with ErrConflict.
func (q *Queue) Claim(ctx context.Context, handle string) (verify.Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[handle]
	if !ok {
		return verify.Record{}, fmt.Errorf("%w: pending record %s", internalerr.ErrNotFound, handle)
	}
	if q.claimed[handle] {
		return verify.Record{}, fmt.Errorf("%w: pending record %s is already being resolved", internalerr.ErrConflict, handle)
	}
	q.claimed[handle] = true
	return rec, nil
}

// Release clears the in-flight mark set by Claim. Unknown handles are
// ignored.
func (q *Queue) Release(ctx context.Context, handle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.claimed, handle)
	return nil
}

// Update replaces a pending record, keeping its position.
func (q *Queue) Update(ctx context.Context, rec verify.Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.records[rec.Handle]; !ok {
		return fmt.Errorf("%w: pending record %s", internalerr.ErrNotFound, rec.Handle)
	}
	q.records[rec.Handle] = rec
	return nil
}

// Remove drops a pending record. Removing an unknown handle is a no-op.
func (q *Queue) Remove(ctx context.Context, handle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.claimed, handle)
	if _, ok := q.records[handle]; !ok {
		return nil
	}
	delete(q.records, handle)
	for i, h := range q.order {
		if h == handle {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns pending records, oldest first.
func (q *Queue) List(ctx context.Context) ([]verify.Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]verify.Record, 0, len(q.order))
	for _, h := range q.order {
		out = append(out, q.records[h])
	}
	return out, nil
}

// Len returns the number of pending records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
