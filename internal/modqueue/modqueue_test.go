package modqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/verify"
)

func TestQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := New("mod-queue")

	var handles []string
	for _, kind := range []verify.Kind{verify.KindDecision, verify.KindDeletion, verify.KindDecision} {
		h, err := q.Post(ctx, verify.Record{Kind: kind, State: verify.PendingModeration})
		if err != nil {
			t.Fatalf("Post: %v", err)
		}
		handles = append(handles, h)
	}

	if err := q.Remove(ctx, handles[1]); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	recs, err := q.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Handle != handles[0] || recs[1].Handle != handles[2] {
		t.Errorf("List order wrong: %+v", recs)
	}
	if q.Len() != 2 {
		t.Errorf("Len = %d, want 2", q.Len())
	}
}

func TestQueueHandlesUnique(t *testing.T) {
	q := New("mod-queue")
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		h, _ := q.Post(context.Background(), verify.Record{})
		if seen[h] {
			t.Fatalf("duplicate handle %s", h)
		}
		seen[h] = true
	}
}

func TestQueueUpdateAndGet(t *testing.T) {
	ctx := context.Background()
	q := New("mod-queue")

	h, _ := q.Post(ctx, verify.Record{Kind: verify.KindDecision})
	rec, err := q.Get(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	rec.Progress.AnnouncementID = "01ABC"
	if err := q.Update(ctx, rec); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := q.Get(ctx, h)
	if got.Progress.AnnouncementID != "01ABC" {
		t.Errorf("progress not saved: %+v", got.Progress)
	}
}

func TestQueueMissing(t *testing.T) {
	ctx := context.Background()
	q := New("mod-queue")

	if _, err := q.Get(ctx, "nope"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if err := q.Update(ctx, verify.Record{Handle: "nope"}); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
	if err := q.Remove(ctx, "nope"); err != nil {
		t.Errorf("Remove of unknown handle should be a no-op, got %v", err)
	}
}

func TestQueueClaim(t *testing.T) {
	ctx := context.Background()
	q := New("mod-queue")
	h, _ := q.Post(ctx, verify.Record{Kind: verify.KindDecision, State: verify.PendingModeration})

	if _, err := q.Claim(ctx, h); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := q.Claim(ctx, h); !errors.Is(err, internalerr.ErrConflict) {
		t.Fatalf("second Claim: expected ErrConflict, got %v", err)
	}
	if _, err := q.Get(ctx, h); err != nil {
		t.Errorf("Get should ignore claims, got %v", err)
	}

	if err := q.Release(ctx, h); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := q.Claim(ctx, h); err != nil {
		t.Fatalf("Claim after Release: %v", err)
	}

	if err := q.Remove(ctx, h); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Claim(ctx, h); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Claim after Remove: expected ErrNotFound, got %v", err)
	}
	if err := q.Release(ctx, h); err != nil {
		t.Errorf("Release of removed handle should be a no-op, got %v", err)
	}
}
