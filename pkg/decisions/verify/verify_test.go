package verify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/LoMein123/DecisionsBot-v2/internal/board"
	"github.com/LoMein123/DecisionsBot-v2/internal/modqueue"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/admission"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/config"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store/memstore"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/verify"
)

const year = "2023-2024"

type harness struct {
	queue     *modqueue.Queue
	board     *board.Board
	store     *memstore.Store
	decisions *verify.DecisionFlow
	deletions *verify.DeletionFlow
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	comps, err := (&config.Loader{}).Load()
	if err != nil {
		t.Fatalf("load components: %v", err)
	}

	h := &harness{
		queue: modqueue.New("mod-queue"),
		board: board.New("decisions"),
		store: memstore.New(),
	}
	h.decisions = verify.NewDecisionFlow(verify.DecisionOptions{
		Moderation: h.queue,
		Announcer:  h.board,
		Store:      h.store,
		Classifier: comps.Classifier,
		Year:       func() string { return year },
		Rand:       func(n int) int { return 2 },
	})
	h.deletions = verify.NewDeletionFlow(verify.DeletionOptions{
		Moderation: h.queue,
		Announcer:  h.board,
		Store:      h.store,
	})
	return h
}

var alice = admission.User{ID: "1001", Name: "alice"}

func submission(user admission.User) admission.Submission {
	return admission.Submission{
		Submitter:     user,
		School:        "Waterloo",
		Program:       "Computer Science",
		Status:        admission.Accepted,
		Average:       "95.5",
		Date:          "Feb 2",
		ApplicantType: admission.Type101,
	}
}

// approved submits and approves a decision, returning its identifier.
func (h *harness) approved(t *testing.T, sub admission.Submission) string {
	t.Helper()
	ctx := context.Background()
	rec, err := h.decisions.Submit(ctx, sub)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := h.decisions.Approve(ctx, rec.Handle)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	return res.Identifier
}

func (h *harness) rows(t *testing.T, c store.Copy) []store.Row {
	t.Helper()
	rows, err := h.store.ReadAllRows(context.Background(), c, year)
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		from, to verify.State
		ok       bool
	}{
		{verify.Submitted, verify.PendingModeration, true},
		{verify.PendingModeration, verify.Persisted, true},
		{verify.PendingModeration, verify.Discarded, true},
		{verify.Submitted, verify.Persisted, false},
		{verify.Persisted, verify.Discarded, false},
		{verify.Discarded, verify.PendingModeration, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestSubmitAndApprove(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rec, err := h.decisions.Submit(ctx, submission(alice))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.State != verify.PendingModeration || rec.Handle == "" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(h.rows(t, store.Public)) != 0 {
		t.Fatal("nothing may be persisted before approval")
	}

	res, err := h.decisions.Approve(ctx, rec.Handle)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Record.State != verify.Persisted {
		t.Errorf("state = %s", res.Record.State)
	}
	if !res.Classification.LabelFound {
		t.Error("expected both labels to be found")
	}
	if res.Reaction != verify.Reactions[2] {
		t.Errorf("reaction = %q", res.Reaction)
	}
	if h.queue.Len() != 0 {
		t.Error("approved record should leave the queue")
	}

	public := h.rows(t, store.Public)
	if len(public) != 1 {
		t.Fatalf("expected 1 public row, got %d", len(public))
	}
	pub := public[0]
	if pub.School != "waterloo" || pub.Program != "computer science" {
		t.Errorf("public row not canonical: %+v", pub)
	}
	if pub.Tags != "computer science, waterloo" {
		t.Errorf("tags = %q", pub.Tags)
	}
	if pub.Identifier != res.Identifier || pub.Identifier == "" {
		t.Errorf("identifier = %q, want %q", pub.Identifier, res.Identifier)
	}
	if pub.Submitter != "alice" || pub.SubmitterID != "" {
		t.Errorf("public row identity = %q/%q", pub.Submitter, pub.SubmitterID)
	}

	private := h.rows(t, store.Private)
	if len(private) != 1 {
		t.Fatalf("expected 1 private row, got %d", len(private))
	}
	if p := private[0]; p.SubmitterID != alice.ID || p.Deleted || p.Identifier != res.Identifier {
		t.Errorf("unexpected private row %+v", p)
	}

	if _, ok := h.board.Get(res.Identifier); !ok {
		t.Error("announcement should be retrievable by identifier")
	}
}

func TestApproveAnonymous(t *testing.T) {
	h := newHarness(t)
	sub := submission(alice)
	sub.Anonymous = true
	id := h.approved(t, sub)

	pub := h.rows(t, store.Public)[0]
	if pub.Submitter != verify.AnonymousName {
		t.Errorf("public submitter = %q", pub.Submitter)
	}
	if pub.Identifier != "" {
		t.Errorf("anonymous public row must not carry an identifier, got %q", pub.Identifier)
	}

	priv := h.rows(t, store.Private)[0]
	if priv.Submitter != "alice" || priv.SubmitterID != alice.ID || !priv.Anonymous || priv.Identifier != id {
		t.Errorf("private row lost identity: %+v", priv)
	}

	a, _ := h.board.Get(id)
	if a.Summary.Submitter != verify.AnonymousName {
		t.Errorf("announcement reveals submitter %q", a.Summary.Submitter)
	}
}

func TestNoReactionUnlessAccepted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sub := submission(alice)
	sub.Status = admission.Rejected

	rec, _ := h.decisions.Submit(ctx, sub)
	res, err := h.decisions.Approve(ctx, rec.Handle)
	if err != nil {
		t.Fatal(err)
	}
	if res.Reaction != "" {
		t.Errorf("rejected decision got reaction %q", res.Reaction)
	}
}

func TestRejectDecision(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rec, _ := h.decisions.Submit(ctx, submission(alice))
	got, err := h.decisions.Reject(ctx, rec.Handle)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got.State != verify.Discarded {
		t.Errorf("state = %s", got.State)
	}
	if h.queue.Len() != 0 || len(h.board.Announcements()) != 0 || len(h.rows(t, store.Public)) != 0 {
		t.Error("rejection must have no side effects")
	}
	if _, err := h.decisions.Approve(ctx, rec.Handle); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("approving a rejected record: expected ErrNotFound, got %v", err)
	}
}

func TestSubmitStoresCanonicalStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sub := submission(alice)
	sub.Status = "accepted"
	sub.ApplicantType = "101"

	rec, err := h.decisions.Submit(ctx, sub)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := h.decisions.Approve(ctx, rec.Handle)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Reaction == "" {
		t.Error("lowercase accepted should still earn a reaction")
	}
	if got := h.rows(t, store.Public)[0].Status; got != string(admission.Accepted) {
		t.Errorf("stored status = %q, want %q", got, admission.Accepted)
	}
}

func TestSubmitInvalid(t *testing.T) {
	h := newHarness(t)
	sub := submission(alice)
	sub.Status = "Maybe"

	_, err := h.decisions.Submit(context.Background(), sub)
	if !internalerr.IsUserError(err) || !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected invalid-input user error, got %v", err)
	}
	if h.queue.Len() != 0 {
		t.Error("invalid submission must not reach moderation")
	}
}

func TestApproveRetriesAfterStoreFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rec, _ := h.decisions.Submit(ctx, submission(alice))

	h.store.Err = errors.New("sheet unavailable")
	_, err := h.decisions.Approve(ctx, rec.Handle)
	if !errors.Is(err, internalerr.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	pending, _ := h.queue.Get(ctx, rec.Handle)
	if pending.State != verify.PendingModeration || pending.Progress.AnnouncementID == "" {
		t.Fatalf("record should stay pending with progress, got %+v", pending)
	}

	h.store.Err = nil
	res, err := h.decisions.Approve(ctx, rec.Handle)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Identifier != pending.Progress.AnnouncementID {
		t.Errorf("retry re-announced: %s vs %s", res.Identifier, pending.Progress.AnnouncementID)
	}
	if n := len(h.board.Announcements()); n != 1 {
		t.Errorf("expected 1 announcement, got %d", n)
	}
	if n := len(h.rows(t, store.Public)); n != 1 {
		t.Errorf("expected 1 public row, got %d", n)
	}
}

func TestDeletionRefusals(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	owned := h.approved(t, submission(alice))
	anon := submission(alice)
	anon.Anonymous = true
	anonymous := h.approved(t, anon)

	cases := []struct {
		name      string
		requester admission.User
		id        string
		msg       string
	}{
		{"unknown", alice, "01UNKNOWN", verify.MsgNotFound},
		{"not owner", admission.User{ID: "2002", Name: "bob"}, owned, verify.MsgNotOwner},
		{"anonymous", alice, anonymous, verify.MsgAnonymous},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.deletions.Request(ctx, tc.requester, tc.id)
			var ue *internalerr.UserError
			if !errors.As(err, &ue) {
				t.Fatalf("expected UserError, got %v", err)
			}
			if ue.Msg != tc.msg {
				t.Errorf("message = %q, want %q", ue.Msg, tc.msg)
			}
		})
	}

	if h.queue.Len() != 0 {
		t.Error("refused requests must not reach moderation")
	}
	if n := len(h.rows(t, store.Public)); n != 2 {
		t.Errorf("refusals mutated the store: %d public rows", n)
	}
}

func TestDeletionApprove(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.approved(t, submission(alice))

	rec, err := h.deletions.Request(ctx, alice, id)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if rec.Deletion.Partition != year || rec.Deletion.Row != 1 || rec.Deletion.School != "waterloo" {
		t.Errorf("request not located: %+v", rec.Deletion)
	}

	got, err := h.deletions.Approve(ctx, rec.Handle)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got.State != verify.Persisted {
		t.Errorf("state = %s", got.State)
	}

	if n := len(h.rows(t, store.Public)); n != 0 {
		t.Errorf("public row not deleted: %d rows", n)
	}
	priv := h.rows(t, store.Private)
	if len(priv) != 1 || !priv[0].Deleted {
		t.Errorf("private row should be tombstoned: %+v", priv)
	}
	if _, ok := h.board.Get(id); ok {
		t.Error("announcement should be deleted")
	}

	notes := h.board.Notifications(alice.ID)
	want := "Decision deleted (Year: 2023-2024, Decision ID: " + id + ")."
	if len(notes) != 1 || notes[0].Message != want {
		t.Errorf("notifications = %+v, want %q", notes, want)
	}
	if h.queue.Len() != 0 {
		t.Error("approved deletion should leave the queue")
	}

	// Once tombstoned the decision is no longer deletable.
	if _, err := h.deletions.Request(ctx, alice, id); !internalerr.IsUserError(err) {
		t.Errorf("expected user error for deleted decision, got %v", err)
	}
}

func TestDeletionRaceSkipsMissingRows(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.approved(t, submission(alice))

	first, err := h.deletions.Request(ctx, alice, id)
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.deletions.Request(ctx, alice, id)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.deletions.Approve(ctx, first.Handle); err != nil {
		t.Fatalf("first Approve: %v", err)
	}
	if _, err := h.deletions.Approve(ctx, second.Handle); err != nil {
		t.Fatalf("second Approve should skip missing rows, got %v", err)
	}
	if h.queue.Len() != 0 {
		t.Error("both records should be resolved")
	}
	if n := len(h.rows(t, store.Private)); n != 1 {
		t.Errorf("private history must be kept, got %d rows", n)
	}
}

func TestDeletionAfterRowsShift(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	bob := admission.User{ID: "2002", Name: "bob"}
	first := h.approved(t, submission(bob))
	second := h.approved(t, submission(alice))

	later, err := h.deletions.Request(ctx, alice, second)
	if err != nil {
		t.Fatal(err)
	}
	if later.Deletion.Row != 2 {
		t.Fatalf("row = %d, want 2", later.Deletion.Row)
	}

	earlier, err := h.deletions.Request(ctx, bob, first)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.deletions.Approve(ctx, earlier.Handle); err != nil {
		t.Fatal(err)
	}

	// Row 2 no longer exists; the request must still remove alice's row.
	if _, err := h.deletions.Approve(ctx, later.Handle); err != nil {
		t.Fatal(err)
	}
	if n := len(h.rows(t, store.Public)); n != 0 {
		t.Errorf("expected no public rows, got %d", n)
	}
	for _, r := range h.rows(t, store.Private) {
		if !r.Deleted {
			t.Errorf("row %s not tombstoned", r.Identifier)
		}
	}
}

func TestRejectDeletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.approved(t, submission(alice))

	rec, _ := h.deletions.Request(ctx, alice, id)
	if _, err := h.deletions.Reject(ctx, rec.Handle); err != nil {
		t.Fatal(err)
	}
	if n := len(h.rows(t, store.Public)); n != 1 {
		t.Errorf("rejected deletion removed rows: %d left", n)
	}
	if len(h.board.Notifications(alice.ID)) != 0 {
		t.Error("rejection must not notify")
	}
}

func TestKindMismatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.approved(t, submission(alice))

	rec, _ := h.deletions.Request(ctx, alice, id)
	if _, err := h.decisions.Approve(ctx, rec.Handle); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if h.queue.Len() != 1 {
		t.Error("mismatched approval must leave the record pending")
	}
	if _, err := h.deletions.Approve(ctx, rec.Handle); err != nil {
		t.Errorf("record should be released after a mismatch, got %v", err)
	}
}

// gatedAnnouncer holds every Post until release is closed.
type gatedAnnouncer struct {
	*board.Board
	entered chan struct{}
	release chan struct{}
}

func (g *gatedAnnouncer) Post(ctx context.Context, s verify.Summary) (string, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.Board.Post(ctx, s)
}

func TestConcurrentApproveResolvesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	comps, err := (&config.Loader{}).Load()
	if err != nil {
		t.Fatal(err)
	}
	gate := &gatedAnnouncer{Board: h.board, entered: make(chan struct{}, 1), release: make(chan struct{})}
	flow := verify.NewDecisionFlow(verify.DecisionOptions{
		Moderation: h.queue,
		Announcer:  gate,
		Store:      h.store,
		Classifier: comps.Classifier,
		Year:       func() string { return year },
		Rand:       func(n int) int { return 2 },
	})

	rec, err := flow.Submit(ctx, submission(alice))
	if err != nil {
		t.Fatal(err)
	}

	first := make(chan error, 1)
	go func() {
		_, err := flow.Approve(ctx, rec.Handle)
		first <- err
	}()
	<-gate.entered

	if _, err := flow.Approve(ctx, rec.Handle); !errors.Is(err, internalerr.ErrConflict) {
		t.Errorf("second Approve: expected ErrConflict, got %v", err)
	}
	if _, err := flow.Reject(ctx, rec.Handle); !errors.Is(err, internalerr.ErrConflict) {
		t.Errorf("Reject during approval: expected ErrConflict, got %v", err)
	}

	close(gate.release)
	if err := <-first; err != nil {
		t.Fatalf("first Approve: %v", err)
	}

	if n := len(h.rows(t, store.Public)); n != 1 {
		t.Errorf("public rows = %d, want 1", n)
	}
	if n := len(h.rows(t, store.Private)); n != 1 {
		t.Errorf("private rows = %d, want 1", n)
	}
	if n := len(h.board.Announcements()); n != 1 {
		t.Errorf("announcements = %d, want 1", n)
	}
	if _, err := flow.Approve(ctx, rec.Handle); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Approve after resolution: expected ErrNotFound, got %v", err)
	}
}
