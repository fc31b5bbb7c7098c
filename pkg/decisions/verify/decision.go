package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/admission"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/classify"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/config"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/tags"
)

// AnonymousName replaces the submitter on public copies of anonymous decisions.
const AnonymousName = "Anonymous"

// Reactions decorate accepted decisions.
var Reactions = []string{"🤩", "🥳", "🎉", "🎊", "✨", "💯", "‼", "🔥"}

// DecisionOptions configures a DecisionFlow. Year, Rand, Now and Logger are
// optional.
type DecisionOptions struct {
	Moderation Moderation
	Announcer  Announcer
	Store      store.Store
	Classifier *classify.Classifier

	// Year returns the applicant-year partition new decisions are written to.
	Year   func() string
	Rand   func(n int) int
	Now    func() time.Time
	Logger *slog.Logger
}

// DecisionFlow moves submitted decisions through moderation into the store.
type DecisionFlow struct {
	queue      Moderation
	board      Announcer
	store      store.Store
	classifier *classify.Classifier
	year       func() string
	rand       func(n int) int
	now        func() time.Time
	logger     *slog.Logger
}

// Approval is the outcome of an approved decision.
type Approval struct {
	Record         Record
	Classification classify.Result
	Partition      string
	Identifier     string
	Reaction       string
}

// NewDecisionFlow creates a DecisionFlow.
func NewDecisionFlow(opts DecisionOptions) *DecisionFlow {
	f := &DecisionFlow{
		queue:      opts.Moderation,
		board:      opts.Announcer,
		store:      opts.Store,
		classifier: opts.Classifier,
		year:       opts.Year,
		rand:       opts.Rand,
		now:        opts.Now,
		logger:     opts.Logger,
	}
	if f.classifier == nil {
		f.classifier = classify.New(classify.Options{Thresholds: classify.DefaultThresholds()})
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.year == nil {
		f.year = func() string { return config.ApplicantYearAt(f.now()) }
	}
	if f.rand == nil {
		f.rand = rand.Intn
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Submit validates a decision and posts it for moderation.
func (f *DecisionFlow) Submit(ctx context.Context, sub admission.Submission) (Record, error) {
	if err := sub.Validate(); err != nil {
		return Record{}, internalerr.NewUserError(internalerr.ErrInvalidInput, err.Error())
	}

	rec := Record{
		Kind:        KindDecision,
		State:       Submitted,
		Decision:    sub,
		SubmittedAt: f.now(),
	}
	if err := rec.transition(PendingModeration); err != nil {
		return Record{}, err
	}

	handle, err := f.queue.Post(ctx, rec)
	if err != nil {
		return Record{}, fmt.Errorf("post decision for moderation: %w", err)
	}
	rec.Handle = handle

	f.logger.Info("decision submitted",
		"handle", handle,
		"submitter", sub.Submitter.ID,
		"school", sub.School,
		"program", sub.Program,
	)
	return rec, nil
}

// Approve classifies, announces and persists a pending decision. If any
// step fails the record stays pending with its progress saved, and a retry
// continues from the failed step.
func (f *DecisionFlow) Approve(ctx context.Context, handle string) (*Approval, error) {
	rec, err := claim(ctx, f.queue, handle, KindDecision)
	if err != nil {
		return nil, err
	}
	defer release(ctx, f.queue, handle)
	sub := rec.Decision

	res := f.classifier.Classify(ctx, sub.School, sub.Program)
	p := &rec.Progress
	if p.Partition == "" {
		p.Partition = f.year()
	}
	if p.Reaction == "" && sub.Status == admission.Accepted && len(Reactions) > 0 {
		p.Reaction = Reactions[f.rand(len(Reactions))]
	}

	submitter := sub.Submitter.Name
	if sub.Anonymous {
		submitter = AnonymousName
	}

	if p.AnnouncementID == "" {
		id, err := f.board.Post(ctx, Summary{
			Title:         res.School + " - " + res.Program,
			Submitter:     submitter,
			Status:        sub.Status,
			Average:       sub.Average,
			Date:          sub.Date,
			ApplicantType: sub.ApplicantType,
			Note:          sub.Note,
			Tags:          res.Tags,
			Reaction:      p.Reaction,
		})
		if err != nil {
			return nil, f.checkpoint(ctx, rec, fmt.Errorf("announce decision: %w", err))
		}
		p.AnnouncementID = id
	}

	row := store.Row{
		Status:        string(sub.Status),
		School:        res.School,
		Program:       res.Program,
		Average:       sub.Average,
		Date:          sub.Date,
		ApplicantType: string(sub.ApplicantType),
		Submitter:     submitter,
		Note:          sub.Note,
		Tags:          tags.Join(res.Tags),
		Identifier:    p.AnnouncementID,
		CreatedAt:     f.now(),
	}

	if !p.PublicWritten {
		public := row
		if sub.Anonymous {
			public.Identifier = ""
		}
		if err := f.append(ctx, store.Public, p.Partition, public); err != nil {
			return nil, f.checkpoint(ctx, rec, fmt.Errorf("write public copy: %w", err))
		}
		p.PublicWritten = true
	}

	if !p.PrivateWritten {
		private := row
		private.Submitter = sub.Submitter.Name
		private.SubmitterID = sub.Submitter.ID
		private.Anonymous = sub.Anonymous
		if err := f.append(ctx, store.Private, p.Partition, private); err != nil {
			return nil, f.checkpoint(ctx, rec, fmt.Errorf("write private copy: %w", err))
		}
		p.PrivateWritten = true
	}

	if err := rec.transition(Persisted); err != nil {
		return nil, err
	}
	if err := f.queue.Remove(ctx, handle); err != nil {
		return nil, fmt.Errorf("remove approved decision %s: %w", handle, err)
	}

	f.logger.Info("decision approved",
		"handle", handle,
		"partition", p.Partition,
		"id", p.AnnouncementID,
		"school", res.School,
		"program", res.Program,
		"label_found", res.LabelFound,
	)

	return &Approval{
		Record:         rec,
		Classification: res,
		Partition:      p.Partition,
		Identifier:     p.AnnouncementID,
		Reaction:       p.Reaction,
	}, nil
}

// Reject discards a pending decision.
func (f *DecisionFlow) Reject(ctx context.Context, handle string) (Record, error) {
	rec, err := discard(ctx, f.queue, handle, KindDecision)
	if err != nil {
		return Record{}, err
	}
	f.logger.Info("decision rejected", "handle", handle)
	return rec, nil
}

// append writes a row, treating an identical identifier already in the
// partition as a previous attempt that succeeded.
func (f *DecisionFlow) append(ctx context.Context, c store.Copy, partition string, row store.Row) error {
	err := f.store.AppendRow(ctx, c, partition, row)
	if errors.Is(err, internalerr.ErrDuplicate) {
		f.logger.Warn("row already written", "copy", c, "partition", partition, "id", row.Identifier)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}
	return nil
}

// checkpoint saves the record's progress and returns cause.
func (f *DecisionFlow) checkpoint(ctx context.Context, rec Record, cause error) error {
	return saveProgress(ctx, f.queue, f.logger, rec, cause)
}

func saveProgress(ctx context.Context, queue Moderation, logger *slog.Logger, rec Record, cause error) error {
	logger.Error("approval failed, record kept pending",
		"handle", rec.Handle,
		"kind", rec.Kind,
		"error", cause,
	)
	if err := queue.Update(ctx, rec); err != nil {
		return errors.Join(cause, fmt.Errorf("save progress for %s: %w", rec.Handle, err))
	}
	return cause
}
