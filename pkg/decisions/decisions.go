package decisions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/admission"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/classify"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/config"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/stats"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/verify"
)

// Disclaimer is appended to every statistics footer.
const Disclaimer = "Disclaimer: This information is not representative of all applicants."

// Decisions is the service facade
type Decisions struct {
	store      store.Store
	queue      verify.Moderation
	classifier *classify.Classifier
	decisions  *verify.DecisionFlow
	deletions  *verify.DeletionFlow
	stats      *stats.Aggregator
	logger     *slog.Logger
}

// Options configures a Decisions instance
type Options struct {
	Store      store.Store
	Classifier *classify.Classifier
	Moderation verify.Moderation
	Announcer  verify.Announcer
	Renderer   stats.Renderer // optional

	// ApplicantYear pins the partition new decisions go to. Empty means
	// the admission cycle containing the approval time.
	ApplicantYear string

	Now    func() time.Time
	Rand   func(n int) int
	Logger *slog.Logger
}

// New creates a Decisions instance with the given dependencies
func New(opts Options) (*Decisions, error) {
	if opts.Store == nil || opts.Moderation == nil || opts.Announcer == nil {
		return nil, fmt.Errorf("%w: store, moderation and announcer are required", internalerr.ErrInvalidConfig)
	}
	if opts.Classifier == nil {
		return nil, fmt.Errorf("%w: classifier is required", internalerr.ErrInvalidConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	year := func() string {
		if opts.ApplicantYear != "" {
			return opts.ApplicantYear
		}
		return config.ApplicantYearAt(now())
	}

	return &Decisions{
		store:      opts.Store,
		queue:      opts.Moderation,
		classifier: opts.Classifier,
		decisions: verify.NewDecisionFlow(verify.DecisionOptions{
			Moderation: opts.Moderation,
			Announcer:  opts.Announcer,
			Store:      opts.Store,
			Classifier: opts.Classifier,
			Year:       year,
			Rand:       opts.Rand,
			Now:        now,
			Logger:     logger,
		}),
		deletions: verify.NewDeletionFlow(verify.DeletionOptions{
			Moderation: opts.Moderation,
			Announcer:  opts.Announcer,
			Store:      opts.Store,
			Now:        now,
			Logger:     logger,
		}),
		stats:  stats.New(opts.Store, opts.Renderer, logger),
		logger: logger,
	}, nil
}

// Close cleanly shuts down the store
func (d *Decisions) Close() error {
	return d.store.Close()
}

// SubmitDecision posts a decision for moderation.
func (d *Decisions) SubmitDecision(ctx context.Context, sub admission.Submission) (verify.Record, error) {
	return d.decisions.Submit(ctx, sub)
}

// RequestDeletion posts a deletion request for moderation after checking
// that requester owns the decision.
func (d *Decisions) RequestDeletion(ctx context.Context, requester admission.User, identifier string) (verify.Record, error) {
	return d.deletions.Request(ctx, requester, strings.TrimSpace(identifier))
}

// Resolution is the outcome of a moderator action.
type Resolution struct {
	Kind     verify.Kind      `json:"kind"`
	State    verify.State     `json:"state"`
	Record   verify.Record    `json:"record"`
	Approval *verify.Approval `json:"approval,omitempty"` // approved decisions only
}

// Approve resolves a pending record of either kind.
func (d *Decisions) Approve(ctx context.Context, handle string) (*Resolution, error) {
	rec, err := d.queue.Get(ctx, handle)
	if err != nil {
		return nil, err
	}

	switch rec.Kind {
	case verify.KindDecision:
		approval, err := d.decisions.Approve(ctx, handle)
		if err != nil {
			return nil, err
		}
		return &Resolution{Kind: rec.Kind, State: approval.Record.State, Record: approval.Record, Approval: approval}, nil
	case verify.KindDeletion:
		done, err := d.deletions.Approve(ctx, handle)
		if err != nil {
			return nil, err
		}
		return &Resolution{Kind: rec.Kind, State: done.State, Record: done}, nil
	default:
		return nil, fmt.Errorf("%w: unknown record kind %q", internalerr.ErrInvalidInput, rec.Kind)
	}
}

// Reject discards a pending record of either kind.
func (d *Decisions) Reject(ctx context.Context, handle string) (*Resolution, error) {
	rec, err := d.queue.Get(ctx, handle)
	if err != nil {
		return nil, err
	}

	var done verify.Record
	switch rec.Kind {
	case verify.KindDecision:
		done, err = d.decisions.Reject(ctx, handle)
	case verify.KindDeletion:
		done, err = d.deletions.Reject(ctx, handle)
	default:
		err = fmt.Errorf("%w: unknown record kind %q", internalerr.ErrInvalidInput, rec.Kind)
	}
	if err != nil {
		return nil, err
	}
	return &Resolution{Kind: rec.Kind, State: done.State, Record: done}, nil
}

// Pending lists records awaiting a moderator, oldest first.
func (d *Decisions) Pending(ctx context.Context) ([]verify.Record, error) {
	return d.queue.List(ctx)
}

// ApplicantYears returns the years statistics can be requested for,
// followed by stats.AllYears.
func (d *Decisions) ApplicantYears(ctx context.Context) ([]string, error) {
	years, err := d.store.ListPartitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applicant years: %w", err)
	}
	return append(years, stats.AllYears), nil
}

// StatsQuery is a user's statistics request.
type StatsQuery struct {
	School  string
	Program string
	Year    string // empty means stats.AllYears
}

// Report is a statistics answer ready to show to a user.
type Report struct {
	Title      string        `json:"title"`
	Tags       []string      `json:"tags"`
	LabelFound bool          `json:"label_found"`
	Result     *stats.Result `json:"result,omitempty"` // nil when nothing matched
	ShowChart  bool          `json:"show_chart"`
	Message    string        `json:"message,omitempty"`
	Footer     string        `json:"footer,omitempty"`
}

// Statistics classifies the query text the same way approval does and
// aggregates the matching decisions.
func (d *Decisions) Statistics(ctx context.Context, q StatsQuery) (*Report, error) {
	if strings.TrimSpace(q.School) == "" || strings.TrimSpace(q.Program) == "" {
		return nil, internalerr.NewUserError(internalerr.ErrInvalidInput, "School and program are required.")
	}
	year := strings.TrimSpace(q.Year)
	if year == "" {
		year = stats.AllYears
	}

	cls := d.classifier.Classify(ctx, q.School, q.Program)
	rep := &Report{Tags: cls.Tags, LabelFound: cls.LabelFound}

	res, err := d.stats.Stats(ctx, stats.Query{
		School:  q.School,
		Program: q.Program,
		Year:    year,
		Tags:    cls.Tags,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		rep.Message = fmt.Sprintf("No data found. Searched for %s.", formatTags(cls.Tags))
		return rep, nil
	}

	rep.Result = res
	rep.Title = stats.Title(q.School, q.Program, res.Year)
	rep.ShowChart = res.SampleSize > 1 && res.Chart != ""
	rep.Footer = footer(cls)
	return rep, nil
}

func footer(cls classify.Result) string {
	var sb strings.Builder
	if !cls.LabelFound {
		sb.WriteString("Could not classify program. ")
	}
	fmt.Fprintf(&sb, "Searched for: %s. %s", formatTags(cls.Tags), Disclaimer)
	return sb.String()
}

func formatTags(tags []string) string {
	return "[" + strings.Join(tags, ", ") + "]"
}
