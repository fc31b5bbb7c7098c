// Package importer back-fills the store from archived announcement
// messages. Messages are written in batches with a pause between them so
// the store is not flooded.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/admission"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/classify"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/tags"
)

// Defaults for the sweep.
const (
	DefaultBatchSize = 50
	DefaultPause     = 120 * time.Second
)

// Entry is the decision parsed from one message.
type Entry struct {
	School        string
	Program       string
	Date          string
	Average       string
	ApplicantType string
}

// fields in the order they are checked on each line. "Accepted Date:" must
// come before "Date:".
var fields = []struct {
	label string
	set   func(e *Entry, v string)
}{
	{"School:", func(e *Entry, v string) { e.School = v }},
	{"Program:", func(e *Entry, v string) { e.Program = v }},
	{"Accepted Date:", func(e *Entry, v string) { e.Date = v }},
	{"Date:", func(e *Entry, v string) { e.Date = v }},
	{"Average:", func(e *Entry, v string) { e.Average = v }},
	{"Applicant Type:", func(e *Entry, v string) { e.ApplicantType = v }},
}

// ParseEntry reads "Label: value" lines. ok is false when the message has
// no school or no program.
func ParseEntry(content string) (Entry, bool) {
	var e Entry
	for _, line := range strings.Split(content, "\n") {
		for _, f := range fields {
			if _, v, found := strings.Cut(line, f.label); found {
				f.set(&e, strings.TrimSpace(v))
				break
			}
		}
	}
	if e.ApplicantType != "" {
		if at, err := admission.ParseApplicantType(e.ApplicantType); err == nil {
			e.ApplicantType = string(at)
		}
	}
	return e, e.School != "" && e.Program != ""
}

// Options configures an Importer. Zero values select the defaults.
type Options struct {
	Store      store.Store
	Classifier *classify.Classifier
	Partition  string
	BatchSize  int
	Pause      time.Duration
	Logger     *slog.Logger
}

// Importer writes archived messages to the store.
type Importer struct {
	store      store.Store
	classifier *classify.Classifier
	partition  string
	batchSize  int
	pause      time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// Report summarizes a sweep.
type Report struct {
	Imported   int
	Duplicates int
	Skipped    int
}

// New creates an Importer.
func New(opts Options) (*Importer, error) {
	if opts.Store == nil || opts.Classifier == nil {
		return nil, fmt.Errorf("%w: importer needs a store and a classifier", internalerr.ErrInvalidConfig)
	}
	if opts.Partition == "" {
		return nil, fmt.Errorf("%w: importer needs a target partition", internalerr.ErrInvalidConfig)
	}
	im := &Importer{
		store:      opts.Store,
		classifier: opts.Classifier,
		partition:  opts.Partition,
		batchSize:  opts.BatchSize,
		pause:      opts.Pause,
		sleep:      sleep,
		logger:     opts.Logger,
	}
	if im.batchSize <= 0 {
		im.batchSize = DefaultBatchSize
	}
	if im.pause <= 0 {
		im.pause = DefaultPause
	}
	if im.logger == nil {
		im.logger = slog.Default()
	}
	return im, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run imports msgs as accepted decisions. Messages already in the store
// are counted as duplicates, so a sweep can be re-run after an
// interruption.
func (im *Importer) Run(ctx context.Context, msgs []Message) (Report, error) {
	var rep Report
	written := 0

	for i, m := range msgs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		e, ok := ParseEntry(m.Content)
		if !ok {
			rep.Skipped++
			im.logger.Debug("skipping message without a decision", "id", m.ID)
			continue
		}

		dup, err := im.write(ctx, m, e)
		if err != nil {
			return rep, fmt.Errorf("import message %s: %w", m.ID, err)
		}
		if dup {
			rep.Duplicates++
			continue
		}
		rep.Imported++
		written++

		if written%im.batchSize == 0 && i < len(msgs)-1 {
			im.logger.Info("batch written, pausing", "imported", rep.Imported, "pause", im.pause)
			if err := im.sleep(ctx, im.pause); err != nil {
				return rep, err
			}
		}
	}

	im.logger.Info("import finished",
		"partition", im.partition,
		"imported", rep.Imported,
		"duplicates", rep.Duplicates,
		"skipped", rep.Skipped,
	)
	return rep, nil
}

// write stores both copies. dup is true when the public copy already
// existed.
func (im *Importer) write(ctx context.Context, m Message, e Entry) (dup bool, err error) {
	res := im.classifier.Classify(ctx, e.School, e.Program)
	row := store.Row{
		Status:        string(admission.Accepted),
		School:        res.School,
		Program:       res.Program,
		Average:       e.Average,
		Date:          e.Date,
		ApplicantType: e.ApplicantType,
		Submitter:     m.Author,
		Tags:          tags.Join(res.Tags),
		Identifier:    m.ID,
	}

	err = im.store.AppendRow(ctx, store.Public, im.partition, row)
	if errors.Is(err, internalerr.ErrDuplicate) {
		dup = true
	} else if err != nil {
		return false, err
	}

	private := row
	private.SubmitterID = m.AuthorID
	err = im.store.AppendRow(ctx, store.Private, im.partition, private)
	if err != nil && !errors.Is(err, internalerr.ErrDuplicate) {
		return dup, err
	}
	return dup, nil
}
