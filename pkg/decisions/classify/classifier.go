package classify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/spell"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/tags"
)

// Default thresholds. A match must score strictly above its threshold to
// replace the user's text.
const (
	DefaultSchoolThreshold  = 55
	DefaultProgramThreshold = 10.0
)

// Thresholds configures the combination rule.
type Thresholds struct {
	School  int
	Program float64
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{School: DefaultSchoolThreshold, Program: DefaultProgramThreshold}
}

// Match is a single classification outcome.
type Match struct {
	Label string
	Score float64 // similarity or confidence, 0-100
}

// Result is the combined classification of a school and a program.
type Result struct {
	School        string // canonical label, or the lowercased input
	Program       string
	SchoolMatch   Match
	ProgramMatch  Match
	ProgramOK     bool // false when the model was unavailable
	LabelFound    bool
	Tags          []string
	CorrectedText string // program text after spelling correction
}

// Classifier combines the school matcher, spelling corrector and program
// model. It is built once at start-up and never mutated.
type Classifier struct {
	schools    *SchoolMatcher
	model      ProgramModel
	speller    *spell.Checker
	thresholds Thresholds
	logger     *slog.Logger
}

// Options configures a Classifier. Speller and Logger are optional.
type Options struct {
	Schools    *SchoolMatcher
	Model      ProgramModel
	Speller    *spell.Checker
	Thresholds Thresholds
	Logger     *slog.Logger
}

// New creates a Classifier.
func New(opts Options) *Classifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	schools := opts.Schools
	if schools == nil {
		schools = NewSchoolMatcher(nil)
	}
	return &Classifier{
		schools:    schools,
		model:      opts.Model,
		speller:    opts.Speller,
		thresholds: opts.Thresholds,
		logger:     logger,
	}
}

// ClassifySchool runs the school matcher.
func (c *Classifier) ClassifySchool(text string) (string, int) {
	return c.schools.Match(text)
}

// ClassifyProgram corrects spelling and runs the program model. ok is false
// when no model is configured or the model failed; the caller then falls back
// to the raw text.
func (c *Classifier) ClassifyProgram(ctx context.Context, text string) (match Match, corrected string, ok bool) {
	corrected = text
	if c.speller != nil {
		corrected = c.speller.Normalize(text)
	}
	if c.model == nil {
		return Match{}, corrected, false
	}

	label, confidence, err := c.model.Classify(ctx, corrected)
	if err != nil {
		c.logger.Warn("program classifier unavailable", "program", text, "error", err)
		return Match{}, corrected, false
	}
	return Match{Label: label, Score: confidence}, corrected, true
}

// Classify applies the combination rule to raw school and program text and
// derives the tags. It never fails: anything the classifiers cannot resolve
// falls back to the lowercased input.
func (c *Classifier) Classify(ctx context.Context, school, program string) Result {
	schoolLabel, similarity := c.ClassifySchool(school)
	programMatch, corrected, ok := c.ClassifyProgram(ctx, program)

	res := Result{
		SchoolMatch:   Match{Label: schoolLabel, Score: float64(similarity)},
		ProgramMatch:  programMatch,
		ProgramOK:     ok,
		CorrectedText: corrected,
	}

	schoolFound := similarity > c.thresholds.School
	programFound := ok && programMatch.Score > c.thresholds.Program

	if schoolFound {
		res.School = schoolLabel
	} else {
		res.School = strings.ToLower(school)
	}
	if programFound {
		res.Program = programMatch.Label
	} else {
		res.Program = strings.ToLower(program)
	}
	res.LabelFound = schoolFound && programFound
	res.Tags = tags.Generate(res.School, res.Program)

	return res
}
