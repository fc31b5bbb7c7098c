// Package stats aggregates persisted decisions into admission statistics.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/admission"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/tags"
)

// AllYears requests statistics across every partition.
const AllYears = "ALL"

const (
	// outlierMinSample is the sample size above which outliers are removed.
	outlierMinSample = 30
	// outlierZ is the z-score magnitude at which a mark is dropped.
	outlierZ = 3.0
)

// Query selects the decisions to aggregate. School and Program are the
// user's text and only label the result; Tags do the filtering.
type Query struct {
	School  string
	Program string
	Year    string // partition name or AllYears
	Tags    []string
}

// Result holds the statistics for a query.
type Result struct {
	Average    float64   `json:"average"`
	Median     float64   `json:"median"`
	SampleSize int       `json:"sample_size"`
	Year       string    `json:"applicant_year"`
	Marks      []float64 `json:"-"`
	Bins       []Bin     `json:"bins"`
	Chart      string    `json:"chart,omitempty"` // artifact reference from the Renderer
}

// Bin is one histogram bar covering [Min, Max).
type Bin struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// Renderer turns a histogram into an artifact and returns its reference.
type Renderer interface {
	Render(ctx context.Context, title string, bins []Bin) (string, error)
}

// Aggregator computes statistics over the public copy of the store.
type Aggregator struct {
	store    store.Store
	renderer Renderer
	logger   *slog.Logger
}

// New creates an Aggregator. renderer and logger may be nil.
func New(s store.Store, renderer Renderer, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{store: s, renderer: renderer, logger: logger}
}

// Stats returns the statistics for accepted 101 decisions matching q.Tags.
// It returns nil and no error when nothing matches.
func (a *Aggregator) Stats(ctx context.Context, q Query) (*Result, error) {
	partitions, label, err := a.resolve(ctx, q.Year)
	if err != nil {
		return nil, err
	}

	var marks []float64
	for _, p := range partitions {
		rows, err := a.store.ReadAllRows(ctx, store.Public, p)
		if err != nil {
			return nil, fmt.Errorf("read partition %s: %w", p, err)
		}
		for _, r := range rows {
			if r.Status != string(admission.Accepted) || r.ApplicantType != string(admission.Type101) {
				continue
			}
			if !tags.Match(r.Tags, q.Tags) {
				continue
			}
			if m, ok := ExtractMark(r.Average); ok {
				marks = append(marks, m)
			}
		}
	}

	matched := len(marks)
	marks = RemoveOutliers(marks)
	if len(marks) == 0 {
		return nil, nil
	}

	res := &Result{
		Average:    Round2(stat.Mean(marks, nil)),
		Median:     Round2(Median(marks)),
		SampleSize: len(marks),
		Year:       label,
		Marks:      marks,
		Bins:       Histogram(marks),
	}

	// A single mark is never charted.
	if a.renderer != nil && res.SampleSize > 1 {
		title := Title(q.School, q.Program, label)
		ref, err := a.renderer.Render(ctx, title, res.Bins)
		if err != nil {
			a.logger.Warn("histogram not rendered", "error", err)
		} else {
			res.Chart = ref
		}
	}

	a.logger.Info("statistics computed",
		"tags", tags.Join(q.Tags),
		"year", label,
		"matched", matched,
		"retained", res.SampleSize,
	)
	return res, nil
}

// resolve returns the partitions to scan and the label for the result.
func (a *Aggregator) resolve(ctx context.Context, year string) ([]string, string, error) {
	if year != AllYears {
		return []string{year}, year, nil
	}
	partitions, err := a.store.ListPartitions(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list partitions: %w", err)
	}
	label, ok := store.SpanLabel(partitions)
	if !ok {
		label = AllYears
	}
	return partitions, label, nil
}

// Title is the heading shown with a result.
func Title(school, program, year string) string {
	return fmt.Sprintf("101 Admission averages for %s %s for %s", school, program, year)
}

var (
	floatRe = regexp.MustCompile(`\d+\.\d+`)
	intRe   = regexp.MustCompile(`\d+`)
)

// ExtractMark returns the first decimal number in s, or failing that the
// first integer.
func ExtractMark(s string) (float64, bool) {
	m := floatRe.FindString(s)
	if m == "" {
		m = intRe.FindString(s)
	}
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// RemoveOutliers drops marks whose z-score magnitude is at least 3. Samples
// of 30 or fewer are returned unchanged.
func RemoveOutliers(marks []float64) []float64 {
	if len(marks) <= outlierMinSample {
		return marks
	}
	mean := stat.Mean(marks, nil)
	std := math.Sqrt(stat.PopVariance(marks, nil))

	kept := make([]float64, 0, len(marks))
	for _, m := range marks {
		z := 0.0
		if std > 0 {
			z = (m - mean) / std
		}
		if math.Abs(z) < outlierZ {
			kept = append(kept, m)
		}
	}
	return kept
}

// Median returns the middle value, averaging the two middle values of an
// even-sized sample.
func Median(marks []float64) float64 {
	if len(marks) == 0 {
		return 0
	}
	sorted := append([]float64(nil), marks...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Histogram counts marks into unit-width bins whose edges run from
// floor(min-0.5) to ceil(max+1). The last bin includes its upper edge.
func Histogram(marks []float64) []Bin {
	if len(marks) == 0 {
		return nil
	}
	lo, hi := marks[0], marks[0]
	for _, m := range marks[1:] {
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	first := math.Floor(lo - 0.5)
	last := math.Ceil(hi + 1)

	bins := make([]Bin, 0, int(last-first))
	for e := first; e < last; e++ {
		bins = append(bins, Bin{Min: e, Max: e + 1})
	}
	for _, m := range marks {
		i := int(m - first)
		if i >= len(bins) {
			i = len(bins) - 1
		}
		bins[i].Count++
	}
	return bins
}
