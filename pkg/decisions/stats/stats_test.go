package stats

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store/memstore"
)

func accepted(tagList, average string) store.Row {
	return store.Row{Status: "Accepted", ApplicantType: "101", Tags: tagList, Average: average}
}

func seed(t *testing.T, partition string, rows ...store.Row) *memstore.Store {
	t.Helper()
	s := memstore.New()
	add(t, s, partition, rows...)
	return s
}

func add(t *testing.T, s *memstore.Store, partition string, rows ...store.Row) {
	t.Helper()
	for _, r := range rows {
		if err := s.AppendRow(context.Background(), store.Public, partition, r); err != nil {
			t.Fatal(err)
		}
	}
}

var csWaterloo = []string{"computer science", "waterloo"}

func TestStatsThreeRows(t *testing.T) {
	s := seed(t, "2023-2024",
		accepted("computer science, waterloo", "92.0"),
		accepted("computer science, waterloo", "93.5"),
		accepted("computer science, waterloo", "91.0"),
	)

	res, err := New(s, nil, nil).Stats(context.Background(), Query{Year: "2023-2024", Tags: csWaterloo})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.Average != 92.17 || res.Median != 92.0 || res.SampleSize != 3 {
		t.Errorf("got average=%v median=%v n=%d", res.Average, res.Median, res.SampleSize)
	}
	if res.Year != "2023-2024" {
		t.Errorf("year = %q", res.Year)
	}
}

func TestStatsFilters(t *testing.T) {
	rejected := accepted("computer science, waterloo", "99")
	rejected.Status = "Rejected"
	ontarioFee := accepted("computer science, waterloo", "98")
	ontarioFee.ApplicantType = "105D"

	s := seed(t, "2023-2024",
		accepted("CS, Waterloo", "90"),
		accepted("cs,waterloo", "80"),
		accepted("waterloo, cs", "70"),
		accepted("cs, waterloo, laurier", "60"),
		rejected,
		ontarioFee,
		accepted("cs, waterloo", "n/a"),
	)

	res, err := New(s, nil, nil).Stats(context.Background(), Query{Year: "2023-2024", Tags: []string{"cs", "waterloo"}})
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.SampleSize != 2 || res.Average != 85 {
		t.Errorf("expected the two case-insensitive matches, got %+v", res)
	}
}

func TestStatsNoData(t *testing.T) {
	s := seed(t, "2023-2024", accepted("english, toronto", "88"))

	res, err := New(s, nil, nil).Stats(context.Background(), Query{Year: "2023-2024", Tags: csWaterloo})
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Errorf("expected nil result, got %+v", res)
	}

	res, err = New(s, nil, nil).Stats(context.Background(), Query{Year: "1999-2000", Tags: csWaterloo})
	if err != nil || res != nil {
		t.Errorf("unknown year: res=%+v err=%v", res, err)
	}
}

func TestStatsAllYears(t *testing.T) {
	s := seed(t, "2022-2023", accepted("computer science, waterloo", "90"))
	add(t, s, "2024-2025", accepted("computer science, waterloo", "94"))
	add(t, s, store.ReservedPartition, accepted("computer science, waterloo", "10"))

	res, err := New(s, nil, nil).Stats(context.Background(), Query{Year: AllYears, Tags: csWaterloo})
	if err != nil {
		t.Fatal(err)
	}
	if res.Year != "2022-2025" {
		t.Errorf("year label = %q, want 2022-2025", res.Year)
	}
	if res.SampleSize != 2 || res.Average != 92 {
		t.Errorf("reserved partition must be skipped, got %+v", res)
	}
}

type fakeRenderer struct {
	title string
	bins  []Bin
	err   error
}

func (f *fakeRenderer) Render(ctx context.Context, title string, bins []Bin) (string, error) {
	f.title, f.bins = title, bins
	if f.err != nil {
		return "", f.err
	}
	return "chart.png", nil
}

func TestStatsRenders(t *testing.T) {
	s := seed(t, "2023-2024", accepted("computer science, waterloo", "92"), accepted("computer science, waterloo", "94"))
	r := &fakeRenderer{}

	res, err := New(s, r, nil).Stats(context.Background(), Query{
		School: "Waterloo", Program: "CS", Year: "2023-2024", Tags: csWaterloo,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Chart != "chart.png" {
		t.Errorf("chart = %q", res.Chart)
	}
	if r.title != "101 Admission averages for Waterloo CS for 2023-2024" {
		t.Errorf("title = %q", r.title)
	}

	r.err = errors.New("disk full")
	res, err = New(s, r, nil).Stats(context.Background(), Query{Year: "2023-2024", Tags: csWaterloo})
	if err != nil {
		t.Fatalf("render failure must not fail the query: %v", err)
	}
	if res.Chart != "" {
		t.Errorf("chart = %q after render failure", res.Chart)
	}
}

func TestStatsSkipsChartForSingleMark(t *testing.T) {
	s := seed(t, "2023-2024", accepted("computer science, waterloo", "92"))
	r := &fakeRenderer{}

	res, err := New(s, r, nil).Stats(context.Background(), Query{Year: "2023-2024", Tags: csWaterloo})
	if err != nil {
		t.Fatal(err)
	}
	if res.SampleSize != 1 || res.Chart != "" || r.title != "" {
		t.Errorf("single mark should not be rendered: %+v, title %q", res, r.title)
	}
}

func TestExtractMark(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"95.5", 95.5, true},
		{"~93", 93, true},
		{"top 6: 94 (95.25 with ecs)", 95.25, true},
		{"90-92", 90, true},
		{"low 90s", 90, true},
		{"n/a", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ExtractMark(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ExtractMark(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRemoveOutliersThreshold(t *testing.T) {
	thirty := make([]float64, 30)
	for i := range thirty {
		thirty[i] = 90
	}
	thirty[0] = 10
	if got := RemoveOutliers(thirty); len(got) != 30 {
		t.Errorf("samples of 30 must be untouched, got %d", len(got))
	}

	identical := make([]float64, 31)
	for i := range identical {
		identical[i] = 92
	}
	if got := RemoveOutliers(identical); len(got) != 31 {
		t.Errorf("31 identical marks should all be kept, got %d", len(got))
	}

	withOutlier := make([]float64, 40)
	for i := range withOutlier {
		withOutlier[i] = 90 + float64(i%5)
	}
	withOutlier[0] = 10
	got := RemoveOutliers(withOutlier)
	if len(got) != 39 {
		t.Fatalf("expected the single outlier removed, got %d marks", len(got))
	}
	for _, m := range got {
		if m == 10 {
			t.Error("outlier kept")
		}
	}
}

func TestMedian(t *testing.T) {
	if got := Median([]float64{3, 1, 2}); got != 2 {
		t.Errorf("odd median = %v", got)
	}
	if got := Median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Errorf("even median = %v", got)
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(276.5 / 3); got != 92.17 {
		t.Errorf("Round2 = %v", got)
	}
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{92.0, 93.5, 91.0})
	// floor(90.5)=90 .. ceil(94.5)=95
	if len(bins) != 5 {
		t.Fatalf("expected 5 bins, got %+v", bins)
	}
	if bins[0].Min != 90 || bins[len(bins)-1].Max != 95 {
		t.Errorf("edges = %v..%v", bins[0].Min, bins[len(bins)-1].Max)
	}
	want := []int{0, 1, 1, 1, 0}
	total := 0
	for i, b := range bins {
		if b.Count != want[i] {
			t.Errorf("bin %v-%v count = %d, want %d", b.Min, b.Max, b.Count, want[i])
		}
		total += b.Count
	}
	if total != 3 {
		t.Errorf("total = %d", total)
	}

	single := Histogram([]float64{92})
	if len(single) != 2 || single[1].Count != 1 {
		t.Errorf("single mark bins = %+v", single)
	}

	if Histogram(nil) != nil {
		t.Error("empty sample should have no bins")
	}
	if b := Histogram([]float64{math.Floor(80)}); b[0].Min != 79 {
		t.Errorf("first edge = %v", b[0].Min)
	}
}
