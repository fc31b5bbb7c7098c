// Package chart renders statistics histograms as PNG files.
package chart

import (
	"context"
	"crypto/rand"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/stats"
)

const (
	width  = 6 * vg.Inch
	height = 4 * vg.Inch
)

// DefaultKeep is how many rendered charts are kept on disk.
const DefaultKeep = 200

var barColor = color.RGBA{R: 0x34, G: 0x98, B: 0xdb, A: 0xff}

// PNGRenderer writes histograms into a directory. It implements
// stats.Renderer; the returned reference is the file name inside Dir.
type PNGRenderer struct {
	Dir  string
	Keep int // charts kept after each render; <= 0 means DefaultKeep

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewPNGRenderer creates the output directory if needed.
func NewPNGRenderer(dir string) (*PNGRenderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}
	return &PNGRenderer{Dir: dir, Keep: DefaultKeep, entropy: ulid.Monotonic(rand.Reader, 0)}, nil
}

// Render draws bins and saves them as <ulid>.png.
func (r *PNGRenderer) Render(ctx context.Context, title string, bins []stats.Bin) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(bins) == 0 {
		return "", fmt.Errorf("no bins to render")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Average"
	p.Y.Label.Text = "Frequency"

	h := &plotter.Histogram{
		Bins:      make([]plotter.HistogramBin, len(bins)),
		Width:     bins[0].Max - bins[0].Min,
		FillColor: barColor,
		LineStyle: plotter.DefaultLineStyle,
	}
	for i, b := range bins {
		h.Bins[i] = plotter.HistogramBin{Min: b.Min, Max: b.Max, Weight: float64(b.Count)}
	}
	p.Add(h)

	name := r.newName()
	if err := p.Save(width, height, filepath.Join(r.Dir, name)); err != nil {
		return "", fmt.Errorf("save histogram: %w", err)
	}
	if err := r.prune(); err != nil {
		return "", fmt.Errorf("prune charts: %w", err)
	}
	return name, nil
}

// prune deletes the oldest charts beyond Keep. ULID names sort by creation
// time; files that are not ULID-named are left alone.
func (r *PNGRenderer) prune() error {
	keep := r.Keep
	if keep <= 0 {
		keep = DefaultKeep
	}

	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return err
	}
	var charts []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".png" {
			continue
		}
		if _, err := ulid.ParseStrict(strings.TrimSuffix(name, ".png")); err != nil {
			continue
		}
		charts = append(charts, name)
	}
	if len(charts) <= keep {
		return nil
	}

	sort.Strings(charts)
	for _, name := range charts[:len(charts)-keep] {
		if err := os.Remove(filepath.Join(r.Dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Path resolves a reference returned by Render.
func (r *PNGRenderer) Path(ref string) (string, error) {
	if ref == "" || filepath.Base(ref) != ref {
		return "", fmt.Errorf("invalid chart reference %q", ref)
	}
	return filepath.Join(r.Dir, ref), nil
}

func (r *PNGRenderer) newName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String() + ".png"
}
