package classify

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
)

// ProgramModel predicts a canonical program label for free text.
// Confidence is 100 times the highest class probability.
type ProgramModel interface {
	Classify(ctx context.Context, text string) (label string, confidence float64, err error)
	Labels() []string
}

// PrototypeWeight is the feature weight given to every word and word pair
// of a label or alias by NewPrototypeModel.
const PrototypeWeight = 4.0

// LinearLabel holds the weights of one output class.
type LinearLabel struct {
	Name    string             `yaml:"name"`
	Bias    float64            `yaml:"bias"`
	Weights map[string]float64 `yaml:"weights"`
}

// LinearModel is a bag-of-words softmax classifier over a fixed label set.
// Features are lowercase words and adjacent word pairs.
type LinearModel struct {
	labels      []LinearLabel // sorted by name
	temperature float64
}

// NewLinearModel sorts labels by name so argmax ties resolve the same way
// on every load. temperature <= 0 means 1.
func NewLinearModel(labels []LinearLabel, temperature float64) (*LinearModel, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: model has no labels", internalerr.ErrInvalidConfig)
	}
	if temperature <= 0 {
		temperature = 1
	}

	cp := make([]LinearLabel, len(labels))
	seen := make(map[string]bool, len(labels))
	for i, l := range labels {
		name := strings.ToLower(strings.TrimSpace(l.Name))
		if name == "" {
			return nil, fmt.Errorf("%w: label %d has no name", internalerr.ErrInvalidConfig, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate label %q", internalerr.ErrInvalidConfig, name)
		}
		seen[name] = true

		weights := make(map[string]float64, len(l.Weights))
		for f, w := range l.Weights {
			weights[strings.ToLower(f)] = w
		}
		cp[i] = LinearLabel{Name: name, Bias: l.Bias, Weights: weights}
	}
	sort.Slice(cp, func(i, j int) bool { return cp[i].Name < cp[j].Name })

	return &LinearModel{labels: cp, temperature: temperature}, nil
}

// LoadModel reads a model artifact from a YAML file.
//
// Expected format:
//
//	temperature: 1.0
//	labels:
//	  - name: computer science
//	    bias: 0.1
//	    weights: {computer: 3.2, science: 1.1, "computer science": 4.0}
func LoadModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var artifact struct {
		Temperature float64       `yaml:"temperature"`
		Labels      []LinearLabel `yaml:"labels"`
	}
	if err := yaml.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	return NewLinearModel(artifact.Labels, artifact.Temperature)
}

// NewPrototypeModel builds a model that scores each label by how many of
// its own words and aliases' words appear in the input.
func NewPrototypeModel(programs map[string][]string) (*LinearModel, error) {
	labels := make([]LinearLabel, 0, len(programs))
	for name, aliases := range programs {
		weights := make(map[string]float64)
		for _, phrase := range append([]string{name}, aliases...) {
			for _, f := range features(phrase) {
				weights[f] = PrototypeWeight
			}
		}
		labels = append(labels, LinearLabel{Name: name, Weights: weights})
	}
	return NewLinearModel(labels, 1)
}

// Labels returns the label enumeration in sorted order.
func (m *LinearModel) Labels() []string {
	out := make([]string, len(m.labels))
	for i, l := range m.labels {
		out[i] = l.Name
	}
	return out
}

// Classify implements ProgramModel.
func (m *LinearModel) Classify(_ context.Context, text string) (string, float64, error) {
	feats := features(text)

	logits := make([]float64, len(m.labels))
	for i, l := range m.labels {
		score := l.Bias
		for _, f := range feats {
			score += l.Weights[f]
		}
		logits[i] = score / m.temperature
	}

	best := 0
	for i := range logits {
		if logits[i] > logits[best] {
			best = i
		}
	}

	// Softmax, shifted by the max logit for stability.
	var sum float64
	for _, z := range logits {
		sum += math.Exp(z - logits[best])
	}
	p := 1 / sum
	if math.IsNaN(p) || math.IsInf(p, 0) || math.IsNaN(logits[best]) || math.IsInf(logits[best], 0) {
		return "", 0, internalerr.ErrClassificationUnavailable
	}
	return m.labels[best].Name, 100 * p, nil
}

// features lowercases text and returns its words followed by its adjacent
// word pairs.
func features(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r == '/' || r == '-' || r == '&' || isWordRune(r))
	})
	out := make([]string, 0, 2*len(words))
	out = append(out, words...)
	for i := 0; i+1 < len(words); i++ {
		out = append(out, words[i]+" "+words[i+1])
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}
