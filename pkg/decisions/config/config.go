package config

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/spell"
)

//go:embed defaults/data.yaml defaults/words.txt
var defaults embed.FS

// Data holds the static classification tables.
type Data struct {
	Thresholds Thresholds     `yaml:"thresholds"`
	Schools    []SchoolEntry  `yaml:"schools"`
	Programs   []ProgramEntry `yaml:"programs"`
}

// Thresholds are the minimum scores a match must exceed.
type Thresholds struct {
	School  int     `yaml:"school"`
	Program float64 `yaml:"program"`
}

// SchoolEntry is a canonical school and its synonyms. The list order of
// schools is significant.
type SchoolEntry struct {
	Name     string   `yaml:"name"`
	Synonyms []string `yaml:"synonyms"`
}

// ProgramEntry is a canonical program label and its aliases.
type ProgramEntry struct {
	Label   string   `yaml:"label"`
	Aliases []string `yaml:"aliases"`
}

// LoadData loads classification tables from a YAML file.
func LoadData(path string) (*Data, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseData(data)
}

// DefaultData returns the tables shipped with the binary.
func DefaultData() (*Data, error) {
	data, err := defaults.ReadFile("defaults/data.yaml")
	if err != nil {
		return nil, err
	}
	return ParseData(data)
}

// DefaultWords returns the English word frequencies shipped with the binary.
// They keep ordinary words from being rewritten into program vocabulary.
func DefaultWords() (map[string]int, error) {
	data, err := defaults.ReadFile("defaults/words.txt")
	if err != nil {
		return nil, err
	}
	freq, err := spell.ParseFrequencies(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: words.txt: %v", internalerr.ErrInvalidConfig, err)
	}
	return freq, nil
}

// ParseData decodes and validates classification tables. Names and labels
// are lowercased; missing thresholds take the defaults.
func ParseData(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}

	seen := make(map[string]bool)
	for i := range d.Schools {
		name := strings.ToLower(strings.TrimSpace(d.Schools[i].Name))
		if name == "" {
			return nil, fmt.Errorf("%w: school %d has no name", internalerr.ErrInvalidConfig, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate school %q", internalerr.ErrInvalidConfig, name)
		}
		seen[name] = true
		d.Schools[i].Name = name
	}

	seen = make(map[string]bool)
	for i := range d.Programs {
		label := strings.ToLower(strings.TrimSpace(d.Programs[i].Label))
		if label == "" {
			return nil, fmt.Errorf("%w: program %d has no label", internalerr.ErrInvalidConfig, i)
		}
		if seen[label] {
			return nil, fmt.Errorf("%w: duplicate program %q", internalerr.ErrInvalidConfig, label)
		}
		seen[label] = true
		d.Programs[i].Label = label
	}

	if d.Thresholds.School == 0 {
		d.Thresholds.School = 55
	}
	if d.Thresholds.Program == 0 {
		d.Thresholds.Program = 10
	}
	return &d, nil
}

// ProgramTable returns label -> aliases.
func (d *Data) ProgramTable() map[string][]string {
	out := make(map[string][]string, len(d.Programs))
	for _, p := range d.Programs {
		out[p.Label] = p.Aliases
	}
	return out
}

// Vocabulary returns every program label and alias as one text blob, used
// to seed the spelling dictionary.
func (d *Data) Vocabulary() string {
	var b strings.Builder
	for _, p := range d.Programs {
		b.WriteString(p.Label)
		b.WriteByte('\n')
		for _, a := range p.Aliases {
			b.WriteString(a)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
