package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/classify"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/spell"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	DataPath   string // classification tables; empty uses the embedded defaults
	ModelPath  string // program model artifact; empty builds a prototype model
	CorpusPath string // extra spelling corpus, optional
	Logger     *slog.Logger

	// Model, when set, is used instead of ModelPath or the prototype.
	Model classify.ProgramModel
}

// Components holds all loaded configuration components
type Components struct {
	Data       *Data
	Schools    *classify.SchoolMatcher
	Model      classify.ProgramModel
	Speller    *spell.Checker
	Classifier *classify.Classifier
}

// Load reads all configuration files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	// Classification tables
	var err error
	if l.DataPath != "" {
		comp.Data, err = LoadData(l.DataPath)
		if err != nil {
			return nil, fmt.Errorf("load data: %w", err)
		}
	} else {
		comp.Data, err = DefaultData()
		if err != nil {
			return nil, fmt.Errorf("load default data: %w", err)
		}
	}

	schools := make([]classify.School, len(comp.Data.Schools))
	for i, s := range comp.Data.Schools {
		schools[i] = classify.School{Name: s.Name, Synonyms: s.Synonyms}
	}
	comp.Schools = classify.NewSchoolMatcher(schools)

	// Program model
	if l.Model != nil {
		comp.Model = l.Model
	} else if l.ModelPath != "" {
		model, err := classify.LoadModel(l.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		comp.Model = model
	} else if len(comp.Data.Programs) > 0 {
		model, err := classify.NewPrototypeModel(comp.Data.ProgramTable())
		if err != nil {
			return nil, fmt.Errorf("build prototype model: %w", err)
		}
		comp.Model = model
	}

	// Spelling dictionary: English words, program vocabulary and the
	// optional corpus
	freq, err := DefaultWords()
	if err != nil {
		return nil, fmt.Errorf("load default words: %w", err)
	}
	vocab := comp.Data.Vocabulary()
	if l.CorpusPath != "" {
		corpus, err := os.ReadFile(l.CorpusPath)
		if err != nil {
			return nil, fmt.Errorf("load corpus: %w", err)
		}
		vocab += "\n" + string(corpus)
	}
	for w, n := range spell.CountWords(vocab) {
		freq[w] += n
	}
	comp.Speller = spell.New(freq)

	comp.Classifier = classify.New(classify.Options{
		Schools: comp.Schools,
		Model:   comp.Model,
		Speller: comp.Speller,
		Thresholds: classify.Thresholds{
			School:  comp.Data.Thresholds.School,
			Program: comp.Data.Thresholds.Program,
		},
		Logger: l.Logger,
	})

	return comp, nil
}
