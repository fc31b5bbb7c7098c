package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Settings are the process-level options shared by the binaries.
type Settings struct {
	Addr            string
	DBPath          string
	DataPath        string
	ModelPath       string
	ModelURL        string // remote program classifier, overrides ModelPath
	CorpusPath      string
	ChartDir        string
	ModQueue        string // moderation queue target
	AnnounceChannel string // public decisions channel target
	ApplicantYear   string // fixed partition for new decisions; empty follows the calendar
}

var yearPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

// LoadEnv loads .env style files into the environment. Missing files are
// ignored; variables already set are not overridden.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ParseSettings parses flags, falling back to environment variables.
// extra registers tool-specific flags on the same flag set.
func ParseSettings(name string, args []string, extra ...func(*flag.FlagSet)) (Settings, error) {
	var s Settings

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&s.Addr, "addr", "", "HTTP listen address (DECISIONS_ADDR)")
	fs.StringVar(&s.DBPath, "db", "", "SQLite database path (DECISIONS_DB)")
	fs.StringVar(&s.DataPath, "data", "", "Schools/programs YAML (DECISIONS_DATA)")
	fs.StringVar(&s.ModelPath, "model", "", "Program model artifact (DECISIONS_MODEL)")
	fs.StringVar(&s.ModelURL, "model-url", "", "Remote program classifier endpoint (DECISIONS_MODEL_URL)")
	fs.StringVar(&s.CorpusPath, "corpus", "", "Spelling corpus (DECISIONS_CORPUS)")
	fs.StringVar(&s.ChartDir, "charts", "", "Histogram output directory (DECISIONS_CHART_DIR)")
	fs.StringVar(&s.ApplicantYear, "year", "", "Applicant year for new decisions, e.g. 2024-2025 (APPLICANT_YEAR)")
	for _, register := range extra {
		register(fs)
	}

	if err := fs.Parse(args); err != nil {
		return Settings{}, err
	}

	envDefault(&s.Addr, "DECISIONS_ADDR", ":8080")
	envDefault(&s.DBPath, "DECISIONS_DB", "decisions.db")
	envDefault(&s.DataPath, "DECISIONS_DATA", "")
	envDefault(&s.ModelPath, "DECISIONS_MODEL", "")
	envDefault(&s.ModelURL, "DECISIONS_MODEL_URL", "")
	envDefault(&s.CorpusPath, "DECISIONS_CORPUS", "")
	envDefault(&s.ChartDir, "DECISIONS_CHART_DIR", "charts")
	envDefault(&s.ModQueue, "MOD_QUEUE", "mod-queue")
	envDefault(&s.AnnounceChannel, "DECISIONS_LOG", "decisions")
	envDefault(&s.ApplicantYear, "APPLICANT_YEAR", "")

	if s.ApplicantYear != "" && !yearPattern.MatchString(s.ApplicantYear) {
		return Settings{}, fmt.Errorf("invalid applicant year %q (want YYYY-YYYY)", s.ApplicantYear)
	}
	return s, nil
}

func envDefault(v *string, key, fallback string) {
	if *v != "" {
		return
	}
	if env := os.Getenv(key); env != "" {
		*v = env
		return
	}
	*v = fallback
}

// ApplicantYearAt returns the admission cycle containing t. Cycles start
// on September 1, so October 2024 is "2024-2025" and March 2025 is too.
func ApplicantYearAt(t time.Time) string {
	start := t.Year()
	if t.Month() < time.September {
		start--
	}
	return strconv.Itoa(start) + "-" + strconv.Itoa(start+1)
}
