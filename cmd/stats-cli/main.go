package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/classify"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/config"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/stats"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store/sqlite"
)

// engine answers statistics queries against a local database.
type engine struct {
	store      store.Store
	classifier *classify.Classifier
	stats      *stats.Aggregator
}

func main() {
	if err := config.LoadEnv(".env"); err != nil {
		slog.Error("Failed to load .env", "error", err)
		os.Exit(1)
	}

	var school, program, year string
	settings, err := config.ParseSettings("stats-cli", os.Args[1:], func(fs *flag.FlagSet) {
		fs.StringVar(&school, "school", "", "School for a one-shot query")
		fs.StringVar(&program, "program", "", "Program for a one-shot query")
		fs.StringVar(&year, "for", stats.AllYears, "Applicant year for a one-shot query")
	})
	if err != nil {
		slog.Error("Invalid settings", "error", err)
		os.Exit(2)
	}

	ctx := context.Background()

	eng, cleanup, err := buildEngine(ctx, settings)
	if err != nil {
		slog.Error("Failed to start", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// One-shot query mode
	if school != "" || program != "" {
		if err := executeQuery(ctx, os.Stdout, eng, school, program, year); err != nil {
			slog.Error("Query failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Interactive mode
	fmt.Println("===========================================")
	fmt.Println("  Admission statistics")
	fmt.Println("  Enter: school; program; year (or ALL)")
	fmt.Println("===========================================")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		school, program, year, ok := parseLine(scanner.Text())
		if !ok {
			fmt.Println("Expected: school; program; year")
			continue
		}
		if err := executeQuery(ctx, os.Stdout, eng, school, program, year); err != nil {
			fmt.Println("Error:", err)
		}
	}

	fmt.Println("\nGoodbye!")
}

// parseLine splits "school; program; year". The year defaults to ALL.
func parseLine(line string) (school, program, year string, ok bool) {
	parts := strings.Split(line, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	year = stats.AllYears
	if len(parts) == 3 && parts[2] != "" {
		year = parts[2]
	}
	return parts[0], parts[1], year, true
}

func executeQuery(ctx context.Context, w io.Writer, eng *engine, school, program, year string) error {
	cls := eng.classifier.Classify(ctx, school, program)

	fmt.Fprintf(w, "School:  %s (similarity %.0f)\n", cls.School, cls.SchoolMatch.Score)
	if cls.ProgramOK {
		fmt.Fprintf(w, "Program: %s (confidence %.2f)\n", cls.Program, cls.ProgramMatch.Score)
	} else {
		fmt.Fprintf(w, "Program: %s (classifier unavailable)\n", cls.Program)
	}
	fmt.Fprintf(w, "Tags:    %s\n", strings.Join(cls.Tags, ", "))

	res, err := eng.stats.Stats(ctx, stats.Query{School: school, Program: program, Year: year, Tags: cls.Tags})
	if err != nil {
		return fmt.Errorf("statistics: %w", err)
	}
	if res == nil {
		fmt.Fprintln(w, "No data found.")
		fmt.Fprintln(w)
		return nil
	}

	fmt.Fprintf(w, "\n--- %s ---\n", stats.Title(school, program, res.Year))
	fmt.Fprintf(w, "Average:     %.2f\n", res.Average)
	fmt.Fprintf(w, "Median:      %.2f\n", res.Median)
	fmt.Fprintf(w, "Sample Size: %d\n", res.SampleSize)
	if res.SampleSize > 1 {
		fmt.Fprintln(w, "\nHistogram:")
		for _, b := range res.Bins {
			fmt.Fprintf(w, "  %5.0f-%-5.0f %s\n", b.Min, b.Max, strings.Repeat("#", b.Count))
		}
	}
	if !cls.LabelFound {
		fmt.Fprintln(w, "\nCould not classify program.")
	}
	fmt.Fprintln(w)
	return nil
}

func buildEngine(ctx context.Context, settings config.Settings) (*engine, func(), error) {
	loader := config.Loader{
		DataPath:   settings.DataPath,
		ModelPath:  settings.ModelPath,
		CorpusPath: settings.CorpusPath,
	}

	components, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	st, err := sqlite.OpenSQLite(ctx, settings.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	eng := &engine{
		store:      st,
		classifier: components.Classifier,
		stats:      stats.New(st, nil, nil),
	}

	cleanup := func() {
		st.Close()
	}

	return eng, cleanup, nil
}
