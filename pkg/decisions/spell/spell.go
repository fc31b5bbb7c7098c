package spell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// Checker corrects words against a fixed domain dictionary.
// It is immutable after construction and safe for concurrent use.
type Checker struct {
	freq    map[string]int
	longest int // longest dictionary word, in runes
}

// New creates a checker from word frequencies.
func New(freq map[string]int) *Checker {
	c := &Checker{freq: make(map[string]int, len(freq))}
	for w, n := range freq {
		if w == "" {
			continue
		}
		c.freq[w] += n
		if l := utf8.RuneCountInString(w); l > c.longest {
			c.longest = l
		}
	}
	return c
}

// FromText builds a checker whose frequencies are the word counts of text.
func FromText(text string) *Checker {
	return New(CountWords(text))
}

// LoadCorpus reads a plain-text corpus file and builds a checker from it.
func LoadCorpus(path string) (*Checker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromText(string(data)), nil
}

// ParseFrequencies reads a word frequency list with one "word count" pair
// per line. Blank lines and lines starting with # are ignored; a line with
// only a word counts once.
func ParseFrequencies(r io.Reader) (map[string]int, error) {
	freq := make(map[string]int)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		n := 1
		switch len(fields) {
		case 1:
		case 2:
			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 0 {
				return nil, fmt.Errorf("line %d: bad count %q", lineNum, fields[1])
			}
			n = v
		default:
			return nil, fmt.Errorf("line %d: expected \"word count\"", lineNum)
		}
		freq[strings.ToLower(fields[0])] += n
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return freq, nil
}

// CountWords lowercases text and counts its words. Letters, digits,
// hyphens and slashes are word characters so "cs/bba" stays one word.
func CountWords(text string) map[string]int {
	counts := make(map[string]int)
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			word := strings.Trim(current.String(), "-/")
			if word != "" {
				counts[word]++
			}
			current.Reset()
		}
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '/' {
			current.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()

	return counts
}

// Known reports whether word is in the dictionary verbatim.
func (c *Checker) Known(word string) bool {
	_, ok := c.freq[word]
	return ok
}

// Len returns the number of distinct dictionary words.
func (c *Checker) Len() int { return len(c.freq) }

// Correct returns the most frequent dictionary word within two edits of
// word. ok is false when nothing in the dictionary is close enough.
func (c *Checker) Correct(word string) (string, bool) {
	if c.Known(word) {
		return word, true
	}
	lower := strings.ToLower(word)
	if c.Known(lower) {
		return lower, true
	}
	if !hasLetter(lower) {
		return "", false
	}

	e1 := edits1(lower)
	if best, ok := c.best(e1); ok {
		return best, true
	}

	// Nothing within two edits can exist if the word is that much longer
	// than every dictionary entry.
	if utf8.RuneCountInString(lower) > c.longest+2 {
		return "", false
	}

	e2 := make(map[string]struct{})
	for w := range e1 {
		for w2 := range edits1(w) {
			if c.Known(w2) {
				e2[w2] = struct{}{}
			}
		}
	}
	return c.best(e2)
}

// Normalize corrects every whitespace-separated token of text and joins
// them with single spaces. Tokens without a correction are kept as typed.
func (c *Checker) Normalize(text string) string {
	fields := strings.Fields(text)
	out := make([]string, len(fields))
	for i, tok := range fields {
		if c.Known(tok) {
			out[i] = tok
			continue
		}
		if corrected, ok := c.Correct(tok); ok {
			out[i] = corrected
		} else {
			out[i] = tok
		}
	}
	return strings.Join(out, " ")
}

// best picks the highest-frequency known word, breaking ties
// lexicographically so results do not depend on map order.
func (c *Checker) best(candidates map[string]struct{}) (string, bool) {
	bestWord, bestFreq := "", -1
	for w := range candidates {
		f, ok := c.freq[w]
		if !ok {
			continue
		}
		if f > bestFreq || (f == bestFreq && w < bestWord) {
			bestWord, bestFreq = w, f
		}
	}
	return bestWord, bestFreq >= 0
}

// edits1 returns every string one delete, transpose, replace or insert
// away from word.
func edits1(word string) map[string]struct{} {
	runes := []rune(word)
	out := make(map[string]struct{}, len(runes)*54+26)

	for i := 0; i <= len(runes); i++ {
		left, right := string(runes[:i]), runes[i:]
		if len(right) > 0 {
			out[left+string(right[1:])] = struct{}{}
		}
		if len(right) > 1 {
			out[left+string(right[1])+string(right[0])+string(right[2:])] = struct{}{}
		}
		for _, a := range alphabet {
			if len(right) > 0 {
				out[left+string(a)+string(right[1:])] = struct{}{}
			}
			out[left+string(a)+string(right)] = struct{}{}
		}
	}
	return out
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
