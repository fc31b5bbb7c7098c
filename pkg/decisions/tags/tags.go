// Package tags derives the ordered tag list that links a persisted decision
// to statistics queries. The same rules run when a decision is approved and
// when statistics are requested, so both sides must agree byte for byte.
package tags

import "strings"

// Special program values with their own tag rules.
const (
	JointCSBBA = "cs/bba"
	DevDegree  = "dev degree"
)

// Generate returns the tags for a classified school and program. Exactly one
// rule fires, checked in order against the exact program value:
//
//	"cs/bba"     -> [cs/bba waterloo laurier] (school ignored)
//	"dev degree" -> [dev degree, computer science, school]
//	otherwise    -> [program, school]
func Generate(school, program string) []string {
	switch program {
	case JointCSBBA:
		return []string{JointCSBBA, "waterloo", "laurier"}
	case DevDegree:
		return []string{DevDegree, "computer science", school}
	default:
		return []string{program, school}
	}
}

// Join renders tags the way they are stored on a row.
func Join(tags []string) string {
	return strings.Join(tags, ", ")
}

// Split parses a stored tag string back into trimmed tags.
func Split(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Match reports whether a stored tag string equals the query tags,
// ignoring case and the spacing around commas. Order matters.
func Match(stored string, query []string) bool {
	got := Split(stored)
	if len(got) != len(query) {
		return false
	}
	for i := range got {
		if !strings.EqualFold(got[i], strings.TrimSpace(query[i])) {
			return false
		}
	}
	return true
}
