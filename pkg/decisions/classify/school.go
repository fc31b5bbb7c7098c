package classify

import "strings"

// NoSchool is returned by the matcher when no school is configured.
const NoSchool = "none"

// School is a canonical school name and the other names people use for it.
type School struct {
	Name     string
	Synonyms []string
}

// SchoolMatcher maps free text onto a canonical school name.
type SchoolMatcher struct {
	schools []School
}

// NewSchoolMatcher copies schools; their order is the tie-break order.
func NewSchoolMatcher(schools []School) *SchoolMatcher {
	cp := make([]School, len(schools))
	for i, s := range schools {
		cp[i] = School{Name: s.Name, Synonyms: append([]string(nil), s.Synonyms...)}
	}
	return &SchoolMatcher{schools: cp}
}

// Schools returns the configured schools in match order.
func (m *SchoolMatcher) Schools() []School {
	return m.schools
}

// Match returns the canonical school whose synonym (or full name) is most
// similar to text, and that similarity. On equal scores the entry seen
// first wins. With no schools configured it returns NoSchool and 0.
func (m *SchoolMatcher) Match(text string) (string, int) {
	query := preprocessSchool(text)

	best, bestScore := NoSchool, 0
	for _, s := range m.schools {
		// The full name is checked after the synonyms.
		for _, syn := range s.Synonyms {
			if score := Ratio(query, syn); score > bestScore {
				best, bestScore = s.Name, score
			}
		}
		if score := Ratio(query, s.Name); score > bestScore {
			best, bestScore = s.Name, score
		}
	}
	return best, bestScore
}

func preprocessSchool(text string) string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "university of ", "")
	text = strings.ReplaceAll(text, "university", "")
	return strings.TrimSpace(text)
}
