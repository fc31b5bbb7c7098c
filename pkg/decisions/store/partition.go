package store

import (
	"regexp"
	"strconv"
)

var yearRange = regexp.MustCompile(`^(\d{4})\s*[-–]\s*(\d{4})$`)

// ParseYear splits an applicant-year partition name like "2023-2024".
func ParseYear(partition string) (start, end int, ok bool) {
	m := yearRange.FindStringSubmatch(partition)
	if m == nil {
		return 0, 0, false
	}
	start, _ = strconv.Atoi(m[1])
	end, _ = strconv.Atoi(m[2])
	return start, end, true
}

// SpanLabel returns "earliest start-latest end" across the given
// partitions, ignoring names that are not year ranges. ok is false when
// none of them parse.
func SpanLabel(partitions []string) (string, bool) {
	first, last, found := 0, 0, false
	for _, p := range partitions {
		start, end, ok := ParseYear(p)
		if !ok {
			continue
		}
		if !found || start < first {
			first = start
		}
		if !found || end > last {
			last = end
		}
		found = true
	}
	if !found {
		return "", false
	}
	return strconv.Itoa(first) + "-" + strconv.Itoa(last), true
}
