package classify

import (
	"math"
	"strings"
)

// Ratio returns the normalized edit-distance similarity of a and b on a
// 0-100 scale, compared case-insensitively. Insertions and deletions cost
// one and substitutions two, so the score is 2*LCS/(len(a)+len(b)) rounded
// to the nearest integer. An empty input scores 0.
func Ratio(a, b string) int {
	ar := []rune(strings.ToLower(a))
	br := []rune(strings.ToLower(b))
	if len(ar) == 0 || len(br) == 0 {
		return 0
	}

	lensum := len(ar) + len(br)
	dist := lensum - 2*lcs(ar, br)
	return int(math.Round(100 * float64(lensum-dist) / float64(lensum)))
}

// lcs is the length of the longest common subsequence of a and b.
func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for _, ca := range a {
		for j, cb := range b {
			switch {
			case ca == cb:
				curr[j+1] = prev[j] + 1
			case prev[j+1] >= curr[j]:
				curr[j+1] = prev[j+1]
			default:
				curr[j+1] = curr[j]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
