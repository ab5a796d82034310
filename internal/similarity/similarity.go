// Package similarity scores how alike two free-text names are.
package similarity

import (
	"math"
	"strings"
	"unicode"
)

// Score returns a 0-100 similarity between a and b. Names equal after
// trimming and case folding score 100; an empty name scores 0; anything
// else is the Sørensen-Dice coefficient over character bigrams, with
// whitespace removed, scaled to 100 and rounded.
func Score(a, b string) int {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	return int(math.Round(dice(stripSpace(a), stripSpace(b)) * 100))
}

// dice is the bigram Dice coefficient with multiset intersection
func dice(first, second []rune) float64 {
	if string(first) == string(second) {
		return 1
	}
	if len(first) < 2 || len(second) < 2 {
		return 0
	}

	bigrams := make(map[[2]rune]int, len(first)-1)
	for i := 0; i < len(first)-1; i++ {
		bigrams[[2]rune{first[i], first[i+1]}]++
	}

	intersection := 0
	for i := 0; i < len(second)-1; i++ {
		bg := [2]rune{second[i], second[i+1]}
		if bigrams[bg] > 0 {
			bigrams[bg]--
			intersection++
		}
	}

	return 2.0 * float64(intersection) / float64(len(first)+len(second)-2)
}

func stripSpace(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			out = append(out, r)
		}
	}
	return out
}

// Best returns the highest score among the given pairs
func Best(pairs ...[2]string) int {
	best := 0
	for _, p := range pairs {
		if s := Score(p[0], p[1]); s > best {
			best = s
		}
	}
	return best
}
