package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// fuzzyMinConfidence is the fixed similarity floor for the fuzzy stage.
// Below it the cascade returns NoMatch rather than picking the least-bad
// choice.
const fuzzyMinConfidence = 0.75

// matchFuzzy compares the whole response against each choice text on a
// normalized [0, 1] similarity scale and takes the best-scoring choice if it
// clears fuzzyMinConfidence. Exact ties keep the earliest choice, so the
// outcome is deterministic.
func matchFuzzy(response string, choices []string) (int, bool) {
	normResponse := normalize(response)
	if normResponse == "" {
		return NoMatch, false
	}

	best, bestScore := NoMatch, 0.0
	for i, choice := range choices {
		score := similarity(normResponse, normalize(choice))
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best != NoMatch && bestScore >= fuzzyMinConfidence {
		return best, true
	}
	return NoMatch, false
}

// similarity scores a normalized response against one normalized choice.
// A choice appearing whole and word-aligned inside the response scores 1:
// models frequently answer by restating the choice text inside a sentence.
// Otherwise the score is a Levenshtein ratio over the full strings.
func similarity(normResponse, normChoice string) float64 {
	if normChoice == "" {
		return 0
	}
	if normResponse == normChoice {
		return 1
	}
	if strings.Contains(" "+normResponse+" ", " "+normChoice+" ") {
		return 1
	}

	dist := levenshtein.ComputeDistance(normResponse, normChoice)
	longest := utf8.RuneCountInString(normResponse)
	if n := utf8.RuneCountInString(normChoice); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(dist)/float64(longest)
}

// normalize lowercases, strips everything that is not a letter or digit and
// collapses runs of whitespace, so comparisons ignore case, punctuation and
// formatting.
func normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}
