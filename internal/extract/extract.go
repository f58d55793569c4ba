// Package extract maps free-form model responses back onto multiple-choice
// answer indices. Strategies run in a fixed order (explicit answer tags, a
// lone capital label, a standalone integer, then fuzzy text match) and the
// first confident match wins. When nothing matches confidently the result is
// NoMatch, never a guess.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// choiceLabels is the single source of truth for the label-to-index mapping.
// The prompt composer labels choices from this table (via Label) and every
// extraction strategy resolves letters through it. It must never be
// re-derived elsewhere.
const choiceLabels = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// MaxChoices is the largest choice set the label scheme can address.
const MaxChoices = len(choiceLabels)

// NoMatch is the sentinel index meaning no strategy produced a confident
// answer. It is part of the public agent contract.
const NoMatch = -1

// Label returns the display label for a choice index ("A" for 0, "B" for 1,
// ...), or the empty string when the index is outside the labelled range.
func Label(index int) string {
	if index < 0 || index >= MaxChoices {
		return ""
	}
	return string(choiceLabels[index])
}

// labelIndex maps an upper-case label letter to its choice index, or NoMatch
// when the rune is not a label.
func labelIndex(r rune) int {
	if r < 'A' || r > 'Z' {
		return NoMatch
	}
	return int(r - 'A')
}

// Strategy identifies which cascade stage produced a result. Exposed so
// callers can report how answers were resolved (metrics, evaluation reports).
type Strategy string

const (
	// StrategyAnswerTag matched an explicit answer tag such as "Answer: B".
	StrategyAnswerTag Strategy = "answer_tag"
	// StrategyLoneLabel matched a standalone capital letter in the label range.
	StrategyLoneLabel Strategy = "lone_label"
	// StrategyNumeric matched a standalone integer naming a choice.
	StrategyNumeric Strategy = "numeric"
	// StrategyFuzzy matched a choice by normalized text similarity.
	StrategyFuzzy Strategy = "fuzzy"
	// StrategyNone means no stage matched; the index is NoMatch.
	StrategyNone Strategy = "none"
)

// Numbering fixes how standalone integers in responses are interpreted.
// The interpretation is a convention, not a guess: the primary reading is
// tried first and the alternate reading is used only when the primary is out
// of range (e.g. "4" with four choices under ZeroIndexed reads as the fourth
// choice, index 3).
type Numbering int

const (
	// ZeroIndexed reads "0" as the first choice. This is the default: the
	// composed prompts label choices with letters, so bare integers come from
	// models ignoring the format, and those overwhelmingly count from zero
	// when the prompt shows no digits at all.
	ZeroIndexed Numbering = iota
	// OneIndexed reads "1" as the first choice, for deployments whose prompt
	// convention numbers choices from 1.
	OneIndexed
)

// index resolves a bare integer n against a choice count under the
// convention, falling back to the alternate reading only when the primary
// one is out of range.
func (nb Numbering) index(n, count int) (int, bool) {
	switch nb {
	case OneIndexed:
		if n >= 1 && n <= count {
			return n - 1, true
		}
		if n == 0 {
			return 0, true
		}
	default:
		if n >= 0 && n < count {
			return n, true
		}
		if n == count {
			return n - 1, true
		}
	}
	return NoMatch, false
}

// Result is the outcome of one extraction: either a valid index into the
// original choice ordering, or NoMatch. Strategy records the stage that
// produced it.
type Result struct {
	Index    int
	Strategy Strategy
}

// Extractor runs the strategy cascade under a fixed numeric convention.
// The zero value uses ZeroIndexed numbering and is ready to use.
type Extractor struct {
	numbering Numbering
}

// New constructs an Extractor with the given numeric convention.
func New(numbering Numbering) *Extractor {
	return &Extractor{numbering: numbering}
}

// Extract resolves a model response against the original ordered choices.
// It never fails: malformed, empty, or oversized input falls through the
// cascade to NoMatch. Indices always refer to the choice ordering as given.
func (e *Extractor) Extract(response string, choices []string) Result {
	if strings.TrimSpace(response) == "" || len(choices) < 2 || len(choices) > MaxChoices {
		return Result{Index: NoMatch, Strategy: StrategyNone}
	}

	steps := []struct {
		strategy Strategy
		match    func(response string, choices []string) (int, bool)
	}{
		{StrategyAnswerTag, matchAnswerTag},
		{StrategyLoneLabel, matchLoneLabel},
		{StrategyNumeric, e.matchNumeric},
		{StrategyFuzzy, matchFuzzy},
	}
	for _, step := range steps {
		if idx, ok := step.match(response, choices); ok {
			return Result{Index: idx, Strategy: step.strategy}
		}
	}
	return Result{Index: NoMatch, Strategy: StrategyNone}
}

// Extract runs the cascade with the default ZeroIndexed convention.
func Extract(response string, choices []string) Result {
	return (&Extractor{}).Extract(response, choices)
}

// tagPattern is one explicit answer-tag convention. guardLower filters
// lowercase captures that are prose rather than labels: "the answer is a
// genetically modified organism" must not read as label A, while "the answer
// is b." must.
type tagPattern struct {
	re         *regexp.Regexp
	guardLower bool
}

var answerTagPatterns = []tagPattern{
	// Choice-echo format: a line beginning "B)", "(b)", "C." or "D:".
	{re: regexp.MustCompile(`(?im)^\s*\(?([a-z])[\).:](?:\s|$)`)},
	{re: regexp.MustCompile(`(?i)\bfinal\s+answer\s*(?:is|:)?\s*\(?([a-z])\)?\b`), guardLower: true},
	{re: regexp.MustCompile(`(?i)\btherefore,?\s+the\s+answer\s+is\s*\(?([a-z])\)?\b`), guardLower: true},
	{re: regexp.MustCompile(`(?i)\bthe\s+correct\s+answer\s+is\s*\(?([a-z])\)?\b`), guardLower: true},
	{re: regexp.MustCompile(`(?i)\banswer\s*(?:is|:)\s*\(?([a-z])\)?\b`), guardLower: true},
	{re: regexp.MustCompile(`(?i)\bconclusion\s*:\s*\(?([a-z])\)?\b`), guardLower: true},
}

// matchAnswerTag searches for explicit answer-tag conventions and keeps the
// last valid occurrence: a model may reason through wrong labels before
// converging, so the final statement outranks earlier ones.
func matchAnswerTag(response string, choices []string) (int, bool) {
	best, bestPos := NoMatch, -1
	for _, p := range answerTagPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(response, -1) {
			start, end := m[2], m[3]
			letter := rune(response[start])
			if p.guardLower && unicode.IsLower(letter) && !terminalOnLine(response, end) {
				continue
			}
			idx := labelIndex(unicode.ToUpper(letter))
			if idx < 0 || idx >= len(choices) {
				continue
			}
			if start > bestPos {
				best, bestPos = idx, start
			}
		}
	}
	return best, best != NoMatch
}

// terminalOnLine reports whether only punctuation or whitespace follows
// position at on its line. A lowercase tag letter mid-sentence is usually an
// article, not a label; it only counts when nothing readable follows it.
func terminalOnLine(s string, at int) bool {
	rest := s[at:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	for _, r := range rest {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var loneLabelPattern = regexp.MustCompile(`\b([A-Z])\b`)

// matchLoneLabel searches for a standalone capital letter in the valid label
// range, preferring the last occurrence. Lowercase letters are never labels
// here: a bare "a" is almost always the article.
func matchLoneLabel(response string, choices []string) (int, bool) {
	best := NoMatch
	for _, m := range loneLabelPattern.FindAllString(response, -1) {
		idx := labelIndex(rune(m[0]))
		if idx >= 0 && idx < len(choices) {
			best = idx
		}
	}
	return best, best != NoMatch
}

var integerPattern = regexp.MustCompile(`\b\d+\b`)

// matchNumeric searches for a standalone integer naming a choice under the
// extractor's numbering convention, preferring the last valid occurrence.
func (e *Extractor) matchNumeric(response string, choices []string) (int, bool) {
	best := NoMatch
	for _, tok := range integerPattern.FindAllString(response, -1) {
		n, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		if idx, ok := e.numbering.index(n, len(choices)); ok {
			best = idx
		}
	}
	return best, best != NoMatch
}
