// Package budget provides character and token budget accounting for prompt
// assembly. The agent supports multiple LLM backends with different
// tokenizers, so estimates use a character heuristic (1 token ≈ 4 characters
// of English prose) rather than any one tokenizer.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	// 4 chars/token is the usual rule of thumb for English prose.
	charsPerToken = 4
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// KeepWithinChars returns how many leading texts fit within a cumulative
// character budget. The first text is always kept, even when it alone
// exceeds the budget.
func KeepWithinChars(texts []string, maxChars int) int {
	if len(texts) == 0 {
		return 0
	}

	total := 0
	for i, text := range texts {
		total += len(text)
		if total > maxChars && i > 0 {
			return i
		}
	}
	return len(texts)
}
