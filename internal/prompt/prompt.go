// Package prompt assembles the generation prompt for a multiple-choice
// question: the question itself, labelled answer choices, optional retrieved
// reference context, optional worked exemplars, and the response-format
// instruction. Assembly is pure string work: same inputs, same prompt.
//
// Choice labels come from the extract package's label table so the labels
// the model sees are exactly the labels the extractor resolves.
package prompt

import (
	"fmt"
	"strings"

	"github.com/quizmind/mcqa-go/internal/extract"
)

// systemRole establishes the tutor persona for every request.
const systemRole = `You are an expert tutor answering multiple-choice questions.
You reason carefully from the provided reference material and from first
principles, and you always commit to exactly one of the given answer choices.`

const (
	// contextHeader and contextFooter bracket retrieved reference text so the
	// model can tell curated context apart from the question itself.
	contextHeader = "=== Relevant Reference Material ==="
	contextFooter = "=== End of Reference Material ==="

	exemplarIntro = "Here are examples of how to approach these questions:"
)

// reasoningInstructions is the step-by-step protocol for chain-of-thought
// mode. The final-answer line is restated by responseFormat below; that
// closing instruction is mandatory because the extractor's primary strategy
// keys on it.
const reasoningInstructions = `Instructions:
1. Read the question and every answer choice carefully.
2. Use the reference material above when it is relevant.
3. Think through the problem step by step.
4. Weigh each answer choice before deciding.
5. Finish with the final-answer line in exactly the format below.`

// responseFormat is the parseable terminator for reasoning mode.
const responseFormat = `Respond in this format:
Reasoning: <your step-by-step reasoning>
Answer: <letter of the correct choice>`

// Exemplar is one worked example injected ahead of the real question in
// few-shot mode. Answer indexes into Choices.
type Exemplar struct {
	Question  string
	Choices   []string
	Reasoning string
	Answer    int
}

// Options controls the optional prompt sections.
type Options struct {
	// Context is retrieved reference text; empty means no context section.
	Context string
	// Exemplars are worked examples prepended in few-shot mode; nil or empty
	// means no exemplar section.
	Exemplars []Exemplar
	// Reasoning selects chain-of-thought mode. When false the prompt asks
	// for the bare letter only.
	Reasoning bool
}

// Prompt is the composed request, immutable once built.
type Prompt struct {
	System string
	User   string
}

// Compose builds the prompt for one question. It is deterministic and does
// not validate the question semantically; callers are expected to pass a
// non-empty question and 2..extract.MaxChoices choices.
func Compose(question string, choices []string, opts Options) Prompt {
	var sections []string

	if opts.Context != "" {
		sections = append(sections, contextHeader+"\n"+strings.TrimSpace(opts.Context)+"\n"+contextFooter)
	}

	if len(opts.Exemplars) > 0 {
		var b strings.Builder
		b.WriteString(exemplarIntro)
		for _, ex := range opts.Exemplars {
			b.WriteString("\n\n")
			b.WriteString(formatExemplar(ex))
		}
		sections = append(sections, b.String())
	}

	qa := "Question: " + strings.TrimSpace(question) + "\n\nAnswer choices:\n" + FormatChoices(choices)
	sections = append(sections, qa)

	if opts.Reasoning {
		sections = append(sections, reasoningInstructions, responseFormat)
	} else {
		sections = append(sections, basicInstruction(len(choices)))
	}

	return Prompt{
		System: systemRole,
		User:   strings.Join(sections, "\n\n"),
	}
}

// FormatChoices renders choices one per line with their labels, preserving
// the original order: "A) first choice" and so on.
func FormatChoices(choices []string) string {
	var b strings.Builder
	for i, choice := range choices {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s) %s", extract.Label(i), choice)
	}
	return b.String()
}

// formatExemplar renders one worked example in the same shape the model is
// asked to produce, closing with the answer line the extractor parses.
func formatExemplar(ex Exemplar) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nAnswer choices:\n%s\n\n", ex.Question, FormatChoices(ex.Choices))
	if ex.Reasoning != "" {
		fmt.Fprintf(&b, "Reasoning: %s\n", ex.Reasoning)
	}
	fmt.Fprintf(&b, "Answer: %s", extract.Label(ex.Answer))
	return b.String()
}

// basicInstruction asks for the bare letter, naming the valid range so the
// model does not invent labels.
func basicInstruction(choiceCount int) string {
	last := extract.Label(choiceCount - 1)
	return fmt.Sprintf("Respond with ONLY the letter of the correct answer (A-%s). Do not explain.", last)
}
