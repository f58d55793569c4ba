package prompt

import (
	"strings"
	"testing"

	"github.com/quizmind/mcqa-go/internal/extract"
)

var testChoices = []string{"mutation", "natural selection", "overbreeding", "sexual reproduction"}

func TestFormatChoices(t *testing.T) {
	t.Parallel()

	got := FormatChoices(testChoices)
	want := "A) mutation\nB) natural selection\nC) overbreeding\nD) sexual reproduction"
	if got != want {
		t.Errorf("FormatChoices() = %q, want %q", got, want)
	}
}

func TestCompose_ReasoningModeEndsWithFormatInstruction(t *testing.T) {
	t.Parallel()

	p := Compose("Which concept did Darwin discover?", testChoices, Options{Reasoning: true})

	if !strings.HasSuffix(p.User, responseFormat) {
		t.Errorf("reasoning prompt must end with the response-format instruction, got tail %q",
			p.User[len(p.User)-len(responseFormat):])
	}
	if !strings.Contains(p.User, "Answer: <letter") {
		t.Error("reasoning prompt missing the parseable final-answer line")
	}
}

func TestCompose_BasicModeNamesLabelRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		choices []string
		want    string
	}{
		{name: "four choices", choices: testChoices, want: "(A-D)"},
		{name: "two choices", choices: []string{"yes", "no"}, want: "(A-B)"},
		{name: "six choices", choices: []string{"a", "b", "c", "d", "e", "f"}, want: "(A-F)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := Compose("q", tt.choices, Options{})
			if !strings.Contains(p.User, tt.want) {
				t.Errorf("basic prompt missing label range %q:\n%s", tt.want, p.User)
			}
			if !strings.Contains(p.User, "ONLY the letter") {
				t.Error("basic prompt missing bare-letter instruction")
			}
		})
	}
}

func TestCompose_ContextSection(t *testing.T) {
	t.Parallel()

	withCtx := Compose("q", testChoices, Options{Context: "Natural selection was described in 1859."})
	if !strings.Contains(withCtx.User, contextHeader) || !strings.Contains(withCtx.User, contextFooter) {
		t.Error("context section not bracketed by header and footer")
	}

	withoutCtx := Compose("q", testChoices, Options{})
	if strings.Contains(withoutCtx.User, contextHeader) {
		t.Error("context header present without context")
	}
}

func TestCompose_Exemplars(t *testing.T) {
	t.Parallel()

	p := Compose("q", testChoices, Options{Exemplars: DefaultExemplars, Reasoning: true})
	if !strings.Contains(p.User, exemplarIntro) {
		t.Error("exemplar intro missing")
	}
	// Every exemplar must close with an answer line the extractor can parse.
	for _, ex := range DefaultExemplars {
		line := "Answer: " + extract.Label(ex.Answer)
		if !strings.Contains(p.User, line) {
			t.Errorf("exemplar answer line %q missing from prompt", line)
		}
	}
}

func TestCompose_Deterministic(t *testing.T) {
	t.Parallel()

	opts := Options{Context: "ctx", Exemplars: DefaultExemplars, Reasoning: true}
	a := Compose("q", testChoices, opts)
	b := Compose("q", testChoices, opts)
	if a != b {
		t.Error("Compose is not deterministic for identical inputs")
	}
}

// The labels shown to the model and the labels the extractor resolves must
// come from one table: a response naming a composed label has to round-trip
// to that label's index.
func TestCompose_LabelsRoundTripThroughExtractor(t *testing.T) {
	t.Parallel()

	p := Compose("q", testChoices, Options{})
	for i := range testChoices {
		label := extract.Label(i)
		if !strings.Contains(p.User, label+") ") {
			t.Fatalf("label %q not rendered in prompt", label)
		}
		got := extract.Extract("Answer: "+label, testChoices)
		if got.Index != i {
			t.Errorf("label %q extracted to %d, want %d", label, got.Index, i)
		}
	}
}

func TestSystemRoleStable(t *testing.T) {
	t.Parallel()

	p := Compose("q", testChoices, Options{})
	if p.System == "" || p.System != systemRole {
		t.Error("system role must be the package constant")
	}
}
