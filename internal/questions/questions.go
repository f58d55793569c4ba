// Package questions loads multiple-choice question sets from CSV files.
//
// The expected layout is a header row naming at least "id", "question" and a
// contiguous run of answer columns "answer_0", "answer_1", ... Column order
// does not matter. An optional "correct" column carries the answer key,
// either as the exact text of a choice or as its zero-based index.
package questions

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/quizmind/mcqa-go/internal/extract"
)

// Question is a single multiple-choice question.
type Question struct {
	// ID is the identifier carried in the file, kept verbatim.
	ID string
	// Text is the question being asked.
	Text string
	// Choices are the candidate answers, in file order.
	Choices []string
	// Correct is the index of the right choice, or -1 when the file carries
	// no answer key for this question.
	Correct int
}

// HasKey reports whether the question carries an answer key.
func (q Question) HasKey() bool { return q.Correct >= 0 }

// LoadFile reads a question set from the CSV file at path.
func LoadFile(path string) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("questions: open %s: %w", path, err)
	}
	defer f.Close()

	qs, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("questions: %s: %w", path, err)
	}
	return qs, nil
}

// Load reads a question set from r. Rows are validated strictly: a malformed
// row fails the whole load rather than being silently skipped.
func Load(r io.Reader) ([]Question, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("questions: file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("questions: read header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var qs []Question
	for row := 1; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("questions: row %d: %w", row, err)
		}

		q, err := parseRow(record, cols)
		if err != nil {
			return nil, fmt.Errorf("questions: row %d: %w", row, err)
		}
		qs = append(qs, q)
	}

	if len(qs) == 0 {
		return nil, fmt.Errorf("questions: file has a header but no questions")
	}
	return qs, nil
}

// columns holds the resolved positions of the known header fields.
// correct is -1 when the file carries no answer key.
type columns struct {
	id       int
	question int
	correct  int
	answers  []int
}

func resolveColumns(header []string) (columns, error) {
	cols := columns{id: -1, question: -1, correct: -1}

	byName := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			// Spreadsheet exports often lead with a UTF-8 byte order mark.
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var ok bool
	if cols.id, ok = byName["id"]; !ok {
		return cols, fmt.Errorf("questions: header is missing %q", "id")
	}
	if cols.question, ok = byName["question"]; !ok {
		return cols, fmt.Errorf("questions: header is missing %q", "question")
	}
	if c, ok := byName["correct"]; ok {
		cols.correct = c
	}

	for i := 0; ; i++ {
		pos, ok := byName[fmt.Sprintf("answer_%d", i)]
		if !ok {
			break
		}
		cols.answers = append(cols.answers, pos)
	}
	if len(cols.answers) < 2 {
		return cols, fmt.Errorf("questions: header needs answer_0 and answer_1 at minimum, found %d answer column(s)", len(cols.answers))
	}
	if len(cols.answers) > extract.MaxChoices {
		return cols, fmt.Errorf("questions: %d answer columns exceed the %d choice labels available", len(cols.answers), extract.MaxChoices)
	}
	return cols, nil
}

func parseRow(record []string, cols columns) (Question, error) {
	q := Question{
		ID:      record[cols.id],
		Text:    record[cols.question],
		Correct: -1,
	}
	if strings.TrimSpace(q.Text) == "" {
		return q, fmt.Errorf("question text is empty")
	}

	// A question may use fewer choices than the header declares; trailing
	// empty cells are dropped. A hole in the middle is a malformed row.
	cells := make([]string, len(cols.answers))
	last := -1
	for i, pos := range cols.answers {
		cells[i] = record[pos]
		if strings.TrimSpace(cells[i]) != "" {
			last = i
		}
	}
	if last < 1 {
		return q, fmt.Errorf("fewer than 2 answer choices")
	}
	for i := 0; i <= last; i++ {
		if strings.TrimSpace(cells[i]) == "" {
			return q, fmt.Errorf("answer_%d is empty but later choices are not", i)
		}
	}
	q.Choices = cells[:last+1]

	if cols.correct >= 0 {
		idx, err := correctIndex(record[cols.correct], q.Choices)
		if err != nil {
			return q, err
		}
		q.Correct = idx
	}
	return q, nil
}

// correctIndex resolves the "correct" cell against the row's choices. The
// exact choice text is tried first, then a zero-based index. A blank cell
// means the row carries no key.
func correctIndex(cell string, choices []string) (int, error) {
	if strings.TrimSpace(cell) == "" {
		return -1, nil
	}
	for i, c := range choices {
		if c == cell {
			return i, nil
		}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(cell)); err == nil {
		if n < 0 || n >= len(choices) {
			return 0, fmt.Errorf("correct index %d is out of range for %d choices", n, len(choices))
		}
		return n, nil
	}
	return 0, fmt.Errorf("correct answer %q does not match any choice", cell)
}
