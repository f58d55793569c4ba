// Command mcqa answers multiple-choice questions with an LLM grounded in a
// reference corpus. It provides a CLI (via Cobra) for one-off questions,
// corpus indexing, benchmark evaluation, and an HTTP answering API.
package main

import (
	"fmt"
	"os"

	"github.com/quizmind/mcqa-go/cmd/mcqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
