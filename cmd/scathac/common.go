package main

import (
	"fmt"
	"os"

	"scatha/internal/diag"
	"scatha/internal/irtext"
	"scatha/internal/ssa"
)

// readAndParse loads path and parses it as textual SSA IR, returning the
// parser's caret-style syntax error on failure so callers can os.Exit(1)
// uniformly via cobra's RunE convention instead of each subcommand
// duplicating the read/parse/report sequence.
func readAndParse(path string) (*ssa.Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	mod, err := irtext.Parse(path, string(src))
	if err != nil {
		return nil, err
	}
	return mod, nil
}

// reportViolations renders every ssa.Validate violation through the diag
// renderer and reports whether any were found; a caller sees
// len(violations) > 0 and stops rather than continuing with a faulty
// function.
func reportViolations(violations []ssa.Violation) bool {
	if len(violations) == 0 {
		return false
	}
	sink := &diag.CollectingSink{}
	for _, v := range violations {
		sink.Report(diag.Diagnostic{
			Severity: diag.SeverityError,
			Code:     "E0900",
			Message:  "invariant violation: " + v.String(),
		})
	}
	r := diag.NewReporter("", "")
	for _, d := range sink.Diagnostics {
		fmt.Fprint(os.Stderr, r.Format(d))
	}
	return true
}
