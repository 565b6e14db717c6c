package irtext

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"

	"scatha/internal/sctx"
	"scatha/internal/ssa"
)

var (
	parserOnce sync.Once
	parserInst *participle.Parser[File]
	parserErr  error
)

func parser() (*participle.Parser[File], error) {
	parserOnce.Do(func() {
		parserInst, parserErr = participle.Build[File](
			participle.Lexer(Lexer),
			participle.Elide("Whitespace", "Comment"),
			participle.UseLookahead(4),
		)
	})
	return parserInst, parserErr
}

// Parse reads the textual IR form a module's own Print emits and rebuilds
// an equivalent *ssa.Module in a fresh Context. filename is used only for
// diagnostic positions.
func Parse(filename, src string) (*ssa.Module, error) {
	p, err := parser()
	if err != nil {
		return nil, fmt.Errorf("building irtext parser: %w", err)
	}
	file, err := p.ParseString(filename, src)
	if err != nil {
		return nil, reportParseError(src, err)
	}
	return build(sctx.NewContext(), file)
}

// ParseInto behaves like Parse but resolves named struct types against an
// already-populated context instead of a fresh one, for callers that
// pre-declare record types outside the textual form (the grammar has no
// production for a struct's field list, only for referencing one by name).
func ParseInto(ctx *sctx.Context, filename, src string) (*ssa.Module, error) {
	p, err := parser()
	if err != nil {
		return nil, fmt.Errorf("building irtext parser: %w", err)
	}
	file, err := p.ParseString(filename, src)
	if err != nil {
		return nil, reportParseError(src, err)
	}
	return build(ctx, file)
}

// reportParseError renders a caret-style message pointing at the offending
// line/column and returns it as the error value (the caller decides
// whether to also print it; package cmd/scathac's driver does, in color,
// the rest of the codebase just propagates the error).
func reportParseError(src string, err error) error {
	pe, ok := err.(participle.Error)
	if !ok {
		return err
	}
	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		return fmt.Errorf("syntax error at unknown location: %w", err)
	}
	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", max(pos.Column-1, 0)) + "^"
	msg := color.RedString("syntax error at line %d, column %d: %s", pos.Line, pos.Column, pe.Message())
	return fmt.Errorf("%s\n%s\n%s", msg, line, color.HiRedString(caret))
}
