// Package irtext implements the textual IR reader: the human-readable
// SSA form `func <type> @name(<params>) { %block: … }` that package ssa's
// Print/PrintFunction emit is also the form tools and tests feed back in.
// Parse is the inverse of ssa.Print.
package irtext

import "github.com/alecthomas/participle/v2/lexer"

// Lexer tokenizes the textual IR. Rule order matters
// (longest/most-specific patterns first): `@`/`%` sigils for
// global/local references, a float pattern that must be tried before the
// integer pattern, and a narrow punctuation class (no infix arithmetic
// operators appear in the textual IR — arithmetic is always a named
// mnemonic like `add`, never a symbol).
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"Float", `-?[0-9]+\.[0-9]+`, nil},
		{"Int", `-?[0-9]+`, nil},
		{"Ident", `[A-Za-z_][A-Za-z0-9_.]*`, nil},
		{"At", `@`, nil},
		{"Percent", `%`, nil},
		{"Punct", `[{}()\[\],:=]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
