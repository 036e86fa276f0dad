// Package macro implements the ZULON source-to-source macro preprocessor
// (spec.md section 4.1): it rewrites `name!(...)` invocations of a small,
// fixed set of built-in macros before the lexer ever sees the text.
package macro

import (
	"strings"
	"unicode/utf8"
)

// Rule is one pattern/template pair for a macro. Pattern is matched against
// the argument text using literal fragments and `$name` captures; Template
// is the replacement text with `$name` placeholders substituted back in.
type Rule struct {
	Pattern  string
	Template string
}

// Macro is a named, possibly multi-rule, built-in macro.
type Macro struct {
	Name  string
	Rules []Rule
}

// builtins mirrors spec.md section 4.1's list exactly: panic!, assert!,
// assert_eq!, assert_ne!, println!, stringify!.
var builtins = map[string]Macro{
	"panic": {Name: "panic", Rules: []Rule{
		{Pattern: "$msg", Template: "{ println($msg); return 1; }"},
	}},
	"assert": {Name: "assert", Rules: []Rule{
		{Pattern: "$cond", Template: "if (!($cond)) { return 1; }"},
	}},
	"assert_eq": {Name: "assert_eq", Rules: []Rule{
		{Pattern: "$a, $b", Template: "if (($a) != ($b)) { return 1; }"},
	}},
	"assert_ne": {Name: "assert_ne", Rules: []Rule{
		{Pattern: "$a, $b", Template: "if (($a) == ($b)) { return 1; }"},
	}},
	"println": {Name: "println", Rules: []Rule{
		{Pattern: "$fmt", Template: "println($fmt)"},
		{Pattern: "$fmt, $args", Template: "println($fmt, $args)"},
	}},
	"stringify": {Name: "stringify", Rules: []Rule{
		{Pattern: "$expr", Template: "\"$expr\""},
	}},
}

// Expander rewrites macro invocations in source text. It holds no state
// between calls to Expand; expansion is always a single pass over fresh
// input (spec.md section 4.1: "Expansion is a single pass; expansions are
// not re-expanded").
type Expander struct {
	registry map[string]Macro
}

// New creates an Expander pre-seeded with the built-in macros.
func New() *Expander {
	reg := make(map[string]Macro, len(builtins))
	for k, v := range builtins {
		reg[k] = v
	}

	return &Expander{registry: reg}
}

// Register adds or overrides a macro definition.
func (e *Expander) Register(m Macro) {
	e.registry[m.Name] = m
}

// Expand scans src for `identifier ! delimiter ... delimiter` invocations
// and substitutes matching built-in macro rules, leaving text inside string
// literals and unmatched invocations untouched.
func (e *Expander) Expand(src string) string {
	var out strings.Builder

	inString := false
	var stringQuote byte

	i := 0
	for i < len(src) {
		c := src[i]

		if inString {
			out.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				out.WriteByte(src[i+1])
				i += 2

				continue
			}
			if c == stringQuote {
				inString = false
			}
			i++

			continue
		}

		if c == '"' || c == '\'' {
			inString = true
			stringQuote = c
			out.WriteByte(c)
			i++

			continue
		}

		if isIdentStart(src, i) {
			start := i
			end := identEnd(src, i)
			name := src[start:end]

			j := end
			if j < len(src) && src[j] == '!' {
				j++

				if j < len(src) && isOpenDelim(src[j]) {
					open := src[j]
					close := matchingDelim(open)

					argStart := j + 1
					argEnd, ok := findMatchingDelim(src, argStart, open, close)

					if ok {
						args := src[argStart:argEnd]

						if m, found := e.registry[name]; found {
							if expanded, matched := m.expand(args); matched {
								out.WriteString(expanded)
								i = argEnd + 1

								continue
							}
						}
					}
				}
			}

			out.WriteString(name)
			i = end

			continue
		}

		out.WriteByte(c)
		i++
	}

	return out.String()
}

// expand tries each rule in order, returning the first match.
func (m Macro) expand(args string) (string, bool) {
	args = strings.TrimSpace(args)

	for _, r := range m.Rules {
		if bindings, ok := matchPattern(r.Pattern, args); ok {
			return substitute(r.Template, bindings), true
		}
	}

	return "", false
}

// matchPattern matches a simple pattern of comma-separated fragments, each
// either a literal or a `$name` capture, against argument text. A capture
// other than the final one consumes text up to the next top-level comma;
// the final capture consumes the remainder verbatim.
func matchPattern(pattern, args string) (map[string]string, bool) {
	patParts := splitTopLevel(pattern, ',')
	argParts := splitTopLevel(args, ',')

	bindings := map[string]string{}

	for idx, pp := range patParts {
		pp = strings.TrimSpace(pp)
		if !strings.HasPrefix(pp, "$") {
			continue
		}

		name := strings.TrimPrefix(pp, "$")

		if idx == len(patParts)-1 {
			rest := strings.Join(argParts[min(idx, len(argParts)):], ",")
			bindings[name] = strings.TrimSpace(rest)

			continue
		}

		if idx >= len(argParts) {
			return nil, false
		}

		bindings[name] = strings.TrimSpace(argParts[idx])
	}

	if len(patParts) > len(argParts) && !strings.Contains(pattern, "$") {
		return nil, false
	}

	return bindings, true
}

// substitute replaces every `$name` placeholder in template with its bound
// text.
func substitute(template string, bindings map[string]string) string {
	var out strings.Builder

	i := 0
	for i < len(template) {
		if template[i] == '$' {
			j := identEnd(template, i+1)
			if j > i+1 {
				name := template[i+1 : j]
				if val, ok := bindings[name]; ok {
					out.WriteString(val)
					i = j

					continue
				}
			}
		}

		out.WriteByte(template[i])
		i++
	}

	return out.String()
}

// splitTopLevel splits s on sep, ignoring occurrences nested inside
// parens/brackets/braces.
func splitTopLevel(s string, sep byte) []string {
	var parts []string

	depth := 0
	start := 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}

	parts = append(parts, s[start:])

	return parts
}

func isOpenDelim(c byte) bool {
	return c == '(' || c == '{' || c == '['
}

func matchingDelim(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '{':
		return '}'
	case '[':
		return ']'
	}

	return 0
}

// findMatchingDelim walks nested delimiters from start (just past the
// opening delimiter) to find the index of the matching close, respecting
// string literals so an invocation inside a string is never mistaken for
// one in code (spec.md section 4.1).
func findMatchingDelim(src string, start int, open, close byte) (int, bool) {
	depth := 1
	inString := false

	var quote byte

	i := start
	for i < len(src) {
		c := src[i]

		if inString {
			if c == '\\' && i+1 < len(src) {
				i += 2
				continue
			}
			if c == quote {
				inString = false
			}
			i++

			continue
		}

		switch {
		case c == '"' || c == '\'':
			inString = true
			quote = c
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return i, true
			}
		}

		i++
	}

	return 0, false
}

// isIdentStart reports whether the code point at byte offset i begins an
// identifier.
func isIdentStart(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 127
}

// identEnd returns the byte offset just past the identifier starting at i.
// All slicing stays on code-point boundaries per spec.md section 4.1.
func identEnd(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r > 127 {
			i += size

			continue
		}

		break
	}

	return i
}

func min(a, b int) int {
	if a < b {
		return a
	}

	return b
}
