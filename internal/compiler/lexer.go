package compiler

import (
	"strings"

	"github.com/propapanda/dinky/pkg/domain"
)

// line is one logical source line after comment stripping. Multi-line brace
// groups are joined into a single logical line (text then contains newlines)
// so the grammar stays line-oriented.
type line struct {
	num  int
	text string
}

// lex strips comments and folds multi-line `{ ... }` groups. It fails only on
// the two unrecoverable defects: an unterminated block comment and an
// unterminated brace group.
func lex(src string) ([]line, error) {
	stripped, err := stripComments(src)
	if err != nil {
		return nil, err
	}

	raw := strings.Split(stripped, "\n")
	var out []line
	for i := 0; i < len(raw); i++ {
		text := raw[i]
		if strings.TrimSpace(text) == "" {
			continue
		}
		start := i + 1
		depth := braceDepth(text)
		for depth > 0 {
			i++
			if i >= len(raw) {
				return nil, &domain.ParseError{Line: start, Msg: "unterminated expression: missing '}'"}
			}
			text += "\n" + raw[i]
			depth += braceDepth(raw[i])
		}
		out = append(out, line{num: start, text: text})
	}
	return out, nil
}

// stripComments removes `/* */` and `//` comments while preserving line
// structure (newlines inside block comments survive so line numbers hold).
func stripComments(src string) (string, error) {
	var b strings.Builder
	b.Grow(len(src))
	lineNum := 1
	i := 0
	for i < len(src) {
		if src[i] == '\n' {
			lineNum++
			b.WriteByte('\n')
			i++
			continue
		}
		if strings.HasPrefix(src[i:], "/*") {
			start := lineNum
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return "", &domain.ParseError{Line: start, Msg: "unterminated block comment: missing '*/'"}
			}
			inner := src[i+2 : i+2+end]
			for _, c := range inner {
				if c == '\n' {
					lineNum++
					b.WriteByte('\n')
				}
			}
			i += 2 + end + 2
			continue
		}
		if strings.HasPrefix(src[i:], "//") {
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		}
		b.WriteByte(src[i])
		i++
	}
	return b.String(), nil
}

func braceDepth(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return depth
}

// splitTop splits s on sep occurrences outside of brace and paren nesting.
func splitTop(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{', '(':
			depth++
		case '}', ')':
			depth--
		default:
			if s[i] == sep && depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// indexTop finds the first top-level occurrence of sub outside nesting.
func indexTop(s, sub string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{', '(':
			depth++
		case '}', ')':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(s[i:], sub) {
				return i
			}
		}
	}
	return -1
}
