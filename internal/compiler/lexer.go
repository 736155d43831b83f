package compiler

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInt
	tokFloat
	tokString
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// SyntaxError reports an invalid value expression.
type SyntaxError struct {
	Src string
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d in %q: %s", e.Pos, e.Src, e.Msg)
}

// Longest operators first so that "==" wins over "=".
var operators = []string{
	"==", "!=", "<=", ">=", "&&", "||",
	"+", "-", "*", "/", "%", "<", ">", "!",
	".", ",", ":", "(", ")", "[", "]", "{", "}",
}

func lex(src string) ([]token, error) {
	var tokens []token
	runes := []rune(src)
	i := 0

	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case unicode.IsDigit(r):
			start := i
			kind := tokInt
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			// A dot followed by a digit continues a float, unless the number is
			// itself a path index as in `rows.0.1`.
			afterDot := len(tokens) > 0 && tokens[len(tokens)-1].kind == tokOp && tokens[len(tokens)-1].text == "."
			if !afterDot && i+1 < len(runes) && runes[i] == '.' && unicode.IsDigit(runes[i+1]) {
				kind = tokFloat
				i++
				for i < len(runes) && unicode.IsDigit(runes[i]) {
					i++
				}
			}
			tokens = append(tokens, token{kind: kind, text: string(runes[start:i]), pos: start})

		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[start:i]), pos: start})

		case r == '"' || r == '\'':
			start := i
			quote := r
			i++
			var sb strings.Builder
			closed := false
			for i < len(runes) {
				c := runes[i]
				if c == '\\' && i+1 < len(runes) {
					sb.WriteRune(unescape(runes[i+1]))
					i += 2
					continue
				}
				if c == quote {
					closed = true
					i++
					break
				}
				sb.WriteRune(c)
				i++
			}
			if !closed {
				return nil, &SyntaxError{Src: src, Pos: start, Msg: "unterminated string"}
			}
			tokens = append(tokens, token{kind: tokString, text: sb.String(), pos: start})

		default:
			rest := string(runes[i:])
			matched := ""
			for _, op := range operators {
				if strings.HasPrefix(rest, op) {
					matched = op
					break
				}
			}
			if matched == "" {
				return nil, &SyntaxError{Src: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
			}
			tokens = append(tokens, token{kind: tokOp, text: matched, pos: i})
			i += len([]rune(matched))
		}
	}

	return append(tokens, token{kind: tokEOF, pos: len(runes)}), nil
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	}
	return r
}
