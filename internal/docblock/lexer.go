package docblock

import (
	"fmt"
	"strings"
)

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokPipe     // |
	tokAmp      // &
	tokQuestion // ?
	tokLParen
	tokRParen
	tokLAngle
	tokRAngle
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokComma
	tokColon
	tokDoubleColon
	tokEllipsis
	tokStar
)

type token struct {
	kind tokKind
	text string
	off  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of type"
	}
	return fmt.Sprintf("%q", t.text)
}

// Error is a malformed type string.
type Error struct {
	Text   string
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid type %q at %d: %s", e.Text, e.Offset, e.Msg)
}

func isIdentStart(b byte) bool {
	return b == '_' || b == '\\' || b == '$' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b >= 0x80
}

func isIdentContinue(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// tokenize разбивает строку типа на токены целиком; парсеру нужен
// произвольный lookahead для ключей shape-массивов.
func tokenize(src string) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
			continue
		case isDigit(c) || (c == '-' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			i++
			kind := tokInt
			for i < len(src) && (isDigit(src[i]) || src[i] == '_') {
				i++
			}
			if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
				kind = tokFloat
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			out = append(out, token{kind: kind, text: strings.ReplaceAll(src[start:i], "_", ""), off: start})
			continue
		case isIdentStart(c):
			start := i
			i++
			for i < len(src) {
				b := src[i]
				if isIdentContinue(b) {
					i++
					continue
				}
				// дефис внутри ключевых слов: non-empty-string, key-of
				if b == '-' && i+1 < len(src) && isIdentStart(src[i+1]) {
					i++
					continue
				}
				break
			}
			out = append(out, token{kind: tokIdent, text: src[start:i], off: start})
			continue
		case c == '\'' || c == '"':
			start := i
			i++
			var b strings.Builder
			closed := false
			for i < len(src) {
				if src[i] == '\\' && i+1 < len(src) {
					b.WriteByte(src[i+1])
					i += 2
					continue
				}
				if src[i] == c {
					closed = true
					i++
					break
				}
				b.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, &Error{Text: src, Offset: start, Msg: "unterminated string literal"}
			}
			out = append(out, token{kind: tokString, text: b.String(), off: start})
			continue
		}

		kind := tokEOF
		width := 1
		switch c {
		case '|':
			kind = tokPipe
		case '&':
			kind = tokAmp
		case '?':
			kind = tokQuestion
		case '(':
			kind = tokLParen
		case ')':
			kind = tokRParen
		case '<':
			kind = tokLAngle
		case '>':
			kind = tokRAngle
		case '{':
			kind = tokLBrace
		case '}':
			kind = tokRBrace
		case '[':
			kind = tokLBracket
		case ']':
			kind = tokRBracket
		case ',':
			kind = tokComma
		case '*':
			kind = tokStar
		case ':':
			kind = tokColon
			if strings.HasPrefix(src[i:], "::") {
				kind, width = tokDoubleColon, 2
			}
		case '.':
			if strings.HasPrefix(src[i:], "...") {
				kind, width = tokEllipsis, 3
			}
		}
		if kind == tokEOF {
			return nil, &Error{Text: src, Offset: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
		out = append(out, token{kind: kind, text: src[i : i+width], off: i})
		i += width
	}
	out = append(out, token{kind: tokEOF, off: len(src)})
	return out, nil
}
