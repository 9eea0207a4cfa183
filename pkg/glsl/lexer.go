package glsl

import "strings"

// TokenKind classifies a lexical token.
type TokenKind int

// Token kinds.
const (
	Space TokenKind = iota
	Newline
	Comment
	Ident
	Number
	String
	Punct
	Directive
)

// Token is one lexical element of shader source. Concatenating the Text of
// every token reproduces the input exactly.
type Token struct {
	Kind TokenKind
	Text string
	Line int

	// InDirective is set for every token on a preprocessor line, including
	// the Directive token itself.
	InDirective bool
}

// Significant reports whether the token carries syntax (not whitespace or comments).
func (t Token) Significant() bool {
	return t.Kind != Space && t.Kind != Newline && t.Kind != Comment && t.Text != ""
}

// Is reports whether the token is significant with the given text.
func (t Token) Is(text string) bool {
	return t.Significant() && t.Text == text
}

// Tokens is a tokenized view of a shader source.
type Tokens []Token

// String joins the token texts back into source.
func (ts Tokens) String() string {
	var sb strings.Builder
	for _, t := range ts {
		sb.WriteString(t.Text)
	}
	return sb.String()
}

// Next returns the index of the next significant token after i, or -1.
func (ts Tokens) Next(i int) int {
	for j := i + 1; j < len(ts); j++ {
		if ts[j].Significant() {
			return j
		}
	}
	return -1
}

// Prev returns the index of the previous significant token before i, or -1.
func (ts Tokens) Prev(i int) int {
	for j := i - 1; j >= 0; j-- {
		if ts[j].Significant() {
			return j
		}
	}
	return -1
}

// DirectiveName returns the directive keyword of a Directive token ("version" for "# version").
func (t Token) DirectiveName() string {
	if t.Kind != Directive {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(t.Text, "#"))
}

// DirectiveEnd returns the index of the last token of the directive line that
// starts at i (the token just before the terminating newline). Lines joined
// with a trailing backslash count as one directive.
func (ts Tokens) DirectiveEnd(i int) int {
	end := i
	for j := i + 1; j < len(ts) && ts[j].InDirective; j++ {
		if ts[j].Kind == Newline {
			if !ts.continues(j) {
				break
			}
			continue
		}
		end = j
	}
	return end
}

// continues reports whether the newline at j is escaped by a backslash.
func (ts Tokens) continues(j int) bool {
	return j > 0 && ts[j-1].Kind == Punct && ts[j-1].Text == "\\"
}

// Tokenize splits shader source into tokens. The lexer is deliberately
// shallow: it knows identifiers, numbers, comments, strings and preprocessor
// lines, and treats every other byte as single-character punctuation.
func Tokenize(src string) Tokens {
	var ts Tokens
	line := 1
	lineStart := true
	inDir := false
	i := 0
	emit := func(kind TokenKind, text string) {
		ts = append(ts, Token{Kind: kind, Text: text, Line: line, InDirective: inDir})
	}
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			continued := inDir && len(ts) > 0 && ts[len(ts)-1].Text == "\\"
			emit(Newline, "\n")
			line++
			if !continued {
				inDir = false
				lineStart = true
			}
			i++
			continue
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			j := i
			for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\r' || src[j] == '\f' || src[j] == '\v') {
				j++
			}
			emit(Space, src[i:j])
			i = j
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			j := strings.IndexByte(src[i:], '\n')
			if j < 0 {
				j = len(src) - i
			}
			emit(Comment, src[i:i+j])
			i += j
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			j := strings.Index(src[i+2:], "*/")
			end := len(src)
			if j >= 0 {
				end = i + 2 + j + 2
			}
			text := src[i:end]
			emit(Comment, text)
			line += strings.Count(text, "\n")
			i = end
			continue
		}

		switch {
		case c == '#' && lineStart:
			inDir = true
			j := i + 1
			for j < len(src) && (src[j] == ' ' || src[j] == '\t') {
				j++
			}
			for j < len(src) && isIdentChar(src[j]) {
				j++
			}
			emit(Directive, src[i:j])
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentChar(src[j]) {
				j++
			}
			emit(Ident, src[i:j])
			i = j
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			j := i + 1
			hex := c == '0' && j < len(src) && (src[j] == 'x' || src[j] == 'X')
			for j < len(src) {
				d := src[j]
				if isIdentChar(d) || d == '.' {
					j++
					continue
				}
				if !hex && (d == '+' || d == '-') && (src[j-1] == 'e' || src[j-1] == 'E') {
					j++
					continue
				}
				break
			}
			emit(Number, src[i:j])
			i = j
		case c == '"' && inDir:
			j := i + 1
			for j < len(src) && src[j] != '"' && src[j] != '\n' {
				j++
			}
			if j < len(src) && src[j] == '"' {
				j++
			}
			emit(String, src[i:j])
			i = j
		default:
			emit(Punct, src[i:i+1])
			i++
		}
		lineStart = false
	}
	return ts
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
