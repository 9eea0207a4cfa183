package glsl

import (
	"strconv"
	"strings"
)

// Decl is a top-level declaration statement terminated by ';'. Function
// definitions are skipped entirely; struct and interface-block bodies are
// part of the declaration that introduces them.
type Decl struct {
	Start, End int   // token index range, End is the terminating ';'
	Words      []int // indices of significant tokens in [Start, End]
}

// TopLevel scans the declarations at brace depth zero, ignoring preprocessor lines.
func TopLevel(ts Tokens) []Decl {
	var decls []Decl
	cur := Decl{Start: -1}
	depth := 0
	body := false
	for i, t := range ts {
		if t.InDirective || !t.Significant() {
			continue
		}
		if depth > 0 {
			if t.Kind == Punct {
				switch t.Text {
				case "{":
					depth++
				case "}":
					depth--
				}
			}
			if body {
				if depth == 0 {
					body = false
					cur = Decl{Start: -1}
				}
				continue
			}
			cur.Words = append(cur.Words, i)
			continue
		}
		if cur.Start < 0 {
			cur.Start = i
		}
		cur.Words = append(cur.Words, i)
		if t.Kind != Punct {
			continue
		}
		switch t.Text {
		case "{":
			depth = 1
			// a parameter list right before the brace means a function body
			if n := len(cur.Words); n >= 2 && ts[cur.Words[n-2]].Text == ")" {
				body = true
			}
		case "}":
			// stray closing brace; drop whatever was collected
			cur = Decl{Start: -1}
		case ";":
			cur.End = i
			decls = append(decls, cur)
			cur = Decl{Start: -1}
		}
	}
	return decls
}

// Word returns the text of the n-th significant token of the declaration.
func (d Decl) Word(ts Tokens, n int) string {
	if n < 0 || n >= len(d.Words) {
		return ""
	}
	return ts[d.Words[n]].Text
}

// Find returns the position in Words of the first token with the given text, or -1.
func (d Decl) Find(ts Tokens, text string) int {
	for n, i := range d.Words {
		if ts[i].Text == text {
			return n
		}
	}
	return -1
}

// Has reports whether any significant token of the declaration has the given text.
func (d Decl) Has(ts Tokens, text string) bool {
	return d.Find(ts, text) >= 0
}

// Line returns the source line the declaration starts on.
func (d Decl) Line(ts Tokens) int {
	return ts[d.Start].Line
}

// Layout holds the key/value pairs of every layout(...) qualifier in a declaration.
type Layout map[string]string

// Int returns a layout value parsed as an integer.
func (l Layout) Int(key string) (int, bool) {
	v, ok := l[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// LayoutOf collects the layout qualifiers of the declaration and returns the
// position in Words of the first token after the last layout group.
func (d Decl) LayoutOf(ts Tokens) (Layout, int) {
	l := Layout{}
	n := 0
	for n < len(d.Words) && d.Word(ts, n) == "layout" && d.Word(ts, n+1) == "(" {
		n += 2
		var key string
		for n < len(d.Words) && d.Word(ts, n) != ")" {
			w := d.Word(ts, n)
			switch {
			case w == ",":
				key = ""
			case w == "=":
			case key == "":
				key = w
				l[key] = ""
			default:
				l[key] += w
			}
			n++
		}
		n++ // ')'
	}
	return l, n
}

// Declarator is one name introduced by a declaration, with any array suffix
// and initializer text.
type Declarator struct {
	Name  string
	Array string // e.g. "[4]"
	Init  string // e.g. " = vec2(1.0, 2.0)"
	Line  int
}

// ArrayLen returns the literal array length, or 1 when there is none or it is not a literal.
func (d Declarator) ArrayLen() int {
	s := strings.Trim(d.Array, "[] ")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Declarators splits the tokens from Words position from up to the ';' into
// comma-separated declarators, respecting nesting inside initializers.
func (d Decl) Declarators(ts Tokens, from int) []Declarator {
	var out []Declarator
	var cur *Declarator
	var array, init []string
	inInit := false
	depth := 0
	flush := func() {
		if cur == nil {
			return
		}
		cur.Array = strings.Join(array, "")
		if inInit {
			cur.Init = " = " + joinWords(init)
		}
		out = append(out, *cur)
		cur, array, init, inInit = nil, nil, nil, false
	}
	for n := from; n < len(d.Words); n++ {
		i := d.Words[n]
		w := ts[i].Text
		if depth == 0 && (w == "," || w == ";") {
			flush()
			continue
		}
		switch w {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		}
		switch {
		case cur == nil:
			cur = &Declarator{Name: w, Line: ts[i].Line}
		case inInit:
			init = append(init, w)
		case w == "=" && depth == 0:
			inInit = true
		default:
			array = append(array, w)
		}
	}
	flush()
	return out
}

// Span returns the source text of the words [from, to) joined with single spaces.
func (d Decl) Span(ts Tokens, from, to int) string {
	var parts []string
	for n := from; n < to && n < len(d.Words); n++ {
		parts = append(parts, ts[d.Words[n]].Text)
	}
	return joinWords(parts)
}

// joinWords joins tokens with single spaces, except around brackets and
// before commas.
func joinWords(parts []string) string {
	var sb strings.Builder
	for k, p := range parts {
		if k > 0 && needsSpace(parts[k-1], p) {
			sb.WriteByte(' ')
		}
		sb.WriteString(p)
	}
	return sb.String()
}

func needsSpace(prev, next string) bool {
	switch {
	case prev == "(" || prev == "[":
		return false
	case next == ")" || next == "]" || next == "," || next == "[":
		return false
	case next == "(":
		return prev == "=" || prev == "," || isOperator(prev)
	}
	return true
}

func isOperator(w string) bool {
	return len(w) == 1 && strings.ContainsAny(w, "+-*/%<>!&|^?:")
}

// Replace rewrites the tokens of the declaration with text, dropping any
// comments or whitespace inside it.
func (d Decl) Replace(ts Tokens, text string) {
	ts[d.Start].Text = text
	ts[d.Start].Kind = Ident
	for i := d.Start + 1; i <= d.End; i++ {
		ts[i].Text = ""
	}
}

// Remove blanks the declaration together with the line break that follows it.
func (d Decl) Remove(ts Tokens) {
	for i := d.Start; i <= d.End; i++ {
		ts[i].Text = ""
	}
	for i := d.End + 1; i < len(ts); i++ {
		if ts[i].Kind == Space {
			ts[i].Text = ""
			continue
		}
		if ts[i].Kind == Newline {
			ts[i].Text = ""
		}
		break
	}
}

// Prefix inserts text in front of the declaration, keeping its tokens.
func (d Decl) Prefix(ts Tokens, text string) {
	ts[d.Start].Text = text + ts[d.Start].Text
}
