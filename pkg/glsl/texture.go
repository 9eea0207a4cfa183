package glsl

import "fmt"

// ModernizeTextures rewrites dimension-suffixed sampling calls to the
// unified texture* functions. Argument lists are not touched.
func ModernizeTextures(src string, _ Stage) (string, []Note) {
	ts := Tokenize(src)
	var notes []Note
	changed := false
	for i, t := range ts {
		if t.Kind != Ident {
			continue
		}
		repl, ok := samplingCalls[t.Text]
		if !ok {
			continue
		}
		if n := ts.Next(i); n < 0 || !ts[n].Is("(") {
			continue
		}
		if shadowCalls[t.Text] {
			notes = append(notes, Note{
				Pass:    "textures",
				Line:    t.Line,
				Message: fmt.Sprintf("%s returns float as %s; vector swizzles on the result need review", t.Text, repl),
			})
		}
		ts[i].Text = repl
		changed = true
	}
	if !changed {
		return src, notes
	}
	return ts.String(), notes
}
