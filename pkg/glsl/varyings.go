package glsl

import (
	"fmt"
	"strings"
)

// RewriteVaryings turns "varying" declarations into "out" (vertex) or "in"
// (fragment) declarations with explicit locations. Locations follow the
// order declarations are first seen in the unit, continuing after any
// location already used by an explicit declaration of the same direction.
// Vertex and fragment units that declare the same varyings in the same
// order therefore agree on locations; nothing checks that they do.
func RewriteVaryings(src string, stage Stage) (string, []Note) {
	var dir string
	switch stage {
	case StageVertex:
		dir = "out"
	case StageFragment:
		dir = "in"
	}
	ts := Tokenize(src)
	decls := TopLevel(ts)
	var notes []Note

	next := 0
	for _, d := range decls {
		if dir == "" || d.Has(ts, "varying") || d.Has(ts, "{") {
			continue
		}
		l, _ := d.LayoutOf(ts)
		loc, ok := l.Int("location")
		k := d.Find(ts, dir)
		if !ok || k < 0 {
			continue
		}
		typ, vars := declParts(d, ts, k+1)
		end := loc
		for _, v := range vars {
			end += locationSlots(baseType(typ), v.ArrayLen())
		}
		if end > next {
			next = end
		}
	}

	changed := false
	for _, d := range decls {
		vi := d.Find(ts, "varying")
		if vi < 0 {
			continue
		}
		if dir == "" {
			notes = append(notes, Note{Pass: "varyings", Line: d.Line(ts), Message: fmt.Sprintf("varying in %s stage left unchanged", stage)})
			continue
		}
		var quals []string
		for n := 0; n < vi; n++ {
			quals = append(quals, d.Word(ts, n))
		}
		n := vi + 1
		for interpolation[d.Word(ts, n)] {
			quals = append(quals, d.Word(ts, n))
			n++
		}
		typ, vars := declParts(d, ts, n)
		if len(vars) == 0 {
			notes = append(notes, Note{Pass: "varyings", Line: d.Line(ts), Message: "varying declaration without a name"})
			continue
		}
		var lines []string
		for _, v := range vars {
			parts := []string{fmt.Sprintf("layout(location = %d)", next)}
			parts = append(parts, quals...)
			parts = append(parts, dir, typ, v.Name+v.Array)
			lines = append(lines, strings.Join(parts, " ")+";")
			next += locationSlots(baseType(typ), v.ArrayLen())
		}
		d.Replace(ts, strings.Join(lines, "\n"))
		changed = true
	}
	if !changed {
		return src, notes
	}
	return ts.String(), notes
}

// declParts reads "[precision] type declarators;" starting at Words position n.
// The returned type keeps any precision qualifier.
func declParts(d Decl, ts Tokens, n int) (string, []Declarator) {
	typ := d.Word(ts, n)
	if precisions[typ] {
		typ += " " + d.Word(ts, n+1)
		n++
	}
	return typ, d.Declarators(ts, n+1)
}

// baseType strips a precision qualifier from a type.
func baseType(typ string) string {
	if i := strings.LastIndexByte(typ, ' '); i >= 0 {
		return typ[i+1:]
	}
	return typ
}
