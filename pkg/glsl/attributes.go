package glsl

import (
	"fmt"
	"strings"
)

// RewriteAttributes replaces fixed-function vertex inputs with explicit
// "in" declarations at the locations of the attribute table. Explicit
// legacy declarations ("attribute vec3 gl_Vertex;") keep their declared
// type; built-ins that are only referenced get the table's type. Pack
// defined attributes become "in" at locations after the table.
func RewriteAttributes(src string, stage Stage) (string, []Note) {
	return rewriteAttributes(src, stage, nil)
}

// rewriteAttributes also declares the inputs inherited library references
// read.
func rewriteAttributes(src string, stage Stage, inh Inherited) (string, []Note) {
	if stage != StageVertex {
		return src, nil
	}
	ts := Tokenize(replaceFTransform(src))
	var notes []Note

	next := customAttributeBase
	decls := TopLevel(ts)
	for _, d := range decls {
		if d.Has(ts, "in") {
			l, _ := d.LayoutOf(ts)
			if loc, ok := l.Int("location"); ok && loc >= next {
				next = loc + 1
			}
		}
	}

	declared := map[string]bool{}
	rewrote := false
	for _, d := range decls {
		if d.Word(ts, 0) != "attribute" {
			continue
		}
		n := 1
		prec := ""
		if precisions[d.Word(ts, n)] {
			prec = d.Word(ts, n) + " "
			n++
		}
		typ := d.Word(ts, n)
		var lines []string
		for _, v := range d.Declarators(ts, n+1) {
			if a, ok := lookupAttribute(v.Name); ok {
				lines = append(lines, fmt.Sprintf("layout(location = %d) in %s%s %s%s;", a.Location, prec, typ, a.Name, v.Array))
				declared[a.Legacy] = true
				continue
			}
			if strings.HasPrefix(v.Name, "gl_") {
				notes = append(notes, Note{Pass: "attributes", Line: v.Line, Message: fmt.Sprintf("unknown built-in attribute %s", v.Name)})
			}
			lines = append(lines, fmt.Sprintf("layout(location = %d) in %s%s %s%s;", next, prec, typ, v.Name, v.Array))
			next += locationSlots(typ, v.ArrayLen())
		}
		if len(lines) == 0 {
			notes = append(notes, Note{Pass: "attributes", Line: d.Line(ts), Message: "attribute declaration without a name"})
			continue
		}
		d.Replace(ts, strings.Join(lines, "\n"))
		rewrote = true
	}

	used := renameAttributes(ts)
	for _, a := range attributes {
		if inh.Has(a.Legacy) {
			used[a.Legacy] = true
		}
	}

	var implicit []string
	for _, a := range attributes {
		if used[a.Legacy] && !declared[a.Legacy] && !declaresInput(ts, a.Name) {
			implicit = append(implicit, fmt.Sprintf("layout(location = %d) in %s %s;", a.Location, a.Type, a.Name))
		}
	}
	if !rewrote && len(used) == 0 {
		return src, notes
	}
	return insertAfterHeader(ts, implicit), notes
}

// renameAttributes redirects legacy vertex inputs to their replacements and
// returns the legacy names it saw.
func renameAttributes(ts Tokens) map[string]bool {
	used := map[string]bool{}
	for i, t := range ts {
		if t.Kind != Ident {
			continue
		}
		if a, ok := lookupAttribute(t.Text); ok {
			ts[i].Text = a.Name
			used[a.Legacy] = true
		}
	}
	return used
}

func declaresInput(ts Tokens, name string) bool {
	for _, d := range TopLevel(ts) {
		if d.Has(ts, "in") && d.Has(ts, name) {
			return true
		}
	}
	return false
}

// replaceFTransform expands ftransform() to the product it stands for so the
// attribute and transform passes pick up both operands.
func replaceFTransform(src string) string {
	if !strings.Contains(src, "ftransform") {
		return src
	}
	ts := Tokenize(src)
	product := "(gl_ModelViewProjectionMatrix * " + widenPosition(ts) + ")"
	for i, t := range ts {
		if t.Kind != Ident || t.Text != "ftransform" {
			continue
		}
		open := ts.Next(i)
		if open < 0 || !ts[open].Is("(") {
			continue
		}
		closing := ts.Next(open)
		if closing < 0 || !ts[closing].Is(")") {
			continue
		}
		ts[i].Text = product
		for j := i + 1; j <= closing; j++ {
			ts[j].Text = ""
		}
	}
	return ts.String()
}

// widenPosition returns gl_Vertex as a vec4 expression, padding an explicit
// narrower declaration with w = 1.
func widenPosition(ts Tokens) string {
	for _, d := range TopLevel(ts) {
		if d.Word(ts, 0) != "attribute" {
			continue
		}
		n := 1
		if precisions[d.Word(ts, n)] {
			n++
		}
		for _, v := range d.Declarators(ts, n+1) {
			if v.Name != "gl_Vertex" {
				continue
			}
			switch d.Word(ts, n) {
			case "vec3":
				return "vec4(gl_Vertex, 1.0)"
			case "vec2":
				return "vec4(gl_Vertex, 0.0, 1.0)"
			case "float":
				return "vec4(gl_Vertex, 0.0, 0.0, 1.0)"
			}
		}
	}
	return "gl_Vertex"
}
