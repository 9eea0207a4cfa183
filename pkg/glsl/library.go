package glsl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Inherited is the set of legacy built-ins referenced by the include
// libraries of a unit, in the form LegacyUses reports them. A nil set is
// empty.
type Inherited map[string]bool

// Has reports whether name is in the set.
func (inh Inherited) Has(name string) bool {
	return inh[name]
}

// NewInherited builds a set from LegacyUses results.
func NewInherited(uses ...[]string) Inherited {
	inh := Inherited{}
	for _, u := range uses {
		for _, name := range u {
			inh[name] = true
		}
	}
	return inh
}

// RenameBuiltins rewrites an include library in place of the attribute,
// transform and fragment-output passes. Legacy names become their
// replacements and legacy matrix uniforms are dropped, but nothing is
// declared: a library is compiled as part of the units that include it, and
// those declare what LegacyUses reports for it.
func RenameBuiltins(src string, _ Stage) (string, []Note) {
	expanded := replaceFTransform(src)
	ts := Tokenize(expanded)
	removed, notes := dropTransformUniforms(ts)
	renamed := len(renameTransforms(ts)) > 0
	if len(renameAttributes(ts)) > 0 {
		renamed = true
	}
	color, data, fn := renameFragmentOutputs(ts)
	notes = append(notes, fn...)
	if color || len(data) > 0 {
		renamed = true
	}
	for _, d := range TopLevel(ts) {
		for _, kw := range []string{"attribute", "varying"} {
			if d.Has(ts, kw) {
				notes = append(notes, Note{
					Pass:    "library-builtins",
					Line:    d.Line(ts),
					Message: fmt.Sprintf("%s declared in an include library left unchanged", kw),
				})
			}
		}
	}
	if !removed && !renamed && expanded == src {
		return src, notes
	}
	return ts.String(), notes
}

// LegacyUses lists the legacy built-ins src references whose replacements
// have to be declared by an including unit: vertex attributes, transform
// matrices, gl_FragColor and gl_FragData[k] for literal k.
func LegacyUses(src string) []string {
	ts := Tokenize(replaceFTransform(src))
	seen := map[string]bool{}
	for i, t := range ts {
		if t.Kind != Ident || t.InDirective || !strings.HasPrefix(t.Text, "gl_") {
			continue
		}
		if _, ok := lookupAttribute(t.Text); ok {
			seen[t.Text] = true
			continue
		}
		if _, ok := lookupTransform(t.Text); ok {
			seen[t.Text] = true
			continue
		}
		switch t.Text {
		case "gl_FragColor":
			seen[t.Text] = true
		case "gl_FragData":
			open := ts.Next(i)
			if open < 0 || !ts[open].Is("[") {
				continue
			}
			idx := ts.Next(open)
			if idx < 0 || ts[idx].Kind != Number {
				continue
			}
			if k, err := strconv.Atoi(ts[idx].Text); err == nil && k >= 0 && k < maxDrawBuffers {
				seen[fragDataUse(k)] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Includes returns the include targets of src in order, with pack-root
// absolute paths made relative the way NormalizeIncludes does.
func Includes(src string) []string {
	ts := Tokenize(src)
	var out []string
	for i, t := range ts {
		if t.Kind != Directive || t.DirectiveName() != "include" {
			continue
		}
		n := ts.Next(i)
		if n < 0 || ts[n].Kind != String || len(ts[n].Text) < 2 {
			continue
		}
		target := strings.TrimLeft(strings.Trim(ts[n].Text, `"`), "/")
		if target != "" {
			out = append(out, target)
		}
	}
	return out
}
