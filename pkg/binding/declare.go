package binding

import (
	"fmt"
	"strings"

	"github.com/Faultbox/shaderpack/pkg/glsl"
)

// uniformDecl is a top-level uniform declaration with its classification.
type uniformDecl struct {
	decl   glsl.Decl
	layout glsl.Layout
	line   int

	head  string // qualifiers and type, e.g. "uniform highp vec4"
	typ   string
	kind  Kind
	block string
	vars  []glsl.Declarator

	reason     string // non-empty when the resource is reported unbound
	unbindable bool   // no binding can be assigned at all
}

func (u uniformDecl) names() []string {
	if u.kind == KindBlock {
		return []string{u.block}
	}
	names := make([]string, 0, len(u.vars))
	for _, v := range u.vars {
		names = append(names, v.Name)
	}
	return names
}

var opaquePrefixes = []string{"sampler", "isampler", "usampler", "image", "iimage", "uimage", "texture", "itexture", "utexture", "subpassInput"}

var plainPrefixes = []string{"vec", "ivec", "uvec", "bvec", "dvec", "mat", "dmat"}

var scalars = map[string]bool{"float": true, "int": true, "uint": true, "bool": true, "double": true}

var precisions = map[string]bool{"lowp": true, "mediump": true, "highp": true}

func uniformDecls(ts glsl.Tokens) []uniformDecl {
	var out []uniformDecl
	for _, d := range glsl.TopLevel(ts) {
		ui := d.Find(ts, "uniform")
		if ui < 0 {
			continue
		}
		if bi := d.Find(ts, "{"); bi >= 0 && bi < ui {
			continue
		}
		l, _ := d.LayoutOf(ts)
		u := uniformDecl{decl: d, layout: l, line: d.Line(ts)}

		n := ui + 1
		if d.Word(ts, n+1) == "{" {
			u.kind = KindBlock
			u.block = d.Word(ts, n)
			u.typ = "block"
			out = append(out, u)
			continue
		}
		if precisions[d.Word(ts, n)] {
			n++
		}
		u.typ = d.Word(ts, n)
		// existing layout groups are repeated on split declarations
		u.head = d.Span(ts, 0, n+1)
		u.vars = d.Declarators(ts, n+1)
		classify(&u)
		out = append(out, u)
	}
	return out
}

func classify(u *uniformDecl) {
	switch {
	case u.typ == "struct":
		u.reason = "inline struct uniforms cannot be bound"
		u.unbindable = true
	case u.typ == "atomic_uint":
		u.reason = "atomic counters need an explicit binding and offset"
		u.unbindable = true
	case hasPrefix(u.typ, opaquePrefixes):
		u.kind = KindSampler
	case scalars[u.typ] || hasPrefix(u.typ, plainPrefixes):
		u.kind = KindUniform
	default:
		u.kind = KindUniform
		u.reason = fmt.Sprintf("unrecognized type %s; best-effort binding assigned", u.typ)
	}
	if len(u.vars) == 0 && !u.unbindable {
		u.reason = "uniform declaration without a name"
		u.unbindable = true
	}
}

func hasPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// macroUniforms reports uniforms declared inside #define bodies, which the
// allocator cannot rewrite.
func macroUniforms(ts glsl.Tokens) []Unbound {
	var out []Unbound
	for i, t := range ts {
		if t.Kind != glsl.Directive || t.DirectiveName() != "define" {
			continue
		}
		end := ts.DirectiveEnd(i)
		for j := i + 1; j <= end; j++ {
			if !ts[j].Is("uniform") {
				continue
			}
			name := "uniform"
			if typ := ts.Next(j); typ >= 0 && typ <= end {
				if id := ts.Next(typ); id >= 0 && id <= end && ts[id].Kind == glsl.Ident {
					name = ts[id].Text
				}
			}
			out = append(out, Unbound{Name: name, Line: ts[j].Line, Reason: "declared inside a macro"})
		}
	}
	return out
}
