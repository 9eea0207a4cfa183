package glsl

import (
	"fmt"
	"strings"
)

// ConsolidateTransforms removes the legacy matrix uniforms and redirects
// every reference to a member of one generated std140 block at binding 0.
// Only referenced matrices become members.
func ConsolidateTransforms(src string, stage Stage) (string, []Note) {
	return consolidateTransforms(src, stage, nil)
}

// consolidateTransforms also declares the members that inherited library
// references need.
func consolidateTransforms(src string, _ Stage, inh Inherited) (string, []Note) {
	ts := Tokenize(src)
	removed, notes := dropTransformUniforms(ts)

	used := renameTransforms(ts)
	for _, tr := range transforms {
		if inh.Has(tr.Legacy) {
			used[tr.Legacy] = true
		}
	}
	if len(used) == 0 {
		if removed {
			return ts.String(), notes
		}
		return src, notes
	}

	have := blockMembers(ts, TransformBlock)
	if have != nil {
		var missing []string
		for _, tr := range transforms {
			if used[tr.Legacy] && !have[tr.Member] {
				missing = append(missing, tr.Member)
			}
		}
		if len(missing) > 0 {
			notes = append(notes, Note{
				Pass:    "transforms",
				Message: fmt.Sprintf("%s block already declared without %s", TransformBlock, strings.Join(missing, ", ")),
			})
		}
		return ts.String(), notes
	}

	block := []string{fmt.Sprintf("layout(binding = 0, std140) uniform %s {", TransformBlock)}
	for _, tr := range transforms {
		if used[tr.Legacy] {
			block = append(block, fmt.Sprintf("    %s %s%s;", tr.Type, tr.Member, tr.Array))
		}
	}
	block = append(block, "};")
	return insertAfterHeader(ts, []string{strings.Join(block, "\n")}), notes
}

// dropTransformUniforms removes declarations that only name legacy matrices.
func dropTransformUniforms(ts Tokens) (bool, []Note) {
	var notes []Note
	removed := false
	for _, d := range TopLevel(ts) {
		if !d.Has(ts, "uniform") || d.Has(ts, "{") {
			continue
		}
		ui := d.Find(ts, "uniform")
		n := ui + 1
		if precisions[d.Word(ts, n)] {
			n++
		}
		vars := d.Declarators(ts, n+1)
		legacy := 0
		for _, v := range vars {
			if _, ok := lookupTransform(v.Name); ok {
				legacy++
			}
		}
		switch {
		case legacy == 0:
		case legacy == len(vars):
			d.Remove(ts)
			removed = true
		default:
			notes = append(notes, Note{
				Pass:    "transforms",
				Line:    d.Line(ts),
				Message: "declaration mixes legacy matrices with other uniforms; left in place",
			})
		}
	}
	return removed, notes
}

// renameTransforms redirects legacy matrix references to block members and
// returns the legacy names it saw.
func renameTransforms(ts Tokens) map[string]bool {
	used := map[string]bool{}
	for i, t := range ts {
		if t.Kind != Ident {
			continue
		}
		if tr, ok := lookupTransform(t.Text); ok {
			ts[i].Text = tr.Member
			used[tr.Legacy] = true
		}
	}
	return used
}

// blockMembers returns the member names of the named interface block, or
// nil when the source does not declare it.
func blockMembers(ts Tokens, block string) map[string]bool {
	for _, d := range TopLevel(ts) {
		open := d.Find(ts, "{")
		if open < 1 || d.Word(ts, open-1) != block {
			continue
		}
		members := map[string]bool{}
		name := ""
		bracket := false
		for n := open + 1; n < len(d.Words); n++ {
			switch w := d.Word(ts, n); w {
			case "[":
				bracket = true
			case "]":
				bracket = false
			case ";", ",":
				if name != "" {
					members[name] = true
				}
				name = ""
			case "}":
				return members
			default:
				if !bracket {
					name = w
				}
			}
		}
		return members
	}
	return nil
}
