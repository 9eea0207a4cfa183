package glsl

import (
	"fmt"
	"sort"
	"strconv"
)

// FragmentOutput is the name legacy gl_FragColor writes are redirected to.
const FragmentOutput = "fragColor"

// DeclareFragmentOutput replaces gl_FragColor with a single location 0
// output and gl_FragData[k] (literal k) with one output per index.
func DeclareFragmentOutput(src string, stage Stage) (string, []Note) {
	return declareFragmentOutput(src, stage, nil)
}

// declareFragmentOutput also declares the outputs inherited library
// references write to.
func declareFragmentOutput(src string, stage Stage, inh Inherited) (string, []Note) {
	if stage != StageFragment {
		return src, nil
	}
	ts := Tokenize(src)
	color, data, notes := renameFragmentOutputs(ts)
	if inh.Has("gl_FragColor") {
		color = true
	}
	for k := 0; k < maxDrawBuffers; k++ {
		if inh.Has(fragDataUse(k)) {
			data[k] = true
		}
	}
	if !color && len(data) == 0 {
		return src, notes
	}
	if color && data[0] {
		notes = append(notes, Note{Pass: "fragment-output", Message: "gl_FragColor and gl_FragData[0] both target location 0"})
	}

	var lines []string
	if color && !declaresOutput(ts, FragmentOutput) {
		lines = append(lines, fmt.Sprintf("layout(location = 0) out vec4 %s;", FragmentOutput))
	}
	indices := make([]int, 0, len(data))
	for k := range data {
		indices = append(indices, k)
	}
	sort.Ints(indices)
	for _, k := range indices {
		name := fmt.Sprintf("fragData%d", k)
		if !declaresOutput(ts, name) {
			lines = append(lines, fmt.Sprintf("layout(location = %d) out vec4 %s;", k, name))
		}
	}
	return insertAfterHeader(ts, lines), notes
}

// maxDrawBuffers bounds the gl_FragData indices a library can pass on.
const maxDrawBuffers = 16

func fragDataUse(k int) string {
	return fmt.Sprintf("gl_FragData[%d]", k)
}

// renameFragmentOutputs redirects gl_FragColor and literal gl_FragData[k]
// writes in place and reports which outputs were seen.
func renameFragmentOutputs(ts Tokens) (bool, map[int]bool, []Note) {
	var notes []Note
	color := false
	data := map[int]bool{}
	for i, t := range ts {
		if t.Kind != Ident {
			continue
		}
		switch t.Text {
		case "gl_FragColor":
			ts[i].Text = FragmentOutput
			color = true
		case "gl_FragData":
			open := ts.Next(i)
			idx := ts.Next(open)
			closing := ts.Next(idx)
			if open < 0 || idx < 0 || closing < 0 || !ts[open].Is("[") || ts[idx].Kind != Number || !ts[closing].Is("]") {
				notes = append(notes, Note{Pass: "fragment-output", Line: t.Line, Message: "gl_FragData with a non-literal index left unchanged"})
				continue
			}
			k, err := strconv.Atoi(ts[idx].Text)
			if err != nil {
				notes = append(notes, Note{Pass: "fragment-output", Line: t.Line, Message: fmt.Sprintf("gl_FragData index %q left unchanged", ts[idx].Text)})
				continue
			}
			ts[i].Text = fmt.Sprintf("fragData%d", k)
			for j := i + 1; j <= closing; j++ {
				ts[j].Text = ""
			}
			data[k] = true
		}
	}
	return color, data, notes
}

func declaresOutput(ts Tokens, name string) bool {
	for _, d := range TopLevel(ts) {
		if d.Has(ts, "out") && d.Has(ts, name) {
			return true
		}
	}
	return false
}
