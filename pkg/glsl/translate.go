// Package glsl rewrites legacy (compatibility profile, fixed-function) GLSL
// into the core-profile dialect accepted by SPIR-V compilers.
//
// Translation is a fixed sequence of named passes over a tokenized view of
// the source. Each pass is a pure text transform that can be run on its own;
// Translate chains them in order because later passes depend on the renaming
// done by earlier ones. Nothing here fails: constructs a pass does not
// understand are left as they are and reported as a Note.
package glsl

import (
	"fmt"
	"sort"
)

// TargetVersion is the directive every translated unit starts with.
const TargetVersion = "#version 450 core"

// IncludeExtension enables textual #include in glslang-based compilers.
const IncludeExtension = "GL_GOOGLE_include_directive"

// Note is a non-fatal translation warning.
type Note struct {
	Pass    string
	Line    int
	Message string
}

func (n Note) String() string {
	if n.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", n.Pass, n.Line, n.Message)
	}
	return fmt.Sprintf("%s: %s", n.Pass, n.Message)
}

// Result is the outcome of translating one unit.
type Result struct {
	Source  string
	Changed bool
	Notes   []Note
}

// Pass is one named rewrite step.
type Pass struct {
	Name   string
	Stages []Stage // stages the pass applies to; empty means all
	Run    func(src string, stage Stage, inh Inherited) (string, []Note)
}

func (p Pass) appliesTo(stage Stage) bool {
	if len(p.Stages) == 0 {
		return true
	}
	for _, s := range p.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

var core = []Stage{StageVertex, StageFragment, StageCompute}

// Passes lists the rewrite passes in the order Translate applies them.
var Passes = []Pass{
	{Name: "version", Stages: core, Run: noNotes(NormalizeVersion)},
	{Name: "include-extension", Stages: core, Run: noNotes(EnableIncludes)},
	{Name: "include-paths", Run: noNotes(NormalizeIncludes)},
	{Name: "library-builtins", Stages: []Stage{StageOther}, Run: own(RenameBuiltins)},
	{Name: "attributes", Stages: []Stage{StageVertex}, Run: rewriteAttributes},
	{Name: "varyings", Stages: core, Run: own(RewriteVaryings)},
	{Name: "transforms", Stages: core, Run: consolidateTransforms},
	{Name: "fragment-output", Stages: []Stage{StageFragment}, Run: declareFragmentOutput},
	{Name: "textures", Run: own(ModernizeTextures)},
}

func noNotes(f func(string) string) func(string, Stage, Inherited) (string, []Note) {
	return func(src string, _ Stage, _ Inherited) (string, []Note) {
		return f(src), nil
	}
}

// own adapts a pass that only looks at the unit's own text.
func own(f func(string, Stage) (string, []Note)) func(string, Stage, Inherited) (string, []Note) {
	return func(src string, stage Stage, _ Inherited) (string, []Note) {
		return f(src, stage)
	}
}

// Translate runs every pass that applies to the stage and reports legacy
// built-ins that survive translation.
func Translate(src string, stage Stage) Result {
	return TranslateIncluding(src, stage, nil)
}

// TranslateIncluding is Translate for a unit whose include libraries
// reference the legacy built-ins in inh. The unit declares the inputs,
// transform block members and outputs those references need.
func TranslateIncluding(src string, stage Stage, inh Inherited) Result {
	out := src
	var notes []Note
	for _, p := range Passes {
		if !p.appliesTo(stage) {
			continue
		}
		var pn []Note
		out, pn = p.Run(out, stage, inh)
		notes = append(notes, pn...)
	}
	notes = append(notes, leftoverBuiltins(out)...)
	return Result{Source: out, Changed: out != src, Notes: notes}
}

// leftoverBuiltins notes each deprecated built-in still referenced after translation.
func leftoverBuiltins(src string) []Note {
	seen := map[string]int{}
	for _, t := range Tokenize(src) {
		if t.Kind != Ident {
			continue
		}
		if _, ok := seen[t.Text]; ok {
			continue
		}
		if isDeprecatedBuiltin(t.Text) {
			seen[t.Text] = t.Line
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if seen[names[i]] != seen[names[j]] {
			return seen[names[i]] < seen[names[j]]
		}
		return names[i] < names[j]
	})
	notes := make([]Note, 0, len(names))
	for _, name := range names {
		notes = append(notes, Note{
			Pass:    "builtins",
			Line:    seen[name],
			Message: fmt.Sprintf("legacy built-in %s left unchanged", name),
		})
	}
	return notes
}
