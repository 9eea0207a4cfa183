package glsl

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Stage identifies the pipeline stage a shader unit executes at.
type Stage int

// Shader stages.
const (
	StageOther Stage = iota
	StageVertex
	StageFragment
	StageCompute
)

var stageNames = [...]string{
	StageOther:    "other",
	StageVertex:   "vertex",
	StageFragment: "fragment",
	StageCompute:  "compute",
}

// stageByExt maps file extensions used by shader packs to their stage.
var stageByExt = map[string]Stage{
	".vsh":  StageVertex,
	".vert": StageVertex,
	".fsh":  StageFragment,
	".frag": StageFragment,
	".csh":  StageCompute,
	".comp": StageCompute,
	".gsh":  StageOther,
	".geom": StageOther,
	".tcs":  StageOther,
	".tes":  StageOther,
	".glsl": StageOther,
	".inc":  StageOther,
}

// String returns the lowercase stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage converts a stage name back to a Stage.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if strings.EqualFold(n, name) {
			return Stage(i), nil
		}
	}
	return StageOther, fmt.Errorf("unknown shader stage %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	st, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// StageFromPath classifies a file by its extension. The second result is
// false when the file is not a shader source at all.
func StageFromPath(path string) (Stage, bool) {
	st, ok := stageByExt[strings.ToLower(filepath.Ext(path))]
	return st, ok
}

// Compilable reports whether units of this stage are compiled on their own.
// Other-stage files are include libraries or stages the pipeline does not build.
func (s Stage) Compilable() bool {
	return s == StageVertex || s == StageFragment || s == StageCompute
}
