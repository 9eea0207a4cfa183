package glsl

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// OptionKind tells boolean toggles from value choices.
type OptionKind int

// Option kinds.
const (
	BoolOption OptionKind = iota
	ValueOption
)

func (k OptionKind) String() string {
	if k == ValueOption {
		return "value"
	}
	return "bool"
}

// Option is a user-tunable #define found in shader source.
//
// A boolean option is a "#define NAME" line without a value whose name is
// tested with #ifdef, #ifndef or defined(); a commented-out line
// ("//#define NAME") means the option defaults to off. A value option carries
// its allowed values in a trailing comment: "#define NAME 2 // [1 2 4]".
type Option struct {
	Name    string
	Kind    OptionKind
	Default string
	Values  []string
	Line    int
}

// Settings maps option names to the chosen value ("true"/"false" for
// boolean options).
type Settings map[string]string

var (
	boolDefine  = regexp.MustCompile(`^(\s*)(//\s*)?#\s*define\s+([A-Za-z_]\w*)\s*(//.*)?$`)
	valueDefine = regexp.MustCompile(`^(\s*)#\s*define\s+([A-Za-z_]\w*)\s+([^\s/]+)(\s*//\s*\[([^\]]*)\].*)$`)
	conditional = regexp.MustCompile(`^\s*#\s*(?:ifdef|ifndef)\s+([A-Za-z_]\w*)`)
	definedCall = regexp.MustCompile(`defined\s*\(?\s*([A-Za-z_]\w*)`)
	ifndefLine  = regexp.MustCompile(`^\s*#\s*ifndef\s+([A-Za-z_]\w*)\s*$`)
)

// ParseOptions lists the options declared in src in source order. A name
// declared more than once is reported at its first declaration.
func ParseOptions(src string) []Option {
	lines := strings.Split(src, "\n")
	tested := map[string]bool{}
	guards := includeGuards(lines)
	for _, l := range lines {
		if m := conditional.FindStringSubmatch(l); m != nil {
			tested[m[1]] = true
		}
		if strings.Contains(l, "defined") && strings.Contains(strings.TrimSpace(l), "#") {
			for _, m := range definedCall.FindAllStringSubmatch(l, -1) {
				tested[m[1]] = true
			}
		}
	}

	var opts []Option
	seen := map[string]bool{}
	for i, l := range lines {
		if m := valueDefine.FindStringSubmatch(l); m != nil {
			if seen[m[2]] {
				continue
			}
			seen[m[2]] = true
			opts = append(opts, Option{
				Name:    m[2],
				Kind:    ValueOption,
				Default: m[3],
				Values:  strings.Fields(m[5]),
				Line:    i + 1,
			})
			continue
		}
		m := boolDefine.FindStringSubmatch(l)
		if m == nil || !tested[m[3]] || guards[m[3]] || seen[m[3]] {
			continue
		}
		seen[m[3]] = true
		opts = append(opts, Option{
			Name:    m[3],
			Kind:    BoolOption,
			Default: strconv.FormatBool(m[2] == ""),
			Line:    i + 1,
		})
	}
	return opts
}

// includeGuards finds names defined right after an #ifndef of the same name.
func includeGuards(lines []string) map[string]bool {
	guards := map[string]bool{}
	for i, l := range lines {
		m := ifndefLine.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		for _, next := range lines[i+1:] {
			if strings.TrimSpace(next) == "" {
				continue
			}
			if d := boolDefine.FindStringSubmatch(next); d != nil && d[2] == "" && d[3] == m[1] {
				guards[m[1]] = true
			}
			break
		}
	}
	return guards
}

// ApplySettings rewrites option lines in src to the chosen settings. Names
// missing from settings keep their declared default; values that cannot be
// parsed as a boolean leave a boolean option as it is.
func ApplySettings(src string, options []Option, settings Settings) string {
	if len(settings) == 0 {
		return src
	}
	kinds := map[string]OptionKind{}
	for _, o := range options {
		kinds[o.Name] = o.Kind
	}
	lines := strings.Split(src, "\n")
	changed := false
	for i, l := range lines {
		if m := valueDefine.FindStringSubmatch(l); m != nil {
			v, ok := settings[m[2]]
			if !ok || kinds[m[2]] != ValueOption || v == m[3] {
				continue
			}
			lines[i] = m[1] + "#define " + m[2] + " " + v + m[4]
			changed = true
			continue
		}
		m := boolDefine.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		if k, ok := kinds[m[3]]; !ok || k != BoolOption {
			continue
		}
		v, ok := settings[m[3]]
		if !ok {
			continue
		}
		on, err := strconv.ParseBool(v)
		if err != nil {
			continue
		}
		active := m[2] == ""
		if on == active {
			continue
		}
		trailer := ""
		if m[4] != "" {
			trailer = " " + m[4]
		}
		if on {
			lines[i] = m[1] + "#define " + m[3] + trailer
		} else {
			lines[i] = m[1] + "//#define " + m[3] + trailer
		}
		changed = true
	}
	if !changed {
		return src
	}
	return strings.Join(lines, "\n")
}

// MergeOptions combines the options of several units, keeping the first
// declaration of each name, sorted by name.
func MergeOptions(sets ...[]Option) []Option {
	byName := map[string]Option{}
	for _, set := range sets {
		for _, o := range set {
			if _, ok := byName[o.Name]; !ok {
				byName[o.Name] = o
			}
		}
	}
	out := make([]Option, 0, len(byName))
	for _, o := range byName {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
