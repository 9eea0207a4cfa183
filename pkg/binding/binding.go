// Package binding assigns descriptor binding indices to the samplers and
// uniforms of a translated shader unit.
package binding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Faultbox/shaderpack/pkg/glsl"
)

// Kind classifies a bindable resource.
type Kind int

// Resource kinds.
const (
	KindSampler Kind = iota
	KindUniform
	KindBlock
)

func (k Kind) String() string {
	switch k {
	case KindSampler:
		return "sampler"
	case KindUniform:
		return "uniform"
	case KindBlock:
		return "block"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "sampler":
		*k = KindSampler
	case "uniform":
		*k = KindUniform
	case "block":
		*k = KindBlock
	default:
		return fmt.Errorf("unknown resource kind %q", text)
	}
	return nil
}

// Binding is one resource and the slot it occupies.
type Binding struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Kind     Kind   `yaml:"kind"`
	Set      int    `yaml:"set,omitempty"`
	Index    int    `yaml:"index"`
	Explicit bool   `yaml:"explicit,omitempty"` // binding was already present in the source
}

// Unbound reports a resource the allocator could not bind cleanly.
type Unbound struct {
	Name   string `yaml:"name"`
	Line   int    `yaml:"line"`
	Reason string `yaml:"reason"`
}

func (u Unbound) String() string {
	return fmt.Sprintf("line %d: %s: %s", u.Line, u.Name, u.Reason)
}

// Table lists the bindings of one unit in declaration order.
type Table struct {
	Bindings []Binding `yaml:"bindings"`
	Unbound  []Unbound `yaml:"unbound,omitempty"`
}

// Lookup returns the binding for a resource name.
func (t *Table) Lookup(name string) (Binding, bool) {
	for _, b := range t.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// Options tune allocation for the target binding model.
type Options struct {
	// Disjoint numbers samplers in set 0 and plain uniforms in set 1 with
	// separate counters instead of one counter across both.
	Disjoint bool `yaml:"disjoint"`
}

// UniformSet is the descriptor set plain uniforms go to in disjoint mode.
const UniformSet = 1

// Allocate binds every top-level sampler and uniform declaration that has
// no binding qualifier yet, using a single counter.
func Allocate(src string, stage glsl.Stage) (*Table, string) {
	return AllocateWithOptions(src, stage, Options{})
}

// AllocateWithOptions is Allocate with an explicit binding model.
//
// Indices start at 1, binding 0 being the transform block, and continue
// after the highest binding already present. Explicit bindings are left
// untouched, so allocating the output again changes nothing.
func AllocateWithOptions(src string, stage glsl.Stage, opts Options) (*Table, string) {
	ts := glsl.Tokenize(src)
	decls := uniformDecls(ts)
	t := &Table{}

	if !stage.Compilable() {
		for _, u := range decls {
			if _, ok := u.layout.Int("binding"); ok {
				continue
			}
			for _, name := range u.names() {
				t.Unbound = append(t.Unbound, Unbound{Name: name, Line: u.line, Reason: "declared in an include library"})
			}
		}
		return t, src
	}

	c := newCounters(decls, opts)
	assigned := map[string]Binding{}
	changed := false
	for _, u := range decls {
		if idx, ok := u.layout.Int("binding"); ok {
			set, _ := u.layout.Int("set")
			for _, name := range u.names() {
				t.add(Binding{Name: name, Type: u.typ, Kind: u.kind, Set: set, Index: idx, Explicit: true})
			}
			continue
		}
		if u.reason != "" {
			for _, name := range u.names() {
				t.Unbound = append(t.Unbound, Unbound{Name: name, Line: u.line, Reason: u.reason})
			}
		}
		if u.unbindable {
			continue
		}

		var lines []string
		for k, name := range u.names() {
			b, ok := assigned[name]
			if !ok {
				b = c.next(name, u.typ, u.kind)
				assigned[name] = b
				t.add(b)
			}
			prefix := qualifier(b)
			if len(u.vars) <= 1 {
				u.decl.Prefix(ts, prefix)
				break
			}
			v := u.vars[k]
			lines = append(lines, prefix+u.head+" "+v.Name+v.Array+v.Init+";")
		}
		if len(lines) > 0 {
			u.decl.Replace(ts, strings.Join(lines, "\n"))
		}
		changed = true
	}
	t.Unbound = append(t.Unbound, macroUniforms(ts)...)
	sort.SliceStable(t.Unbound, func(i, j int) bool {
		if t.Unbound[i].Line != t.Unbound[j].Line {
			return t.Unbound[i].Line < t.Unbound[j].Line
		}
		return t.Unbound[i].Name < t.Unbound[j].Name
	})
	if !changed {
		return t, src
	}
	return t, ts.String()
}

// add records b unless a binding with the same name is already listed.
func (t *Table) add(b Binding) {
	if _, ok := t.Lookup(b.Name); ok {
		return
	}
	t.Bindings = append(t.Bindings, b)
}

func qualifier(b Binding) string {
	var args []string
	if b.Set != 0 {
		args = append(args, fmt.Sprintf("set = %d", b.Set))
	}
	args = append(args, fmt.Sprintf("binding = %d", b.Index))
	if b.Kind != KindSampler {
		args = append(args, "std140")
	}
	return "layout(" + strings.Join(args, ", ") + ") "
}

type counters struct {
	disjoint bool
	shared   int
	samplers int
	uniforms int
}

func newCounters(decls []uniformDecl, opts Options) *counters {
	c := &counters{disjoint: opts.Disjoint, shared: 1, samplers: 1, uniforms: 0}
	for _, u := range decls {
		idx, ok := u.layout.Int("binding")
		if !ok {
			continue
		}
		set, _ := u.layout.Int("set")
		if idx+1 > c.shared {
			c.shared = idx + 1
		}
		switch set {
		case 0:
			if idx+1 > c.samplers {
				c.samplers = idx + 1
			}
		case UniformSet:
			if idx+1 > c.uniforms {
				c.uniforms = idx + 1
			}
		}
	}
	return c
}

func (c *counters) next(name, typ string, kind Kind) Binding {
	b := Binding{Name: name, Type: typ, Kind: kind}
	switch {
	case !c.disjoint:
		b.Index = c.shared
		c.shared++
	case kind == KindSampler:
		b.Index = c.samplers
		c.samplers++
	default:
		b.Set = UniformSet
		b.Index = c.uniforms
		c.uniforms++
	}
	return b
}
