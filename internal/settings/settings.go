// Package settings persists per-pack option choices as a flat properties
// file stored next to the pack ("<pack>.txt").
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/magiconair/properties"

	"github.com/Faultbox/shaderpack/pkg/glsl"
)

// FileExt is appended to the pack path to name its settings file.
const FileExt = ".txt"

// PathFor returns the settings file of the pack at packPath.
func PathFor(packPath string) string {
	return filepath.Clean(packPath) + FileExt
}

// Load reads a settings file. A missing file means every option is at its default.
func Load(path string) (glsl.Settings, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return glsl.Settings{}, nil
	}
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	s := make(glsl.Settings, p.Len())
	for _, k := range p.Keys() {
		s[k], _ = p.Get(k)
	}
	return s, nil
}

// NonDefault returns the entries of s that differ from the declared
// defaults. Keys that name no option are kept as they are.
func NonDefault(opts []glsl.Option, s glsl.Settings) glsl.Settings {
	defaults := Defaults(opts)
	out := glsl.Settings{}
	for k, v := range s {
		if d, ok := defaults[k]; ok && d == v {
			continue
		}
		out[k] = v
	}
	return out
}

// Defaults returns the default value of every option.
func Defaults(opts []glsl.Option) glsl.Settings {
	s := make(glsl.Settings, len(opts))
	for _, o := range opts {
		s[o.Name] = o.Default
	}
	return s
}

// Effective overlays s on the option defaults.
func Effective(opts []glsl.Option, s glsl.Settings) glsl.Settings {
	out := Defaults(opts)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Validate reports settings that name an unknown option or pick a value
// outside an option's declared choices.
func Validate(opts []glsl.Option, s glsl.Settings) error {
	byName := make(map[string]glsl.Option, len(opts))
	for _, o := range opts {
		byName[o.Name] = o
	}
	keys := sortedKeys(s)
	var errs []error
	for _, k := range keys {
		o, ok := byName[k]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown option %s", k))
			continue
		}
		v := s[k]
		switch o.Kind {
		case glsl.BoolOption:
			if v != "true" && v != "false" {
				errs = append(errs, fmt.Errorf("option %s: %q is not true or false", k, v))
			}
		case glsl.ValueOption:
			if len(o.Values) > 0 && !contains(o.Values, v) {
				errs = append(errs, fmt.Errorf("option %s: %q is not one of %v", k, v, o.Values))
			}
		}
	}
	return errors.Join(errs...)
}

// Save writes the non-default entries of s to path, sorted by key. When
// nothing differs from the defaults the file is removed.
func Save(path string, opts []glsl.Option, s glsl.Settings) error {
	nd := NonDefault(opts, s)
	if len(nd) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing settings: %w", err)
		}
		return nil
	}
	p := properties.NewProperties()
	for _, k := range sortedKeys(nd) {
		if _, _, err := p.Set(k, nd[k]); err != nil {
			return fmt.Errorf("setting %s: %w", k, err)
		}
	}
	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

func sortedKeys(s glsl.Settings) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
