package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/shaderpack/pkg/binding"
	"github.com/Faultbox/shaderpack/pkg/glsl"
)

// State is how far a unit has progressed through the pipeline.
type State int

// Unit states, in pipeline order.
const (
	Unprocessed State = iota
	Translated
	Bound
	Compiled
)

var stateNames = [...]string{"unprocessed", "translated", "bound", "compiled"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for i, n := range stateNames {
		if n == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown unit state %q", text)
}

// Entry is the ledger record of one unit.
type Entry struct {
	Stage glsl.Stage `yaml:"stage"`
	State State      `yaml:"state"`
	Stale bool       `yaml:"stale,omitempty"`

	Raw        string `yaml:"raw"`                  // fingerprint of the original source
	Translated string `yaml:"translated,omitempty"` // fingerprint of the updated source
	Artifact   string `yaml:"artifact,omitempty"`   // Translated value the bytecode was built from
	Includes   string `yaml:"includes,omitempty"`   // include set the bytecode was built against
	Inherited  string `yaml:"inherited,omitempty"`  // library built-ins the translation declared

	Bindings   *binding.Table `yaml:"bindings,omitempty"`
	Notes      []string       `yaml:"notes,omitempty"`
	Diagnostic string         `yaml:"diagnostic,omitempty"`
}

const ledgerVersion = 1

type ledgerFile struct {
	Version  int               `yaml:"version"`
	Source   string            `yaml:"source,omitempty"`
	Settings string            `yaml:"settings,omitempty"`
	Entries  map[string]*Entry `yaml:"entries"`
}

// Ledger is the persisted fingerprint record of a pack. It is the only
// state shared between unit refreshes; all access goes through its lock.
type Ledger struct {
	mu       sync.Mutex
	path     string
	source   string
	settings string
	entries  map[string]Entry
}

// loadLedger reads the ledger at path. A missing file yields an empty
// ledger; so does an unreadable one, which is logged and rebuilt.
func loadLedger(path string, log *zap.Logger) *Ledger {
	l := &Ledger{path: path, entries: make(map[string]Entry)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return l
	}
	if err != nil {
		log.Warn("Ledger unreadable, rebuilding", zap.String("path", path), zap.Error(err))
		return l
	}
	var f ledgerFile
	if err := yaml.Unmarshal(data, &f); err != nil || f.Version != ledgerVersion {
		log.Warn("Ledger corrupt, rebuilding", zap.String("path", path), zap.Error(err), zap.Int("version", f.Version))
		return l
	}
	l.source = f.Source
	l.settings = f.Settings
	for rel, e := range f.Entries {
		if e != nil {
			l.entries[rel] = *e
		}
	}
	return l
}

// Get returns a copy of the entry for rel.
func (l *Ledger) Get(rel string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[rel]
	return e, ok
}

// Put stores the entry for rel.
func (l *Ledger) Put(rel string, e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[rel] = e
}

// Delete drops the entry for rel.
func (l *Ledger) Delete(rel string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, rel)
}

// Paths lists the recorded unit paths, sorted.
func (l *Ledger) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	paths := make([]string, 0, len(l.entries))
	for rel := range l.entries {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}

// SetSettings records the settings fingerprint and marks every entry stale
// when it differs from the recorded one.
func (l *Ledger) SetSettings(fp string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.settings == fp {
		return false
	}
	l.settings = fp
	for rel, e := range l.entries {
		e.Stale = true
		l.entries[rel] = e
	}
	return true
}

// SetSource records where the pack was discovered from.
func (l *Ledger) SetSource(src string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.source = src
}

// Save writes the ledger atomically.
func (l *Ledger) Save() error {
	l.mu.Lock()
	f := ledgerFile{
		Version:  ledgerVersion,
		Source:   l.source,
		Settings: l.settings,
		Entries:  make(map[string]*Entry, len(l.entries)),
	}
	for rel, e := range l.entries {
		e := e
		f.Entries[rel] = &e
	}
	l.mu.Unlock()

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}
	if _, err := writeIfChanged(l.path, data); err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}
	return nil
}
