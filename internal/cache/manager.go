// Package cache owns the on-disk cache of shader packs and drives units
// through translation, binding and compilation, skipping every step whose
// input has not changed.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Faultbox/shaderpack/internal/compiler"
	"github.com/Faultbox/shaderpack/internal/settings"
	"github.com/Faultbox/shaderpack/pkg/archive"
	"github.com/Faultbox/shaderpack/pkg/binding"
	"github.com/Faultbox/shaderpack/pkg/encoding"
	"github.com/Faultbox/shaderpack/pkg/glsl"
)

// ErrNoArtifact is returned when a unit has no valid compiled artifact.
var ErrNoArtifact = errors.New("no artifact")

// ExtractionError is a failure to read a pack. Nothing of the pack is
// written to the cache when it occurs.
type ExtractionError struct {
	Pack string
	Path string // file inside the pack, empty for the pack itself
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("extracting pack %s: %s: %v", e.Pack, e.Path, e.Err)
	}
	return fmt.Sprintf("extracting pack %s: %v", e.Pack, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Unit is one shader source file of a pack.
type Unit struct {
	Path        string // pack-relative, slash separated
	Stage       glsl.Stage
	Raw         []byte
	Fingerprint string
}

// Pack is a discovered shader pack.
type Pack struct {
	Name         string
	Source       string
	Layout       Layout
	Root         string   // pack-relative shader root, empty for the pack itself
	Units        []Unit   // sorted by path
	IncludeRoots []string // absolute directories searched by #include
	Options      []glsl.Option
	Settings     glsl.Settings

	includes map[string][]string // unit path to the units it includes
	uses     map[string][]string // library path to the legacy built-ins it references
}

// Unit returns the unit at rel.
func (p *Pack) Unit(rel string) (Unit, bool) {
	i := sort.Search(len(p.Units), func(i int) bool { return p.Units[i].Path >= rel })
	if i < len(p.Units) && p.Units[i].Path == rel {
		return p.Units[i], true
	}
	return Unit{}, false
}

// resolveInclude finds the unit an #include in from refers to, looking next
// to from first and then under the shader root.
func (p *Pack) resolveInclude(from, target string) (string, bool) {
	for _, cand := range []string{path.Join(path.Dir(from), target), path.Join(p.Root, target)} {
		if _, ok := p.Unit(cand); ok {
			return cand, true
		}
	}
	return "", false
}

// Inherited collects the legacy built-ins referenced by the libraries rel
// includes, directly or through other libraries.
func (p *Pack) Inherited(rel string) glsl.Inherited {
	inh := glsl.Inherited{}
	seen := map[string]bool{rel: true}
	queue := append([]string(nil), p.includes[rel]...)
	for len(queue) > 0 {
		lib := queue[0]
		queue = queue[1:]
		if seen[lib] {
			continue
		}
		seen[lib] = true
		for _, name := range p.uses[lib] {
			inh[name] = true
		}
		queue = append(queue, p.includes[lib]...)
	}
	return inh
}

// linkIncludes records the include graph of the pack and what each of its
// libraries references.
func (p *Pack) linkIncludes() {
	p.includes = make(map[string][]string)
	p.uses = make(map[string][]string)
	for _, u := range p.Units {
		src := string(u.Raw)
		for _, target := range glsl.Includes(src) {
			if rel, ok := p.resolveInclude(u.Path, target); ok {
				p.includes[u.Path] = append(p.includes[u.Path], rel)
			}
		}
		if !u.Stage.Compilable() {
			if uses := glsl.LegacyUses(src); len(uses) > 0 {
				p.uses[u.Path] = uses
			}
		}
	}
}

// Options configures a Manager.
type Options struct {
	CacheDir string
	Compiler compiler.Compiler
	Workers  int // concurrent compilations, <= 0 means one per CPU
	Bindings binding.Options
	Logger   *zap.Logger
}

// Manager maintains the caches of any number of packs. It is safe for
// concurrent use; refreshes of the same unit are coalesced.
type Manager struct {
	dir      string
	pool     *compiler.Pool
	bindings binding.Options
	log      *zap.Logger
	memo     *Memo
	flight   singleflight.Group

	mu      sync.Mutex
	ledgers map[string]*Ledger
}

// NewManager creates a manager rooted at opts.CacheDir.
func NewManager(opts Options) (*Manager, error) {
	if opts.CacheDir == "" {
		return nil, errors.New("cache directory not set")
	}
	if opts.Compiler == nil {
		return nil, errors.New("compiler not set")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		dir:      opts.CacheDir,
		pool:     compiler.NewPool(opts.Compiler, opts.Workers),
		bindings: opts.Bindings,
		log:      log.Named("cache"),
		memo:     NewMemo(),
		ledgers:  make(map[string]*Ledger),
	}, nil
}

// Memo returns the in-memory bytecode cache.
func (m *Manager) Memo() *Memo {
	return m.memo
}

// Discover reads the pack at packPath, mirrors it into the original/ tree
// and classifies its units. Every file is read before anything is written,
// so a pack that cannot be read leaves the cache untouched.
func (m *Manager) Discover(packPath string) (*Pack, error) {
	name := archive.Name(packPath)
	a, err := archive.Open(packPath)
	if err != nil {
		return nil, &ExtractionError{Pack: name, Err: err}
	}
	defer a.Close()

	files := make(map[string][]byte)
	for _, rel := range a.List() {
		data, err := a.Read(rel)
		if err != nil {
			return nil, &ExtractionError{Pack: name, Path: rel, Err: err}
		}
		files[rel] = data
	}

	pack := &Pack{Name: name, Source: packPath, Layout: NewLayout(m.dir, name)}
	keep := make(map[string]bool, len(files))
	written := 0
	for _, rel := range a.List() {
		keep[rel] = true
		w, err := writeIfChanged(pack.Layout.Original(rel), files[rel])
		if err != nil {
			return nil, &ExtractionError{Pack: name, Path: rel, Err: err}
		}
		if w {
			written++
		}
		stage, ok := glsl.StageFromPath(rel)
		if !ok {
			continue
		}
		pack.Units = append(pack.Units, Unit{
			Path:        rel,
			Stage:       stage,
			Raw:         encoding.SourceText(files[rel]),
			Fingerprint: compiler.Fingerprint(files[rel]),
		})
	}
	if err := pruneTree(filepath.Join(pack.Layout.Root, OriginalDir), keep); err != nil {
		return nil, &ExtractionError{Pack: name, Err: err}
	}

	pack.Root = a.Root()
	pack.IncludeRoots = []string{pack.Layout.Updated(pack.Root)}
	pack.linkIncludes()
	var sets [][]glsl.Option
	for _, u := range pack.Units {
		sets = append(sets, glsl.ParseOptions(string(u.Raw)))
	}
	pack.Options = glsl.MergeOptions(sets...)

	s, err := settings.Load(settings.PathFor(packPath))
	if err != nil {
		m.log.Warn("Ignoring pack settings", zap.String("pack", name), zap.Error(err))
		s = glsl.Settings{}
	}
	pack.Settings = s

	m.ledger(pack).SetSource(packPath)
	m.log.Info("Discovered pack",
		zap.String("pack", name),
		zap.Int("files", len(files)),
		zap.Int("units", len(pack.Units)),
		zap.Int("extracted", written),
	)
	return pack, nil
}

func (m *Manager) ledger(p *Pack) *Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[p.Name]
	if !ok {
		l = loadLedger(p.Layout.Ledger(), m.log)
		m.ledgers[p.Name] = l
	}
	return l
}

// Failure is a unit that did not compile.
type Failure struct {
	Path    string
	Message string
}

// Report summarizes one refresh.
type Report struct {
	Pack       string
	Translated int // units whose updated source was regenerated
	Compiled   int // units compiled in this refresh
	Skipped    int // units already up to date
	Failed     int
	Failures   []Failure
}

type outcome int

const (
	upToDate outcome = iota
	translatedOnly
	compiled
	failed
)

type result struct {
	outcome    outcome
	translated bool
	message    string
}

// Refresh brings every unit of the pack up to date. Include libraries are
// prepared first since compiled units read them from updated/. A unit that
// fails to compile does not stop the others; the returned error is set only
// when the refresh itself could not proceed.
func (m *Manager) Refresh(ctx context.Context, pack *Pack) (*Report, error) {
	l := m.ledger(pack)
	if l.SetSettings(settingsFingerprint(pack.Settings)) {
		m.log.Debug("Settings changed", zap.String("pack", pack.Name))
	}
	if err := m.dropRemoved(pack, l); err != nil {
		return nil, err
	}

	report := &Report{Pack: pack.Name}
	var mu sync.Mutex
	record := func(u Unit, r result) {
		mu.Lock()
		defer mu.Unlock()
		if r.translated {
			report.Translated++
		}
		switch r.outcome {
		case upToDate:
			report.Skipped++
		case compiled:
			report.Compiled++
		case failed:
			report.Failed++
			report.Failures = append(report.Failures, Failure{Path: u.Path, Message: r.message})
		}
	}

	err := m.eachUnit(ctx, pack, false, func(ctx context.Context, u Unit) error {
		r, err := m.refreshUnit(ctx, pack, u, "")
		if err == nil {
			record(u, r)
		}
		return err
	})
	if err == nil {
		includes := includesFingerprint(pack)
		err = m.eachUnit(ctx, pack, true, func(ctx context.Context, u Unit) error {
			r, err := m.refreshUnit(ctx, pack, u, includes)
			if err == nil {
				record(u, r)
			}
			return err
		})
	}
	if serr := l.Save(); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Path < report.Failures[j].Path })
	m.log.Info("Refreshed pack",
		zap.String("pack", pack.Name),
		zap.Int("translated", report.Translated),
		zap.Int("compiled", report.Compiled),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// eachUnit runs fn in parallel over the compilable units, or over the
// include libraries when compilable is false.
func (m *Manager) eachUnit(ctx context.Context, pack *Pack, compilable bool, fn func(context.Context, Unit) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, u := range pack.Units {
		if u.Stage.Compilable() != compilable {
			continue
		}
		u := u
		g.Go(func() error { return fn(ctx, u) })
	}
	return g.Wait()
}

// dropRemoved forgets units that are no longer part of the pack.
func (m *Manager) dropRemoved(pack *Pack, l *Ledger) error {
	for _, rel := range l.Paths() {
		if _, ok := pack.Unit(rel); ok {
			continue
		}
		for _, p := range []string{pack.Layout.Updated(rel), pack.Layout.Artifact(rel)} {
			if err := removeFile(p); err != nil {
				return fmt.Errorf("removing %s: %w", p, err)
			}
		}
		l.Delete(rel)
		m.log.Debug("Dropped unit", zap.String("pack", pack.Name), zap.String("unit", rel))
	}
	return nil
}

// refreshUnit coalesces concurrent refreshes of the same unit.
func (m *Manager) refreshUnit(ctx context.Context, pack *Pack, u Unit, includes string) (result, error) {
	v, err, _ := m.flight.Do(pack.Name+"\x00"+u.Path, func() (any, error) {
		return m.doRefreshUnit(ctx, pack, u, includes)
	})
	if err != nil {
		return result{}, err
	}
	return v.(result), nil
}

func (m *Manager) doRefreshUnit(ctx context.Context, pack *Pack, u Unit, includes string) (result, error) {
	l := m.ledger(pack)
	lay := pack.Layout
	e, _ := l.Get(u.Path)
	var r result
	var inh glsl.Inherited
	if u.Stage.Compilable() {
		inh = pack.Inherited(u.Path)
	}

	if e.Stale || e.Raw != u.Fingerprint || e.Stage != u.Stage || e.State < Bound || e.Inherited != inheritedKey(inh) ||
		!fileExists(lay.Updated(u.Path)) {
		if err := removeFile(lay.Artifact(u.Path)); err != nil {
			return r, fmt.Errorf("clearing %s: %w", u.Path, err)
		}
		e = Entry{Stage: u.Stage, State: Unprocessed, Raw: u.Fingerprint}
		text, next := m.prepare(pack, u, inh)
		if _, err := writeIfChanged(lay.Updated(u.Path), []byte(text)); err != nil {
			// the entry stays unprocessed so the next refresh retries
			l.Put(u.Path, e)
			return r, fmt.Errorf("writing %s: %w", u.Path, err)
		}
		e = next
		l.Put(u.Path, e)
		r.translated = true
		r.outcome = translatedOnly
	}
	if !u.Stage.Compilable() {
		return r, nil
	}
	if e.State == Compiled && e.Artifact == e.Translated && e.Includes == includes && fileExists(lay.Artifact(u.Path)) {
		return r, nil
	}

	text, err := os.ReadFile(lay.Updated(u.Path))
	if err != nil {
		return r, fmt.Errorf("reading %s: %w", u.Path, err)
	}
	art, err := m.pool.Compile(ctx, compiler.Request{
		Name:         u.Path,
		Source:       string(text),
		Stage:        u.Stage,
		IncludePaths: includePaths(pack, u),
		Fingerprint:  e.Translated,
	})
	if err != nil {
		if ctx.Err() != nil {
			return r, ctx.Err()
		}
		e.State = Bound
		e.Artifact, e.Includes = "", ""
		e.Diagnostic = err.Error()
		l.Put(u.Path, e)
		if rerr := removeFile(lay.Artifact(u.Path)); rerr != nil {
			return r, fmt.Errorf("clearing %s: %w", u.Path, rerr)
		}
		m.log.Warn("Compilation failed", zap.String("pack", pack.Name), zap.String("unit", u.Path), zap.Error(err))
		r.outcome, r.message = failed, err.Error()
		return r, nil
	}
	if err := writeFileAtomic(lay.Artifact(u.Path), art.Bytecode); err != nil {
		return r, fmt.Errorf("writing artifact for %s: %w", u.Path, err)
	}
	e.State = Compiled
	e.Artifact, e.Includes = e.Translated, includes
	e.Diagnostic = ""
	l.Put(u.Path, e)
	m.memo.Set(pack.Name, u.Path, e.Artifact, art.Bytecode)
	m.log.Debug("Compiled", zap.String("pack", pack.Name), zap.String("unit", u.Path), zap.Stringer("module", art.Header))
	r.outcome = compiled
	return r, nil
}

// prepare runs the option pre-pass, translation and binding on u and
// returns the updated source with the entry describing it. inh holds what
// the libraries of u reference.
func (m *Manager) prepare(pack *Pack, u Unit, inh glsl.Inherited) (string, Entry) {
	src := glsl.ApplySettings(string(u.Raw), pack.Options, pack.Settings)
	res := glsl.TranslateIncluding(src, u.Stage, inh)
	e := Entry{Stage: u.Stage, State: Translated, Raw: u.Fingerprint, Inherited: inheritedKey(inh)}
	for _, n := range res.Notes {
		e.Notes = append(e.Notes, n.String())
	}
	table, text := binding.AllocateWithOptions(res.Source, u.Stage, m.bindings)
	for _, ub := range table.Unbound {
		e.Notes = append(e.Notes, "unbound: "+ub.String())
	}
	if len(table.Bindings) > 0 || len(table.Unbound) > 0 {
		e.Bindings = table
	}
	e.State = Bound
	e.Translated = compiler.Fingerprint([]byte(text))
	if len(e.Notes) > 0 {
		m.log.Debug("Translation notes", zap.String("pack", pack.Name), zap.String("unit", u.Path), zap.Strings("notes", e.Notes))
	}
	return text, e
}

// includePaths puts the unit's own directory first so relative includes
// resolve the way they do on disk.
func includePaths(pack *Pack, u Unit) []string {
	own := filepath.Dir(pack.Layout.Updated(u.Path))
	paths := []string{own}
	for _, p := range pack.IncludeRoots {
		if p != own {
			paths = append(paths, p)
		}
	}
	return paths
}

// includesFingerprint identifies the include library set of the pack. Any
// change to it invalidates every compiled unit.
func includesFingerprint(pack *Pack) string {
	var sb strings.Builder
	for _, u := range pack.Units {
		if u.Stage.Compilable() {
			continue
		}
		sb.WriteString(u.Path)
		sb.WriteByte(0)
		sb.WriteString(u.Fingerprint)
		sb.WriteByte('\n')
	}
	return compiler.Fingerprint([]byte(sb.String()))
}

// inheritedKey identifies a set of inherited built-ins; the empty set has
// the empty key.
func inheritedKey(inh glsl.Inherited) string {
	if len(inh) == 0 {
		return ""
	}
	names := make([]string, 0, len(inh))
	for name := range inh {
		names = append(names, name)
	}
	sort.Strings(names)
	return compiler.Fingerprint([]byte(strings.Join(names, "\n")))
}

func settingsFingerprint(s glsl.Settings) string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(s[k])
		sb.WriteByte('\n')
	}
	return compiler.Fingerprint([]byte(sb.String()))
}

// ArtifactFor returns the compiled artifact of the unit at rel, refreshing
// the unit first when its artifact is missing or out of date.
func (m *Manager) ArtifactFor(ctx context.Context, pack *Pack, rel string) (*compiler.Artifact, error) {
	u, ok := pack.Unit(path.Clean(rel))
	if !ok {
		return nil, fmt.Errorf("%s: unknown unit: %w", rel, ErrNoArtifact)
	}
	if !u.Stage.Compilable() {
		return nil, fmt.Errorf("%s: %w", rel, compiler.ErrUnsupportedStage)
	}
	l := m.ledger(pack)
	if l.SetSettings(settingsFingerprint(pack.Settings)) {
		m.log.Debug("Settings changed", zap.String("pack", pack.Name))
	}
	includes := includesFingerprint(pack)
	if art, ok := m.validArtifact(pack, u, includes); ok {
		return art, nil
	}

	err := m.eachUnit(ctx, pack, false, func(ctx context.Context, inc Unit) error {
		_, err := m.refreshUnit(ctx, pack, inc, "")
		return err
	})
	if err == nil {
		_, err = m.refreshUnit(ctx, pack, u, includes)
	}
	if serr := l.Save(); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return nil, err
	}
	if art, ok := m.validArtifact(pack, u, includes); ok {
		return art, nil
	}
	e, _ := l.Get(u.Path)
	if e.Diagnostic != "" {
		return nil, fmt.Errorf("%w: %s", ErrNoArtifact, e.Diagnostic)
	}
	return nil, fmt.Errorf("%s: %w", rel, ErrNoArtifact)
}

// validArtifact loads the artifact of u if the ledger says it is current.
// A ledger entry pointing at a missing file counts as stale.
func (m *Manager) validArtifact(pack *Pack, u Unit, includes string) (*compiler.Artifact, bool) {
	e, ok := m.ledger(pack).Get(u.Path)
	if !ok || e.Stale || e.State != Compiled || e.Raw != u.Fingerprint || e.Artifact != e.Translated || e.Includes != includes {
		return nil, false
	}
	b, ok := m.memo.Get(pack.Name, u.Path, e.Artifact)
	if !ok {
		data, err := os.ReadFile(pack.Layout.Artifact(u.Path))
		if err != nil {
			m.log.Debug("Artifact missing", zap.String("unit", u.Path), zap.Error(err))
			return nil, false
		}
		b = data
		m.memo.Set(pack.Name, u.Path, e.Artifact, b)
	}
	h, err := compiler.ParseHeader(b)
	if err != nil {
		m.log.Warn("Discarding corrupt artifact", zap.String("unit", u.Path), zap.Error(err))
		return nil, false
	}
	return &compiler.Artifact{Bytecode: b, Stage: u.Stage, SourceFingerprint: e.Artifact, Header: h}, true
}

// Handle is what a renderer needs to use one compiled unit.
type Handle struct {
	Path     string
	Stage    glsl.Stage
	Bytecode []byte
	Bindings *binding.Table
}

// Handles returns a handle for every unit with a current artifact, without
// refreshing anything.
func (m *Manager) Handles(pack *Pack) []Handle {
	includes := includesFingerprint(pack)
	l := m.ledger(pack)
	var out []Handle
	for _, u := range pack.Units {
		if !u.Stage.Compilable() {
			continue
		}
		art, ok := m.validArtifact(pack, u, includes)
		if !ok {
			continue
		}
		e, _ := l.Get(u.Path)
		table := e.Bindings
		if table == nil {
			table = &binding.Table{}
		}
		out = append(out, Handle{Path: u.Path, Stage: u.Stage, Bytecode: art.Bytecode, Bindings: table})
	}
	return out
}

// Summary counts the units of a pack by state.
type Summary struct {
	Pack     string
	Compiled int
	Failed   int
	Pending  int
	Includes int
	Notes    int
	Failures []Failure
}

// Status summarizes the pack from its ledger without touching any unit.
func (m *Manager) Status(pack *Pack) Summary {
	s := Summary{Pack: pack.Name}
	includes := includesFingerprint(pack)
	l := m.ledger(pack)
	for _, u := range pack.Units {
		e, ok := l.Get(u.Path)
		if ok {
			s.Notes += len(e.Notes)
		}
		switch {
		case !u.Stage.Compilable():
			s.Includes++
		case ok && !e.Stale && e.Raw == u.Fingerprint && e.Diagnostic != "":
			s.Failed++
			s.Failures = append(s.Failures, Failure{Path: u.Path, Message: e.Diagnostic})
		case ok && !e.Stale && e.State == Compiled && e.Raw == u.Fingerprint && e.Artifact == e.Translated &&
			e.Includes == includes && fileExists(pack.Layout.Artifact(u.Path)):
			s.Compiled++
		default:
			s.Pending++
		}
	}
	return s
}

// Translation is the updated source of one unit as a refresh would
// write it.
type Translation struct {
	Unit     Unit
	Source   string
	Notes    []string
	Bindings *binding.Table
}

// Translate runs the option pre-pass, translation and binding on the unit
// at rel without touching the cache.
func (m *Manager) Translate(pack *Pack, rel string) (*Translation, error) {
	u, ok := pack.Unit(path.Clean(rel))
	if !ok {
		return nil, fmt.Errorf("%s: unknown unit", rel)
	}
	var inh glsl.Inherited
	if u.Stage.Compilable() {
		inh = pack.Inherited(u.Path)
	}
	text, e := m.prepare(pack, u, inh)
	table := e.Bindings
	if table == nil {
		table = &binding.Table{}
	}
	return &Translation{Unit: u, Source: text, Notes: e.Notes, Bindings: table}, nil
}

// Notes returns the translation notes recorded for a unit.
func (m *Manager) Notes(pack *Pack, rel string) []string {
	e, _ := m.ledger(pack).Get(rel)
	return e.Notes
}

// Clean removes the whole cache of the named pack.
func (m *Manager) Clean(name string) error {
	m.mu.Lock()
	delete(m.ledgers, name)
	m.mu.Unlock()
	m.memo.Forget(name)
	if err := os.RemoveAll(NewLayout(m.dir, name).Root); err != nil {
		return fmt.Errorf("cleaning %s: %w", name, err)
	}
	m.log.Info("Cleaned pack cache", zap.String("pack", name))
	return nil
}
