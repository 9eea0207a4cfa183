package cache

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Faultbox/shaderpack/pkg/binding"
	"github.com/Faultbox/shaderpack/pkg/glsl"
)

func TestLayout(t *testing.T) {
	l := NewLayout("/var/cache/shaderpack", "BSL")
	tests := map[string]string{
		l.Original("shaders/final.fsh"): filepath.FromSlash("/var/cache/shaderpack/BSL/original/shaders/final.fsh"),
		l.Updated("shaders/final.fsh"):  filepath.FromSlash("/var/cache/shaderpack/BSL/updated/shaders/final.fsh"),
		l.Artifact("shaders/final.fsh"): filepath.FromSlash("/var/cache/shaderpack/BSL/spirv/shaders/final.fsh.spv"),
		l.Ledger():                      filepath.FromSlash("/var/cache/shaderpack/BSL/fingerprints.yaml"),
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestWriteIfChanged(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a", "b.txt")
	w, err := writeIfChanged(p, []byte("one"))
	if err != nil || !w {
		t.Fatalf("first write = %v, %v", w, err)
	}
	w, err = writeIfChanged(p, []byte("one"))
	if err != nil || w {
		t.Errorf("identical write = %v, %v", w, err)
	}
	w, err = writeIfChanged(p, []byte("two"))
	if err != nil || !w {
		t.Errorf("changed write = %v, %v", w, err)
	}
	entries, err := os.ReadDir(filepath.Dir(p))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestPruneTree(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"keep.fsh", "sub/keep.vsh", "sub/drop.vsh"} {
		if err := writeFileAtomic(filepath.Join(dir, filepath.FromSlash(name)), []byte(name)); err != nil {
			t.Fatal(err)
		}
	}
	if err := pruneTree(dir, map[string]bool{"keep.fsh": true, "sub/keep.vsh": true}); err != nil {
		t.Fatal(err)
	}
	if fileExists(filepath.Join(dir, "sub", "drop.vsh")) {
		t.Error("drop.vsh not removed")
	}
	if !fileExists(filepath.Join(dir, "sub", "keep.vsh")) {
		t.Error("keep.vsh removed")
	}
	if err := pruneTree(filepath.Join(dir, "missing"), nil); err != nil {
		t.Errorf("pruneTree(missing) = %v", err)
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), LedgerFile)
	log := zaptest.NewLogger(t)
	l := loadLedger(path, log)
	l.SetSettings("s1")
	want := Entry{
		Stage:      glsl.StageFragment,
		State:      Compiled,
		Raw:        "raw",
		Translated: "tr",
		Artifact:   "tr",
		Includes:   "inc",
		Bindings: &binding.Table{Bindings: []binding.Binding{
			{Name: "tex", Type: "sampler2D", Kind: binding.KindSampler, Index: 1},
		}},
		Notes: []string{"textures: line 3: note"},
	}
	l.Put("shaders/final.fsh", want)
	if err := l.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded := loadLedger(path, log)
	got, ok := loaded.Get("shaders/final.fsh")
	if !ok {
		t.Fatal("entry missing after reload")
	}
	if got.Stage != want.Stage || got.State != want.State || got.Artifact != want.Artifact || got.Includes != want.Includes {
		t.Errorf("reloaded entry = %+v, want %+v", got, want)
	}
	if got.Bindings == nil || len(got.Bindings.Bindings) != 1 || got.Bindings.Bindings[0] != want.Bindings.Bindings[0] {
		t.Errorf("reloaded bindings = %+v", got.Bindings)
	}
	if loaded.SetSettings("s1") {
		t.Error("unchanged settings reported as changed")
	}
	if !loaded.SetSettings("s2") {
		t.Error("changed settings not reported")
	}
	if e, _ := loaded.Get("shaders/final.fsh"); !e.Stale {
		t.Error("settings change did not mark the entry stale")
	}
}
