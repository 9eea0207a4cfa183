package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

var packFiles = map[string]string{
	"shaders/gbuffers_basic.vsh": "#version 120\nvoid main() {}\n",
	"shaders/gbuffers_basic.fsh": "#version 120\nvoid main() {}\n",
	"shaders/lib/common.glsl":    "float luma(vec3 c);\n",
	"readme.txt":                 "pack",
}

func writeDirPack(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Sildurs")
	for name, content := range packFiles {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func writeZipPack(t *testing.T, files map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "Sildurs.zip")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"directory", writeDirPack},
		{"zip", func(t *testing.T) string { return writeZipPack(t, packFiles) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pack, err := Open(tt.path(t))
			if err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			defer pack.Close()

			if pack.Name() != "Sildurs" {
				t.Errorf("Name() = %q, want Sildurs", pack.Name())
			}
			want := []string{"readme.txt", "shaders/gbuffers_basic.fsh", "shaders/gbuffers_basic.vsh", "shaders/lib/common.glsl"}
			got := pack.List()
			if len(got) != len(want) {
				t.Fatalf("List() = %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
				}
			}
			if !pack.Contains(`shaders\lib\common.glsl`) {
				t.Error("Contains with backslashes = false")
			}
			if pack.Contains("shaders/missing.fsh") {
				t.Error("Contains(missing) = true")
			}
			data, err := pack.Read("shaders/lib/common.glsl")
			if err != nil {
				t.Fatalf("Read() error: %v", err)
			}
			if string(data) != packFiles["shaders/lib/common.glsl"] {
				t.Errorf("Read() = %q", data)
			}
			if _, err := pack.Read("../outside"); err == nil {
				t.Error("Read(../outside) succeeded")
			}
			if pack.Root() != ShaderRoot {
				t.Errorf("Root() = %q, want %q", pack.Root(), ShaderRoot)
			}
		})
	}
}

func TestOpenRejects(t *testing.T) {
	plain := filepath.Join(t.TempDir(), "pack.txt")
	if err := os.WriteFile(plain, []byte("not an archive"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(plain); err == nil {
		t.Error("Open(text file) succeeded")
	}

	evil := writeZipPack(t, map[string]string{"../escape.fsh": "void main() {}"})
	if p, err := Open(evil); err == nil {
		p.Close()
		t.Error("Open(zip with ../ entry) succeeded")
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Open(missing) succeeded")
	}
}

func TestRootWithoutShaderDir(t *testing.T) {
	pack, err := Open(writeZipPack(t, map[string]string{"final.fsh": "void main() {}"}))
	if err != nil {
		t.Fatal(err)
	}
	defer pack.Close()
	if pack.Root() != "" {
		t.Errorf("Root() = %q, want empty", pack.Root())
	}
}

func TestName(t *testing.T) {
	tests := map[string]string{
		"/packs/BSL_v8.zip":     "BSL_v8",
		"/packs/BSL_v8.ZIP":     "BSL_v8",
		"/packs/Complementary/": "Complementary",
	}
	for in, want := range tests {
		if got := Name(in); got != want {
			t.Errorf("Name(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenLegacyZipNames(t *testing.T) {
	// CP437 0x82 is é; the name is not valid UTF-8 so the reader flags it
	p := writeZipPack(t, map[string]string{"shaders/\x82clair.fsh": "void main() {}\n"})
	pack, err := Open(p)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer pack.Close()
	if !pack.Contains("shaders/éclair.fsh") {
		t.Fatalf("List() = %v, want the decoded name", pack.List())
	}
	data, err := pack.Read("shaders/éclair.fsh")
	if err != nil || string(data) != "void main() {}\n" {
		t.Errorf("Read() = %q, %v", data, err)
	}
}

func TestOpenDuplicateZipNames(t *testing.T) {
	p := filepath.Join(t.TempDir(), "Dup.zip")
	out, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	for _, e := range []struct{ name, body string }{
		{"shaders\\lib\\common.glsl", "first"},
		{"shaders/lib/common.glsl", "second"},
	} {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	out.Close()

	pack, err := Open(p)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer pack.Close()
	if got := pack.List(); len(got) != 1 || got[0] != "shaders/lib/common.glsl" {
		t.Fatalf("List() = %v, want one entry", got)
	}
	data, err := pack.Read("shaders/lib/common.glsl")
	if err != nil || string(data) != "first" {
		t.Errorf("Read() = %q, %v, want the first entry", data, err)
	}
}
