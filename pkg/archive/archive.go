// Package archive provides read access to shader packs, which are either
// plain directories or zip archives.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"

	"github.com/Faultbox/shaderpack/pkg/encoding"
)

// ShaderRoot is the directory packs conventionally keep their sources in.
const ShaderRoot = "shaders"

// Pack is an opened shader pack.
type Pack struct {
	name  string
	dir   string
	zip   *zip.ReadCloser
	files map[string]*zip.File // zip packs only
	list  []string
}

// Open opens a pack directory or zip archive.
func Open(p string) (*Pack, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("opening pack: %w", err)
	}
	pack := &Pack{name: Name(p)}
	if info.IsDir() {
		pack.dir = p
		if err := pack.scanDir(); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", p, err)
		}
		sort.Strings(pack.list)
		return pack, nil
	}

	ok, err := isZip(p)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s is neither a directory nor a zip archive", p)
	}
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}
	pack.zip = zr
	pack.files = make(map[string]*zip.File)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		name, err := normalizePath(encoding.ZipName(f.Name, f.NonUTF8))
		if err != nil {
			zr.Close()
			return nil, err
		}
		// a\b and a/b name the same file; the first entry wins
		if _, dup := pack.files[name]; dup {
			continue
		}
		pack.files[name] = f
		pack.list = append(pack.list, name)
	}
	sort.Strings(pack.list)
	return pack, nil
}

// Name derives a pack name from its path: the base name without a .zip suffix.
func Name(p string) string {
	base := filepath.Base(filepath.Clean(p))
	if strings.EqualFold(filepath.Ext(base), ".zip") {
		base = base[:len(base)-len(filepath.Ext(base))]
	}
	return base
}

func isZip(p string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, err
	}
	defer f.Close()
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}

func (p *Pack) scanDir() error {
	return filepath.WalkDir(p.dir, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.dir, full)
		if err != nil {
			return err
		}
		name, err := normalizePath(rel)
		if err != nil {
			return err
		}
		p.list = append(p.list, name)
		return nil
	})
}

// Close releases the archive. It is a no-op for directory packs.
func (p *Pack) Close() error {
	if p.zip != nil {
		return p.zip.Close()
	}
	return nil
}

// Name returns the pack name.
func (p *Pack) Name() string {
	return p.name
}

// List returns every file path in the pack, sorted, with forward slashes.
func (p *Pack) List() []string {
	out := make([]string, len(p.list))
	copy(out, p.list)
	return out
}

// Contains checks if a file exists.
func (p *Pack) Contains(name string) bool {
	name, err := normalizePath(name)
	if err != nil {
		return false
	}
	i := sort.SearchStrings(p.list, name)
	return i < len(p.list) && p.list[i] == name
}

// Read reads a file from the pack.
func (p *Pack) Read(name string) ([]byte, error) {
	name, err := normalizePath(name)
	if err != nil {
		return nil, err
	}
	if !p.Contains(name) {
		return nil, fmt.Errorf("file not found: %s", name)
	}
	if p.zip == nil {
		return os.ReadFile(filepath.Join(p.dir, filepath.FromSlash(name)))
	}
	rc, err := p.files[name].Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Root returns the directory inside the pack that holds the shader sources:
// ShaderRoot when the pack has one, otherwise the pack root ("").
func (p *Pack) Root() string {
	for _, name := range p.list {
		if strings.HasPrefix(name, ShaderRoot+"/") {
			return ShaderRoot
		}
	}
	return ""
}

// normalizePath converts a pack path to slash form and rejects paths that
// would escape the pack.
func normalizePath(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	clean := path.Clean(strings.TrimPrefix(name, "./"))
	if path.IsAbs(name) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path escapes pack: %s", name)
	}
	return clean, nil
}
