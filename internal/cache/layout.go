package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Cache subdirectories and the ledger file name, relative to a pack's cache root.
const (
	OriginalDir = "original"
	UpdatedDir  = "updated"
	SpirvDir    = "spirv"
	LedgerFile  = "fingerprints.yaml"
	ArtifactExt = ".spv"
)

// Layout resolves the on-disk locations of one pack's cache. Every tree
// mirrors the pack-relative paths of its sources.
type Layout struct {
	Root string
}

// NewLayout returns the layout of pack inside cacheDir.
func NewLayout(cacheDir, pack string) Layout {
	return Layout{Root: filepath.Join(cacheDir, pack)}
}

// Original is the extracted raw source of rel.
func (l Layout) Original(rel string) string {
	return filepath.Join(l.Root, OriginalDir, filepath.FromSlash(rel))
}

// Updated is the translated and bound source of rel.
func (l Layout) Updated(rel string) string {
	return filepath.Join(l.Root, UpdatedDir, filepath.FromSlash(rel))
}

// Artifact is the compiled bytecode of rel.
func (l Layout) Artifact(rel string) string {
	return filepath.Join(l.Root, SpirvDir, filepath.FromSlash(rel)+ArtifactExt)
}

// Ledger is the fingerprint ledger of the pack.
func (l Layout) Ledger() string {
	return filepath.Join(l.Root, LedgerFile)
}

// writeFileAtomic replaces path with data through a temporary file in the
// same directory, so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// writeIfChanged writes data unless path already holds exactly data. It
// reports whether the file was written.
func writeIfChanged(path string, data []byte) (bool, error) {
	if cur, err := os.ReadFile(path); err == nil && bytes.Equal(cur, data) {
		return false, nil
	}
	return true, writeFileAtomic(path, data)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// removeFile deletes path, ignoring a file that is already gone.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// pruneTree removes every regular file under dir whose slash-separated
// relative path is not in keep.
func pruneTree(dir string, keep map[string]bool) error {
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if !keep[filepath.ToSlash(rel)] {
			return os.Remove(p)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
