// Package compiler turns translated shader source into SPIR-V bytecode by
// driving an external reference compiler.
package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Faultbox/shaderpack/pkg/glsl"
)

// ErrUnsupportedStage is returned for units whose stage is not compiled on its own.
var ErrUnsupportedStage = errors.New("stage is not compilable")

// Request is one unit submitted for compilation.
type Request struct {
	Name         string // pack-relative path, used in diagnostics
	Source       string
	Stage        glsl.Stage
	IncludePaths []string

	// Fingerprint of Source; computed when empty.
	Fingerprint string
}

// Artifact is compiled bytecode and the source it was built from.
type Artifact struct {
	Bytecode          []byte
	Stage             glsl.Stage
	SourceFingerprint string
	Header            Header
}

// Diagnostic is a compilation failure reported by the compiler.
type Diagnostic struct {
	Unit    string
	Stage   glsl.Stage
	Line    int    // line in the translated source, 0 when unknown
	Message string // first error reported
	Output  string // full compiler output
}

func (d *Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s (%s): line %d: %s", d.Unit, d.Stage, d.Line, d.Message)
	}
	return fmt.Sprintf("%s (%s): %s", d.Unit, d.Stage, d.Message)
}

// Compiler compiles one unit. Implementations must be safe for concurrent use.
type Compiler interface {
	Compile(ctx context.Context, req Request) (*Artifact, error)
}

// Fingerprint returns the hex SHA-256 of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (r *Request) fingerprint() string {
	if r.Fingerprint == "" {
		r.Fingerprint = Fingerprint([]byte(r.Source))
	}
	return r.Fingerprint
}
