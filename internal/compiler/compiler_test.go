package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/naga/spirv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Faultbox/shaderpack/pkg/glsl"
)

func TestArgs(t *testing.T) {
	glslc, err := New(Options{ExtraArgs: `-O -DNAME="a b"`}, nil)
	require.NoError(t, err)
	assert.Equal(t, ToolGlslc, glslc.Tool())
	assert.Equal(t,
		[]string{"-fshader-stage=frag", "--target-env=vulkan1.2", "-I", "/c/updated/shaders", "-O", "-DNAME=a b", "-o", "/tmp/out.spv", "-"},
		glslc.args(glsl.StageFragment, []string{"/c/updated/shaders"}, "/tmp/out.spv"))

	glslang, err := New(Options{Path: "/opt/vulkan/bin/glslangValidator", TargetEnv: "vulkan1.3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ToolGlslang, glslang.Tool())
	assert.Equal(t,
		[]string{"--stdin", "-S", "vert", "-V", "--target-env", "vulkan1.3", "-I/c/updated/shaders", "-o", "/tmp/out.spv"},
		glslang.args(glsl.StageVertex, []string{"/c/updated/shaders"}, "/tmp/out.spv"))
}

func TestNewRejects(t *testing.T) {
	_, err := New(Options{Tool: "dxc"}, nil)
	assert.Error(t, err)

	_, err = New(Options{ExtraArgs: `-DX="unterminated`}, nil)
	assert.Error(t, err)
}

func TestParseDiagnostic(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		line    int
		message string
	}{
		{
			name:    "glslc",
			output:  "<stdin>:12: error: 'foo' : undeclared identifier\n1 error generated.\n",
			line:    12,
			message: "'foo' : undeclared identifier",
		},
		{
			name:    "glslang",
			output:  "stdin\nERROR: 0:7: 'fragColor' : redefinition\nERROR: 1 compilation errors.  No code generated.\n",
			line:    7,
			message: "'fragColor' : redefinition",
		},
		{
			name:    "no line",
			output:  "glslc: error: linking multiple files is not supported\n",
			message: "linking multiple files is not supported",
		},
		{
			name:   "unrecognized",
			output: "segmentation fault\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ParseDiagnostic(tt.output)
			assert.Equal(t, tt.line, d.Line)
			assert.Equal(t, tt.message, d.Message)
			assert.Equal(t, strings.TrimSpace(tt.output), d.Output)
		})
	}
}

func TestDiagnosticError(t *testing.T) {
	d := &Diagnostic{Unit: "shaders/final.fsh", Stage: glsl.StageFragment, Line: 3, Message: "syntax error"}
	assert.Equal(t, "shaders/final.fsh (fragment): line 3: syntax error", d.Error())
	d.Line = 0
	assert.Equal(t, "shaders/final.fsh (fragment): syntax error", d.Error())
}

func TestParseHeader(t *testing.T) {
	module := spirv.NewModuleBuilder(spirv.Version1_3).Build()
	h, err := ParseHeader(module)
	require.NoError(t, err)
	assert.Equal(t, spirv.Version1_3, h.Version)
	assert.Equal(t, "SPIR-V 1.3, bound 1", h.String())

	_, err = ParseHeader(module[:8])
	assert.Error(t, err)

	bad := append([]byte(nil), module...)
	bad[0] = 0xFF
	_, err = ParseHeader(bad)
	assert.Error(t, err)
}

// fakeGlslc writes a shell script that behaves like glslc: it copies a real
// SPIR-V module to the -o path, or fails when the source contains BROKEN.
func fakeGlslc(t *testing.T) (path, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler needs /bin/sh")
	}
	dir := t.TempDir()
	golden := filepath.Join(dir, "golden.spv")
	require.NoError(t, os.WriteFile(golden, spirv.NewModuleBuilder(spirv.Version1_5).Build(), 0o644))
	argsFile = filepath.Join(dir, "args")
	script := fmt.Sprintf(`#!/bin/sh
echo "$@" > %q
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; shift; fi
  shift
done
src=$(cat)
case "$src" in
  *BROKEN*) echo "<stdin>:3: error: 'BROKEN' : undeclared identifier" >&2; exit 1;;
esac
cp %q "$out"
`, argsFile, golden)
	path = filepath.Join(dir, "glslc")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path, argsFile
}

func TestExternalCompile(t *testing.T) {
	path, argsFile := fakeGlslc(t)
	c, err := New(Options{Path: path}, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	src := "#version 450 core\nvoid main() {}\n"
	art, err := c.Compile(ctx, Request{Name: "final.fsh", Source: src, Stage: glsl.StageFragment, IncludePaths: []string{"/inc"}})
	require.NoError(t, err)
	assert.Equal(t, glsl.StageFragment, art.Stage)
	assert.Equal(t, Fingerprint([]byte(src)), art.SourceFingerprint)
	assert.Equal(t, spirv.Version1_5, art.Header.Version)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-fshader-stage=frag")
	assert.Contains(t, string(args), "-I /inc")

	_, err = c.Compile(ctx, Request{Name: "broken.fsh", Source: "#version 450 core\nvoid main() {\n BROKEN;\n}\n", Stage: glsl.StageFragment})
	var d *Diagnostic
	require.True(t, errors.As(err, &d), "expected a Diagnostic, got %v", err)
	assert.Equal(t, "broken.fsh", d.Unit)
	assert.Equal(t, 3, d.Line)
	assert.Equal(t, "'BROKEN' : undeclared identifier", d.Message)
}

func TestExternalCompileErrors(t *testing.T) {
	c, err := New(Options{Path: filepath.Join(t.TempDir(), "missing-glslc")}, nil)
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), Request{Name: "lib.glsl", Source: "", Stage: glsl.StageOther})
	assert.ErrorIs(t, err, ErrUnsupportedStage)

	_, err = c.Compile(context.Background(), Request{Name: "a.vsh", Source: "void main() {}", Stage: glsl.StageVertex})
	require.Error(t, err)
	var d *Diagnostic
	assert.False(t, errors.As(err, &d), "a missing tool is not a diagnostic")
}

type slowCompiler struct {
	running, peak atomic.Int32
}

func (s *slowCompiler) Compile(ctx context.Context, req Request) (*Artifact, error) {
	n := s.running.Add(1)
	defer s.running.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return &Artifact{Stage: req.Stage}, nil
}

func TestPool(t *testing.T) {
	sc := &slowCompiler{}
	p := NewPool(sc, 2)
	assert.Equal(t, 2, p.Workers())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Compile(context.Background(), Request{Stage: glsl.StageVertex})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, sc.peak.Load(), int32(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Compile(ctx, Request{})
	// a free slot may still be acquired on a cancelled context; either outcome is fine
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, runtime.NumCPU(), NewPool(sc, 0).Workers())
}
