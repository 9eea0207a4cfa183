package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderpack/pkg/glsl"
)

// Supported compiler front ends. Both read source from stdin.
const (
	ToolGlslc   = "glslc"
	ToolGlslang = "glslangValidator"
)

// DefaultTargetEnv is the SPIR-V environment targeted when none is configured.
const DefaultTargetEnv = "vulkan1.2"

// Options configures the external compiler.
type Options struct {
	Tool      string // ToolGlslc or ToolGlslang; inferred from Path when empty
	Path      string // executable; defaults to Tool looked up in PATH
	TargetEnv string
	ExtraArgs string // shell-quoted arguments appended to every invocation
}

// External runs glslc or glslangValidator as a subprocess.
type External struct {
	tool      string
	path      string
	targetEnv string
	extra     []string
	log       *zap.Logger
}

// New validates opts and returns a compiler. A nil logger disables logging.
func New(opts Options, log *zap.Logger) (*External, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tool := opts.Tool
	if tool == "" {
		tool = ToolGlslc
		if strings.HasPrefix(strings.ToLower(filepath.Base(opts.Path)), strings.ToLower(ToolGlslang)) {
			tool = ToolGlslang
		}
	}
	if tool != ToolGlslc && tool != ToolGlslang {
		return nil, fmt.Errorf("unknown compiler tool %q", tool)
	}
	path := opts.Path
	if path == "" {
		path = tool
	}
	env := opts.TargetEnv
	if env == "" {
		env = DefaultTargetEnv
	}
	extra, err := shellwords.Parse(opts.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("parsing extra compiler args: %w", err)
	}
	return &External{
		tool:      tool,
		path:      path,
		targetEnv: env,
		extra:     extra,
		log:       log.Named("compiler"),
	}, nil
}

// Tool returns the front end in use.
func (e *External) Tool() string {
	return e.tool
}

var stageFlags = map[glsl.Stage]string{
	glsl.StageVertex:   "vert",
	glsl.StageFragment: "frag",
	glsl.StageCompute:  "comp",
}

func (e *External) args(stage glsl.Stage, includes []string, out string) []string {
	s := stageFlags[stage]
	var args []string
	switch e.tool {
	case ToolGlslang:
		args = append(args, "--stdin", "-S", s, "-V", "--target-env", e.targetEnv)
		for _, dir := range includes {
			args = append(args, "-I"+dir)
		}
		args = append(args, e.extra...)
		args = append(args, "-o", out)
	default:
		args = append(args, "-fshader-stage="+s, "--target-env="+e.targetEnv)
		for _, dir := range includes {
			args = append(args, "-I", dir)
		}
		args = append(args, e.extra...)
		args = append(args, "-o", out, "-")
	}
	return args
}

// Compile runs the compiler on req. A non-zero exit becomes a *Diagnostic;
// failures to run the tool at all are returned as plain errors.
func (e *External) Compile(ctx context.Context, req Request) (*Artifact, error) {
	if _, ok := stageFlags[req.Stage]; !ok {
		return nil, fmt.Errorf("%s (%s): %w", req.Name, req.Stage, ErrUnsupportedStage)
	}
	dir, err := os.MkdirTemp("", "shaderpack-*")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "out.spv")

	cmd := exec.CommandContext(ctx, e.path, e.args(req.Stage, req.IncludePaths, out)...)
	cmd.Stdin = strings.NewReader(req.Source)
	e.log.Debug("Compiling", zap.String("unit", req.Name), zap.Strings("args", cmd.Args))
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %v: %w", cmd.Args, err)
		}
		d := ParseDiagnostic(string(output))
		d.Unit, d.Stage = req.Name, req.Stage
		if d.Message == "" {
			d.Message = err.Error()
		}
		return nil, d
	}
	if w := strings.TrimSpace(string(output)); w != "" {
		e.log.Debug("Compiler output", zap.String("unit", req.Name), zap.String("output", w))
	}

	bytecode, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("unable to read output %q: %w", out, err)
	}
	h, err := ParseHeader(bytecode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	return &Artifact{
		Bytecode:          bytecode,
		Stage:             req.Stage,
		SourceFingerprint: req.fingerprint(),
		Header:            h,
	}, nil
}
