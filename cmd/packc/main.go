// packc translates legacy shader packs to GLSL 450 and compiles them to SPIR-V.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderpack/internal/cache"
	"github.com/Faultbox/shaderpack/internal/compiler"
	"github.com/Faultbox/shaderpack/internal/config"
	"github.com/Faultbox/shaderpack/internal/logger"
	"github.com/Faultbox/shaderpack/pkg/binding"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "build", "b":
		cmdBuild(args)
	case "status", "st":
		cmdStatus(args)
	case "translate", "tr":
		cmdTranslate(args)
	case "handles":
		cmdHandles(args)
	case "options", "opt":
		cmdOptions(args)
	case "watch", "w":
		cmdWatch(args)
	case "clean":
		cmdClean(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`packc - shader pack translator and SPIR-V compiler

Usage:
  packc [flags] <command> [options]

Commands:
  build <pack>                      Translate and compile every changed unit
  status <pack>                     Show cached state without compiling
  translate <pack> <unit>           Print the translated source of one unit
  handles <pack>                    List compiled units and their bindings
  options <pack> [NAME=value ...]   Show or change pack options
  watch <pack>                      Rebuild whenever the pack changes
  clean <pack>                      Remove the pack's cache

Flags:
  -config <file>     Config file (default: ./shaderpack.yaml)
  -cache <dir>       Cache directory
  -compiler <path>   glslc or glslangValidator executable
  -workers <n>       Concurrent compilations
  -disjoint          Bind samplers and uniforms in separate descriptor sets
  -debug             Debug logging

Examples:
  packc build ~/packs/BSL.zip
  packc -compiler glslangValidator build ./Sildurs
  packc translate BSL.zip shaders/gbuffers_terrain.fsh
  packc options BSL.zip SHADOWS=false QUALITY=4`)
}

// env is what every command needs.
type env struct {
	cfg *config.Config
	log *zap.Logger
	mgr *cache.Manager
}

func setup() *env {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	log, err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile)
	if err != nil {
		fatal(err)
	}
	c, err := compiler.New(compiler.Options{
		Tool:      cfg.Compiler.Tool,
		Path:      cfg.Compiler.Path,
		TargetEnv: cfg.Compiler.TargetEnv,
		ExtraArgs: cfg.Compiler.ExtraArgs,
	}, log)
	if err != nil {
		fatal(err)
	}
	mgr, err := cache.NewManager(cache.Options{
		CacheDir: cfg.Cache.Dir,
		Compiler: c,
		Workers:  cfg.Compiler.Workers,
		Bindings: binding.Options{Disjoint: cfg.Bindings.Disjoint},
		Logger:   log,
	})
	if err != nil {
		fatal(err)
	}
	log.Debug("Configured",
		zap.String("cache", cfg.Cache.Dir),
		zap.String("compiler", c.Tool()),
		zap.Bool("disjoint", cfg.Bindings.Disjoint),
	)
	return &env{cfg: cfg, log: log, mgr: mgr}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func fatal(err error) {
	logger.Sync()
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
