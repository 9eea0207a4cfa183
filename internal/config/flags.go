package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagCache    = flag.String("cache", "", "Cache directory")
	flagCompiler = flag.String("compiler", "", "Compiler executable (glslc or glslangValidator)")
	flagWorkers  = flag.Int("workers", 0, "Concurrent compilations")
	flagDisjoint = flag.Bool("disjoint", false, "Bind samplers and uniforms in separate descriptor sets")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after the flags.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagCache != "" {
		cfg.Cache.Dir = *flagCache
	}
	if *flagCompiler != "" {
		cfg.Compiler.Path = *flagCompiler
		cfg.Compiler.Tool = ""
	}
	if *flagWorkers > 0 {
		cfg.Compiler.Workers = *flagWorkers
	}
	if *flagDisjoint {
		cfg.Bindings.Disjoint = true
	}
}
