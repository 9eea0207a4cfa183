// Package config handles pipeline configuration loading and management.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all pipeline settings.
type Config struct {
	Cache    CacheConfig    `yaml:"cache"`
	Compiler CompilerConfig `yaml:"compiler"`
	Bindings BindingsConfig `yaml:"bindings"`
	Watch    WatchConfig    `yaml:"watch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CacheConfig holds the cache location.
type CacheConfig struct {
	Dir string `yaml:"dir"` // Root of all pack caches
}

// CompilerConfig holds external compiler settings.
type CompilerConfig struct {
	Tool      string `yaml:"tool"`       // glslc or glslangValidator
	Path      string `yaml:"path"`       // Executable, looked up in PATH when empty
	TargetEnv string `yaml:"target_env"` // e.g. vulkan1.2
	ExtraArgs string `yaml:"extra_args"` // Shell-quoted, appended to every invocation
	Workers   int    `yaml:"workers"`    // Concurrent compilations, 0 = one per CPU
}

// BindingsConfig holds the binding model.
type BindingsConfig struct {
	Disjoint bool `yaml:"disjoint"` // Samplers and uniforms in separate descriptor sets
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Dir: DefaultCacheDir(),
		},
		Compiler: CompilerConfig{
			Tool:      "glslc",
			TargetEnv: "vulkan1.2",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// DefaultCacheDir returns the OS-appropriate cache directory.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "shaderpack")
	}
	return filepath.Join(os.TempDir(), "shaderpack")
}
