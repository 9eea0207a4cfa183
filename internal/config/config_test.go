package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Compiler.Tool != "glslc" {
		t.Errorf("expected tool glslc, got %s", cfg.Compiler.Tool)
	}
	if cfg.Compiler.TargetEnv != "vulkan1.2" {
		t.Errorf("expected target env vulkan1.2, got %s", cfg.Compiler.TargetEnv)
	}
	if cfg.Compiler.Workers != 0 {
		t.Errorf("expected 0 workers (one per CPU), got %d", cfg.Compiler.Workers)
	}
	if cfg.Bindings.Disjoint {
		t.Error("expected shared binding numbering by default")
	}
	if cfg.Watch.Debounce != 300*time.Millisecond {
		t.Errorf("expected debounce 300ms, got %v", cfg.Watch.Debounce)
	}
	if !strings.HasSuffix(cfg.Cache.Dir, "shaderpack") {
		t.Errorf("expected cache dir ending in shaderpack, got %s", cfg.Cache.Dir)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, FileName)

	yamlContent := `
cache:
  dir: /tmp/packs

compiler:
  tool: glslangValidator
  path: /opt/vulkan/bin/glslangValidator
  target_env: vulkan1.3
  extra_args: "-g --auto-map-locations"
  workers: 4

bindings:
  disjoint: true

watch:
  debounce: 1s

logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Cache.Dir != "/tmp/packs" {
		t.Errorf("expected cache dir /tmp/packs, got %s", cfg.Cache.Dir)
	}
	if cfg.Compiler.Tool != "glslangValidator" {
		t.Errorf("expected tool glslangValidator, got %s", cfg.Compiler.Tool)
	}
	if cfg.Compiler.ExtraArgs != "-g --auto-map-locations" {
		t.Errorf("unexpected extra args %q", cfg.Compiler.ExtraArgs)
	}
	if cfg.Compiler.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Compiler.Workers)
	}
	if !cfg.Bindings.Disjoint {
		t.Error("expected disjoint bindings")
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("expected debounce 1s, got %v", cfg.Watch.Debounce)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// untouched keys keep their defaults
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	tests := map[string]string{
		"syntax":        "cache:\n  dir: [unclosed\n",
		"unknown field": "compiler:\n  optimizer: true\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(tmpDir, strings.ReplaceAll(name, " ", "_")+".yaml")
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			if err := loadFromFile(Default(), configPath); err == nil {
				t.Error("expected error loading invalid YAML, got nil")
			}
		})
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(configPath, nil, 0644); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Errorf("empty file should load, got %v", err)
	}
	if cfg.Compiler.Tool != "glslc" {
		t.Errorf("empty file changed defaults: %+v", cfg.Compiler)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/shaderpack.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"inferred tool", func(c *Config) { c.Compiler.Tool = "" }, false},
		{"unknown tool", func(c *Config) { c.Compiler.Tool = "dxc" }, true},
		{"negative workers", func(c *Config) { c.Compiler.Workers = -1 }, true},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }, true},
		{"unknown level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"empty cache dir", func(c *Config) { c.Cache.Dir = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/cache"); got != filepath.Join(home, "cache") {
		t.Errorf("expandHome(~/cache) = %s", got)
	}
	if got := expandHome("/abs/cache"); got != "/abs/cache" {
		t.Errorf("expandHome(/abs/cache) = %s", got)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, FileName)
	if err := os.WriteFile(configPath, []byte("compiler:\n  workers: 2\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path == "" {
		t.Errorf("expected to find %s in current directory", FileName)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "cache flag",
			setup: func() { *flagCache = "/srv/shadercache" },
			verify: func(cfg *Config) {
				if cfg.Cache.Dir != "/srv/shadercache" {
					t.Errorf("expected cache dir /srv/shadercache, got %s", cfg.Cache.Dir)
				}
			},
			teardown: func() { *flagCache = "" },
		},
		{
			name:  "compiler flag",
			setup: func() { *flagCompiler = "/usr/bin/glslangValidator" },
			verify: func(cfg *Config) {
				if cfg.Compiler.Path != "/usr/bin/glslangValidator" {
					t.Errorf("expected compiler path set, got %s", cfg.Compiler.Path)
				}
				if cfg.Compiler.Tool != "" {
					t.Errorf("expected tool inferred from path, got %s", cfg.Compiler.Tool)
				}
			},
			teardown: func() { *flagCompiler = "" },
		},
		{
			name:  "workers flag",
			setup: func() { *flagWorkers = 8 },
			verify: func(cfg *Config) {
				if cfg.Compiler.Workers != 8 {
					t.Errorf("expected 8 workers, got %d", cfg.Compiler.Workers)
				}
			},
			teardown: func() { *flagWorkers = 0 },
		},
		{
			name:  "disjoint flag",
			setup: func() { *flagDisjoint = true },
			verify: func(cfg *Config) {
				if !cfg.Bindings.Disjoint {
					t.Error("expected disjoint bindings with disjoint flag")
				}
			},
			teardown: func() { *flagDisjoint = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, FileName)

	yamlContent := `
cache:
  dir: ` + filepath.ToSlash(filepath.Join(tmpDir, "cache")) + `
compiler:
  workers: 2
  target_env: vulkan1.3
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWorkers = 6
	defer func() {
		*flagConfig = ""
		*flagWorkers = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// flag beats file
	if cfg.Compiler.Workers != 6 {
		t.Errorf("expected 6 workers from flag, got %d", cfg.Compiler.Workers)
	}
	// file beats default
	if cfg.Compiler.TargetEnv != "vulkan1.3" {
		t.Errorf("expected target env from file, got %s", cfg.Compiler.TargetEnv)
	}
	// default survives
	if cfg.Compiler.Tool != "glslc" {
		t.Errorf("expected default tool, got %s", cfg.Compiler.Tool)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg := Default()
	cfg.Compiler.Workers = 3
	cfg.Watch.Debounce = 2 * time.Second
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reloading saved config: %v", err)
	}
	if loaded.Compiler.Workers != 3 || loaded.Watch.Debounce != 2*time.Second {
		t.Errorf("saved config did not round trip: %+v %+v", loaded.Compiler, loaded.Watch)
	}
}
