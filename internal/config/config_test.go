package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Faultbox/modelpack/internal/convert"
	"github.com/Faultbox/modelpack/internal/logger"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Convert.TexturePrefix != "models/" {
		t.Errorf("expected prefix 'models/', got %s", cfg.Convert.TexturePrefix)
	}
	if cfg.Convert.InfluencePolicy != "truncate" {
		t.Errorf("expected policy 'truncate', got %s", cfg.Convert.InfluencePolicy)
	}
	if cfg.Convert.DefaultTicksPerSecond != 25 {
		t.Errorf("expected 25 ticks per second, got %v", cfg.Convert.DefaultTicksPerSecond)
	}
	if cfg.Output.Dir != "" {
		t.Errorf("expected empty output dir, got %s", cfg.Output.Dir)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("default options invalid: %v", err)
	}
	if opts != convert.DefaultOptions() {
		t.Errorf("Options() = %+v, want %+v", opts, convert.DefaultOptions())
	}
}

func TestOptionsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown policy", func(c *Config) { c.Convert.InfluencePolicy = "average" }},
		{"empty policy", func(c *Config) { c.Convert.InfluencePolicy = "" }},
		{"negative animation", func(c *Config) { c.Convert.AnimationIndex = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if _, err := cfg.Options(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), FileName)

	yamlContent := `
convert:
  texture_prefix: "chars/"
  influence_policy: reject
  animation_index: 2
  default_ticks_per_second: 30
  looping: false

output:
  dir: "build/models"

logging:
  level: "debug"
  log_file: "h3dtool.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opts.TexturePrefix != "chars/" || opts.InfluencePolicy != convert.PolicyReject {
		t.Errorf("convert section not applied: %+v", opts)
	}
	if opts.AnimationIndex != 2 || opts.DefaultTicksPerSecond != 30 || opts.Looping {
		t.Errorf("animation settings not applied: %+v", opts)
	}
	// Keys absent from the file keep their defaults.
	if opts.WeightTolerance != 1e-5 {
		t.Errorf("expected default weight tolerance, got %v", opts.WeightTolerance)
	}
	if cfg.Output.Dir != "build/models" {
		t.Errorf("expected output dir build/models, got %s", cfg.Output.Dir)
	}
	if cfg.Logging.LogFile != "h3dtool.log" {
		t.Errorf("expected log file h3dtool.log, got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("convert:\n  animation_index: [1\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"invalid yaml", invalid},
		{"missing file", "/nonexistent/path/h3dtool.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := loadFromFile(Default(), tt.path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS == "linux" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		if got := ConfigDir(); got != "/tmp/xdg/h3dtool" {
			t.Errorf("ConfigDir() = %s, want /tmp/xdg/h3dtool", got)
		}
		return
	}
	if dir := ConfigDir(); !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, FileName), []byte("output:\n  dir: out\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path != FileName {
		t.Errorf("expected %s in the working directory, got %q", FileName, path)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "policy flag",
			setup: func() { *flagPolicy = "reject" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Convert.InfluencePolicy != "reject" {
					t.Errorf("expected policy 'reject', got %s", cfg.Convert.InfluencePolicy)
				}
			},
			teardown: func() { *flagPolicy = "" },
		},
		{
			name:  "out and prefix flags",
			setup: func() { *flagOut = "dist"; *flagPrefix = "props/" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Output.Dir != "dist" {
					t.Errorf("expected output dir 'dist', got %s", cfg.Output.Dir)
				}
				if cfg.Convert.TexturePrefix != "props/" {
					t.Errorf("expected prefix 'props/', got %s", cfg.Convert.TexturePrefix)
				}
			},
			teardown: func() { *flagOut = ""; *flagPrefix = "" },
		},
		{
			name:  "no flags",
			setup: func() {},
			verify: func(t *testing.T, cfg *Config) {
				if *cfg != *Default() {
					t.Errorf("expected defaults, got %+v", cfg)
				}
			},
			teardown: func() {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), FileName)
	yamlContent := `
convert:
  texture_prefix: "file/"
  influence_policy: reject
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagPrefix = "flag/"
	defer func() {
		*flagConfig = ""
		*flagPrefix = ""
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Convert.TexturePrefix != "flag/" {
		t.Errorf("expected prefix from flag, got %s", cfg.Convert.TexturePrefix)
	}
	if cfg.Convert.InfluencePolicy != "reject" {
		t.Errorf("expected policy from file, got %s", cfg.Convert.InfluencePolicy)
	}
}

func TestLoadRejectsBadPolicy(t *testing.T) {
	*flagPolicy = "maybe"
	defer func() { *flagPolicy = "" }()
	*flagConfig = filepath.Join(t.TempDir(), "none.yaml")
	defer func() { *flagConfig = "" }()

	// An explicit missing config path is an error before flags apply.
	if _, err := Load(); err == nil {
		t.Error("expected error for missing explicit config")
	}

	*flagConfig = ""
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown policy flag")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg := Default()
	cfg.Output.Dir = "out"

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("reloaded %+v, want %+v", loaded, cfg)
	}
}

func TestSave(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("APPDATA", t.TempDir())
	cfg := Default()
	cfg.Logging.LogFile = "h3dtool.log"

	path, err := cfg.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path != filepath.Join(ConfigDir(), FileName) {
		t.Errorf("saved to %s, want the config directory", path)
	}

	// The saved file is what findConfigFile picks up outside a project.
	chdir(t, t.TempDir())
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}
}

func TestLoggingFile(t *testing.T) {
	cfg := Default()
	cfg.Logging.LogFile = "/var/log/h3dtool.log"

	want := logger.DefaultFileConfig("/var/log/h3dtool.log")
	if got := cfg.Logging.File(); got != want {
		t.Errorf("File() = %+v, want %+v", got, want)
	}
}

// chdir changes the working directory for the duration of the test,
// like testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restoring working directory: %v", err)
		}
	})
}
