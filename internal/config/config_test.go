package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/acoustic-scene/internal/solver"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Acoustics.SampleRate != 44100 {
		t.Errorf("expected sample rate 44100, got %d", cfg.Acoustics.SampleRate)
	}
	if cfg.Acoustics.IRTime != 4.0 {
		t.Errorf("expected ir time 4.0, got %f", cfg.Acoustics.IRTime)
	}
	if cfg.Acoustics.WriteIRToFile {
		t.Error("expected write_ir_to_file to be false by default")
	}
	if cfg.Listener != solver.DefaultChannelLayout() {
		t.Errorf("expected default layout, got %+v", cfg.Listener)
	}
	if cfg.Output.Directory != "output/sim" {
		t.Errorf("expected output directory output/sim, got %s", cfg.Output.Directory)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "scene.yaml")

	yamlContent := `
acoustics:
  sample_rate: 48000
  ir_time: 1.5
  indirect_ray_count: 2000
  write_ir_to_file: true
  materials_json: "materials/default.json"

listener:
  type: binaural
  count: 2

output:
  directory: "/data/run"

logging:
  level: "debug"
  log_file: "scene.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Acoustics.SampleRate != 48000 {
		t.Errorf("expected sample rate 48000, got %d", cfg.Acoustics.SampleRate)
	}
	if cfg.Acoustics.IRTime != 1.5 {
		t.Errorf("expected ir time 1.5, got %f", cfg.Acoustics.IRTime)
	}
	if cfg.Acoustics.IndirectRayCount != 2000 {
		t.Errorf("expected ray count 2000, got %d", cfg.Acoustics.IndirectRayCount)
	}
	if !cfg.Acoustics.WriteIRToFile {
		t.Error("expected write_ir_to_file to be true")
	}
	if cfg.Acoustics.MaterialsJSON != "materials/default.json" {
		t.Errorf("expected materials_json materials/default.json, got %q", cfg.Acoustics.MaterialsJSON)
	}
	// Unset keys keep their defaults.
	if cfg.Acoustics.FrequencyBands != 4 {
		t.Errorf("expected frequency bands 4, got %d", cfg.Acoustics.FrequencyBands)
	}
	if cfg.Listener.Type != solver.ChannelBinaural || cfg.Listener.Count != 2 {
		t.Errorf("expected binaural/2, got %+v", cfg.Listener)
	}
	if cfg.Output.Directory != "/data/run" {
		t.Errorf("expected output /data/run, got %s", cfg.Output.Directory)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "scene.log" {
		t.Errorf("expected log file 'scene.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "scene.toml")

	tomlContent := `
[acoustics]
sample_rate = 22050
diffraction = false

[listener]
type = "mono"
count = 1

[output]
directory = "sim/out"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Acoustics.SampleRate != 22050 {
		t.Errorf("expected sample rate 22050, got %d", cfg.Acoustics.SampleRate)
	}
	if cfg.Acoustics.Diffraction {
		t.Error("expected diffraction to be false")
	}
	if !cfg.Acoustics.Transmission {
		t.Error("expected transmission to keep its default")
	}
	if cfg.Listener.Type != solver.ChannelMono {
		t.Errorf("expected mono, got %s", cfg.Listener.Type)
	}
	if cfg.Output.Directory != "sim/out" {
		t.Errorf("expected output sim/out, got %s", cfg.Output.Directory)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level to keep default, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	files := map[string]string{
		"invalid.yaml": "acoustics:\n  sample_rate: not a number\n  invalid syntax here\n",
		"invalid.toml": "[acoustics\nsample_rate = 1\n",
		"layout.yaml":  "listener:\n  type: surround\n",
	}
	for name, content := range files {
		configPath := filepath.Join(tmpDir, name)
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if err := loadFromFile(Default(), configPath); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/scene.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sample rate", func(c *Config) { c.Acoustics.SampleRate = 0 }},
		{"layout", func(c *Config) { c.Listener = solver.ChannelLayout{Type: solver.ChannelMono, Count: 2} }},
		{"output", func(c *Config) { c.Output.Directory = "" }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	cfg := Default()
	cfg.Acoustics.SampleRate = -1
	if code := solver.CodeOf(cfg.Validate()); code != solver.CodeBadSampleRate {
		t.Errorf("expected solver code %s, got %s", solver.CodeBadSampleRate, code)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile("scene.toml", []byte("[output]\ndirectory = \"x\"\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); filepath.Base(path) != "scene.toml" {
		t.Errorf("expected to find scene.toml, got %q", path)
	}

	// YAML wins when both exist.
	if err := os.WriteFile("scene.yaml", []byte("output:\n  directory: y\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); filepath.Base(path) != "scene.yaml" {
		t.Errorf("expected to find scene.yaml, got %q", path)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(*testing.T, *Config)
	}{
		{
			name: "debug flag",
			args: []string{"-debug"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name: "output flag",
			args: []string{"-output", "/tmp/run"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Output.Directory != "/tmp/run" {
					t.Errorf("expected output /tmp/run, got %s", cfg.Output.Directory)
				}
			},
		},
		{
			name: "binaural flag",
			args: []string{"-channels", "Binaural"},
			verify: func(t *testing.T, cfg *Config) {
				want := solver.ChannelLayout{Type: solver.ChannelBinaural, Count: 2}
				if cfg.Listener != want {
					t.Errorf("expected %+v, got %+v", want, cfg.Listener)
				}
			},
		},
		{
			name: "rate and write-ir flags",
			args: []string{"-rate", "16000", "-write-ir"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Acoustics.SampleRate != 16000 {
					t.Errorf("expected sample rate 16000, got %d", cfg.Acoustics.SampleRate)
				}
				if !cfg.Acoustics.WriteIRToFile {
					t.Error("expected write_ir_to_file to be enabled")
				}
			},
		},
		{
			name: "materials flag",
			args: []string{"-materials", "mats.json"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Acoustics.MaterialsJSON != "mats.json" {
					t.Errorf("expected materials mats.json, got %q", cfg.Acoustics.MaterialsJSON)
				}
			},
		},
		{
			name: "no flags",
			args: nil,
			verify: func(t *testing.T, cfg *Config) {
				if *cfg != *Default() {
					t.Errorf("expected defaults, got %+v", cfg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			f := BindFlags(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("parse: %v", err)
			}

			cfg := Default()
			if err := applyFlags(cfg, f); err != nil {
				t.Fatalf("applyFlags: %v", err)
			}
			tt.verify(t, cfg)
		})
	}
}

func TestApplyFlagsBadChannels(t *testing.T) {
	cfg := Default()
	if err := applyFlags(cfg, &Flags{Channels: "quad"}); err == nil {
		t.Error("expected error for unknown channel type")
	}

	cfg = Default()
	if err := applyFlags(cfg, &Flags{Channels: "unknown"}); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown layout to fail validation")
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "scene.yaml")

	yamlContent := `
acoustics:
  sample_rate: 32000
output:
  directory: "from/file"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(&Flags{Config: configPath, Output: "from/flag"})
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Output should be from flag, not file
	if cfg.Output.Directory != "from/flag" {
		t.Errorf("expected output from flag, got %s", cfg.Output.Directory)
	}
	// Sample rate should be from file since no flag override
	if cfg.Acoustics.SampleRate != 32000 {
		t.Errorf("expected sample rate 32000 from file, got %d", cfg.Acoustics.SampleRate)
	}

	opts := cfg.SessionOptions()
	if opts.OutputDirectory != "from/flag" || opts.Solver.SampleRate != 32000 || opts.Layout != cfg.Listener {
		t.Errorf("session options do not match config: %+v", opts)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(configPath, []byte("acoustics:\n  thread_count: 0\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(&Flags{Config: configPath})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	for _, name := range []string{"scene.yaml", "scene.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := Default()
			cfg.Acoustics.SampleRate = 96000
			cfg.Acoustics.UnitScale = 0.5
			cfg.Listener = solver.ChannelLayout{Type: solver.ChannelAmbisonics, Count: 9}
			cfg.Logging.LogFile = "run.log"

			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo: %v", err)
			}

			loaded := Default()
			if err := loadFromFile(loaded, path); err != nil {
				t.Fatalf("loadFromFile: %v", err)
			}
			if *loaded != *cfg {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
			}
		})
	}
}

func TestLogFileConfig(t *testing.T) {
	cfg := Default()
	if fc := cfg.LogFileConfig(); fc.Path != "" {
		t.Errorf("expected no file logging, got %+v", fc)
	}

	cfg.Logging.LogFile = "scene.log"
	cfg.Logging.MaxSizeMB = 5
	fc := cfg.LogFileConfig()
	if fc.Path != "scene.log" || fc.MaxSizeMB != 5 || fc.MaxBackups != 3 || !fc.Compress {
		t.Errorf("unexpected file config %+v", fc)
	}
}
