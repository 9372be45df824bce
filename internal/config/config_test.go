package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daysim.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SampleSize != 30 {
		t.Fatalf("SampleSize = %d, want 30", cfg.SampleSize)
	}
	if cfg.Workers < 1 {
		t.Fatalf("Workers = %d, want >= 1", cfg.Workers)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
db_path: run.db
workers: 3
sample_size: 12
passes: 4
distance_decay: 0.25
`)
	t.Setenv("DAYSIM_WORKERS", "6")
	t.Setenv("DAYSIM_DB_PATH", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "run.db" {
		t.Fatalf("DBPath = %q, want run.db", cfg.DBPath)
	}
	if cfg.Workers != 6 {
		t.Fatalf("Workers = %d, want 6 (env wins)", cfg.Workers)
	}
	if cfg.SampleSize != 12 || cfg.Passes != 4 {
		t.Fatalf("SampleSize/Passes = %d/%d, want 12/4", cfg.SampleSize, cfg.Passes)
	}
	if cfg.DistanceDecay != 0.25 {
		t.Fatalf("DistanceDecay = %v, want 0.25", cfg.DistanceDecay)
	}
	// Keys absent from the file keep their defaults.
	if cfg.CoefficientsPath != "data/coefficients.yaml" {
		t.Fatalf("CoefficientsPath = %q, want default", cfg.CoefficientsPath)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{"zero workers", "workers: 0\n", nil},
		{"negative decay", "distance_decay: -1\n", nil},
		{"bad yaml", "workers: [\n", nil},
		{"bad env int", "", map[string]string{"DAYSIM_SAMPLE_SIZE": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, tt.yaml)
			if _, err := Load(path); err == nil {
				t.Fatalf("Load succeeded, want error")
			}
		})
	}
}

func TestGet(t *testing.T) {
	t.Setenv("DAYSIM_TEST_KEY", "  value ")
	if got := Get("DAYSIM_TEST_KEY", "fallback"); got != "value" {
		t.Fatalf("Get = %q, want value", got)
	}
	if got := Get("DAYSIM_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("Get = %q, want fallback", got)
	}
}
