package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultRejectDistanceCoversBondDistance(t *testing.T) {
	b := DefaultBonding()
	if b.RejectDistance < b.BondDistance {
		t.Errorf("reject distance %g < bond distance %g", b.RejectDistance, b.BondDistance)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Physics.Friction = 1.5
	cfg.Physics.TickRate = 0
	cfg.Bonding.RejectDistance = cfg.Bonding.BondDistance - 1
	cfg.Classifier.Provider = "oracle"
	cfg.Server.TrustedProxies = []string{"10.0.0.0/8", "proxy.local"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"friction", "tick_rate", "reject_distance", "oracle", "proxy.local"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "4100")
	t.Setenv("MAX_ATOMS", "42")
	t.Setenv("SPAWN_INTERVAL", "250ms")
	t.Setenv("PHYSICS_FRICTION", "0.9")
	t.Setenv("INITIAL_ATOMS", "0")

	cfg := Load()

	if cfg.Server.Port != 4100 {
		t.Errorf("port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Spawn.MaxAtoms != 42 {
		t.Errorf("max atoms = %d, want 42", cfg.Spawn.MaxAtoms)
	}
	if cfg.Spawn.Interval != 250*time.Millisecond {
		t.Errorf("interval = %v, want 250ms", cfg.Spawn.Interval)
	}
	if cfg.Physics.Friction != 0.9 {
		t.Errorf("friction = %g, want 0.9", cfg.Physics.Friction)
	}
	if cfg.Session.InitialAtoms != 0 {
		t.Errorf("initial atoms = %d, want 0", cfg.Session.InitialAtoms)
	}
}

func TestInvalidEnvValueKeepsDefault(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("SPAWN_INTERVAL", "soon")

	cfg := Load()
	if cfg.Server.Port != DefaultServer().Port {
		t.Errorf("port = %d, want default", cfg.Server.Port)
	}
	if cfg.Spawn.Interval != DefaultSpawn().Interval {
		t.Errorf("interval = %v, want default", cfg.Spawn.Interval)
	}
}

func TestAnthropicKeySwitchesProvider(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg := ClassifierFromEnv(DefaultClassifier())
	if cfg.Provider != "anthropic" {
		t.Errorf("provider = %q, want anthropic", cfg.Provider)
	}
	if cfg.APIKey != "sk-test" {
		t.Errorf("api key not picked up")
	}

	t.Setenv("CLASSIFIER_PROVIDER", "fallback")
	cfg = ClassifierFromEnv(DefaultClassifier())
	if cfg.Provider != "fallback" {
		t.Errorf("explicit provider ignored, got %q", cfg.Provider)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	content := `
arena:
  width: 800
physics:
  spring_k: 0.2
spawn:
  interval: 2s
classifier:
  provider: fallback
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Arena.Width != 800 {
		t.Errorf("width = %g, want 800", cfg.Arena.Width)
	}
	if cfg.Arena.Height != DefaultArena().Height {
		t.Errorf("height = %g, want default %g", cfg.Arena.Height, DefaultArena().Height)
	}
	if cfg.Physics.SpringK != 0.2 {
		t.Errorf("spring_k = %g, want 0.2", cfg.Physics.SpringK)
	}
	if cfg.Spawn.Interval != 2*time.Second {
		t.Errorf("interval = %v, want 2s", cfg.Spawn.Interval)
	}
	if cfg.Physics.Friction != DefaultPhysics().Friction {
		t.Errorf("friction should keep default")
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("arena: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(bad); err == nil {
		t.Error("expected parse error")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("bonding:\n  bond_distance: 90\n  reject_distance: 60\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(invalid); err == nil {
		t.Error("expected validation error")
	}
}
