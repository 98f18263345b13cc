package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "tick_rate_hz: 120\nball:\n  radius: 12\n  mass: 1\n  damping: 0.98\n"
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 120 || tu.Ball.Radius != 12 {
		t.Fatalf("overrides not applied: %+v", tu)
	}
	if tu.Player.Radius != Defaults().Player.Radius {
		t.Fatalf("untouched field lost default: %+v", tu.Player)
	}
	if tu.FixedDt() != 1.0/120 {
		t.Fatalf("fixed dt: got=%v", tu.FixedDt())
	}
}

func TestLoadRejectsBadDamping(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("player:\n  radius: 15\n  mass: 2\n  damping: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(p)
	if err == nil || !strings.Contains(err.Error(), "player.damping") {
		t.Fatalf("expected damping error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}

func TestShippedTuningMatchesDefaults(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu != Defaults() {
		t.Fatalf("configs/tuning.yaml drifted from Defaults:\n got=%+v\nwant=%+v", tu, Defaults())
	}
}
