package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTemp(t, "config.json", `{
		"role": "Initiator",
		"staticKeyFile": "static.hex",
		"prologue": "deadbeef",
		"transport": {"roundTrips": 10}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Role != "initiator" {
		t.Fatalf("role not normalised: %q", cfg.Role)
	}
	if cfg.EffectiveRoundTrips() != 10 {
		t.Fatalf("got %d round trips, want 10", cfg.EffectiveRoundTrips())
	}
	prologue, err := cfg.PrologueBytes()
	if err != nil {
		t.Fatalf("PrologueBytes: %v", err)
	}
	if string(prologue) != "\xde\xad\xbe\xef" {
		t.Fatalf("got %x want deadbeef", prologue)
	}
}

func TestLoadRejectsUnknownRole(t *testing.T) {
	path := writeTemp(t, "config.json", `{"role": "eavesdropper", "staticKeyFile": "k"}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unknown role")
	}
}

func TestLoadRejectsMissingStaticKeyFile(t *testing.T) {
	path := writeTemp(t, "config.json", `{"role": "responder"}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a missing staticKeyFile")
	}
}

func TestLoadDefaultsLoggingFields(t *testing.T) {
	path := writeTemp(t, "config.json", `{"role": "initiator", "staticKeyFile": "k"}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("got level %q want info", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "stderr" {
		t.Fatalf("got output %q want stderr", cfg.Logging.Output)
	}
}

func TestEffectiveRoundTripsDefault(t *testing.T) {
	cfg := &Config{}
	if cfg.EffectiveRoundTrips() != 4 {
		t.Fatalf("got %d want default 4", cfg.EffectiveRoundTrips())
	}
}

func TestLoadStaticKeyRoundTrip(t *testing.T) {
	path := writeTemp(t, "static.hex", "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20\n")
	key, err := LoadStaticKey(path)
	if err != nil {
		t.Fatalf("LoadStaticKey: %v", err)
	}
	if key[0] != 0x01 || key[31] != 0x20 {
		t.Fatalf("unexpected key bytes: %x", key)
	}
}

func TestLoadStaticKeyRejectsWrongLength(t *testing.T) {
	path := writeTemp(t, "static.hex", "aabb")
	if _, err := LoadStaticKey(path); err == nil {
		t.Fatalf("expected an error for a short key")
	}
}
