// Package config loads the configuration for the noisexx-handshake demo
// binary. The noise package itself takes no configuration: everything
// here describes how the demo wires two local roles together, not how
// the handshake or transport behave.
package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Config is the JSON-loaded shape of a noisexx-handshake run.
type Config struct {
	Role          string        `json:"role"`
	StaticKeyFile string        `json:"staticKeyFile"`
	Prologue      string        `json:"prologue,omitempty"`
	Payloads      PayloadConfig `json:"payloads"`
	Transport     TransportDemo `json:"transport"`
	Logging       LoggingConfig `json:"logging"`
}

// PayloadConfig carries the three handshake-message payloads the demo
// embeds in messages 1-3, plus the post-handshake transport payload.
type PayloadConfig struct {
	Message1  string `json:"message1,omitempty"`
	Message2  string `json:"message2,omitempty"`
	Message3  string `json:"message3,omitempty"`
	Transport string `json:"transport,omitempty"`
}

// TransportDemo controls the post-Upgrade exercise phase.
type TransportDemo struct {
	RoundTrips  int  `json:"roundTrips,omitempty"`
	ReplayGuard bool `json:"replayGuard,omitempty"`
}

// LoggingConfig selects the demo's log verbosity. Output is filled in by
// Load but not read by the demo command, which always logs to stdout.
type LoggingConfig struct {
	Level  string `json:"level"`
	Output string `json:"output"`
}

// Load reads and validates a Config from path, or from stdin if path is "-".
func Load(path string) (*Config, error) {
	var reader io.ReadCloser
	if path == "-" {
		reader = io.NopCloser(os.Stdin)
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		reader = file
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	switch c.Role {
	case "initiator", "responder":
	default:
		return fmt.Errorf("unsupported role %q (want initiator or responder)", c.Role)
	}

	if c.StaticKeyFile == "" {
		return errors.New("staticKeyFile must be provided")
	}

	if c.Transport.RoundTrips < 0 {
		return errors.New("transport.roundTrips cannot be negative")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}

	return nil
}

// EffectiveRoundTrips returns the configured transport demo length,
// defaulting to a handful of messages when unset.
func (c *Config) EffectiveRoundTrips() int {
	if c.Transport.RoundTrips <= 0 {
		return 4
	}
	return c.Transport.RoundTrips
}

// PrologueBytes decodes the configured prologue, which is hex-encoded in
// the JSON file so it can carry arbitrary binary context.
func (c *Config) PrologueBytes() ([]byte, error) {
	if c.Prologue == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(c.Prologue)
	if err != nil {
		return nil, fmt.Errorf("invalid prologue hex: %w", err)
	}
	return b, nil
}

// NormalisedLevel lowercases and trims the configured log level, the way
// the rest of the ambient stack expects it.
func (c *Config) NormalisedLevel() string {
	return strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

// LoadStaticKey reads a hex-encoded 32-byte X25519 scalar from path.
func LoadStaticKey(path string) ([32]byte, error) {
	var key [32]byte
	data, err := os.ReadFile(path)
	if err != nil {
		return key, err
	}
	trimmed := strings.TrimSpace(string(data))
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return key, fmt.Errorf("static key in %q is not valid hex: %w", path, err)
	}
	if len(decoded) != 32 {
		return key, fmt.Errorf("static key in %q must be 32 bytes, got %d", path, len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}
