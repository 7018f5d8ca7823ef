package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "port zero", mutate: func(c *Config) { c.DoIP.TCPPort = 0 }, wantErr: "tcp_port"},
		{name: "port too large", mutate: func(c *Config) { c.DoIP.TCPPort = 70000 }, wantErr: "tcp_port"},
		{name: "zero attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "negative delay", mutate: func(c *Config) { c.Retry.DelayMs = -1 }, wantErr: "delay_ms"},
		{name: "zero delay allowed", mutate: func(c *Config) { c.Retry.DelayMs = 0 }},
		{name: "p2 star below p2", mutate: func(c *Config) { c.UDS.P2StarTimeoutMs = 500 }, wantErr: "p2_star"},
		{name: "request timeout below p2", mutate: func(c *Config) { c.UDS.RequestTimeoutMs = 200 }, wantErr: "request_timeout_ms"},
		{name: "unknown format", mutate: func(c *Config) { c.Output.Format = "xml" }, wantErr: "format"},
		{name: "broker without topic", mutate: func(c *Config) {
			c.Output.MQTT.Broker = "tcp://127.0.0.1:1883"
			c.Output.MQTT.Topic = ""
		}, wantErr: "topic"},
		{name: "bad listen address", mutate: func(c *Config) { c.Simulator.Listen = "13400" }, wantErr: "simulator.listen"},
		{name: "duplicate simulated DID", mutate: func(c *Config) {
			c.Simulator.DataIdentifiers = append(c.Simulator.DataIdentifiers, SimulatedDID{DID: 0xF18C, ASCII: "x"})
		}, wantErr: "duplicate"},
		{name: "bad hex", mutate: func(c *Config) {
			c.Simulator.DataIdentifiers = []SimulatedDID{{DID: 0xF011, Hex: "zz"}}
		}, wantErr: "hex"},
		{name: "ascii and nrc", mutate: func(c *Config) {
			c.Simulator.DataIdentifiers = []SimulatedDID{{DID: 0xF011, ASCII: "a", NRC: 0x31}}
		}, wantErr: "mutually exclusive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CreateDefaultConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateConfig() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("ValidateConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udsinfo.yaml")

	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig(default path) error = %v", err)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.RetryDelay().Seconds() != 10 {
		t.Errorf("defaults not applied: %+v", cfg.Retry)
	}

	if _, err := LoadConfig(path, true); err == nil {
		t.Fatal("explicit missing config should fail")
	} else if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udsinfo.yaml")
	content := `
doip:
  tcp_port: 13401
  source_address: 0x0E80
retry:
  max_attempts: 2
output:
  format: table
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DoIP.TCPPort != 13401 || cfg.DoIP.SourceAddress != 0x0E80 {
		t.Errorf("doip section: %+v", cfg.DoIP)
	}
	if cfg.Retry.MaxAttempts != 2 || cfg.Retry.DelayMs != 10000 {
		t.Errorf("retry section: %+v", cfg.Retry)
	}
	if cfg.Output.Format != "table" {
		t.Errorf("format = %q", cfg.Output.Format)
	}
	if cfg.UDS.P2TimeoutMs != 1000 || cfg.DoIP.ProtocolVersion != 0x02 {
		t.Error("omitted keys should keep their defaults")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "doip: [tcp_port"},
		{"invalid value", "retry:\n  max_attempts: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, err := LoadConfig(path, true)
			if err == nil || !strings.Contains(err.Error(), path) {
				t.Fatalf("LoadConfig() error = %v, want config error naming %s", err, path)
			}
		})
	}
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udsinfo.yaml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig() error = %v", err)
	}
	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(cfg.Simulator.DataIdentifiers) != 6 {
		t.Errorf("simulated DIDs = %d, want 6", len(cfg.Simulator.DataIdentifiers))
	}
	value, err := cfg.Simulator.DataIdentifiers[0].Value()
	if err != nil || string(value) != "SN4711000815\x00\x00\x00\x00" {
		t.Errorf("first DID value = %q, %v", value, err)
	}
}
