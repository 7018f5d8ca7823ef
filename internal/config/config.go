package config

// Configuration loading and validation for udsinfo

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tturner/udsinfo/internal/errors"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "udsinfo.yaml"

// DoIPConfig holds the transport settings
type DoIPConfig struct {
	TCPPort          int    `yaml:"tcp_port"`
	ProtocolVersion  uint8  `yaml:"protocol_version"`
	SourceAddress    uint16 `yaml:"source_address"`
	ActivationType   uint8  `yaml:"activation_type"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
}

// UDSConfig holds the diagnostic client timing
type UDSConfig struct {
	P2TimeoutMs      int  `yaml:"p2_timeout_ms"`
	P2StarTimeoutMs  int  `yaml:"p2_star_timeout_ms"`
	RequestTimeoutMs int  `yaml:"request_timeout_ms"`       // whole request, response-pending answers included
	ProbeOnOpen      bool `yaml:"probe_on_open,omitempty"` // send TesterPresent when the client opens
}

// RetryConfig bounds connection attempts
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	DelayMs     int `yaml:"delay_ms"`
}

// MQTTConfig controls publishing of the read record.
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables publishing
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// OutputConfig selects where a read goes besides stdout
type OutputConfig struct {
	Format      string     `yaml:"format"` // "json" or "table"
	MetricsFile string     `yaml:"metrics_file"`
	PcapFile    string     `yaml:"pcap_file"`
	HistoryDB   string     `yaml:"history_db"`
	MQTT        MQTTConfig `yaml:"mqtt"`
}

// SimulatedDID is one identifier answered by the simulator. Exactly one of
// ASCII, Hex or NRC is set.
type SimulatedDID struct {
	DID   uint16 `yaml:"did"`
	ASCII string `yaml:"ascii,omitempty"`
	Hex   string `yaml:"hex,omitempty"`
	NRC   uint8  `yaml:"nrc,omitempty"`
}

// Value returns the response bytes of a non-NRC entry.
func (d SimulatedDID) Value() ([]byte, error) {
	if d.Hex != "" {
		return hex.DecodeString(d.Hex)
	}
	return []byte(d.ASCII), nil
}

// SimulatorConfig configures the serve command
type SimulatorConfig struct {
	Listen          string         `yaml:"listen"`
	LogicalAddress  uint16         `yaml:"logical_address"`
	ResponsePending int            `yaml:"response_pending"` // NRC 0x78 frames sent before each answer
	DataIdentifiers []SimulatedDID `yaml:"data_identifiers"`
}

// Config is the udsinfo configuration file
type Config struct {
	DoIP      DoIPConfig      `yaml:"doip"`
	UDS       UDSConfig       `yaml:"uds"`
	Retry     RetryConfig     `yaml:"retry"`
	Output    OutputConfig    `yaml:"output"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// ConnectTimeout returns the DoIP connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.DoIP.ConnectTimeoutMs) * time.Millisecond
}

// P2Timeout returns the UDS P2 timeout.
func (c *Config) P2Timeout() time.Duration {
	return time.Duration(c.UDS.P2TimeoutMs) * time.Millisecond
}

// RequestTimeout returns the overall UDS request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.UDS.RequestTimeoutMs) * time.Millisecond
}

// P2StarTimeout returns the UDS P2* timeout.
func (c *Config) P2StarTimeout() time.Duration {
	return time.Duration(c.UDS.P2StarTimeoutMs) * time.Millisecond
}

// RetryDelay returns the fixed delay between connection attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelayMs) * time.Millisecond
}

// CreateDefaultConfig creates the built-in configuration
func CreateDefaultConfig() *Config {
	return &Config{
		DoIP: DoIPConfig{
			TCPPort:          13400,
			ProtocolVersion:  0x02,
			SourceAddress:    0x0E00,
			ActivationType:   0x00,
			ConnectTimeoutMs: 5000,
		},
		UDS: UDSConfig{
			P2TimeoutMs:      1000,
			P2StarTimeoutMs:  5000,
			RequestTimeoutMs: 5000,
		},
		Retry: RetryConfig{
			MaxAttempts: 5,
			DelayMs:     10000,
		},
		Output: OutputConfig{
			Format: "json",
			MQTT: MQTTConfig{
				Topic:    "vehicle/uds-info",
				ClientID: "udsinfo",
			},
		},
		Simulator: SimulatorConfig{
			Listen:         "127.0.0.1:13400",
			LogicalAddress: 0x0545,
			DataIdentifiers: []SimulatedDID{
				{DID: 0xF18C, ASCII: "SN4711000815\x00\x00\x00\x00"},
				{DID: 0xF075, ASCII: "TCU-EU\x00\x00\x00\x00"},
				{DID: 0xF18A, ASCII: "SUPPL-0042"},
				{DID: 0xF191, ASCII: "HW-1.2.0"},
				{DID: 0xF187, ASCII: "8W0907468"},
				{DID: 0xF011, Hex: "0007"},
			},
		},
	}
}

// WriteDefaultConfig writes the default configuration to a file
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(CreateDefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadConfig loads the configuration from a YAML file. A missing file yields
// the defaults when explicit is false and a config error otherwise. Keys
// absent from the file keep their default values.
func LoadConfig(path string, explicit bool) (*Config, error) {
	cfg := CreateDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		if os.IsNotExist(err) {
			return nil, errors.WrapConfigError(fmt.Errorf("config file not found: %s", path), path)
		}
		return nil, errors.WrapConfigError(fmt.Errorf("read config file: %w", err), path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("validate config: %w", err), path)
	}
	return cfg, nil
}

// ValidateConfig checks ranges and enumerations
func ValidateConfig(cfg *Config) error {
	if cfg.DoIP.TCPPort <= 0 || cfg.DoIP.TCPPort > 65535 {
		return fmt.Errorf("doip.tcp_port must be 1-65535, got %d", cfg.DoIP.TCPPort)
	}
	if cfg.DoIP.ConnectTimeoutMs <= 0 {
		return fmt.Errorf("doip.connect_timeout_ms must be positive")
	}
	if cfg.UDS.P2TimeoutMs <= 0 || cfg.UDS.P2StarTimeoutMs <= 0 {
		return fmt.Errorf("uds timeouts must be positive")
	}
	if cfg.UDS.P2StarTimeoutMs < cfg.UDS.P2TimeoutMs {
		return fmt.Errorf("uds.p2_star_timeout_ms (%d) must not be below uds.p2_timeout_ms (%d)",
			cfg.UDS.P2StarTimeoutMs, cfg.UDS.P2TimeoutMs)
	}
	if cfg.UDS.RequestTimeoutMs < cfg.UDS.P2TimeoutMs {
		return fmt.Errorf("uds.request_timeout_ms (%d) must not be below uds.p2_timeout_ms (%d)",
			cfg.UDS.RequestTimeoutMs, cfg.UDS.P2TimeoutMs)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.DelayMs < 0 {
		return fmt.Errorf("retry.delay_ms must not be negative")
	}
	switch cfg.Output.Format {
	case "json", "table":
	default:
		return fmt.Errorf("output.format must be json or table, got %q", cfg.Output.Format)
	}
	if cfg.Output.MQTT.Broker != "" && cfg.Output.MQTT.Topic == "" {
		return fmt.Errorf("output.mqtt.topic is required when a broker is set")
	}
	return validateSimulator(cfg.Simulator)
}

func validateSimulator(sim SimulatorConfig) error {
	if _, _, err := net.SplitHostPort(sim.Listen); err != nil {
		return fmt.Errorf("simulator.listen: %w", err)
	}
	seen := make(map[uint16]bool, len(sim.DataIdentifiers))
	for i, d := range sim.DataIdentifiers {
		if seen[d.DID] {
			return fmt.Errorf("simulator.data_identifiers[%d]: duplicate DID 0x%04X", i, d.DID)
		}
		seen[d.DID] = true

		set := 0
		if d.ASCII != "" {
			set++
		}
		if d.Hex != "" {
			set++
		}
		if d.NRC != 0 {
			set++
		}
		if set > 1 {
			return fmt.Errorf("simulator.data_identifiers[%d]: ascii, hex and nrc are mutually exclusive", i)
		}
		if _, err := d.Value(); err != nil {
			return fmt.Errorf("simulator.data_identifiers[%d]: hex: %w", i, err)
		}
	}
	if sim.ResponsePending < 0 {
		return fmt.Errorf("simulator.response_pending must not be negative")
	}
	return nil
}
