package publish

// One-shot MQTT publishing of a finished read

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tturner/udsinfo/internal/logging"
)

const (
	DefaultTopic    = "vehicle/uds-info"
	DefaultClientID = "udsinfo"
	DefaultTimeout  = 5 * time.Second

	qosAtLeastOnce = 1
)

// Config holds the broker settings
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Timeout  time.Duration
}

// Publisher sends payloads to an MQTT broker.
type Publisher struct {
	config    Config
	logger    *logging.Logger
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewPublisher creates a publisher; defaults fill empty settings.
func NewPublisher(config Config, logger *logging.Logger) *Publisher {
	if config.ClientID == "" {
		config.ClientID = DefaultClientID
	}
	if config.Topic == "" {
		config.Topic = DefaultTopic
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Publisher{config: config, logger: logger, newClient: mqtt.NewClient}
}

// Publish connects, sends payload once with QoS 1 (not retained) and
// disconnects.
func (p *Publisher) Publish(payload []byte) error {
	if p.config.Broker == "" {
		return errors.New("no MQTT broker configured")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(p.config.Timeout)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		p.logger.Error("MQTT connection lost: %v", err)
	})

	client := p.newClient(opts)
	if err := wait(client.Connect(), p.config.Timeout); err != nil {
		return fmt.Errorf("connect to MQTT broker %s: %w", p.config.Broker, err)
	}
	defer client.Disconnect(250)
	p.logger.Verbose("Connected to MQTT broker %s", p.config.Broker)

	if err := wait(client.Publish(p.config.Topic, qosAtLeastOnce, false, payload), p.config.Timeout); err != nil {
		return fmt.Errorf("publish to %s: %w", p.config.Topic, err)
	}
	p.logger.Info("Published %d bytes to MQTT topic %s", len(payload), p.config.Topic)
	return nil
}

func wait(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out after %v", timeout)
	}
	return token.Error()
}
