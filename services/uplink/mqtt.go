//go:build !(rp2040 || rp2350)

package uplink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"envnode-go/errcode"
)

// MQTTConfig selects a broker and channel for MQTTClient.
type MQTTConfig struct {
	Broker    string // tcp://mqtt3.thingspeak.com:1883
	ClientID  string
	Username  string
	Password  string
	ChannelID string
	Timeout   time.Duration
}

// MQTTClient publishes the form body to channels/<id>/publish, the
// ThingSpeak MQTT equivalent of the HTTP update call.
type MQTTClient struct {
	cfg    MQTTConfig
	client mqtt.Client
	log    *slog.Logger
}

func NewMQTTClient(cfg MQTTConfig, log *slog.Logger) *MQTTClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(cfg.Timeout)
	// Reconnects happen on the next upload tick, not in the background.
	opts.SetAutoReconnect(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})
	return &MQTTClient{cfg: cfg, client: mqtt.NewClient(opts), log: log}
}

// Topic is the channel publish topic.
func (c *MQTTClient) Topic() string { return fmt.Sprintf("channels/%s/publish", c.cfg.ChannelID) }

func (c *MQTTClient) Upload(ctx context.Context, u Update) error {
	if !c.client.IsConnected() {
		tok := c.client.Connect()
		if err := wait(ctx, tok, c.cfg.Timeout); err != nil {
			return errcode.Wrap(errcode.NetworkConnect, "mqtt connect "+c.cfg.Broker, err)
		}
		c.log.Info("mqtt connected", "broker", c.cfg.Broker)
	}
	body := FormBody(u.Fields(false))
	tok := c.client.Publish(c.Topic(), 0, false, body)
	if err := wait(ctx, tok, c.cfg.Timeout); err != nil {
		return errcode.Wrap(errcode.NetworkSend, "mqtt publish "+c.Topic(), err)
	}
	c.log.Info("upload published", "topic", c.Topic(), "body", body)
	return nil
}

// Close disconnects, allowing in-flight work 250ms to finish.
func (c *MQTTClient) Close() {
	if c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

func wait(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	const poll = 100 * time.Millisecond
	deadline := time.Now().Add(timeout)
	for !tok.WaitTimeout(poll) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return errcode.Wrap(errcode.Error, "mqtt", context.DeadlineExceeded)
		}
	}
	return tok.Error()
}
