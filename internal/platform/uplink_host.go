//go:build !(rp2040 || rp2350)

package platform

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"envnode-go/errcode"
	"envnode-go/services/config"
	"envnode-go/services/uplink"
)

// NewUploader builds the configured transport. The returned close func is
// never nil.
func NewUploader(cfg config.Config, log *slog.Logger) (uplink.Uploader, func()) {
	if cfg.Transport == "mqtt" {
		c := uplink.NewMQTTClient(uplink.MQTTConfig{
			Broker:    cfg.MQTTBroker,
			ClientID:  cfg.MQTTClientID,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			ChannelID: cfg.ChannelID,
		}, log)
		return c, c.Close
	}
	return uplink.NewHTTPClient(cfg.UplinkHost, cfg.UplinkPort, cfg.UplinkPath, nil, log), func() {}
}

// uplinkAddr is the host:port the configured transport talks to.
func uplinkAddr(cfg config.Config) string {
	if cfg.Transport == "mqtt" {
		if u, err := url.Parse(cfg.MQTTBroker); err == nil && u.Host != "" {
			return u.Host
		}
		return cfg.MQTTBroker
	}
	return net.JoinHostPort(cfg.UplinkHost, strconv.Itoa(cfg.UplinkPort))
}

// checkLink dials addr once and hangs up.
func checkLink(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &errcode.E{C: errcode.LinkDown, Op: "dial", Msg: addr, Err: err}
	}
	return c.Close()
}
