//go:build !(rp2040 || rp2350)

package platform

import (
	"context"
	"net"
	"testing"
	"time"

	"envnode-go/errcode"
	"envnode-go/services/config"
)

func TestUplinkAddr(t *testing.T) {
	cfg := config.Defaults()
	if got := uplinkAddr(cfg); got != "api.thingspeak.com:80" {
		t.Fatalf("http addr = %q", got)
	}
	cfg.Transport = "mqtt"
	if got := uplinkAddr(cfg); got != "mqtt3.thingspeak.com:1883" {
		t.Fatalf("mqtt addr = %q", got)
	}
}

func TestCheckLink(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	if err := checkLink(context.Background(), addr, time.Second); err != nil {
		t.Fatalf("checkLink(open) = %v", err)
	}

	ln.Close()
	err = checkLink(context.Background(), addr, time.Second)
	if errcode.Of(err) != errcode.LinkDown {
		t.Fatalf("checkLink(closed) = %v, want link_down", err)
	}
	if !errcode.Fatal(errcode.Wrap(errcode.InitFailed, "uplink", err)) {
		t.Fatal("wrapped link failure must halt the node")
	}
}
