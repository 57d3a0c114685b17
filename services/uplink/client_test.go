package uplink

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"envnode-go/errcode"
)

// pipeDialer hands out one end of a net.Pipe and serves the other end.
type pipeDialer struct {
	addr  string
	reqCh chan string
	fail  error
}

func (d *pipeDialer) DialContext(_ context.Context, _, address string) (net.Conn, error) {
	d.addr = address
	if d.fail != nil {
		return nil, d.fail
	}
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		r := bufio.NewReader(server)
		var head strings.Builder
		n := 0
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			head.WriteString(line)
			if strings.HasPrefix(line, "Content-Length: ") {
				n, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Content-Length: ")))
			}
			if line == "\r\n" {
				break
			}
		}
		body := make([]byte, n)
		_, _ = io.ReadFull(r, body)
		d.reqCh <- head.String() + string(body)
		_, _ = io.WriteString(server, "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\n42\r\n")
	}()
	return client, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHTTPClientSendsFormPost(t *testing.T) {
	d := &pipeDialer{reqCh: make(chan string, 1)}
	c := NewHTTPClient("api.thingspeak.com", 0, "", d, quietLogger())

	err := c.Upload(context.Background(), Update{APIKey: "K", Temperature: 20.45})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if d.addr != "api.thingspeak.com:80" {
		t.Fatalf("dialed %q, want api.thingspeak.com:80", d.addr)
	}
	select {
	case req := <-d.reqCh:
		if !strings.HasPrefix(req, "POST /update HTTP/1.1\r\n") {
			t.Fatalf("request line wrong: %q", req)
		}
		if !strings.HasSuffix(req, "\r\n\r\napi_key=K&field1=20.45") {
			t.Fatalf("body wrong: %q", req)
		}
	case <-time.After(time.Second):
		t.Fatal("server never saw the request")
	}
}

func TestHTTPClientConnectFailure(t *testing.T) {
	d := &pipeDialer{fail: errors.New("host unreachable")}
	c := NewHTTPClient("api.thingspeak.com", 80, "/update", d, quietLogger())

	err := c.Upload(context.Background(), Update{APIKey: "K"})
	if errcode.Of(err) != errcode.NetworkConnect {
		t.Fatalf("err = %v, want network_connect", err)
	}
	if errcode.ClassOf(err) != errcode.ClassNetwork {
		t.Fatalf("class = %s, want network", errcode.ClassOf(err))
	}
}

func TestRedactHidesKey(t *testing.T) {
	if got := redact("api_key=SECRET&field1=1.00"); got != "api_key=***&field1=1.00" {
		t.Fatalf("redact = %q", got)
	}
	if got := redact("field1=1.00"); got != "field1=1.00" {
		t.Fatalf("redact changed keyless body: %q", got)
	}
}
