package uplink

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"time"

	"envnode-go/errcode"
	"envnode-go/x/strconvx"
)

// Uploader sends one update. Implementations do not retry; the caller tries
// again at its next upload interval.
type Uploader interface {
	Upload(ctx context.Context, u Update) error
}

// Dialer opens a stream connection. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// HTTPClient posts updates as a form body over a fresh TCP connection.
type HTTPClient struct {
	Host    string
	Port    int
	Path    string
	Dialer  Dialer
	Timeout time.Duration
	Log     *slog.Logger
}

// NewHTTPClient returns a client with ThingSpeak defaults for empty fields.
func NewHTTPClient(host string, port int, path string, d Dialer, log *slog.Logger) *HTTPClient {
	if port <= 0 {
		port = 80
	}
	if path == "" {
		path = "/update"
	}
	if d == nil {
		d = &net.Dialer{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPClient{Host: host, Port: port, Path: path, Dialer: d, Timeout: 5 * time.Second, Log: log}
}

// Upload connects, sends the request, echoes the response lines at debug
// level, and closes. Connect failures map to errcode.NetworkConnect, write
// failures to errcode.NetworkSend. The response is not interpreted.
func (c *HTTPClient) Upload(ctx context.Context, u Update) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	addr := net.JoinHostPort(c.Host, strconvx.Itoa(c.Port))
	conn, err := c.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errcode.Wrap(errcode.NetworkConnect, "dial "+addr, err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	body := FormBody(u.Fields(true))
	if _, err := conn.Write(BuildRequest(c.Host, c.Path, body)); err != nil {
		return errcode.Wrap(errcode.NetworkSend, "write "+addr, err)
	}
	c.Log.Info("upload sent", "addr", addr, "body", redact(body))

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		c.Log.Debug("upload response", "line", sc.Text())
	}
	return nil
}

// redact hides the channel key in logged bodies.
func redact(body string) string {
	const key = "api_key="
	if len(body) < len(key) || body[:len(key)] != key {
		return body
	}
	end := len(key)
	for end < len(body) && body[end] != '&' {
		end++
	}
	return key + "***" + body[end:]
}
