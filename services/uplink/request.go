// Package uplink sends averaged readings to a ThingSpeak-style channel.
// The HTTP client writes a minimal form POST over a raw connection, which is
// all the RP2 network stack offers; hosts can also publish over MQTT.
package uplink

import (
	"net/url"
	"strings"

	"envnode-go/types"
	"envnode-go/x/strconvx"
)

// Field is one key/value pair of a form body. Order is preserved.
type Field struct {
	Key   string
	Value string
}

// Update is one upload: the channel write key and averaged values.
type Update struct {
	APIKey      string
	Temperature float64
	Humidity    float64
	HasHumidity bool
}

// FromSummary builds an update for a channel key.
func FromSummary(apiKey string, s types.Summary) Update {
	return Update{APIKey: apiKey, Temperature: s.AvgTemperature, Humidity: s.AvgHumidity, HasHumidity: s.HasHumidity}
}

// Fields lists field1 (temperature) and field2 (humidity, when present),
// preceded by api_key when withKey is set.
func (u Update) Fields(withKey bool) []Field {
	out := make([]Field, 0, 3)
	if withKey {
		out = append(out, Field{"api_key", u.APIKey})
	}
	out = append(out, Field{"field1", strconvx.FormatFloat(u.Temperature, 'f', 2, 64)})
	if u.HasHumidity {
		out = append(out, Field{"field2", strconvx.FormatFloat(u.Humidity, 'f', 2, 64)})
	}
	return out
}

// FormBody renders key1=value1&key2=value2 with query escaping.
func FormBody(fields []Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	return b.String()
}

// BuildRequest renders a minimal HTTP/1.1 form POST that asks the server to
// close the connection after answering.
func BuildRequest(host, path, body string) []byte {
	if path == "" {
		path = "/"
	}
	var b strings.Builder
	b.WriteString("POST " + path + " HTTP/1.1\r\n")
	b.WriteString("Host: " + host + "\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("Content-Type: application/x-www-form-urlencoded\r\n")
	b.WriteString("Content-Length: " + strconvx.Itoa(len(body)) + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
