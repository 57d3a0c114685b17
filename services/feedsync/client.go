//go:build !(rp2040 || rp2350)

// Package feedsync pulls the node's channel feed back from the telemetry
// service into a local feedstore, and serves what it has stored.
package feedsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"envnode-go/errcode"
	"envnode-go/services/feedstore"
)

// DefaultBaseURL is the ThingSpeak read API.
const DefaultBaseURL = "https://api.thingspeak.com"

// Entry is one feed row as the read API returns it. Fields arrive as
// strings and may be null.
type Entry struct {
	EntryID   int64     `json:"entry_id"`
	CreatedAt time.Time `json:"created_at"`
	Field1    *string   `json:"field1"`
	Field2    *string   `json:"field2"`
}

type feedResponse struct {
	Feeds []Entry `json:"feeds"`
}

// Reading converts an entry. ok is false when field1 (temperature) is
// missing or not a number; a bad field2 is dropped.
func (e Entry) Reading() (feedstore.Reading, bool) {
	t, ok := parseField(e.Field1)
	if !ok {
		return feedstore.Reading{}, false
	}
	r := feedstore.Reading{EntryID: e.EntryID, CreatedAt: e.CreatedAt, Temperature: t}
	if h, ok := parseField(e.Field2); ok {
		r.Humidity = &h
	}
	return r, true
}

func parseField(s *string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	return v, err == nil
}

// Fetcher returns the latest feed entries.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Entry, error)
}

// Client reads a channel feed over HTTP.
type Client struct {
	BaseURL   string
	ChannelID string
	ReadKey   string
	Results   int
	HTTP      *http.Client
}

// NewClient fills defaults: ThingSpeak base URL, one result, 10s timeout.
func NewClient(channelID, readKey string) *Client {
	return &Client{
		BaseURL:   DefaultBaseURL,
		ChannelID: channelID,
		ReadKey:   readKey,
		Results:   1,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
	}
}

// URL is the feeds.json request URL.
func (c *Client) URL() string {
	q := url.Values{}
	if c.ReadKey != "" {
		q.Set("api_key", c.ReadKey)
	}
	q.Set("results", strconv.Itoa(max(c.Results, 1)))
	return strings.TrimRight(c.BaseURL, "/") + "/channels/" + url.PathEscape(c.ChannelID) + "/feeds.json?" + q.Encode()
}

func (c *Client) Fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), nil)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidConfig, "feed request", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errcode.Wrap(errcode.NetworkConnect, "feed fetch", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &errcode.E{C: errcode.NetworkSend, Op: "feed fetch", Msg: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	var body feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errcode.Wrap(errcode.NetworkSend, "feed decode", err)
	}
	return body.Feeds, nil
}
