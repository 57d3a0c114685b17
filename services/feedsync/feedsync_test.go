//go:build !(rp2040 || rp2350)

package feedsync

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"envnode-go/errcode"
	"envnode-go/services/feedstore"
)

const feedJSON = `{
  "channel": {"id": 2765731, "name": "envnode"},
  "feeds": [
    {"created_at": "2024-11-03T10:00:00Z", "entry_id": 11, "field1": "20.45", "field2": "41.20"},
    {"created_at": "2024-11-03T10:00:20Z", "entry_id": 12, "field1": "20.50", "field2": null},
    {"created_at": "2024-11-03T10:00:40Z", "entry_id": 13, "field1": null}
  ]
}`

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func openStore(t *testing.T) *feedstore.Store {
	t.Helper()
	s, err := feedstore.Open(filepath.Join(t.TempDir(), "feeds.db"), quiet())
	if err != nil {
		t.Fatalf("feedstore.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func feedServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/2765731/feeds.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_key"); got != "READ" {
			t.Errorf("api_key = %q, want READ", got)
		}
		w.WriteHeader(status)
		io.WriteString(w, feedJSON)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSyncOnceStoresNewEntriesOnly(t *testing.T) {
	srv := feedServer(t, http.StatusOK)
	c := NewClient("2765731", "READ")
	c.BaseURL = srv.URL
	c.Results = 3
	store := openStore(t)
	s := &Syncer{Fetcher: c, Store: store, Log: quiet()}

	n, err := s.SyncOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("SyncOnce = (%d, %v), want 2 stored", n, err)
	}
	n, err = s.SyncOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("second SyncOnce = (%d, %v), want 0", n, err)
	}

	latest, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.EntryID != 12 || latest.Temperature != 20.50 || latest.Humidity != nil {
		t.Fatalf("latest = %+v", latest)
	}
}

func TestFetchReportsHTTPStatus(t *testing.T) {
	srv := feedServer(t, http.StatusBadGateway)
	c := NewClient("2765731", "READ")
	c.BaseURL = srv.URL
	if _, err := c.Fetch(context.Background()); errcode.Of(err) != errcode.NetworkSend {
		t.Fatalf("err = %v, want network_send", err)
	}
}

func TestClientURL(t *testing.T) {
	c := NewClient("42", "")
	if got, want := c.URL(), "https://api.thingspeak.com/channels/42/feeds.json?results=1"; got != want {
		t.Fatalf("URL = %q, want %q", got, want)
	}
}

func TestEntryReading(t *testing.T) {
	s := func(v string) *string { return &v }
	if _, ok := (Entry{Field1: s("abc")}).Reading(); ok {
		t.Fatal("non-numeric temperature accepted")
	}
	r, ok := Entry{EntryID: 1, Field1: s(" 19.5 "), Field2: s("x")}.Reading()
	if !ok || r.Temperature != 19.5 || r.Humidity != nil {
		t.Fatalf("Reading = %+v, %v", r, ok)
	}
}

func TestRouter(t *testing.T) {
	store := openStore(t)
	router := NewRouter(store, quiet())

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/health"); rec.Code != http.StatusOK {
		t.Fatalf("/health = %d", rec.Code)
	}
	if rec := get("/readings/latest"); rec.Code != http.StatusNotFound {
		t.Fatalf("/readings/latest on empty store = %d, want 404", rec.Code)
	}

	h := 40.0
	for id := int64(1); id <= 3; id++ {
		store.Insert(context.Background(), feedstore.Reading{EntryID: id, Temperature: 20 + float64(id), Humidity: &h})
	}

	rec := get("/readings/latest")
	var latest feedstore.Reading
	if err := json.Unmarshal(rec.Body.Bytes(), &latest); err != nil || latest.EntryID != 3 {
		t.Fatalf("latest = %s (%v)", rec.Body.String(), err)
	}

	rec = get("/readings?limit=2")
	var recent []feedstore.Reading
	if err := json.Unmarshal(rec.Body.Bytes(), &recent); err != nil || len(recent) != 2 {
		t.Fatalf("recent = %s (%v)", rec.Body.String(), err)
	}
	if rec := get("/readings?limit=zero"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit = %d, want 400", rec.Code)
	}
}
