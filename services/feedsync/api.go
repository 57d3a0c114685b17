//go:build !(rp2040 || rp2350)

package feedsync

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"envnode-go/errcode"
	"envnode-go/services/feedstore"
)

// MaxLimit caps /readings?limit=.
const MaxLimit = 500

// NewRouter serves the stored readings:
//
//	GET /health
//	GET /readings/latest
//	GET /readings?limit=N
func NewRouter(store *feedstore.Store, log *slog.Logger) *mux.Router {
	h := &api{store: store, log: log}
	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/readings/latest", h.latest).Methods(http.MethodGet)
	r.HandleFunc("/readings", h.recent).Methods(http.MethodGet)
	return r
}

type api struct {
	store *feedstore.Store
	log   *slog.Logger
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) latest(w http.ResponseWriter, r *http.Request) {
	rd, err := a.store.Latest(r.Context())
	if errcode.Of(err) == errcode.NotFound {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no readings"})
		return
	}
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

func (a *api) recent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, MaxLimit)
	}
	rs, err := a.store.Recent(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (a *api) fail(w http.ResponseWriter, err error) {
	a.log.Error("api", "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": string(errcode.Of(err))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
