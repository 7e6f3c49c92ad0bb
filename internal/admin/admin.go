// Package admin serves the cache administration API.
package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emrvault/tiercache/pkg/cache"
	"github.com/emrvault/tiercache/pkg/logger"
)

const maxEntryBytes = 1 << 20

// Cache is the facade surface the API needs; *cache.Tiered[json.RawMessage]
// implements it.
type Cache interface {
	Name() string
	Namespace() string
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
	Keys() []string
	Flush(ctx context.Context)
	Stats() cache.Stats
}

// Handler exposes a set of named caches over HTTP.
type Handler struct {
	caches map[string]Cache
	logger *slog.Logger
}

// New creates a handler for caches, addressed by their Name.
func New(log *slog.Logger, caches ...Cache) *Handler {
	h := &Handler{
		caches: make(map[string]Cache, len(caches)),
		logger: logger.Component(log, "admin"),
	}
	for _, c := range caches {
		h.caches[c.Name()] = c
	}
	return h
}

// Routes mounts the API:
//
//	GET    /stats
//	POST   /{name}/flush
//	GET    /{name}/keys
//	GET    /{name}/entries/*
//	PUT    /{name}/entries/*?ttl=30s
//	DELETE /{name}/entries/*
func (h *Handler) Routes(r chi.Router) {
	r.Get("/stats", h.stats)
	r.Route("/{name}", func(r chi.Router) {
		r.Post("/flush", h.flush)
		r.Get("/keys", h.keys)
		r.Get("/entries/*", h.getEntry)
		r.Put("/entries/*", h.putEntry)
		r.Delete("/entries/*", h.deleteEntry)
	})
}

// stats returns every cache's statistics keyed by name.
func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]cache.Stats, len(h.caches))
	for name, c := range h.caches {
		out[name] = c.Stats()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) flush(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}

	c.Flush(r.Context())
	h.logger.InfoContext(r.Context(), "cache flushed", slog.String("cache", c.Name()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) keys(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}

	keys := c.Keys()
	slices.Sort(keys)
	writeJSON(w, http.StatusOK, map[string]any{
		"namespace": c.Namespace(),
		"keys":      keys,
	})
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}

	value, found := c.Get(r.Context(), chi.URLParam(r, "*"))
	if !found {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(value)
}

func (h *Handler) putEntry(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var ttl time.Duration
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid ttl")
			return
		}
		ttl = d
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEntryBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	if len(body) > maxEntryBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "entry too large")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "body must be JSON")
		return
	}

	if !c.Set(r.Context(), chi.URLParam(r, "*"), json.RawMessage(body), ttl) {
		writeError(w, http.StatusServiceUnavailable, "entry not stored")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if !c.Delete(r.Context(), chi.URLParam(r, "*")) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (Cache, bool) {
	c, ok := h.caches[chi.URLParam(r, "name")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown cache")
	}
	return c, ok
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
