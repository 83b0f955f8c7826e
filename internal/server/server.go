// Package server exposes the generated calendar over HTTP. It holds the
// latest feed snapshot behind an atomic pointer: regeneration swaps the
// snapshot in while requests keep reading the previous one.
package server

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	headerContentType = "Content-Type"
	headerETag        = "ETag"
	headerWarnings    = "X-Feed-Warnings"

	mimeTypeCalendar = "text/calendar; charset=utf-8"
)

// Snapshot is one immutable generation result.
type Snapshot struct {
	Body     []byte
	ETag     string
	Warnings int
	BuiltAt  time.Time
}

// NewSnapshot wraps a serialized feed, deriving its strong ETag from the
// body bytes. The serializer is deterministic, so an unchanged calendar
// keeps its validator across regenerations.
func NewSnapshot(body []byte, warnings int, builtAt time.Time) *Snapshot {
	sum := sha256.Sum256(body)
	return &Snapshot{
		Body:     body,
		ETag:     `"` + hex.EncodeToString(sum[:16]) + `"`,
		Warnings: warnings,
		BuiltAt:  builtAt,
	}
}

// Server serves the current feed snapshot.
type Server struct {
	logger *slog.Logger
	snap   atomic.Pointer[Snapshot]
}

// New creates a server with no snapshot yet; requests get 503 until the
// first SetSnapshot.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger}
}

// SetSnapshot publishes a new generation result.
func (s *Server) SetSnapshot(snap *Snapshot) {
	s.snap.Store(snap)
}

// Handler returns the HTTP routing for the feed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
	return mux
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	snap := s.snap.Load()
	if snap == nil {
		http.Error(w, "feed not generated yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set(headerETag, snap.ETag)
	if snap.Warnings > 0 {
		// Degraded state: the valid subset is still served, but the
		// client (and the logs) can see entries were excluded.
		w.Header().Set(headerWarnings, strconv.Itoa(snap.Warnings))
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == snap.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set(headerContentType, mimeTypeCalendar)
	if _, err := w.Write(snap.Body); err != nil {
		s.logger.Error("failed to write feed response", "error", err)
		return
	}

	s.logger.Debug("served calendar",
		"etag", snap.ETag,
		"bytes", len(snap.Body),
		"warnings", snap.Warnings,
		"built_at", snap.BuiltAt)
}
