// Package stream implements Server-Sent Events (SSE) streaming of pipeline
// progress. Clients connect via GET /events and receive the run status each
// time it changes:
//
//	data: {"type":"progress","stage":"cull","halos":81234,...}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval. The stream
// ends after the snapshot that reports the run as done.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/delaneydunne/joint-limlam-mocker/internal/health"
	"github.com/delaneydunne/joint-limlam-mocker/internal/metrics"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 64).
	PollInterval       time.Duration // How often the tracker is sampled (default: 1s).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
}

// DefaultConfig returns the streaming defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		MaxTotal:           64,
		PollInterval:       time.Second,
		KeepaliveInterval:  30 * time.Second,
	}
}

// Handler manages SSE streaming connections.
type Handler struct {
	tracker *health.Tracker
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(tracker *health.Tracker, config Config, logger *slog.Logger) *Handler {
	return &Handler{
		tracker: tracker,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

// HandleProgress serves the SSE progress stream.
// GET /events
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"ip_streams", h.limiter.count(ip),
			"open_streams", h.limiter.total(),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.IncStreamsActive()
	startTime := time.Now()
	h.logger.Info("stream connected", "remote_ip", ip, "user_agent", r.Header.Get("User-Agent"))

	defer func() {
		h.limiter.release(ip)
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long-lived stream: clear the server's WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{w: w, flusher: flusher, rc: rc, ip: ip, logger: h.logger}

	// Jittered retry (3-7s) so reconnects after a restart are spread out.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.IntN(4000))
	flusher.Flush()

	last := h.tracker.Snapshot()
	if err := c.sendJSON(newProgressMessage(last)); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
		return
	}
	if last.Done {
		return
	}

	ticker := time.NewTicker(h.config.PollInterval)
	defer ticker.Stop()
	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			snap := h.tracker.Snapshot()
			if !changed(last, snap) {
				continue
			}
			last = snap
			if err := c.sendJSON(newProgressMessage(snap)); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			if snap.Done {
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// clientIP returns the host part of the request's remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func changed(a, b health.Snapshot) bool {
	return a.Stage != b.Stage ||
		a.Halos != b.Halos ||
		a.Ready != b.Ready ||
		a.Done != b.Done ||
		!a.UpdatedAt.Equal(b.UpdatedAt)
}

type progressMessage struct {
	Type string `json:"type"`
	health.Snapshot
}

func newProgressMessage(s health.Snapshot) progressMessage {
	return progressMessage{Type: "progress", Snapshot: s}
}
