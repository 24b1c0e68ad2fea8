package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/delaneydunne/joint-limlam-mocker/internal/metrics"
)

// writeWindow bounds each individual write on a stream.
const writeWindow = 30 * time.Second

// client writes frames to one SSE connection and counts what it sent.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// write sends one raw frame, refreshing the write deadline first so a slow
// run does not time out the connection between progress updates.
func (c *client) write(frame string) (int, error) {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeWindow)); err != nil {
		c.logger.Debug("could not set write deadline", "remote_ip", c.ip, "error", err)
	}
	n, err := io.WriteString(c.w, frame)
	if err != nil {
		return n, err
	}
	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))
	return n, nil
}

// sendJSON sends v as a "data: {json}\n\n" event.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if _, err := c.write("data: " + string(data) + "\n\n"); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.messagesSent++
	metrics.IncStreamMessages()
	return nil
}

// sendKeepalive sends an SSE comment frame.
func (c *client) sendKeepalive() error {
	if _, err := c.write(":\n\n"); err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	return nil
}
