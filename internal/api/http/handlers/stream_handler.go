package handlers

import (
	"bufio"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const defaultHeartbeat = 25 * time.Second

// ChangeSubscriber delivers coalesced change notifications.
type ChangeSubscriber interface {
	Subscribe(onChange func()) (unsubscribe func())
	SubscribeReport(reportID string, onChange func()) (unsubscribe func())
}

// StreamHandler pushes refresh events to dashboards over server-sent events.
type StreamHandler struct {
	changes   ChangeSubscriber
	heartbeat time.Duration
	logger    *zap.Logger

	closeOnce sync.Once
	closing   chan struct{}
}

// NewStreamHandler constructs handler. A non-positive heartbeat uses the default.
func NewStreamHandler(changes ChangeSubscriber, heartbeat time.Duration, logger *zap.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		changes:   changes,
		heartbeat: heartbeat,
		logger:    logger,
		closing:   make(chan struct{}),
	}
}

// Close ends every open stream so the server can shut down.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// Stream GET /dashboard/stream. The optional report query parameter narrows events to one report.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	reportID := c.Query("report")

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		h.pump(w, reportID)
	}))
	return nil
}

func (h *StreamHandler) pump(w *bufio.Writer, reportID string) {
	refresh := make(chan struct{}, 1)
	notify := func() {
		select {
		case refresh <- struct{}{}:
		default:
		}
	}

	var unsubscribe func()
	if reportID != "" {
		unsubscribe = h.changes.SubscribeReport(reportID, notify)
	} else {
		unsubscribe = h.changes.Subscribe(notify)
	}
	defer unsubscribe()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	if err := writeFrame(w, ": connected\n\n"); err != nil {
		return
	}
	for {
		select {
		case <-h.closing:
			return
		case <-refresh:
			frame := fmt.Sprintf("event: refresh\ndata: {\"at\":%q}\n\n", time.Now().UTC().Format(time.RFC3339Nano))
			if err := writeFrame(w, frame); err != nil {
				h.logger.Debug("stream client gone", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := writeFrame(w, ": ping\n\n"); err != nil {
				h.logger.Debug("stream client gone", zap.Error(err))
				return
			}
		}
	}
}

func writeFrame(w *bufio.Writer, frame string) error {
	if _, err := w.WriteString(frame); err != nil {
		return err
	}
	return w.Flush()
}
