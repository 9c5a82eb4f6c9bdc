package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"OmniSpectrum/internal/service/stream"
	xlogger "OmniSpectrum/pkg/logger"
)

const writeWait = 10 * time.Second

// StreamHandler pushes every new snapshot over a websocket.
type StreamHandler struct {
	logger       *xlogger.Logger
	hub          *stream.Hub
	source       SnapshotSource
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

func NewStreamHandler(logger *xlogger.Logger, hub *stream.Hub, source SnapshotSource, pingInterval time.Duration) *StreamHandler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &StreamHandler{
		logger:       logger,
		hub:          hub,
		source:       source,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/snapshot/stream", h.Stream)
}

func (h *StreamHandler) Stream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("websocket upgrade", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	ctx := c.Request().Context()
	if doc, err := h.source.Get(ctx); err == nil {
		if frame, err := stream.EncodeFrame(doc); err == nil {
			if err := h.write(conn, websocket.TextMessage, frame); err != nil {
				return nil
			}
		}
	}

	// Reads only detect the peer going away and keep pong handling alive.
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-sub.C():
			if !ok {
				_ = h.write(conn, websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return nil
			}
			if err := h.write(conn, websocket.TextMessage, frame); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := h.write(conn, websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-gone:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, kind int, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(kind, b)
}
