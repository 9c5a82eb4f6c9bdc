package snapshotclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"OmniSpectrum/internal/domain/models"
	"OmniSpectrum/pkg/logger"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *Cache) streamURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + streamPath
}

// Watch applies snapshots pushed by the server until ctx is done or the
// connection drops. Pings are answered by the websocket library.
func (c *Cache) Watch(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", c.fail(err))
	}
	defer conn.Close()
	c.log.Info("stream connected", logger.String("url", c.streamURL()))

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream read: %w", c.fail(err))
		}
		var f frame
		if err := json.Unmarshal(b, &f); err != nil || f.Type != "snapshot" {
			// ignore frames we do not understand
			continue
		}
		doc, err := models.ParseDocument(f.Data)
		if err != nil {
			c.log.Warn("stream frame rejected", logger.Error(err))
			continue
		}
		c.accept(doc)
	}
}
