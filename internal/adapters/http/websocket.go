package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/usecases"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/metrics"
)

// wsMessage is sent by the client whenever its map moves.
// {"action":"viewport","center":{"lat":40,"lng":-100},"zoom":4,"bounds":{"nw":{...},"se":{...}}}
type wsMessage struct {
	Action string        `json:"action"` // "viewport" | "state"
	Center domain.LatLng `json:"center"`
	Zoom   int           `json:"zoom"`
	Bounds *struct {
		NW *domain.LatLng `json:"nw"`
		SE *domain.LatLng `json:"se"`
	} `json:"bounds"`
}

type wsRender struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	usecases.Render
}

// WebSocketHandler returns a handler that keeps one viewport session per
// connection. Each viewport message is answered with a render, and every
// dataset rebuild pushes a fresh render for the last known viewport.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		session := uuid.NewString()
		log := slog.With("session", session, "remote", c.RemoteAddr().String())
		log.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ctrl := usecases.NewViewportController(deps.Maps, deps.Defaults)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// latest guards against a push overtaking a newer reply.
		var latest uint64
		var latestMu sync.Mutex
		send := func(r usecases.Render) {
			latestMu.Lock()
			if r.Seq < latest {
				latestMu.Unlock()
				return
			}
			latest = r.Seq
			latestMu.Unlock()
			_ = writeJSON(wsRender{Type: "render", Session: session, Render: r})
		}

		updates, unsubscribe := deps.Maps.Subscribe()
		defer unsubscribe()

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case version, ok := <-updates:
					if !ok {
						return
					}
					r, err := ctrl.Render(ctx)
					if err != nil {
						log.Warn("ws push render failed", "version", version, "error", err)
						continue
					}
					send(r)
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"type": "error", "error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "viewport":
				if m.Bounds == nil || m.Bounds.NW == nil || m.Bounds.SE == nil {
					_ = writeJSON(map[string]string{"type": "error", "error": "viewport requires bounds.nw and bounds.se"})
					continue
				}
				bounds := domain.Viewport{NorthWest: *m.Bounds.NW, SouthEast: *m.Bounds.SE}
				r, err := ctrl.OnInteraction(ctx, m.Center, m.Zoom, bounds)
				if err != nil {
					_ = writeJSON(map[string]string{"type": "error", "error": err.Error()})
					continue
				}
				send(r)

			case "state":
				_ = writeJSON(map[string]interface{}{"type": "state", "session": session, "state": ctrl.State()})

			default:
				_ = writeJSON(map[string]string{"type": "error", "error": "unknown action: " + m.Action})
			}
		}

		close(done)
		log.Info("ws client disconnected")
	}
}
