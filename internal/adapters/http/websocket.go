package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/tripplanner/internal/adapters/nats"
	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
)

// wsMessage is sent by the client. "frame" asks for the current frame;
// "focus" moves the camera like POST /focus.
type wsMessage struct {
	Action string   `json:"action"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
}

// frameBuffer bounds how many frames may queue for a slow client. Frames
// are whole states, so older ones are dropped first.
const frameBuffer = 16

// WebSocketHandler streams a session's frames to the client. Connect with
// /ws?session=<id>. With NATS configured frames are relayed from the
// session subject, otherwise straight from the in-process session.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		id := c.Query("session")
		logger := slog.Default().With("session_id", id, "remote", c.RemoteAddr().String())

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

		sess, err := deps.Sessions.Get(id)
		if err != nil {
			_ = writeJSON(map[string]string{"error": err.Error()})
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		detach := sess.Attach()
		defer detach()
		logger.Info("ws client connected")

		frames := make(chan []byte, frameBuffer)
		enqueue := func(data []byte) {
			for {
				select {
				case frames <- data:
					return
				default:
				}
				select {
				case <-frames:
				default:
				}
			}
		}

		var unsubscribe func()
		if deps.NATS != nil {
			sub, err := deps.NATS.Subscribe(natsadapter.FrameSubject(id), func(msg *nats.Msg) {
				enqueue(msg.Data)
			})
			if err != nil {
				logger.Error("ws subscribe failed", "error", err)
				_ = writeJSON(map[string]string{"error": "subscribe failed"})
				return
			}
			unsubscribe = func() { _ = sub.Unsubscribe() }
		} else {
			unsubscribe = sess.Subscribe(func(f domain.Frame) {
				data, err := json.Marshal(f)
				if err != nil {
					return
				}
				enqueue(data)
			})
		}
		defer unsubscribe()

		if err := writeJSON(sess.Frame()); err != nil {
			return
		}

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case data := <-frames:
					mu.Lock()
					err := c.WriteMessage(websocket.TextMessage, data)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
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
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "frame":
				_ = writeJSON(sess.Frame())
			case "focus":
				var err error
				if m.Lat != nil && m.Lng != nil {
					_, err = sess.FocusOn(domain.Coordinate{Lat: *m.Lat, Lng: *m.Lng})
				} else {
					_, err = sess.FocusOnLocation()
				}
				if err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
				}
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		logger.Info("ws client disconnected")
	}
}
