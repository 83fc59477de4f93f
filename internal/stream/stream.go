// Package stream consumes the donor activity feed over a websocket and
// fans donation events out to the drift window and outcome recording.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"donorsense/internal/common"
	"donorsense/internal/metrics"
)

const (
	readLimit    = 512 * 1024
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	maxBackoff   = 30 * time.Second
)

// DonationEvent is one gift reported on the live feed.
type DonationEvent struct {
	DonorID    string    `json:"donorId"`
	Amount     float64   `json:"amount"`
	OccurredAt time.Time `json:"occurredAt"`
}

// WS consumes the donor activity stream and reconnects on failure.
type WS struct {
	url string
	mw  *metrics.MetricsWrapper

	mu        sync.Mutex
	connected bool
	lastEvent time.Time
}

func NewWS(u string, mw *metrics.MetricsWrapper) *WS {
	return &WS{url: u, mw: mw}
}

// Connected reports whether a subscription is currently live.
func (w *WS) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

// LastEventAt returns when the feed last delivered any message. Zero
// means nothing has arrived yet.
func (w *WS) LastEventAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastEvent
}

func (w *WS) setConnected(v bool) {
	w.mu.Lock()
	w.connected = v
	w.mu.Unlock()
}

func (w *WS) noteMessage() {
	w.mu.Lock()
	w.lastEvent = time.Now().UTC()
	w.mu.Unlock()
}

// Stream keeps a subscription open until ctx is cancelled, reconnecting
// with exponential backoff. Parsed donations go to events; transport
// problems go to errors without blocking.
func (w *WS) Stream(ctx context.Context, events chan<- DonationEvent, errors chan<- error, ping time.Duration) error {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := w.streamOnce(ctx, events, errors, ping); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Dur("backoff", backoff).Msg("Stream connection failed, reconnecting with exponential backoff...")
				if w.mw != nil {
					w.mw.StreamReconnectsInc()
				}
				select {
				case errors <- fmt.Errorf("stream reconnect: %w", err):
				default:
				}

				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}

				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			backoff = time.Second
		}
	}
}

func (w *WS) streamOnce(ctx context.Context, events chan<- DonationEvent, errors chan<- error, ping time.Duration) error {
	log.Info().Str("url", w.url).Msg("Connecting to donor activity stream")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer func() {
		conn.Close()
		w.setConnected(false)
		log.Debug().Msg("Stream connection closed")
	}()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	if err := conn.WriteJSON(map[string]any{
		"op":   "subscribe",
		"args": []map[string]string{{"ch": "donations"}},
	}); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	w.setConnected(true)

	if ping <= 0 {
		ping = common.DefaultPingInterval
	}
	pingTicker := time.NewTicker(ping)
	defer pingTicker.Stop()

	if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
		return fmt.Errorf("initial ping failed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
		default:
			conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Info().Msg("Stream closed normally")
					return err
				}
				return fmt.Errorf("read message failed: %w", err)
			}
			w.noteMessage()

			var raw map[string]any
			if err := json.Unmarshal(msg, &raw); err != nil {
				log.Debug().Err(err).Str("message", string(msg)).Msg("Failed to parse stream message")
				continue
			}

			if op, ok := raw["op"].(string); ok && op == "subscribe" {
				log.Info().Interface("response", raw).Msg("Subscribed to donation channel")
				continue
			}

			switch raw["event"] {
			case "donation":
				if err := parseDonation(raw, events); err != nil {
					log.Debug().Err(err).Interface("raw_data", raw).Msg("Failed to parse donation")
					select {
					case errors <- fmt.Errorf("parse donation: %w", err):
					default:
					}
					continue
				}
				if w.mw != nil {
					w.mw.DonationEventsInc()
				}
			default:
				if ev, ok := raw["event"].(string); ok && ev != "" {
					log.Debug().Str("event", ev).Msg("Received unknown event type")
				}
			}
		}
	}
}

func parseDonation(m map[string]any, out chan<- DonationEvent) error {
	data, ok := m["data"].(map[string]any)
	if !ok {
		return fmt.Errorf("invalid donation data format")
	}

	donorID, ok := data["donorId"].(string)
	if !ok || donorID == "" {
		return fmt.Errorf("missing donorId in donation")
	}

	amount, err := toFloat(data["amount"])
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	if amount <= 0 {
		return fmt.Errorf("invalid amount value: %f", amount)
	}

	var ts time.Time
	if s, ok := data["occurredAt"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			ts = parsed
		}
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	ev := DonationEvent{DonorID: donorID, Amount: amount, OccurredAt: ts}
	select {
	case out <- ev:
	default:
		log.Warn().Str("donor", donorID).Msg("donation channel full, dropping message")
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return 0, fmt.Errorf("empty string")
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse string %q as float: %w", val, err)
		}
		return f, nil
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("value type %T is not convertible to float", v)
	}
}
