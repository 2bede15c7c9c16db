package configsync

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
)

// OptionsUpdatedEvent is fired on the Home Assistant event bus when the
// add-on options are saved.
const OptionsUpdatedEvent = "bookstack_options_updated"

const readTimeout = 120 * time.Second

type Watcher struct {
	baseURL    string
	token      string
	logger     *slog.Logger
	maxBackoff time.Duration
}

func NewWatcher(baseURL, token string, logger *slog.Logger) *Watcher {
	return &Watcher{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		logger:     logger.With("component", "config_watcher"),
		maxBackoff: 20 * time.Second,
	}
}

func (w *Watcher) Run(ctx context.Context, onOptionsUpdated func()) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := w.runSession(ctx, onOptionsUpdated)
		if err != nil && ctx.Err() == nil {
			w.logger.Warn("options event watcher disconnected", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < w.maxBackoff {
			backoff *= 2
		}
	}
}

func (w *Watcher) runSession(ctx context.Context, onOptionsUpdated func()) error {
	wsURL, err := toWebsocketURL(w.baseURL + "/api/websocket")
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if typ, err := readType(conn); err != nil || typ != "auth_required" {
		return err
	}
	if err := conn.WriteJSON(map[string]any{"type": "auth", "access_token": w.token}); err != nil {
		return err
	}
	if typ, err := readType(conn); err != nil || typ != "auth_ok" {
		if err == nil {
			w.logger.Error("Home Assistant rejected the supervisor token", "response", typ)
		}
		return err
	}

	subscribe := map[string]any{"id": 1, "type": "subscribe_events", "event_type": OptionsUpdatedEvent}
	if err := conn.WriteJSON(subscribe); err != nil {
		return err
	}
	w.logger.Debug("subscribed to options events")

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if isOptionsUpdatedEvent(msg) {
			onOptionsUpdated()
		}
	}
}

func readType(conn *websocket.Conn) (string, error) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return "", err
	}
	return envelope.Type, nil
}

func isOptionsUpdatedEvent(body []byte) bool {
	var envelope struct {
		Type  string `json:"type"`
		Event struct {
			EventType string `json:"event_type"`
		} `json:"event"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return envelope.Type == "event" && envelope.Event.EventType == OptionsUpdatedEvent
}

func toWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}
