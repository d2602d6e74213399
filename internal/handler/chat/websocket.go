package chat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/visa-assistant/client/internal/model/chat"
	chatService "github.com/zhouzirui/visa-assistant/client/internal/service/chat"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
	wsWriteTimeout = 10 * time.Second
)

type inboundMessage struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	Index    int    `json:"index,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

type outgoingMessage struct {
	Type  string                `json:"type"`
	Data  *chatService.Snapshot `json:"data,omitempty"`
	Error string                `json:"error,omitempty"`
}

// wsConn serialises writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(msg outgoingMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

// handleWebSocket pushes a snapshot after every conversation change and
// accepts the same commands as the REST endpoints.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := conv.Subscribe()
	defer unsubscribe()

	initial := conv.Snapshot()
	if err := conn.write(outgoingMessage{Type: "state", Data: &initial}); err != nil {
		return
	}

	go h.pushLoop(ctx, conn, updates)

	_ = raw.SetReadDeadline(time.Now().Add(wsReadTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		var msg inboundMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnw("websocket read error", "error", err)
			}
			return
		}
		_ = raw.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if err := h.handleCommand(ctx, conv, msg); err != nil {
			if werr := conn.write(outgoingMessage{Type: "error", Error: err.Error()}); werr != nil {
				return
			}
		}
	}
}

func (h *Handler) pushLoop(ctx context.Context, conn *wsConn, updates <-chan chatService.Snapshot) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.write(outgoingMessage{Type: "state", Data: &snap}); err != nil {
				h.logger.Debugw("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleCommand(ctx context.Context, conv *chatService.Conversation, msg inboundMessage) error {
	switch msg.Type {
	case "input":
		conv.SetInput(msg.Message)
	case "send":
		if msg.Message != "" {
			conv.SetInput(msg.Message)
		}
		exchange, err := conv.Start()
		if err != nil {
			return err
		}
		go exchange.Complete(context.WithoutCancel(ctx))
	case "retry":
		return conv.Retry()
	case "clear":
		conv.Clear()
	case "feedback":
		value, ok := chat.ParseFeedback(msg.Feedback)
		if !ok {
			return errUnsupported("feedback " + msg.Feedback)
		}
		_, err := conv.Rate(msg.Index, value)
		return err
	default:
		return errUnsupported("message type " + msg.Type)
	}
	return nil
}

type errUnsupported string

func (e errUnsupported) Error() string {
	return "unsupported " + string(e)
}
