package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 65536
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking in production
		return true
	},
}

// Handler handles WebSocket connections for the live terminal endpoint.
type Handler struct {
	registry   *Registry
	controller *Controller
}

// NewHandler creates a new WebSocket handler.
func NewHandler(registry *Registry, controller *Controller) *Handler {
	return &Handler{
		registry:   registry,
		controller: controller,
	}
}

// Registry returns the connection registry.
func (h *Handler) Registry() *Registry {
	return h.registry
}

// HandleConnection upgrades the HTTP connection to WebSocket, admits the
// client, sends the welcome event, and starts the read and write pumps.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := h.registry.Connect(conn)

	h.registry.Send(client.ID(), NewSystemEvent(client.ID(),
		"Live terminal connected. Ready for code execution."))

	go h.writePump(client)
	go h.readPump(client)

	return nil
}

// handleMessage dispatches an inbound message. Unknown event types are
// logged and otherwise ignored.
func (h *Handler) handleMessage(client *Client, msg *ClientMessage) {
	switch msg.Event {
	case EventExecuteCodeLive:
		h.controller.HandleExecute(msg, client.ID())
	case EventPing:
		h.registry.Send(client.ID(), NewPongEvent())
	case EventTerminalCommand:
		h.registry.Send(client.ID(), NewOutputEvent("", OutputInfo,
			"Terminal commands will be supported in a future version"))
	default:
		log.Printf("Unknown event type from %s: %q", client.ID(), msg.Event)
	}
}

// readPump pumps messages from the WebSocket connection into the dispatcher.
// When it exits the client is evicted, which also clears its rate-limit entry.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.registry.Disconnect(client.ID())
		client.Conn().Close()
	}()

	client.Conn().SetReadLimit(maxMessageSize)
	client.Conn().SetReadDeadline(time.Now().Add(pongWait))
	client.Conn().SetPongHandler(func(string) error {
		client.Conn().SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for client %s: %v", client.ID(), err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Failed to unmarshal message from %s: %v", client.ID(), err)
			continue
		}

		h.handleMessage(client, &msg)
	}
}

// writePump pumps queued messages to the WebSocket connection, one frame
// per message so JSON.parse() works on the frontend, and keeps the
// connection alive with periodic pings.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn().Close()
	}()

	for {
		select {
		case message, ok := <-client.SendChan():
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn().WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn().WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(client.SendChan())
			for i := 0; i < n; i++ {
				queued := <-client.SendChan()
				client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.Conn().WriteMessage(websocket.TextMessage, queued); err != nil {
					return
				}
			}
		case <-ticker.C:
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn().WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SetCheckOrigin sets a custom origin checker for the WebSocket upgrader.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}
