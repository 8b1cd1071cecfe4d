package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"roomchat/backend/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// pingPeriod is the period for sending pings. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize is the maximum inbound frame size allowed from a peer.
	maxMessageSize = 4096
	// sendQueueSize is the per-connection outbound buffer.
	sendQueueSize = 256
)

// Server owns the websocket endpoint: it upgrades connections, runs the
// read/write pumps and dispatches decoded frames to a per-connection
// Session.
type Server struct {
	hub      *hub.Hub
	verifier TokenVerifier
	messages MessageLog
	presence Presence // may be nil
	upgrader websocket.Upgrader
}

// NewServer creates a websocket server around the given capabilities.
func NewServer(h *hub.Hub, verifier TokenVerifier, messages MessageLog, presence Presence) *Server {
	return &Server{
		hub:      h,
		verifier: verifier,
		messages: messages,
		presence: presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The HTTP API is bearer-token only; the ws handshake carries no
			// credentials either, so origin checks add nothing here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS upgrades the request and serves the connection until it closes.
// No authentication happens at connect time; tokens travel per event.
func (s *Server) HandleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed: %v", err)
		return
	}
	log.Printf("realtime: connection established from %s", conn.RemoteAddr())

	client := make(hub.Client, sendQueueSize)
	session := NewSession(s.hub, s.verifier, s.messages, s.presence, client)

	go writePump(conn, client)
	s.readPump(c, conn, client, session)
}

// readPump reads frames off the wire and dispatches them until the
// connection errors or closes. On exit the client is removed from every
// channel it joined, which closes its queue and stops the write pump.
func (s *Server) readPump(c *gin.Context, conn *websocket.Conn, client hub.Client, session *Session) {
	defer func() {
		s.hub.Disconnect(client)
		conn.Close()
		log.Printf("realtime: connection from %s closed", conn.RemoteAddr())
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("realtime: read error: %v", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			session.sendError(errInvalidData)
			continue
		}

		ctx := c.Request.Context()
		switch frame.Event {
		case EventJoinRoom:
			var req JoinRoomRequest
			if err := json.Unmarshal(frame.Data, &req); err != nil {
				session.sendError(errInvalidData)
				continue
			}
			session.HandleJoin(ctx, req)

		case EventLeaveRoom:
			var req LeaveRoomRequest
			if err := json.Unmarshal(frame.Data, &req); err != nil {
				session.sendError(errInvalidData)
				continue
			}
			session.HandleLeave(ctx, req)

		case EventSendMessage:
			var req SendMessageRequest
			if err := json.Unmarshal(frame.Data, &req); err != nil {
				session.sendError(errInvalidData)
				continue
			}
			session.HandleSend(ctx, req)

		default:
			session.sendError("unknown event: " + frame.Event)
		}
	}
}

// writePump drains the client queue onto the wire and keeps the connection
// alive with pings. It exits when the queue is closed (disconnect) or a
// write fails.
func writePump(conn *websocket.Conn, client hub.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
