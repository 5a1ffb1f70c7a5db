package ws

import (
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Roygautam8852/SyncSpace/internal/logx"
	"github.com/Roygautam8852/SyncSpace/middleware"
)

// Handler upgrades /ws requests and wires each socket to the router. The
// identity, if any, was resolved by middleware.Auth; room membership comes
// later from join-room.
type Handler struct {
	router     *Router
	hub        *Hub
	upgrader   websocket.Upgrader
	sendBuffer int
}

func NewHandler(router *Router, hub *Hub, allowedOrigins []string, sendBuffer int) *Handler {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Handler{
		router:     router,
		hub:        hub,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, name := middleware.UserFrom(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.From(r.Context()).Warn("upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	client := &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, h.sendBuffer),
		hub:    h.hub,
		router: h.router,
		log: logx.From(r.Context()).With(
			zap.String("conn", id),
			zap.String("room_hint", r.URL.Query().Get("roomId")),
		),
	}

	// the hub must know the client before the router greets it
	h.hub.Add(client)
	if err := h.router.Connect(id, userID, name); err != nil {
		h.hub.Remove(id)
		conn.Close()
		return
	}

	client.log.Debug("connected", zap.String("user", userID))

	go client.write()
	client.read()
}
