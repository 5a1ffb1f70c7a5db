package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Roygautam8852/SyncSpace/board"
	"github.com/Roygautam8852/SyncSpace/config"
	"github.com/Roygautam8852/SyncSpace/db"
	"github.com/Roygautam8852/SyncSpace/internal/logx"
	"github.com/Roygautam8852/SyncSpace/middleware"
	"github.com/Roygautam8852/SyncSpace/session"
)

func userOut(p session.Presence) config.UserOut {
	key := p.UserID
	if key == "" {
		key = p.ConnID
	}
	return config.UserOut{
		UserID:   p.UserID,
		UserName: p.UserName,
		SocketID: p.ConnID,
		Color:    middleware.ColorFromUserID(key),
	}
}

func (rt *Router) onlineUsers(roomID string) []config.UserOut {
	members := rt.reg.Members(roomID)
	out := make([]config.UserOut, 0, len(members))
	for _, p := range members {
		out = append(out, userOut(p))
	}
	return out
}

func (rt *Router) joinRoom(c *session.Conn, data json.RawMessage) error {
	var m config.RoomMsg
	if err := decode(data, &m); err != nil {
		return err
	}
	if m.RoomID == "" {
		return fmt.Errorf("join-room without roomId")
	}

	if c.Room != "" && c.Room != m.RoomID {
		rt.depart(c, config.ReasonCreatorLeft)
	}
	if err := rt.reg.Join(c.ID, m.RoomID, m.UserID, m.UserName); err != nil {
		return err
	}
	roomID := c.Room

	var self session.Presence
	for _, p := range rt.reg.Members(roomID) {
		if p.ConnID == c.ID {
			self = p
		}
	}
	rt.broadcast(roomID, c.ID, config.EvUserJoined, userOut(self))
	rt.broadcast(roomID, "", config.EvOnlineUsers, rt.onlineUsers(roomID))

	if call := rt.reg.Call(roomID); call != nil {
		rt.send(c.ID, config.EvCallActive, callStatus(call))
	}
	rt.gauges()

	logx.Room(roomID, config.EvJoinRoom).Info("joined",
		zap.String("conn", c.ID),
		zap.String("user", c.UserID),
	)

	var host string
	if c.Verified {
		host = c.UserID
	}

	connID := c.ID
	rt.persist(storeOp{
		op:     config.EvJoinRoom,
		room:   roomID,
		create: rt.opts.AutoCreate,
		host:   host,
		then: func(room *config.Room, err error) {
			if err != nil {
				if !errors.Is(err, db.ErrRoomNotFound) {
					logx.Room(roomID, config.EvJoinRoom).Warn("snapshot unavailable", zap.Error(err))
				}
				return
			}
			// the connection may have moved on while the store was busy
			if !rt.reg.InRoom(connID, roomID) {
				return
			}
			rt.send(connID, config.EvCanvasState, canvasState(room))
			if len(room.ChatHistory) > 0 {
				rt.send(connID, config.EvChatHistory, room.ChatHistory)
			}
		},
	})
	return nil
}

func canvasState(room *config.Room) config.CanvasStateOut {
	out := config.CanvasStateOut{Strokes: []config.Stroke{}, Pages: board.Refs(room)}
	if p := board.ActivePage(room); p != nil {
		out.PageID = p.PageID
		if p.Strokes != nil {
			out.Strokes = p.Strokes
		}
	}
	return out
}

func (rt *Router) leaveRoom(c *session.Conn, data json.RawMessage) error {
	var m config.RoomMsg
	if err := decode(data, &m); err != nil {
		return err
	}
	if _, err := resolve(c, m.RoomID); err != nil {
		return err
	}
	rt.depart(c, config.ReasonCreatorLeft)
	return nil
}

func (rt *Router) disconnect(connID string) {
	c, ok := rt.reg.Conn(connID)
	if !ok {
		return
	}
	if c.Room != "" {
		rt.depart(c, config.ReasonCreatorDisconnected)
	}
	rt.reg.Forget(connID)
	rt.gauges()
}

// depart takes a connection out of its room: presence first, then typing,
// then the call exit policy, so the leaver receives none of the fan-out.
func (rt *Router) depart(c *session.Conn, reason string) {
	roomID, p, ok := rt.reg.Leave(c.ID)
	if !ok {
		return
	}

	rt.broadcast(roomID, "", config.EvUserLeft, userOut(p))
	rt.broadcast(roomID, "", config.EvOnlineUsers, rt.onlineUsers(roomID))

	rt.reg.StopTyping(roomID, c.ID)
	rt.broadcast(roomID, "", config.EvTypingStop, config.TypingOut{SocketID: c.ID})

	rt.exitCall(roomID, c.ID, reason)
	rt.gauges()

	logx.Room(roomID, config.EvLeaveRoom).Info("left",
		zap.String("conn", c.ID),
		zap.String("reason", reason),
	)
}

func (rt *Router) chatMessage(c *session.Conn, data json.RawMessage) error {
	var m config.ChatIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}

	sender, name := m.UserID, m.UserName
	if c.Verified || sender == "" {
		sender = c.UserID
	}
	if name == "" {
		name = c.UserName
	}
	msg := config.ChatMessage{
		Sender:     sender,
		SenderName: name,
		Text:       m.Message,
		Timestamp:  rt.opts.Now().UTC(),
	}

	rt.broadcast(roomID, "", config.EvChatMessage, msg)

	rt.persist(storeOp{
		op:   config.EvChatMessage,
		room: roomID,
		mutate: func(room *config.Room, _ time.Time) (bool, error) {
			room.ChatHistory = append(room.ChatHistory, msg)
			return true, nil
		},
	})
	return nil
}

func (rt *Router) typingStart(c *session.Conn, data json.RawMessage) error {
	var m config.RoomMsg
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}

	name := m.UserName
	if name == "" {
		name = c.UserName
	}
	rt.reg.StartTyping(roomID, c.ID, rt.opts.Now().Add(rt.opts.TypingTTL))
	rt.broadcast(roomID, c.ID, config.EvTypingStart, config.TypingOut{UserName: name, SocketID: c.ID})
	return nil
}

func (rt *Router) typingStop(c *session.Conn, data json.RawMessage) error {
	var m config.RoomMsg
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}

	rt.reg.StopTyping(roomID, c.ID)
	rt.broadcast(roomID, c.ID, config.EvTypingStop, config.TypingOut{SocketID: c.ID})
	return nil
}

func (rt *Router) cursorMove(c *session.Conn, data json.RawMessage) error {
	var m config.CursorIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}

	out := make(map[string]json.RawMessage, len(m.CursorData)+1)
	for k, v := range m.CursorData {
		out[k] = v
	}
	id, _ := json.Marshal(c.ID)
	out["socketId"] = id

	rt.broadcast(roomID, c.ID, config.EvCursorMove, out)
	return nil
}
