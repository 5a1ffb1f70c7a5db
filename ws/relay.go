package ws

import (
	"encoding/json"

	"github.com/Roygautam8852/SyncSpace/config"
	"github.com/Roygautam8852/SyncSpace/session"
)

// relay re-broadcasts a body the server never interprets to the rest of
// the room under the outbound event name.
func (rt *Router) relay(event string, body func(config.RelayIn) any) handlerFunc {
	return func(c *session.Conn, data json.RawMessage) error {
		var m config.RelayIn
		if err := decode(data, &m); err != nil {
			return err
		}
		roomID, err := resolve(c, m.RoomID)
		if err != nil {
			return err
		}
		rt.broadcast(roomID, c.ID, event, body(m))
		return nil
	}
}

func screenShare(m config.RelayIn) any {
	return config.ScreenShareOut{UserID: m.UserID, UserName: m.UserName}
}

/* --------------------------------------------------
   legacy 1:1 call signaling
   -------------------------------------------------- */

func (rt *Router) callStart(c *session.Conn, data json.RawMessage) error {
	var m config.RelayIn
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
	rt.broadcast(roomID, c.ID, config.EvCallRinging, config.CallRingOut{From: c.ID, UserName: name})
	return nil
}

func (rt *Router) callCancel(c *session.Conn, data json.RawMessage) error {
	var m config.RoomMsg
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}
	rt.broadcast(roomID, c.ID, config.EvCallCancelled, config.CallRingOut{From: c.ID})
	return nil
}

// callDirect relays accept/reject/offer/answer/candidate to one target.
func (rt *Router) callDirect(event string) handlerFunc {
	return func(c *session.Conn, data json.RawMessage) error {
		var m config.SignalIn
		if err := decode(data, &m); err != nil {
			return err
		}
		roomID, err := resolve(c, m.RoomID)
		if err != nil {
			return err
		}
		if err := rt.relayTarget(roomID, m.To); err != nil {
			return err
		}
		rt.send(m.To, event, config.SignalOut{
			From:      c.ID,
			Offer:     m.Offer,
			Answer:    m.Answer,
			Candidate: m.Candidate,
		})
		return nil
	}
}

// call:end goes to one peer when addressed, else to the room.
func (rt *Router) callEnd(c *session.Conn, data json.RawMessage) error {
	var m config.SignalIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}
	out := config.CallRingOut{From: c.ID}
	if m.To == "" {
		rt.broadcast(roomID, c.ID, config.EvCallEnded, out)
		return nil
	}
	if err := rt.relayTarget(roomID, m.To); err != nil {
		return err
	}
	rt.send(m.To, config.EvCallEnded, out)
	return nil
}
