package ws

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Roygautam8852/SyncSpace/config"
	"github.com/Roygautam8852/SyncSpace/internal/logx"
	"github.com/Roygautam8852/SyncSpace/session"
)

func participants(ms []session.CallMember) []config.Participant {
	out := make([]config.Participant, 0, len(ms))
	for _, m := range ms {
		out = append(out, config.Participant{SocketID: m.ConnID, Username: m.Username})
	}
	return out
}

func callStatus(call *session.Call) config.CallActiveOut {
	if call == nil || call.Len() == 0 {
		return config.CallActiveOut{Active: false, Participants: []config.Participant{}}
	}
	return config.CallActiveOut{Active: true, Participants: participants(call.Members())}
}

func (rt *Router) broadcastCallStatus(roomID string) {
	rt.broadcast(roomID, "", config.EvCallActive, callStatus(rt.reg.Call(roomID)))
}

func (rt *Router) meshJoin(c *session.Conn, data json.RawMessage) error {
	var m config.MeshJoinIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}
	name := m.Username
	if name == "" {
		name = c.UserName
	}

	res := rt.reg.JoinCall(roomID, c.ID, name)

	rt.send(c.ID, config.EvMeshExistingPeers, config.ExistingPeersOut{Peers: participants(res.Existing)})
	if res.New {
		rt.broadcast(roomID, c.ID, config.EvMeshNewPeer, config.Participant{SocketID: c.ID, Username: name})
	}
	rt.broadcastCallStatus(roomID)
	rt.gauges()

	logx.Room(roomID, config.EvMeshJoin).Info("call joined",
		zap.String("conn", c.ID),
		zap.Bool("creator", res.Creator),
		zap.Int("members", rt.reg.Call(roomID).Len()),
	)
	return nil
}

func (rt *Router) meshLeave(c *session.Conn, data json.RawMessage) error {
	var m config.RoomMsg
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}
	rt.exitCall(roomID, c.ID, config.ReasonCreatorLeft)
	return nil
}

// exitCall applies the call policy to a departing connection and fans the
// outcome out to whoever is still present in the room.
func (rt *Router) exitCall(roomID, connID, reason string) {
	exit, ok := rt.reg.ExitCall(roomID, connID)
	if !ok {
		return
	}

	log := logx.Room(roomID, config.EvMeshLeave).With(zap.String("conn", connID))
	if exit.Ended {
		rt.broadcast(roomID, "", config.EvMeshCallEnded, config.CallEndedOut{Reason: reason})
		log.Info("call ended", zap.String("reason", reason))
	} else {
		rt.broadcast(roomID, connID, config.EvMeshPeerLeft, config.PeerLeftOut{SocketID: connID})
		if exit.NewCreator != "" {
			log.Info("call creator moved", zap.String("creator", exit.NewCreator))
		}
	}

	rt.broadcastCallStatus(roomID)
	rt.gauges()
}

// relayTarget checks that a point-to-point target shares the sender's room.
func (rt *Router) relayTarget(roomID, to string) error {
	if to == "" {
		return fmt.Errorf("relay without target")
	}
	if !rt.reg.InRoom(to, roomID) {
		return fmt.Errorf("relay target %s not in room", to)
	}
	return nil
}

func (rt *Router) meshSignal(event string) handlerFunc {
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

		out := config.SignalOut{From: c.ID}
		switch event {
		case config.EvMeshOffer:
			out.Offer = m.Offer
			out.Username = rt.reg.CallName(roomID, c.ID)
		case config.EvMeshAnswer:
			out.Answer = m.Answer
		case config.EvMeshCandidate:
			out.Candidate = m.Candidate
		}
		rt.send(m.To, event, out)
		return nil
	}
}

func (rt *Router) meshMediaState(c *session.Conn, data json.RawMessage) error {
	var m config.MediaStateIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}
	rt.broadcast(roomID, c.ID, config.EvMeshMediaState, config.MediaStateOut{From: c.ID, Mic: m.Mic, Cam: m.Cam})
	return nil
}
