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
	"github.com/Roygautam8852/SyncSpace/session"
)

const (
	msgHostOnlyClear = "Only the host can clear the board"
	msgLastPage      = "Cannot delete the last page"
)

var errNotHost = errors.New("not the room host")

func (rt *Router) newStroke(c *session.Conn, data json.RawMessage) error {
	var m config.StrokeIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}
	if m.Stroke == nil {
		return fmt.Errorf("new-stroke without stroke")
	}
	s := *m.Stroke

	rt.broadcast(roomID, c.ID, config.EvNewStroke, s)

	rt.persist(storeOp{
		op:   config.EvNewStroke,
		room: roomID,
		mutate: func(room *config.Room, now time.Time) (bool, error) {
			return true, board.AppendStroke(room, m.PageID, s, now)
		},
	})
	return nil
}

// update-stroke is live only; the settled sequence arrives through
// update-board-state.
func (rt *Router) updateStroke(c *session.Conn, data json.RawMessage) error {
	var m config.StrokeIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}
	if m.Stroke == nil {
		return fmt.Errorf("update-stroke without stroke")
	}

	rt.broadcast(roomID, c.ID, config.EvUpdateStroke, m.Stroke)
	return nil
}

func (rt *Router) eraseStroke(c *session.Conn, data json.RawMessage) error {
	var m config.EraseStrokeIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}
	if m.StrokeID.IsZero() {
		return fmt.Errorf("erase-stroke without strokeId")
	}

	rt.broadcast(roomID, c.ID, config.EvEraseStroke, config.EraseStrokeOut{StrokeID: m.StrokeID})
	return nil
}

func (rt *Router) updateBoardState(c *session.Conn, data json.RawMessage) error {
	var m config.BoardStateIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}
	strokes := m.Strokes
	if strokes == nil {
		strokes = []config.Stroke{}
	}

	rt.broadcast(roomID, c.ID, config.EvBoardStateUpdated, strokes)

	rt.persist(storeOp{
		op:   config.EvUpdateBoardState,
		room: roomID,
		mutate: func(room *config.Room, now time.Time) (bool, error) {
			return true, board.ReplaceStrokes(room, m.PageID, strokes, now)
		},
	})
	return nil
}

// clear-board needs the stored host before anything is broadcast.
func (rt *Router) clearBoard(c *session.Conn, data json.RawMessage) error {
	var m config.PageIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}

	userID := m.UserID
	if c.Verified || userID == "" {
		userID = c.UserID
	}
	connID := c.ID

	var pageID string
	rt.persist(storeOp{
		op:   config.EvClearBoard,
		room: roomID,
		mutate: func(room *config.Room, now time.Time) (bool, error) {
			if userID == "" || room.Host != userID {
				return false, errNotHost
			}
			p, err := board.TargetPage(room, m.PageID)
			if err != nil {
				// nothing to clear, peers still reset their view
				pageID = m.PageID
				return false, nil
			}
			pageID = p.PageID
			return true, board.ClearPage(room, pageID, now)
		},
		then: func(_ *config.Room, err error) {
			switch {
			case errors.Is(err, errNotHost), errors.Is(err, db.ErrRoomNotFound):
				rt.send(connID, config.EvErrorMessage, msgHostOnlyClear)
			case err != nil:
				logx.Room(roomID, config.EvClearBoard).Warn("clear failed", zap.Error(err))
			default:
				rt.broadcast(roomID, "", config.EvBoardCleared, config.PageOut{PageID: pageID})
			}
		},
	})
	return nil
}

func (rt *Router) saveBoard(c *session.Conn, data json.RawMessage) error {
	var m config.PageIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}
	connID := c.ID

	rt.persist(storeOp{
		op:   config.EvSaveBoard,
		room: roomID,
		mutate: func(room *config.Room, now time.Time) (bool, error) {
			if board.FindPage(room, m.PageID) == nil {
				return false, nil
			}
			return true, board.Touch(room, m.PageID, now)
		},
		then: func(room *config.Room, err error) {
			if err != nil {
				logx.Room(roomID, config.EvSaveBoard).Warn("save failed", zap.Error(err))
				return
			}
			rt.send(connID, config.EvBoardSaved, config.PageOut{PageID: m.PageID})

			if p := board.FindPage(room, m.PageID); p != nil {
				rt.export(roomID, *p)
			}
		},
	})
	return nil
}

// export ships a page snapshot to the archive off the loop. Failures are
// logged only.
func (rt *Router) export(roomID string, page config.Page) {
	if rt.opts.Archive == nil {
		return
	}
	ctx := rt.ctx
	go func() {
		key, err := rt.opts.Archive.Export(ctx, roomID, page)
		log := logx.Room(roomID, config.EvSaveBoard).With(zap.String("page", page.PageID))
		if err != nil {
			log.Warn("archive export failed", zap.Error(err))
			return
		}
		log.Info("archived", zap.String("key", key))
	}()
}

func (rt *Router) newPage(c *session.Conn, data json.RawMessage) error {
	var m config.PageIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}

	var added config.Page
	rt.persist(storeOp{
		op:   config.EvNewPage,
		room: roomID,
		mutate: func(room *config.Room, now time.Time) (bool, error) {
			added = board.AddPage(room, now)
			return true, nil
		},
		then: func(room *config.Room, err error) {
			if err != nil {
				logx.Room(roomID, config.EvNewPage).Warn("add page failed", zap.Error(err))
				return
			}
			rt.broadcast(roomID, "", config.EvPageAdded, config.PageAddedOut{
				PageID:   added.PageID,
				PageName: added.PageName,
				Pages:    board.Refs(room),
			})
		},
	})
	return nil
}

func (rt *Router) switchPage(c *session.Conn, data json.RawMessage) error {
	var m config.PageIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}

	rt.persist(storeOp{
		op:   config.EvSwitchPage,
		room: roomID,
		mutate: func(room *config.Room, _ time.Time) (bool, error) {
			_, err := board.SwitchPage(room, m.PageID)
			return err == nil, err
		},
		then: func(room *config.Room, err error) {
			if err != nil {
				logx.Room(roomID, config.EvSwitchPage).Debug("switch rejected", zap.Error(err))
				return
			}
			p := board.FindPage(room, m.PageID)
			rt.broadcast(roomID, "", config.EvPageSwitched, config.PageSwitchedOut{
				PageID:  p.PageID,
				Strokes: strokesOf(p),
			})
		},
	})
	return nil
}

func (rt *Router) deletePage(c *session.Conn, data json.RawMessage) error {
	var m config.PageIn
	if err := decode(data, &m); err != nil {
		return err
	}
	roomID, err := resolve(c, m.RoomID)
	if err != nil {
		return err
	}
	connID := c.ID

	rt.persist(storeOp{
		op:   config.EvDeletePage,
		room: roomID,
		mutate: func(room *config.Room, _ time.Time) (bool, error) {
			_, err := board.DeletePage(room, m.PageID)
			return err == nil, err
		},
		then: func(room *config.Room, err error) {
			switch {
			case errors.Is(err, board.ErrLastPage):
				rt.send(connID, config.EvErrorMessage, msgLastPage)
			case err != nil:
				logx.Room(roomID, config.EvDeletePage).Debug("delete rejected", zap.Error(err))
			default:
				active := board.ActivePage(room)
				rt.broadcast(roomID, "", config.EvPageDeleted, config.PageDeletedOut{
					PageID:       m.PageID,
					ActivePageID: active.PageID,
					Strokes:      strokesOf(active),
					Pages:        board.Refs(room),
				})
			}
		},
	})
	return nil
}

func strokesOf(p *config.Page) []config.Stroke {
	if p == nil || p.Strokes == nil {
		return []config.Stroke{}
	}
	return p.Strokes
}
