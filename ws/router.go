package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Roygautam8852/SyncSpace/board"
	"github.com/Roygautam8852/SyncSpace/config"
	"github.com/Roygautam8852/SyncSpace/db"
	"github.com/Roygautam8852/SyncSpace/internal/logx"
	"github.com/Roygautam8852/SyncSpace/internal/metrics"
	"github.com/Roygautam8852/SyncSpace/middleware"
	"github.com/Roygautam8852/SyncSpace/session"
)

var ErrRouterStopped = errors.New("router stopped")

// Sender delivers an encoded frame to one connection. It must not block.
type Sender interface {
	Send(connID string, frame []byte) bool
}

// Archiver exports a saved page snapshot and returns its object key.
type Archiver interface {
	Export(ctx context.Context, roomID string, page config.Page) (string, error)
}

type Options struct {
	TypingTTL   time.Duration
	EventBuffer int
	// AutoCreate starts an empty room document on join when the store has
	// none. Only a connection with a handshake identity becomes its host.
	AutoCreate bool
	Archive    Archiver
	Now        func() time.Time
}

type inbound struct {
	conn string
	msg  config.NetworkMsg

	connect    *session.Conn
	disconnect bool
	barrier    chan struct{}
}

type handlerFunc func(c *session.Conn, data json.RawMessage) error

// Router is the single owner of the session registry. Every inbound event,
// store continuation and typing sweep runs on its loop goroutine, so
// handlers read and mutate the registry without locks.
type Router struct {
	reg    *session.Registry
	out    Sender
	writer *db.Writer
	opts   Options

	events chan inbound
	tasks  chan func()
	done   chan struct{}
	ctx    context.Context

	handlers map[string]handlerFunc
}

func NewRouter(reg *session.Registry, out Sender, writer *db.Writer, opts Options) *Router {
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = 8 * time.Second
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 4096
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	rt := &Router{
		reg:    reg,
		out:    out,
		writer: writer,
		opts:   opts,
		events: make(chan inbound, opts.EventBuffer),
		tasks:  make(chan func(), opts.EventBuffer),
		done:   make(chan struct{}),
		ctx:    context.Background(),
	}
	rt.handlers = rt.routes()
	return rt
}

func (rt *Router) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		config.EvJoinRoom:    rt.joinRoom,
		config.EvLeaveRoom:   rt.leaveRoom,
		config.EvChatMessage: rt.chatMessage,
		config.EvTypingStart: rt.typingStart,
		config.EvTypingStop:  rt.typingStop,
		config.EvCursorMove:  rt.cursorMove,

		config.EvNewStroke:        rt.newStroke,
		config.EvUpdateStroke:     rt.updateStroke,
		config.EvEraseStroke:      rt.eraseStroke,
		config.EvUpdateBoardState: rt.updateBoardState,
		config.EvClearBoard:       rt.clearBoard,
		config.EvSaveBoard:        rt.saveBoard,
		config.EvSaveCanvas:       func(*session.Conn, json.RawMessage) error { return nil },
		config.EvNewPage:          rt.newPage,
		config.EvSwitchPage:       rt.switchPage,
		config.EvDeletePage:       rt.deletePage,

		config.EvDrawing:          rt.relay(config.EvDrawing, func(m config.RelayIn) any { return m.DrawingData }),
		config.EvErase:            rt.relay(config.EvErase, func(m config.RelayIn) any { return m.EraseData }),
		config.EvFileShared:       rt.relay(config.EvNewFile, func(m config.RelayIn) any { return m.File }),
		config.EvUndo:             rt.relay(config.EvUndo, func(m config.RelayIn) any { return m.CanvasState }),
		config.EvRedo:             rt.relay(config.EvRedo, func(m config.RelayIn) any { return m.CanvasState }),
		config.EvScreenShareStart: rt.relay(config.EvScreenShareStart, screenShare),
		config.EvScreenShareStop:  rt.relay(config.EvScreenShareStop, func(config.RelayIn) any { return nil }),

		config.EvMeshJoin:       rt.meshJoin,
		config.EvMeshLeave:      rt.meshLeave,
		config.EvMeshOffer:      rt.meshSignal(config.EvMeshOffer),
		config.EvMeshAnswer:     rt.meshSignal(config.EvMeshAnswer),
		config.EvMeshCandidate:  rt.meshSignal(config.EvMeshCandidate),
		config.EvMeshMediaState: rt.meshMediaState,

		config.EvCallStart:     rt.callStart,
		config.EvCallAccept:    rt.callDirect(config.EvCallAccepted),
		config.EvCallReject:    rt.callDirect(config.EvCallRejected),
		config.EvCallCancel:    rt.callCancel,
		config.EvCallOffer:     rt.callDirect(config.EvCallOffer),
		config.EvCallAnswer:    rt.callDirect(config.EvCallAnswer),
		config.EvCallCandidate: rt.callDirect(config.EvCallCandidate),
		config.EvCallEnd:       rt.callEnd,
	}
}

/* --------------------------------------------------
   intake (any goroutine)
   -------------------------------------------------- */

func (rt *Router) push(in inbound) error {
	select {
	case rt.events <- in:
		return nil
	case <-rt.done:
		return ErrRouterStopped
	}
}

// Connect registers a connection. A non-empty userID is a verified
// identity from the handshake.
func (rt *Router) Connect(connID, userID, userName string) error {
	return rt.push(inbound{conn: connID, connect: &session.Conn{ID: connID, UserID: userID, UserName: userName}})
}

// Dispatch queues one raw frame from a connection. It blocks while the
// loop is saturated, which back-pressures that connection's read pump.
func (rt *Router) Dispatch(connID string, frame []byte) error {
	msg, err := middleware.DecodeNetworkMsg(frame)
	if err != nil {
		logx.L.Debug("bad frame", zap.String("conn", connID), zap.Error(err))
		return nil
	}
	return rt.push(inbound{conn: connID, msg: msg})
}

func (rt *Router) Disconnect(connID string) error {
	return rt.push(inbound{conn: connID, disconnect: true})
}

// Drain returns once every event queued before the call has been handled
// and every store job it started has finished and reported back.
func (rt *Router) Drain(ctx context.Context) error {
	ch := make(chan struct{})
	if err := rt.push(inbound{barrier: ch}); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-rt.done:
		return ErrRouterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post schedules fn on the loop. Store continuations use it.
func (rt *Router) post(fn func()) {
	select {
	case rt.tasks <- fn:
	case <-rt.done:
	}
}

/* --------------------------------------------------
   loop
   -------------------------------------------------- */

func (rt *Router) Run(ctx context.Context) {
	defer close(rt.done)
	rt.ctx = ctx

	sweep := rt.opts.TypingTTL / 4
	if sweep < 250*time.Millisecond {
		sweep = 250 * time.Millisecond
	}
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case in := <-rt.events:
			rt.handle(in)
		case fn := <-rt.tasks:
			rt.safely("task", "", fn)
		case <-ticker.C:
			rt.expireTyping(rt.opts.Now())
		}
	}
}

// Done is closed once Run has returned.
func (rt *Router) Done() <-chan struct{} { return rt.done }

func (rt *Router) handle(in inbound) {
	switch {
	case in.barrier != nil:
		rt.barrier(in.barrier)

	case in.connect != nil:
		c := rt.reg.Connect(in.conn, in.connect.UserID, in.connect.UserName)
		metrics.Connections.Set(float64(rt.reg.ConnCount()))
		rt.send(c.ID, config.EvConnected, config.ConnectedOut{SocketID: c.ID})

	case in.disconnect:
		rt.safely("disconnect", in.conn, func() { rt.disconnect(in.conn) })

	default:
		c, ok := rt.reg.Conn(in.conn)
		if !ok {
			return
		}
		h, ok := rt.handlers[in.msg.Event]
		if !ok {
			logx.L.Debug("unknown event", zap.String("conn", c.ID), zap.String("event", in.msg.Event))
			return
		}
		metrics.Events.WithLabelValues(in.msg.Event).Inc()

		rt.safely(in.msg.Event, c.Room, func() {
			if err := h(c, in.msg.Data); err != nil {
				logx.Room(c.Room, in.msg.Event).Debug("event dropped",
					zap.String("conn", c.ID),
					zap.Error(err),
				)
			}
		})
	}
}

// barrier closes ch after a marker job has passed through the writer, so
// every earlier job and its continuation has already run.
func (rt *Router) barrier(ch chan struct{}) {
	ok := rt.writer.Enqueue(db.Job{
		Op:  "barrier",
		Run: func(context.Context, db.Store) error { return nil },
		Done: func(error) {
			rt.post(func() { close(ch) })
		},
	})
	if !ok {
		close(ch)
	}
}

// safely keeps one bad event from taking the loop down.
func (rt *Router) safely(event, roomID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logx.Room(roomID, event).Error("handler panic", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

/* --------------------------------------------------
   fan-out
   -------------------------------------------------- */

func encode(event string, data any) []byte {
	b, err := middleware.EncodeNetworkMsg(event, data)
	if err != nil {
		logx.L.Error("encode frame", zap.String("event", event), zap.Error(err))
		return nil
	}
	return b
}

func (rt *Router) send(connID, event string, data any) {
	if b := encode(event, data); b != nil {
		rt.out.Send(connID, b)
	}
}

// broadcast sends to everyone present in the room except one connection;
// pass "" to include all.
func (rt *Router) broadcast(roomID, except, event string, data any) {
	ids := rt.reg.Recipients(roomID, except)
	if len(ids) == 0 {
		return
	}
	b := encode(event, data)
	if b == nil {
		return
	}
	for _, id := range ids {
		rt.out.Send(id, b)
	}
}

// resolve picks the room an event applies to. Connections act only on the
// room they joined; a payload naming another room is ignored.
func resolve(c *session.Conn, roomID string) (string, error) {
	if c.Room == "" {
		return "", fmt.Errorf("connection has not joined a room")
	}
	if roomID != "" && roomID != c.Room {
		return "", fmt.Errorf("room %q does not match joined room %q", roomID, c.Room)
	}
	return c.Room, nil
}

func decode(data json.RawMessage, v any) error {
	if err := middleware.DecodeData(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

/* --------------------------------------------------
   store jobs
   -------------------------------------------------- */

// storeOp is the durability half of an event: load, mutate, save on the
// writer goroutine, then an optional continuation back on the loop.
type storeOp struct {
	op   string
	room string

	// create starts the room when it does not exist, hosted by host
	create bool
	host   string

	// mutate reports whether the document changed. An error rejects the
	// operation without saving and is handed to then.
	mutate func(room *config.Room, now time.Time) (bool, error)

	// then runs on the loop with the document as saved
	then func(room *config.Room, err error)
}

func (rt *Router) persist(op storeOp) {
	var (
		snapshot *config.Room
		rejected error
	)

	job := db.Job{
		Op:     op.op,
		RoomID: op.room,
		Run: func(ctx context.Context, s db.Store) error {
			room, err := db.LoadOrCreate(ctx, s, op.room, op.host, op.create)
			if err != nil {
				return err
			}

			now := rt.opts.Now()
			dirty := board.EnsurePages(room, now)

			if op.mutate != nil {
				changed, err := op.mutate(room, now)
				if err != nil {
					rejected = err
					changed = false
				}
				dirty = dirty || changed
			}

			if dirty {
				room.UpdatedAt = now
				if err := s.Save(ctx, room); err != nil {
					return err
				}
			}
			snapshot = room
			return nil
		},
		Done: func(err error) {
			if err == nil {
				err = rejected
			}
			if op.then == nil {
				if err != nil && errors.Is(err, board.ErrPageNotFound) {
					logx.Room(op.room, op.op).Debug("page missing", zap.Error(err))
				}
				return
			}
			rt.post(func() { op.then(snapshot, err) })
		},
	}

	if !rt.writer.Enqueue(job) {
		logx.Room(op.room, op.op).Warn("store writer closed, operation not persisted")
	}
}

/* --------------------------------------------------
   typing expiry
   -------------------------------------------------- */

func (rt *Router) expireTyping(now time.Time) {
	for _, e := range rt.reg.ExpireTyping(now) {
		rt.broadcast(e.Room, e.ConnID, config.EvTypingStop, config.TypingOut{SocketID: e.ConnID})
	}
}

func (rt *Router) gauges() {
	metrics.Rooms.Set(float64(rt.reg.RoomCount()))
	metrics.ActiveCalls.Set(float64(rt.reg.CallCount()))
	metrics.Connections.Set(float64(rt.reg.ConnCount()))
}
