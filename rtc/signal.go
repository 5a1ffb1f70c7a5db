package rtc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Roygautam8852/SyncSpace/config"
)

// Signaler sends one event to the room server.
type Signaler interface {
	Emit(event string, data any) error
}

// WSSignaler speaks the room protocol over a gorilla websocket.
type WSSignaler struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func DialSignaler(ctx context.Context, url string, header http.Header) (*WSSignaler, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return &WSSignaler{conn: conn}, nil
}

func (s *WSSignaler) Emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(config.NetworkMsg{Event: event, Data: raw})
}

// Listen hands every inbound frame to fn until the socket fails.
func (s *WSSignaler) Listen(fn func(event string, data json.RawMessage)) error {
	for {
		var m config.NetworkMsg
		if err := s.conn.ReadJSON(&m); err != nil {
			return err
		}
		fn(m.Event, m.Data)
	}
}

func (s *WSSignaler) Close() error {
	s.mu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.mu.Unlock()
	return s.conn.Close()
}
