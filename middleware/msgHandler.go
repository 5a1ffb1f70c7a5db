package middleware

import (
	"encoding/json"
	"errors"

	"github.com/Roygautam8852/SyncSpace/config"
)

var ErrNoEvent = errors.New("frame has no event name")

// DecodeNetworkMsg reads one inbound envelope. Data stays raw until a
// handler picks its payload type.
func DecodeNetworkMsg(frame []byte) (config.NetworkMsg, error) {
	var m config.NetworkMsg

	if err := json.Unmarshal(frame, &m); err != nil {
		return config.NetworkMsg{}, err
	}
	if m.Event == "" {
		return config.NetworkMsg{}, ErrNoEvent
	}

	return m, nil
}

// EncodeNetworkMsg builds one outbound frame. Fan-outs encode once and
// share the bytes.
func EncodeNetworkMsg(event string, data any) ([]byte, error) {
	return json.Marshal(config.ServerMsg{Event: event, Data: data})
}

// DecodeData unmarshals an envelope body into v. An absent body leaves v
// at its zero value.
func DecodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
