// Package session implements the three-tier connection state machine
// of spec §4.7 (Init -> Space -> Game) and the wire frame shapes of
// §6.
package session

import (
	"encoding/json"
	"time"

	"github.com/tolelom/cardtable/protoerr"
)

// InFrame is every inbound message's shape (spec §6).
type InFrame struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	FutureID string          `json:"future_id,omitempty"`
}

// Stream is a single client connection's duplex channel. Concrete
// transports (e.g. a gorilla/websocket connection) implement this;
// session code never touches the wire directly.
type Stream interface {
	Send(frame any) error
	Close() error
}

func reply(reqType string, data any, futureID string) map[string]any {
	f := map[string]any{
		"type": reqType + "_resp",
		"data": data,
		"time": float64(time.Now().Unix()),
	}
	if futureID != "" {
		f["future_id"] = futureID
	}
	return f
}

func event(eventType string, data any) map[string]any {
	return map[string]any{
		"type": eventType,
		"data": data,
		"time": float64(time.Now().Unix()),
	}
}

// errorFrame renders err as the outbound error/redirect frame shape
// spec §7 defines. Plain (non-*protoerr.Error) errors are reported as
// a bare error frame, matching the KindFatal "unexpected exception"
// case.
func errorFrame(err error) map[string]any {
	if pe, ok := protoerr.As(err); ok && pe.Kind == protoerr.KindRedirect {
		return map[string]any{"type": "redirect", "msg": pe.Error(), "url": pe.RedirectURL}
	}
	return map[string]any{"type": "error", "msg": err.Error()}
}
