// Package logreplay reads DevTools traffic back out of a driver debug log.
//
// A record starts on a header line such as
//
//	[1531428669.535][DEBUG]: DevTools WebSocket Command: Page.enable (id=3) {
//	   "frameId": "A1"
//	}
//
// and may carry a JSON payload that continues over the following lines until
// its brackets balance. Lines that are not record headers are skipped.
package logreplay

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidHeader  = errors.New("logreplay: invalid entry header")
	ErrInvalidPayload = errors.New("logreplay: invalid entry payload")
)

// Protocol is the DevTools channel a record was logged for.
type Protocol string

const (
	ProtocolHTTP      Protocol = "HTTP"
	ProtocolWebSocket Protocol = "WebSocket"
)

// EventType classifies a record.
type EventType string

const (
	EventRequest  EventType = "request"
	EventResponse EventType = "response"
	EventEvent    EventType = "event"
)

// Entry is one parsed record.
type Entry struct {
	Protocol  Protocol  `json:"protocol" yaml:"protocol"`
	EventType EventType `json:"event_type" yaml:"event_type"`
	// Name is the command, url or event name. Empty for HTTP responses.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// ID is the command sequence number, zero when the header has none.
	ID        int    `json:"id,omitempty" yaml:"id,omitempty"`
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Payload   string `json:"payload,omitempty" yaml:"payload,omitempty"`
	// Line is the 1-based line of the header.
	Line int `json:"line" yaml:"line"`
}

// DecodePayload unmarshals the JSON payload into v.
func (e *Entry) DecodePayload(v any) error {
	if e.Payload == "" {
		return fmt.Errorf("%w: entry at line %d has no payload", ErrInvalidPayload, e.Line)
	}
	if err := json.Unmarshal([]byte(e.Payload), v); err != nil {
		return fmt.Errorf("%w: line %d: %v", ErrInvalidPayload, e.Line, err)
	}
	return nil
}

// ParseError locates a malformed record.
type ParseError struct {
	Line int
	Err  error
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v at line %d: %s", e.Err, e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
