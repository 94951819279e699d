package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies stream event variants.
type EventType string

const (
	TypeToken EventType = "token"
	TypeDone  EventType = "done"
	TypeError EventType = "error"
)

var ErrUnsupportedType = errors.New("unsupported event type")

// StreamEvent is one element of a session's event stream. Within one stream
// the order is token* followed by exactly one of done or error.
type StreamEvent struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
	Message string    `json:"message,omitempty"`
}

func Token(content string) StreamEvent {
	return StreamEvent{Type: TypeToken, Content: content}
}

func Done() StreamEvent {
	return StreamEvent{Type: TypeDone}
}

func Error(message string) StreamEvent {
	return StreamEvent{Type: TypeError, Message: message}
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == TypeDone || e.Type == TypeError
}

func (e StreamEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ParseStreamEvent decodes one wire event and validates its shape.
func ParseStreamEvent(raw []byte) (StreamEvent, error) {
	var evt StreamEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return StreamEvent{}, fmt.Errorf("invalid event: %w", err)
	}

	switch evt.Type {
	case TypeToken:
		return evt, nil
	case TypeDone:
		if evt.Content != "" || evt.Message != "" {
			return StreamEvent{}, errors.New("done event must carry no payload")
		}
		return evt, nil
	case TypeError:
		if evt.Message == "" {
			return StreamEvent{}, errors.New("error event requires a message")
		}
		return evt, nil
	default:
		return StreamEvent{}, ErrUnsupportedType
	}
}
