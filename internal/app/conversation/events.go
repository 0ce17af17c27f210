package conversation

import (
	"encoding/json"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

type EventType string

const (
	EventContent EventType = "content"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// Event is one frame of a streamed turn. Done and error are terminal and
// mutually exclusive.
type Event struct {
	Type          EventType
	Content       string
	UserMessageID domain.MessageID
	Err           string
}

func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

type contentFrame struct {
	Type          EventType        `json:"type"`
	Content       string           `json:"content"`
	UserMessageID domain.MessageID `json:"user_message_id,omitempty"`
}

type errorFrame struct {
	Type  EventType `json:"type"`
	Error string    `json:"error"`
}

// MarshalJSON renders the wire shape: content and done frames carry
// content and user_message_id, error frames carry only the error.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Type == EventError {
		return json.Marshal(errorFrame{Type: e.Type, Error: e.Err})
	}
	return json.Marshal(contentFrame{Type: e.Type, Content: e.Content, UserMessageID: e.UserMessageID})
}

func contentEvent(chunk string, userMessageID domain.MessageID) Event {
	return Event{Type: EventContent, Content: chunk, UserMessageID: userMessageID}
}

func doneEvent(userMessageID domain.MessageID) Event {
	return Event{Type: EventDone, UserMessageID: userMessageID}
}

func errorEvent(err error) Event {
	return Event{Type: EventError, Err: err.Error()}
}

// sink forwards events to a range-over-func consumer until the consumer
// stops. After that every emit is a no-op.
type sink struct {
	yield        func(Event) bool
	open         bool
	disconnected bool
}

func newSink(yield func(Event) bool) *sink {
	return &sink{yield: yield, open: true}
}

func (s *sink) emit(ev Event) {
	if !s.open {
		return
	}
	if !s.yield(ev) {
		s.open = false
		s.disconnected = !ev.Terminal()
	}
}
