package bus

import (
	"github.com/google/uuid"
)

// Message represents a single bus message: a named event with a free-form
// payload and a context that travels with the conversation.
type Message struct {
	Type    string                 `json:"type"`
	Data    map[string]interface{} `json:"data"`
	Context map[string]interface{} `json:"context"`
}

// NewMessage creates a message with a fresh session id in its context.
func NewMessage(msgType string, data map[string]interface{}) *Message {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Message{
		Type: msgType,
		Data: data,
		Context: map[string]interface{}{
			"session": map[string]interface{}{"session_id": uuid.NewString()},
		},
	}
}

// Forward creates a new message of the given type carrying this message's
// payload and context, used to pass a request along a processing chain.
func (m *Message) Forward(msgType string) *Message {
	return &Message{
		Type:    msgType,
		Data:    copyMap(m.Data),
		Context: copyMap(m.Context),
	}
}

// Reply creates a new message of the given type addressed back to the
// sender, preserving the originating context.
func (m *Message) Reply(msgType string, data map[string]interface{}) *Message {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Message{
		Type:    msgType,
		Data:    data,
		Context: copyMap(m.Context),
	}
}

// Response creates the conventional "<type>.response" reply for status
// queries.
func (m *Message) Response(data map[string]interface{}) *Message {
	return m.Reply(m.Type+".response", data)
}

// Bool returns a boolean payload field, or def when absent or mistyped.
func (m *Message) Bool(key string, def bool) bool {
	if v, ok := m.Data[key].(bool); ok {
		return v
	}
	return def
}

// String returns a string payload field, or def when absent or mistyped.
func (m *Message) String(key, def string) string {
	if v, ok := m.Data[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Has reports whether the payload contains the given field.
func (m *Message) Has(key string) bool {
	_, ok := m.Data[key]
	return ok
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Handler is called for every delivered message of a subscribed type.
type Handler func(msg *Message)

// Subscription represents an active message subscription.
type Subscription interface {
	Unsubscribe() error
}
