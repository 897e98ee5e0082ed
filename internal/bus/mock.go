package bus

import (
	"fmt"
	"sync"
)

// MockBus implements MessageBus for testing. Emitted messages are recorded
// and, like the real bus daemon, echoed back to local subscribers.
type MockBus struct {
	subscribers map[string][]subscriberEntry
	subsMu      sync.RWMutex
	nextSubID   int
	nextSubIDMu sync.Mutex
	connected   bool
	connMu      sync.RWMutex
	emitted     []*Message
	emittedMu   sync.Mutex
	loopback    bool
}

// NewMockBus creates a new mock bus. Emitted messages are delivered back to
// local subscribers, matching the broadcast behavior of the bus daemon.
func NewMockBus() *MockBus {
	return &MockBus{
		subscribers: make(map[string][]subscriberEntry),
		emitted:     make([]*Message, 0),
		loopback:    true,
	}
}

// SetLoopback controls whether emitted messages are delivered to local
// subscribers. Disable to assert on emissions without side effects.
func (m *MockBus) SetLoopback(enabled bool) {
	m.emittedMu.Lock()
	m.loopback = enabled
	m.emittedMu.Unlock()
}

// Connect simulates connecting to the bus
func (m *MockBus) Connect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	return nil
}

// Disconnect simulates disconnecting
func (m *MockBus) Disconnect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.connected = false
	return nil
}

// IsConnected returns connection status
func (m *MockBus) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

// Emit records the message and delivers it to subscribers
func (m *MockBus) Emit(msg *Message) error {
	m.emittedMu.Lock()
	m.emitted = append(m.emitted, msg)
	loopback := m.loopback
	m.emittedMu.Unlock()

	if loopback {
		m.Deliver(msg)
	}
	return nil
}

// Deliver synchronously hands a message to all subscribed handlers, as if it
// arrived from the bus. Handlers run on separate goroutines like the real
// client's dispatch.
func (m *MockBus) Deliver(msg *Message) {
	m.subsMu.RLock()
	entries := append([]subscriberEntry(nil), m.subscribers[msg.Type]...)
	m.subsMu.RUnlock()

	for _, entry := range entries {
		go entry.handler(msg)
	}
}

// On subscribes a handler to a message type
func (m *MockBus) On(msgType string, handler Handler) (Subscription, error) {
	m.nextSubIDMu.Lock()
	subID := m.nextSubID
	m.nextSubID++
	m.nextSubIDMu.Unlock()

	m.subsMu.Lock()
	m.subscribers[msgType] = append(m.subscribers[msgType], subscriberEntry{
		subID:   subID,
		handler: handler,
	})
	m.subsMu.Unlock()

	return &mockSubscription{
		msgType: msgType,
		subID:   subID,
		mock:    m,
	}, nil
}

// unsubscribe removes a specific subscription
func (m *MockBus) unsubscribe(msgType string, subID int) error {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	subscribers, ok := m.subscribers[msgType]
	if !ok {
		return nil
	}

	for i, entry := range subscribers {
		if entry.subID == subID {
			m.subscribers[msgType] = append(subscribers[:i], subscribers[i+1:]...)

			if len(m.subscribers[msgType]) == 0 {
				delete(m.subscribers, msgType)
			}
			break
		}
	}

	return nil
}

// Emitted returns all recorded emitted messages
func (m *MockBus) Emitted() []*Message {
	m.emittedMu.Lock()
	defer m.emittedMu.Unlock()

	msgs := make([]*Message, len(m.emitted))
	copy(msgs, m.emitted)
	return msgs
}

// ClearEmitted resets the recorded message log
func (m *MockBus) ClearEmitted() {
	m.emittedMu.Lock()
	defer m.emittedMu.Unlock()
	m.emitted = nil
}

// FindEmitted returns the most recent emitted message of the given type,
// or nil if none was emitted.
func (m *MockBus) FindEmitted(msgType string) *Message {
	m.emittedMu.Lock()
	defer m.emittedMu.Unlock()

	for i := len(m.emitted) - 1; i >= 0; i-- {
		if m.emitted[i].Type == msgType {
			return m.emitted[i]
		}
	}
	return nil
}

// CountEmitted counts emitted messages of the given type
func (m *MockBus) CountEmitted(msgType string) int {
	m.emittedMu.Lock()
	defer m.emittedMu.Unlock()

	count := 0
	for _, msg := range m.emitted {
		if msg.Type == msgType {
			count++
		}
	}
	return count
}

// mockSubscription implements Subscription for MockBus
type mockSubscription struct {
	msgType string
	subID   int
	mock    *MockBus
}

func (s *mockSubscription) Unsubscribe() error {
	return s.mock.unsubscribe(s.msgType, s.subID)
}
