// Package testutil provides testing utilities for bus-driven plugins.
// This package contains a mock assistant message-bus WebSocket server and
// helpers for writing integration tests.
package testutil

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"phalsystem/internal/bus"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connWrapper wraps a WebSocket connection with its write mutex
type connWrapper struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// MockBusServer simulates the assistant message bus. Like the real bus, it
// relays every received frame to all connected clients, the sender included.
type MockBusServer struct {
	server      *http.Server
	addr        string
	connections []*connWrapper
	connsMu     sync.Mutex
	messages    []bus.Message
	messagesMu  sync.Mutex
}

// NewMockBusServer creates a new mock bus server listening on addr
func NewMockBusServer(addr string) *MockBusServer {
	return &MockBusServer{
		addr:        addr,
		connections: make([]*connWrapper, 0),
		messages:    make([]bus.Message, 0),
	}
}

// Start starts the mock server
func (s *MockBusServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/core", s.handleWebSocket)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("Mock bus server error: %v", err)
		}
	}()

	// Wait for server to start
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Stop stops the mock server
func (s *MockBusServer) Stop() error {
	s.connsMu.Lock()
	for _, wrapper := range s.connections {
		wrapper.conn.Close()
	}
	s.connections = nil
	s.connsMu.Unlock()

	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// URL returns the WebSocket URL clients should connect to
func (s *MockBusServer) URL() string {
	return "ws://" + s.addr + "/core"
}

// handleWebSocket relays every received frame to all connections
func (s *MockBusServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	wrapper := &connWrapper{conn: conn}

	s.connsMu.Lock()
	s.connections = append(s.connections, wrapper)
	s.connsMu.Unlock()

	defer func() {
		s.connsMu.Lock()
		for i, w := range s.connections {
			if w.conn == conn {
				s.connections = append(s.connections[:i], s.connections[i+1:]...)
				break
			}
		}
		s.connsMu.Unlock()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg bus.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		s.messagesMu.Lock()
		s.messages = append(s.messages, msg)
		s.messagesMu.Unlock()

		s.broadcast(raw)
	}
}

// broadcast sends a raw frame to all current connections
func (s *MockBusServer) broadcast(raw []byte) {
	s.connsMu.Lock()
	wrappers := make([]*connWrapper, len(s.connections))
	copy(wrappers, s.connections)
	s.connsMu.Unlock()

	for _, wrapper := range wrappers {
		wrapper.writeMu.Lock()
		wrapper.conn.WriteMessage(websocket.TextMessage, raw)
		wrapper.writeMu.Unlock()
	}
}

// Emit injects a message as if another bus client sent it
func (s *MockBusServer) Emit(msg *bus.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.messagesMu.Lock()
	s.messages = append(s.messages, *msg)
	s.messagesMu.Unlock()

	s.broadcast(raw)
	return nil
}

// Messages returns all messages seen since the last clear
func (s *MockBusServer) Messages() []bus.Message {
	s.messagesMu.Lock()
	defer s.messagesMu.Unlock()
	msgs := make([]bus.Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

// ClearMessages resets the message log
func (s *MockBusServer) ClearMessages() {
	s.messagesMu.Lock()
	defer s.messagesMu.Unlock()
	s.messages = nil
}

// FindMessage returns the most recent message of the given type, or nil
func (s *MockBusServer) FindMessage(msgType string) *bus.Message {
	s.messagesMu.Lock()
	defer s.messagesMu.Unlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Type == msgType {
			msg := s.messages[i]
			return &msg
		}
	}
	return nil
}

// CountMessages counts messages of the given type
func (s *MockBusServer) CountMessages(msgType string) int {
	s.messagesMu.Lock()
	defer s.messagesMu.Unlock()

	count := 0
	for _, msg := range s.messages {
		if msg.Type == msgType {
			count++
		}
	}
	return count
}

// WaitForMessage polls until a message of the given type appears or the
// timeout elapses. Returns the message or nil on timeout.
func (s *MockBusServer) WaitForMessage(msgType string, timeout time.Duration) *bus.Message {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if msg := s.FindMessage(msgType); msg != nil {
			return msg
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}
