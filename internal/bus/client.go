package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageBus defines the interface for the assistant message bus.
type MessageBus interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	Emit(msg *Message) error
	On(msgType string, handler Handler) (Subscription, error)
}

// subscriberEntry holds a handler with its unique subscription ID
type subscriberEntry struct {
	subID   int
	handler Handler
}

// Client implements MessageBus over a websocket connection.
//
// Every delivered message is dispatched to its handlers on a dedicated
// goroutine so a handler that blocks (the reset coordinator waiting for
// acknowledgments) cannot stall delivery of the messages it is waiting for.
type Client struct {
	url         string
	logger      *zap.Logger
	conn        *websocket.Conn
	connected   bool
	connMu      sync.RWMutex
	subscribers map[string][]subscriberEntry
	subsMu      sync.RWMutex
	nextSubID   int
	nextSubIDMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	reconnect   bool
	writeMu     sync.Mutex // Protects websocket writes
}

// NewClient creates a new message bus client
func NewClient(url string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:         url,
		logger:      logger,
		subscribers: make(map[string][]subscriberEntry),
		ctx:         ctx,
		cancel:      cancel,
		reconnect:   true,
	}
}

// Connect establishes the websocket connection and starts the receive loop
func (c *Client) Connect() error {
	c.connMu.Lock()

	if c.connected {
		c.connMu.Unlock()
		return fmt.Errorf("already connected")
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		c.connMu.Unlock()
		return fmt.Errorf("failed to connect to message bus: %w", err)
	}
	c.conn = conn

	c.resetContextLocked()
	c.connected = true
	c.reconnect = true
	c.logger.Info("Connected to message bus", zap.String("url", c.url))

	go c.receiveMessages()

	c.connMu.Unlock()
	return nil
}

// Disconnect closes the websocket connection
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.connected {
		return nil
	}

	c.reconnect = false
	c.cancel()
	c.connected = false

	if c.conn != nil {
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		c.conn.Close()
		c.conn = nil
	}

	c.logger.Info("Disconnected from message bus")
	return nil
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

func (c *Client) resetContextLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
}

// Emit sends a message onto the bus
func (c *Client) Emit(msg *Message) error {
	c.connMu.RLock()
	if !c.connected {
		c.connMu.RUnlock()
		return fmt.Errorf("not connected")
	}
	conn := c.conn
	c.connMu.RUnlock()

	c.writeMu.Lock()
	err := conn.WriteJSON(msg)
	c.writeMu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to emit %s: %w", msg.Type, err)
	}
	return nil
}

// On subscribes a handler to all messages of the given type
func (c *Client) On(msgType string, handler Handler) (Subscription, error) {
	c.nextSubIDMu.Lock()
	subID := c.nextSubID
	c.nextSubID++
	c.nextSubIDMu.Unlock()

	c.subsMu.Lock()
	c.subscribers[msgType] = append(c.subscribers[msgType], subscriberEntry{
		subID:   subID,
		handler: handler,
	})
	c.subsMu.Unlock()

	return &subscription{
		msgType: msgType,
		subID:   subID,
		client:  c,
	}, nil
}

// receiveMessages handles incoming messages in the background
func (c *Client) receiveMessages() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.logger.Error("Failed to read message", zap.Error(err))
			c.handleDisconnect()
			return
		}

		c.dispatch(&msg)
	}
}

// dispatch delivers a message to all subscribed handlers, each on its own
// goroutine so one blocked handler cannot hold up the receive loop.
func (c *Client) dispatch(msg *Message) {
	c.subsMu.RLock()
	entries := append([]subscriberEntry(nil), c.subscribers[msg.Type]...)
	c.subsMu.RUnlock()

	for _, entry := range entries {
		go entry.handler(msg)
	}
}

// handleDisconnect handles connection loss
func (c *Client) handleDisconnect() {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.logger.Warn("Connection lost")

	if !c.reconnect {
		return
	}

	go c.attemptReconnect()
}

// attemptReconnect tries to reconnect with exponential backoff
func (c *Client) attemptReconnect() {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Attempting to reconnect...")

		if err := c.Connect(); err != nil {
			c.logger.Error("Reconnection failed", zap.Error(err))
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.logger.Info("Reconnected successfully")
		return
	}
}

// unsubscribe removes a specific subscription by message type and subscription ID
func (c *Client) unsubscribe(msgType string, subID int) error {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	subscribers, ok := c.subscribers[msgType]
	if !ok {
		return nil // Already unsubscribed
	}

	for i, entry := range subscribers {
		if entry.subID == subID {
			c.subscribers[msgType] = append(subscribers[:i], subscribers[i+1:]...)

			if len(c.subscribers[msgType]) == 0 {
				delete(c.subscribers, msgType)
			}
			break
		}
	}

	return nil
}

// subscription implements Subscription for Client
type subscription struct {
	msgType string
	subID   int
	client  *Client
}

func (s *subscription) Unsubscribe() error {
	return s.client.unsubscribe(s.msgType, s.subID)
}
