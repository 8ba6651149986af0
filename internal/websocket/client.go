package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/contentforge/api/internal/logger"
	"github.com/contentforge/api/internal/model"
)

const (
	sendBufferSize = 256
	pingInterval   = 30 * time.Second
)

// Conn is the part of a websocket connection the stream handlers use.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

// Client is a websocket observer with a bounded send queue
type Client struct {
	JobID string
	Conn  Conn

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewClient creates a client for conn.
func NewClient(jobID string, conn Conn) *Client {
	return &Client{
		JobID: jobID,
		Conn:  conn,
		send:  make(chan []byte, sendBufferSize),
	}
}

// Deliver queues message without blocking. A client whose queue is full
// is closed: the writer flushes what is queued, then sends a close frame.
func (c *Client) Deliver(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrObserverClosed
	}
	select {
	case c.send <- message:
		return nil
	default:
		c.closeLocked()
		return ErrObserverBackedUp
	}
}

// Close stops the client's writer. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) deliverJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.Deliver(data)
}

// writePump owns all writes to the connection.
func (c *Client) writePump(interval time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			// Application-level keepalive for idle observers
			ping, _ := json.Marshal(model.WSControlMessage{
				Type:      model.WSMessageTypePing,
				Timestamp: time.Now().UTC(),
			})
			if err := c.Conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				c.Close()
				return
			}
		}
	}
}

// Stream serves progress websocket connections
type Stream struct {
	hub          *Hub
	trackers     *TrackerRegistry
	pingInterval time.Duration
	log          *zap.SugaredLogger
}

// NewStream creates a stream handler over hub and trackers.
func NewStream(hub *Hub, trackers *TrackerRegistry) *Stream {
	return &Stream{
		hub:          hub,
		trackers:     trackers,
		pingInterval: pingInterval,
		log:          logger.ComponentLogger("websocket.stream"),
	}
}

// SetPingInterval overrides the keepalive interval.
func (s *Stream) SetPingInterval(d time.Duration) {
	s.pingInterval = d
}

// HandleJob streams the events of jobID to conn until the peer goes away.
func (s *Stream) HandleJob(conn Conn, jobID string) {
	client := NewClient(jobID, conn)
	done := make(chan struct{})
	go client.writePump(s.pingInterval, done)

	client.deliverJSON(model.WSControlMessage{
		Type:      model.WSMessageTypeConnected,
		JobID:     jobID,
		Message:   "Connected to content generation progress stream",
		Timestamp: time.Now().UTC(),
	})

	sub := s.hub.Subscribe(jobID, client)
	defer func() {
		s.hub.Unsubscribe(sub)
		client.Close()
		<-done
	}()

	s.readLoop(client, func(msg model.WSMessage) {
		if msg.Type != model.WSMessageTypeStatus {
			return
		}
		tracker, ok := s.trackers.Get(jobID)
		if !ok {
			return
		}
		phase, idx := tracker.CurrentPhase()
		client.deliverJSON(model.WSStatusMessage{
			Type:      model.WSMessageTypeStatus,
			JobID:     jobID,
			Phase:     phase,
			PhaseIdx:  idx,
			Status:    phase.Status(),
			Timestamp: time.Now().UTC(),
		})
	})
}

// HandleBroadcast streams every job's events to conn.
func (s *Stream) HandleBroadcast(conn Conn) {
	client := NewClient("", conn)
	done := make(chan struct{})
	go client.writePump(s.pingInterval, done)

	client.deliverJSON(model.WSControlMessage{
		Type:      model.WSMessageTypeConnected,
		Message:   "Connected to broadcast stream",
		Timestamp: time.Now().UTC(),
	})

	sub := s.hub.SubscribeAll(client)
	defer func() {
		s.hub.Unsubscribe(sub)
		client.Close()
		<-done
	}()

	s.readLoop(client, nil)
}

// readLoop answers pings and hands other client messages to onMessage.
func (s *Stream) readLoop(client *Client, onMessage func(model.WSMessage)) {
	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warnw("websocket read error", logger.FieldJobID, client.JobID, logger.FieldError, err)
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			client.deliverJSON(model.WSControlMessage{
				Type:      model.WSMessageTypePong,
				Timestamp: time.Now().UTC(),
			})
			continue
		}
		if onMessage != nil {
			onMessage(msg)
		}
	}
}
