package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Fault event types pushed to stream subscribers.
const (
	EventNewFault     = "new_fault"
	EventFaultUpdated = "fault_updated"
	EventNewComment   = "new_comment"
)

// FaultEvent describes websocket payloads emitted when faults change.
type FaultEvent struct {
	Type           string       `json:"type"`
	FaultID        uint         `json:"fault_id"`
	Fault          *FaultDTO    `json:"fault,omitempty"`
	PreviousStatus string       `json:"previous_status,omitempty"`
	AssignedTo     *EmployeeDTO `json:"assigned_to,omitempty"`
	Comment        *CommentDTO  `json:"comment,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// FaultNotifier keeps track of active websocket clients and broadcasts fault events.
type FaultNotifier struct {
	mu        sync.Mutex
	clients   map[*wsClient]struct{}
	onChange  func(clients int)
	lastEvent *FaultEvent
}

// NewFaultNotifier constructs a notifier instance. onChange, when set, is called with the
// client count after every register or unregister.
func NewFaultNotifier(onChange func(clients int)) *FaultNotifier {
	return &FaultNotifier{clients: make(map[*wsClient]struct{}), onChange: onChange}
}

// Register attaches a websocket connection and returns a client handle. The most
// recent event, if any, is replayed to the new client.
func (n *FaultNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	count := len(n.clients)
	var last *FaultEvent
	if n.lastEvent != nil {
		replay := *n.lastEvent
		last = &replay
	}
	n.mu.Unlock()

	n.changed(count)
	if last != nil {
		if err := client.writeJSON(last); err != nil {
			logrus.WithError(err).Debug("replay last fault event")
		}
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *FaultNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	count := len(n.clients)
	n.mu.Unlock()
	_ = client.conn.Close()

	n.changed(count)
}

// Broadcast sends the supplied event to all registered websocket clients. Writes
// happen outside the registry lock so one slow client does not stall the others
// or block Register. Clients that fail to receive the event are dropped.
func (n *FaultNotifier) Broadcast(event FaultEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	snapshot := event
	n.lastEvent = &snapshot
	clients := lo.Keys(n.clients)
	n.mu.Unlock()

	var failed []*wsClient
	for _, client := range clients {
		if err := client.writeJSON(event); err != nil {
			failed = append(failed, client)
		}
	}
	if len(failed) == 0 {
		return
	}

	n.mu.Lock()
	for _, client := range failed {
		delete(n.clients, client)
	}
	count := len(n.clients)
	n.mu.Unlock()
	for _, client := range failed {
		_ = client.conn.Close()
	}
	n.changed(count)
}

// Clients returns the number of connected clients.
func (n *FaultNotifier) Clients() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

func (n *FaultNotifier) changed(count int) {
	if n.onChange != nil {
		n.onChange(count)
	}
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
