package vm

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrTerminated is returned by sends to, and receives on, a terminated
	// unit.
	ErrTerminated = errors.New("vm: unit terminated")

	// ErrNoMessage is returned by a timed receive that saw no match.
	ErrNoMessage = errors.New("vm: no message")
)

// ChannelID names a conversation. An odd id opens a conversation; the
// replies within it use the even id obtained with Reply.
type ChannelID uint64

// Initiating reports whether the id opens a conversation.
func (c ChannelID) Initiating() bool {
	return c&1 == 1
}

// Reply returns the id used for replies within the conversation.
func (c ChannelID) Reply() ChannelID {
	return c &^ 1
}

// Message is one delivered payload. Payload is valid in the receiving
// unit's heap and is also left in its result register.
type Message struct {
	Sender  *Unit
	Channel ChannelID
	Payload Value

	region *region
}

func (m *Message) matches(sender *Unit, ch ChannelID) bool {
	return (sender == nil || m.Sender == sender) && m.Channel == ch
}

// ---------------------------------------------------------------------------
// mailbox
// ---------------------------------------------------------------------------

// mailbox is a FIFO of messages with an optional bound. The lock is held
// only around queue mutation; waiters block on broadcast channels that are
// closed and replaced whenever the queue changes.
type mailbox struct {
	mu       sync.Mutex
	queue    []*Message
	capacity int // Unbounded or any value below 1 means no bound
	closed   bool
	arrived  chan struct{}
	departed chan struct{}
}

func newMailbox(capacity int) *mailbox {
	return &mailbox{
		capacity: capacity,
		arrived:  make(chan struct{}),
		departed: make(chan struct{}),
	}
}

func broadcast(ch *chan struct{}) {
	close(*ch)
	*ch = make(chan struct{})
}

// put appends msg, waiting while the mailbox is full.
func (m *mailbox) put(msg *Message) error {
	m.mu.Lock()
	for {
		if m.closed {
			m.mu.Unlock()
			return ErrTerminated
		}
		if m.capacity <= 0 || len(m.queue) < m.capacity {
			m.queue = append(m.queue, msg)
			broadcast(&m.arrived)
			m.mu.Unlock()
			return nil
		}
		wait := m.departed
		m.mu.Unlock()
		<-wait
		m.mu.Lock()
	}
}

// take removes the oldest message accepted by match. A nil timeout channel
// waits indefinitely.
func (m *mailbox) take(match func(*Message) bool, timeout <-chan time.Time) (*Message, error) {
	m.mu.Lock()
	for {
		for i, msg := range m.queue {
			if match(msg) {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				broadcast(&m.departed)
				m.mu.Unlock()
				return msg, nil
			}
		}
		if m.closed {
			m.mu.Unlock()
			return nil, ErrTerminated
		}
		wait := m.arrived
		m.mu.Unlock()
		select {
		case <-wait:
		case <-timeout:
			return nil, ErrNoMessage
		}
		m.mu.Lock()
	}
}

// peek returns the oldest message accepted by match without removing it.
func (m *mailbox) peek(match func(*Message) bool) *Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.queue {
		if match(msg) {
			return msg
		}
	}
	return nil
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// close rejects further puts, wakes every waiter and returns the messages
// that were still queued.
func (m *mailbox) close() []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	drained := m.queue
	m.queue = nil
	broadcast(&m.arrived)
	broadcast(&m.departed)
	return drained
}
