package vm

import (
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Unit: an isolated heap, stack and mailbox run by one goroutine
// ---------------------------------------------------------------------------

// UnitID identifies a unit within its runtime.
type UnitID uint64

// UnitState is the lifecycle state of a unit. The only transition is
// Running to Terminated.
type UnitState int32

const (
	UnitRunning UnitState = iota
	UnitTerminated
)

// Unit is an execution unit. Its heap and stack are used only by the
// goroutine running it; other units reach it exclusively through Send.
type Unit struct {
	id    UnitID
	rt    *Runtime
	heap  *Heap
	stack *Stack
	box   *mailbox
	state atomic.Int32

	result  Value
	scratch Value
	next    Func

	conversations atomic.Uint64

	mu       sync.Mutex // protects attached, released, err
	attached bool       // a spawned goroutine owns the unit
	released bool
	err      error
	done     chan struct{}
}

func newUnit(rt *Runtime, id UnitID, opts Options) *Unit {
	u := &Unit{
		id:    id,
		rt:    rt,
		heap:  newHeap(id, opts.Provider, opts.HeapWords, opts.MaxHeapWords),
		stack: newStack(id, opts.StackCeiling),
		box:   newMailbox(opts.MailboxCapacity),
		done:  make(chan struct{}),
	}
	u.heap.roots = u.visitRoots
	u.state.Store(int32(UnitRunning))
	return u
}

func (u *Unit) visitRoots(visit func(*Value)) {
	s := u.stack
	for i := 0; i < s.top; i++ {
		visit(&s.slots[i])
	}
	visit(&u.result)
	visit(&u.scratch)
}

// ID returns the unit's identifier.
func (u *Unit) ID() UnitID { return u.id }

// Runtime returns the runtime the unit belongs to.
func (u *Unit) Runtime() *Runtime { return u.rt }

// Stack returns the unit's value stack.
func (u *Unit) Stack() *Stack { return u.stack }

// State returns the lifecycle state.
func (u *Unit) State() UnitState {
	return UnitState(u.state.Load())
}

// Terminated reports whether the unit has been terminated.
func (u *Unit) Terminated() bool {
	return u.State() == UnitTerminated
}

// Done is closed once the unit's resources have been released.
func (u *Unit) Done() <-chan struct{} {
	return u.done
}

// Err returns the fault that ended a spawned unit, if any.
func (u *Unit) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// Terminate moves the unit to Terminated. Pending and future sends fail,
// blocked receivers wake with ErrTerminated and queued messages are
// freed. The heap is released at once for units driven by the caller, and
// when the goroutine returns for spawned units.
func (u *Unit) Terminate() {
	if !u.state.CompareAndSwap(int32(UnitRunning), int32(UnitTerminated)) {
		return
	}
	for _, msg := range u.box.close() {
		msg.region.release()
	}
	log.Infof("unit %d terminated", u.id)

	u.mu.Lock()
	attached := u.attached
	u.mu.Unlock()
	if !attached {
		u.release()
	}
}

func (u *Unit) release() {
	u.mu.Lock()
	if u.released {
		u.mu.Unlock()
		return
	}
	u.released = true
	u.mu.Unlock()

	p := u.Acquire()
	u.heap.release()
	clear(u.stack.slots)
	u.stack.base, u.stack.top = 0, 0
	u.result, u.scratch = Null, Null
	p.Release()
	close(u.done)
}

// exit runs on a spawned unit's goroutine after its entry returns.
func (u *Unit) exit(err error) {
	u.mu.Lock()
	u.attached = false
	u.err = err
	u.mu.Unlock()
	u.Terminate()
	u.release()
}

// ---------------------------------------------------------------------------
// Spawning
// ---------------------------------------------------------------------------

// Spawn starts a new unit running entry with a deep copy of arg in slot 0
// of its first frame. The caller continues concurrently and gets no
// result; the child must send one if needed.
func (u *Unit) Spawn(entry Func, arg Value, opts Options) (*Unit, error) {
	child := u.rt.NewUnit(opts)
	started := false
	defer func() {
		if !started {
			child.Terminate()
		}
	}()
	if err := child.seed(u, arg); err != nil {
		return nil, err
	}
	u.rt.start(child, entry)
	started = true
	return child, nil
}

// seed copies arg from parent into the result register of a unit that
// has not started yet.
func (u *Unit) seed(parent *Unit, arg Value) error {
	p := u.Acquire()
	defer p.Release()
	v, err := p.CopyFrom(parent, arg)
	u.result = v
	return err
}

// ---------------------------------------------------------------------------
// Messaging
// ---------------------------------------------------------------------------

// NewConversation returns a fresh conversation-opening channel id.
func (u *Unit) NewConversation() ChannelID {
	return ChannelID(u.conversations.Add(1)<<1 | 1)
}

// Send deep-copies v into a payload for dst and queues it. Sending to a
// terminated unit returns ErrTerminated without blocking. When dst's
// mailbox is bounded and full, Send waits for room.
func (u *Unit) Send(dst *Unit, ch ChannelID, v Value) error {
	if dst.Terminated() {
		return ErrTerminated
	}
	r, err := u.export(dst.heap.provider, v)
	if err != nil {
		return err
	}
	if err := dst.box.put(&Message{Sender: u, Channel: ch, region: r}); err != nil {
		r.release()
		return err
	}
	return nil
}

// Receive waits for the oldest message.
func (u *Unit) Receive() (*Message, error) {
	return u.receive(func(*Message) bool { return true }, nil)
}

// ReceiveFrom waits for the oldest message on ch, from sender if it is
// not nil.
func (u *Unit) ReceiveFrom(sender *Unit, ch ChannelID) (*Message, error) {
	return u.receive(func(m *Message) bool { return m.matches(sender, ch) }, nil)
}

// ReceiveTimeout is Receive giving up with ErrNoMessage after d.
func (u *Unit) ReceiveTimeout(d time.Duration) (*Message, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	return u.receive(func(*Message) bool { return true }, t.C)
}

// ReceiveFromTimeout is ReceiveFrom giving up with ErrNoMessage after d.
func (u *Unit) ReceiveFromTimeout(sender *Unit, ch ChannelID, d time.Duration) (*Message, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	return u.receive(func(m *Message) bool { return m.matches(sender, ch) }, t.C)
}

func (u *Unit) receive(match func(*Message) bool, timeout <-chan time.Time) (*Message, error) {
	msg, err := u.box.take(match, timeout)
	if err != nil {
		return nil, err
	}
	p := u.Acquire()
	defer p.Release()
	r := msg.region
	msg.region = nil
	defer r.release()
	msg.Payload = p.adopt(r)
	u.result = msg.Payload
	return msg, nil
}

// PeekInitiating reports the oldest queued message that opens a
// conversation, leaving it in the mailbox. Take it with ReceiveFrom.
func (u *Unit) PeekInitiating() (sender *Unit, ch ChannelID, ok bool) {
	msg := u.box.peek(func(m *Message) bool { return m.Channel.Initiating() })
	if msg == nil {
		return nil, 0, false
	}
	return msg.Sender, msg.Channel, true
}

// HasMessages reports whether anything is queued.
func (u *Unit) HasMessages() bool {
	return u.box.len() > 0
}
