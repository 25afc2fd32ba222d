package vm

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options configures a runtime and the units it creates. Zero fields fall
// back to the runtime's options, then to DefaultOptions.
type Options struct {
	// HeapWords is the initial capacity of each semi-space.
	HeapWords int
	// MaxHeapWords caps growth after a collection fails to free enough.
	MaxHeapWords int
	// StackCeiling is the number of value slots in the stack.
	StackCeiling int
	// MailboxCapacity bounds the mailbox. Zero inherits like the other
	// fields; Unbounded asks for no bound regardless of the runtime's.
	MailboxCapacity int
	// ReapInterval is the reaper's sweep period.
	ReapInterval time.Duration
	// Provider supplies heap and message storage. It must be safe for
	// concurrent use.
	Provider MemoryProvider
}

// Unbounded is the MailboxCapacity of a mailbox without a bound.
const Unbounded = -1

// DefaultOptions returns the built-in defaults.
func DefaultOptions() Options {
	return Options{
		HeapWords:       64 * 1024,
		MaxHeapWords:    64 * 1024 * 1024,
		StackCeiling:    64 * 1024,
		MailboxCapacity: Unbounded,
		ReapInterval:    DefaultReapInterval,
		Provider:        DefaultMemoryProvider(),
	}
}

func (o Options) withDefaults(d Options) Options {
	if o.HeapWords <= 0 {
		o.HeapWords = d.HeapWords
	}
	if o.MaxHeapWords <= 0 {
		o.MaxHeapWords = d.MaxHeapWords
	}
	if o.StackCeiling <= 0 {
		o.StackCeiling = d.StackCeiling
	}
	if o.MailboxCapacity == 0 {
		o.MailboxCapacity = d.MailboxCapacity
	}
	if o.ReapInterval <= 0 {
		o.ReapInterval = d.ReapInterval
	}
	if o.Provider == nil {
		o.Provider = d.Provider
	}
	return o
}

// Runtime owns a set of units.
type Runtime struct {
	id     uuid.UUID
	opts   Options
	units  *UnitRegistry
	reaper *Reaper
	group  errgroup.Group
}

// New creates a runtime. The reaper is created but not started.
func New(opts Options) *Runtime {
	opts = opts.withDefaults(DefaultOptions())
	units := NewUnitRegistry()
	return &Runtime{
		id:     uuid.New(),
		opts:   opts,
		units:  units,
		reaper: NewReaper(units, opts.ReapInterval),
	}
}

// ID identifies this runtime instance, for example in wire envelopes.
func (rt *Runtime) ID() uuid.UUID { return rt.id }

// Options returns the runtime defaults.
func (rt *Runtime) Options() Options { return rt.opts }

// Units returns the unit registry.
func (rt *Runtime) Units() *UnitRegistry { return rt.units }

// Reaper returns the registry reaper.
func (rt *Runtime) Reaper() *Reaper { return rt.reaper }

// Unit returns the unit with the given id, or nil.
func (rt *Runtime) Unit(id UnitID) *Unit {
	return rt.units.Get(id)
}

// NewUnit creates a unit driven by the calling goroutine, such as the
// program's main unit. The caller must Terminate it from that goroutine.
func (rt *Runtime) NewUnit(opts Options) *Unit {
	opts = opts.withDefaults(rt.opts)
	u := newUnit(rt, rt.units.allocID(), opts)
	rt.units.Register(u)
	log.Infof("unit %d created: %d heap words, %d stack slots", u.id, opts.HeapWords, opts.StackCeiling)
	return u
}

// Spawn starts a unit running entry with Null as its argument.
func (rt *Runtime) Spawn(entry Func, opts Options) *Unit {
	u := rt.NewUnit(opts)
	rt.start(u, entry)
	return u
}

func (rt *Runtime) start(u *Unit, entry Func) {
	u.mu.Lock()
	u.attached = true
	u.mu.Unlock()
	rt.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				f, ok := r.(*Fault)
				if !ok {
					panic(r)
				}
				err = f
			}
			u.exit(err)
		}()
		u.Call(entry, 1, u.result)
		return nil
	})
}

// Wait blocks until every spawned unit has returned and reports the first
// fault, if the fatal handler let one through.
func (rt *Runtime) Wait() error {
	return rt.group.Wait()
}

// Shutdown stops the reaper, terminates every unit and waits for spawned
// goroutines to return.
func (rt *Runtime) Shutdown() error {
	rt.reaper.Stop()
	for _, u := range rt.units.Snapshot() {
		u.Terminate()
	}
	return rt.Wait()
}
