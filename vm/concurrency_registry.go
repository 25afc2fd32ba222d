package vm

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// UnitRegistry: every unit of a runtime by id
// ---------------------------------------------------------------------------

// UnitRegistry maps unit ids to units. Terminated units stay resolvable
// until swept so late senders still get ErrTerminated instead of a
// missing unit.
type UnitRegistry struct {
	units  map[UnitID]*Unit
	mu     sync.RWMutex
	nextID atomic.Uint64
}

// NewUnitRegistry creates an empty registry.
func NewUnitRegistry() *UnitRegistry {
	r := &UnitRegistry{units: make(map[UnitID]*Unit)}
	// Start IDs at 1 (0 could be confused with an unset id)
	r.nextID.Store(1)
	return r
}

func (r *UnitRegistry) allocID() UnitID {
	return UnitID(r.nextID.Add(1) - 1)
}

// Register adds u to the registry.
func (r *UnitRegistry) Register(u *Unit) {
	r.mu.Lock()
	r.units[u.id] = u
	r.mu.Unlock()
}

// Get returns the unit with the given id, or nil.
func (r *UnitRegistry) Get(id UnitID) *Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.units[id]
}

// Sweep removes terminated units whose resources have been released and
// returns them.
func (r *UnitRegistry) Sweep() []*Unit {
	r.mu.Lock()
	defer r.mu.Unlock()

	var swept []*Unit
	for id, u := range r.units {
		select {
		case <-u.done:
			delete(r.units, id)
			swept = append(swept, u)
		default:
		}
	}
	return swept
}

// Count returns the number of registered units.
func (r *UnitRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

// Snapshot returns the registered units in no particular order.
func (r *UnitRegistry) Snapshot() []*Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	units := make([]*Unit, 0, len(r.units))
	for _, u := range r.units {
		units = append(units, u)
	}
	return units
}
