package vm

import "sync/atomic"

// MemoryProvider supplies backing storage for heaps and message regions.
// Regions are word ranges that never overlap any region handed out
// before, which is what lets the runtime compare addresses across units.
type MemoryProvider interface {
	// Region reserves words contiguous words and returns the first address.
	Region(words int) Addr
}

// growingProvider is a monotonically growing address cursor shared by the
// whole process.
type growingProvider struct {
	next atomic.Uint64
}

// NewMemoryProvider returns a provider whose first region starts at the
// lowest heap address.
func NewMemoryProvider() MemoryProvider {
	p := &growingProvider{}
	p.next.Store(uint64(heapFloor))
	return p
}

func (p *growingProvider) Region(words int) Addr {
	end := p.next.Add(uint64(words))
	return Addr(end - uint64(words))
}

var defaultProvider = NewMemoryProvider()

// DefaultMemoryProvider returns the process-wide provider.
func DefaultMemoryProvider() MemoryProvider {
	return defaultProvider
}

// ---------------------------------------------------------------------------
// space: one contiguous word range
// ---------------------------------------------------------------------------

// space is addressed by word offset from base. cells holds an object at
// each header word and nil everywhere else.
type space struct {
	base  Addr
	cells []object
	used  int
}

func newSpace(p MemoryProvider, words int) *space {
	return &space{
		base:  p.Region(words),
		cells: make([]object, words),
	}
}

func (s *space) capacity() int {
	return len(s.cells)
}

func (s *space) free() int {
	return len(s.cells) - s.used
}

func (s *space) contains(a Addr) bool {
	return a >= s.base && a < s.base+Addr(len(s.cells))
}

func (s *space) end() Addr {
	return s.base + Addr(s.used)
}

// bump reserves words words and returns their address. The caller must
// have checked free().
func (s *space) bump(words int) Addr {
	a := s.end()
	s.used += words
	return a
}

func (s *space) at(a Addr) object {
	return s.cells[a-s.base]
}

func (s *space) put(a Addr, o object) {
	s.cells[a-s.base] = o
}

// reset empties the space, dropping every Go reference it held.
func (s *space) reset() {
	clear(s.cells[:s.used])
	s.used = 0
}
