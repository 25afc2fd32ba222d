package vm

import (
	"encoding/binary"
	"math"
	"sync"
	"unsafe"
	"weak"
)

// ---------------------------------------------------------------------------
// Raw memory primitives
// ---------------------------------------------------------------------------

// Pointer is an untyped position inside a block of native memory. The
// zero Pointer is null. Accessors do no bounds checking of their own;
// reaching outside the block is the caller's defect and panics.
type Pointer struct {
	mem []byte
	off int
}

// PointerTo returns a pointer to the start of mem.
func PointerTo(mem []byte) Pointer {
	return Pointer{mem: mem}
}

// IsNull returns true for the null pointer.
func (p Pointer) IsNull() bool {
	return p.mem == nil
}

// Add returns p advanced by n bytes.
func (p Pointer) Add(n int) Pointer {
	return Pointer{mem: p.mem, off: p.off + n}
}

// Offset returns the byte offset of p inside its block.
func (p Pointer) Offset() int {
	return p.off
}

// Peek reads the byte at p+off.
func (p Pointer) Peek(off int) byte {
	return p.mem[p.off+off]
}

// Poke writes b at p+off.
func (p Pointer) Poke(off int, b byte) {
	p.mem[p.off+off] = b
}

// Memset fills n bytes starting at p+off with b.
func (p Pointer) Memset(off int, b byte, n int) {
	region := p.mem[p.off+off : p.off+off+n]
	for i := range region {
		region[i] = b
	}
}

// Bytes returns the n bytes starting at p, aliasing the block.
func (p Pointer) Bytes(n int) []byte {
	return p.mem[p.off : p.off+n]
}

// Memmove copies n bytes from src+srcOff to dst+dstOff. The ranges may
// overlap.
func Memmove(dst Pointer, dstOff int, src Pointer, srcOff int, n int) {
	copy(dst.mem[dst.off+dstOff:dst.off+dstOff+n], src.mem[src.off+srcOff:src.off+srcOff+n])
}

// PeekDouble reads a little-endian float64 at p+off.
func (p Pointer) PeekDouble(off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(p.mem[p.off+off:]))
}

// PokeDouble writes f as a little-endian float64 at p+off.
func (p Pointer) PokeDouble(off int, f float64) {
	binary.LittleEndian.PutUint64(p.mem[p.off+off:], math.Float64bits(f))
}

// PeekSingle reads a little-endian float32 at p+off.
func (p Pointer) PeekSingle(off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(p.mem[p.off+off:]))
}

// PokeSingle writes f as a little-endian float32 at p+off.
func (p Pointer) PokeSingle(off int, f float32) {
	binary.LittleEndian.PutUint32(p.mem[p.off+off:], math.Float32bits(f))
}

// PtrSize is the number of bytes PokePtr writes.
const PtrSize = 8

// PeekPtr reads a pointer stored by PokePtr at p+off. A pointer whose
// block has since been reclaimed reads back as null.
func (p Pointer) PeekPtr(off int) Pointer {
	word := binary.LittleEndian.Uint64(p.mem[p.off+off:])
	if word == 0 {
		return Pointer{}
	}
	return blockTable.resolve(uint32(word>>32), int(uint32(word)))
}

// PokePtr stores q at p+off as a block handle and offset.
func (p Pointer) PokePtr(off int, q Pointer) {
	var word uint64
	if id := blockTable.handle(q); id != 0 {
		word = uint64(id)<<32 | uint64(uint32(q.off))
	}
	binary.LittleEndian.PutUint64(p.mem[p.off+off:], word)
}

// Blocks referenced from raw memory are held weakly so storing a pointer
// does not keep its block alive.
type blockKey struct {
	base weak.Pointer[byte]
	n    int
}

type blocks struct {
	mu    sync.Mutex
	next  uint32
	ids   map[blockKey]uint32
	byID  map[uint32]blockKey
	purge int
}

var blockTable = &blocks{
	ids:   make(map[blockKey]uint32),
	byID:  make(map[uint32]blockKey),
	purge: 64,
}

func (b *blocks) handle(q Pointer) uint32 {
	if len(q.mem) == 0 {
		return 0
	}
	k := blockKey{base: weak.Make(&q.mem[0]), n: len(q.mem)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.ids[k]; ok {
		return id
	}
	if len(b.ids) >= b.purge {
		for id, old := range b.byID {
			if old.base.Value() == nil {
				delete(b.byID, id)
				delete(b.ids, old)
			}
		}
		b.purge = max(64, 2*len(b.ids))
	}
	b.next++
	b.ids[k] = b.next
	b.byID[b.next] = k
	return b.next
}

func (b *blocks) resolve(id uint32, off int) Pointer {
	b.mu.Lock()
	k, ok := b.byID[id]
	b.mu.Unlock()
	if !ok {
		return Pointer{}
	}
	base := k.base.Value()
	if base == nil {
		return Pointer{}
	}
	return Pointer{mem: unsafe.Slice(base, k.n), off: off}
}
