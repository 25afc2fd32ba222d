// Package wire encodes runtime value graphs as CBOR so they can leave the
// process: snapshots, logs, or transport between runtimes.
package wire

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/hearth/vm"
)

var log = commonlog.GetLogger("hearth.wire")

// ErrUnencodable is returned for raw pointers and Go heap references,
// which have no meaning outside the process.
var ErrUnencodable = errors.New("wire: value cannot be encoded")

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Node is one value of a document. Children are indices into the
// document's node list, so sharing and cycles survive encoding.
type Node struct {
	Kind  vm.Kind `cbor:"1,keyasint"`
	Tag   int     `cbor:"2,keyasint,omitempty"`
	Int   int64   `cbor:"3,keyasint,omitempty"`
	Bits  uint64  `cbor:"4,keyasint,omitempty"`
	Float float64 `cbor:"5,keyasint,omitempty"`
	Big   string  `cbor:"6,keyasint,omitempty"`
	Bytes []byte  `cbor:"7,keyasint,omitempty"`
	Refs  []int   `cbor:"8,keyasint,omitempty"`
	Off   int     `cbor:"9,keyasint,omitempty"`
	Len   int     `cbor:"10,keyasint,omitempty"`
}

// Document is an encoded value graph.
type Document struct {
	Root  int    `cbor:"1,keyasint"`
	Nodes []Node `cbor:"2,keyasint"`
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

type encoder struct {
	u     *vm.Unit
	index map[vm.Value]int
	nodes []Node
}

// Encode captures the graph reachable from v. It does not allocate, so v
// may be held in a Go variable for the call.
func Encode(u *vm.Unit, v vm.Value) (*Document, error) {
	e := &encoder{u: u, index: make(map[vm.Value]int)}
	root, err := e.node(v)
	if err != nil {
		return nil, err
	}
	return &Document{Root: root, Nodes: e.nodes}, nil
}

func (e *encoder) node(v vm.Value) (int, error) {
	if idx, ok := e.index[v]; ok {
		return idx, nil
	}
	idx := len(e.nodes)
	e.index[v] = idx
	e.nodes = append(e.nodes, Node{})

	u := e.u
	n := Node{Kind: u.Kind(v)}
	var children []vm.Value
	switch n.Kind {
	case vm.KindNull, vm.KindUnit:
	case vm.KindInt:
		n.Int = v.Int()
	case vm.KindCon:
		n.Tag = u.Tag(v)
		for i := 0; i < u.Arity(v); i++ {
			children = append(children, u.Arg(v, i))
		}
	case vm.KindArray:
		for i := 0; i < u.ArrayLen(v); i++ {
			children = append(children, u.ArrayGet(v, i))
		}
	case vm.KindBig:
		n.Big = u.IntegerOf(v).String()
	case vm.KindFloat:
		n.Float = u.FloatOf(v)
	case vm.KindString:
		n.Bytes = append([]byte(nil), u.StringView(v).Bytes()...)
	case vm.KindRef:
		children = append(children, u.ReadRef(v))
	case vm.KindSlice:
		base, off, length := u.SliceOf(v)
		n.Off, n.Len = off, length
		children = append(children, base)
	case vm.KindBits8, vm.KindBits16, vm.KindBits32, vm.KindBits64:
		n.Bits = u.BitsOf(v)
	case vm.KindBlob:
		n.Bytes = append([]byte(nil), u.BlobOf(v)...)
	case vm.KindManaged:
		ent := u.EntryOf(v)
		n.Bytes = append([]byte(nil), ent.Pointer().Bytes(ent.Size())...)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnencodable, n.Kind)
	}
	for _, c := range children {
		ci, err := e.node(c)
		if err != nil {
			return 0, err
		}
		n.Refs = append(n.Refs, ci)
	}
	e.nodes[idx] = n
	return idx, nil
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func (d *Document) validate() error {
	if d.Root < 0 || d.Root >= len(d.Nodes) {
		return fmt.Errorf("wire: root %d out of range", d.Root)
	}
	for i, n := range d.Nodes {
		for _, r := range n.Refs {
			if r < 0 || r >= len(d.Nodes) {
				return fmt.Errorf("wire: node %d refers to missing node %d", i, r)
			}
		}
		if n.Kind == vm.KindRef && len(n.Refs) != 1 {
			return fmt.Errorf("wire: ref node %d has %d targets", i, len(n.Refs))
		}
		if n.Kind == vm.KindSlice {
			if len(n.Refs) != 1 || d.Nodes[n.Refs[0]].Kind != vm.KindString {
				return fmt.Errorf("wire: slice node %d has no string base", i)
			}
			if n.Off < 0 || n.Len < 0 || n.Off+n.Len > len(d.Nodes[n.Refs[0]].Bytes) {
				return fmt.Errorf("wire: slice node %d out of range", i)
			}
		}
	}
	return nil
}

// Decode builds the document's graph in u's heap and returns its root,
// which is also left in u's result register. Every node is held in a
// stack frame while the graph is assembled, so collections during
// decoding are safe.
func Decode(u *vm.Unit, d *Document) (vm.Value, error) {
	if err := d.validate(); err != nil {
		return vm.Null, err
	}
	st := u.Stack()
	if st.Headroom() < len(d.Nodes) {
		return vm.Null, fmt.Errorf("wire: %d nodes exceed the %d free stack slots", len(d.Nodes), st.Headroom())
	}
	frame := st.Enter(len(d.Nodes))
	defer st.Leave(frame)

	// Shells and leaves first, then slices over their bases, then links.
	for i, n := range d.Nodes {
		var v vm.Value
		switch n.Kind {
		case vm.KindNull:
			v = vm.Null
		case vm.KindUnit:
			v = vm.UnitValue
		case vm.KindInt:
			v = vm.FromInt(n.Int)
		case vm.KindCon:
			v = u.AllocCon(n.Tag, len(n.Refs))
		case vm.KindArray:
			v = u.NewArray(len(n.Refs))
		case vm.KindRef:
			v = u.NewRef(vm.Null)
		case vm.KindBig:
			b, ok := new(big.Int).SetString(n.Big, 10)
			if !ok {
				return vm.Null, fmt.Errorf("wire: node %d: bad integer %q", i, n.Big)
			}
			v = u.NewBig(b)
		case vm.KindFloat:
			v = u.NewFloat(n.Float)
		case vm.KindString:
			v = u.NewString(string(n.Bytes))
		case vm.KindSlice:
			continue
		case vm.KindBits8:
			v = u.NewBits8(uint8(n.Bits))
		case vm.KindBits16:
			v = u.NewBits16(uint16(n.Bits))
		case vm.KindBits32:
			v = u.NewBits32(uint32(n.Bits))
		case vm.KindBits64:
			v = u.NewBits64(n.Bits)
		case vm.KindBlob:
			v = u.NewBlob(n.Bytes)
		case vm.KindManaged:
			v = u.NewManagedBlock(len(n.Bytes), nil)
			copy(u.EntryOf(v).Pointer().Bytes(len(n.Bytes)), n.Bytes)
		default:
			return vm.Null, fmt.Errorf("%w: node %d is %s", ErrUnencodable, i, n.Kind)
		}
		st.SetLoc(i, v)
	}
	for i, n := range d.Nodes {
		if n.Kind == vm.KindSlice {
			st.SetLoc(i, u.Substring(st.Loc(n.Refs[0]), n.Off, n.Len))
		}
	}
	for i, n := range d.Nodes {
		switch n.Kind {
		case vm.KindCon:
			for j, r := range n.Refs {
				u.SetArg(st.Loc(i), j, st.Loc(r))
			}
		case vm.KindArray:
			for j, r := range n.Refs {
				u.ArraySet(st.Loc(i), j, st.Loc(r))
			}
		case vm.KindRef:
			u.WriteRef(st.Loc(i), st.Loc(n.Refs[0]))
		}
	}
	root := st.Loc(d.Root)
	u.Return(root)
	return root, nil
}

// MarshalDocument serializes a Document to CBOR bytes.
func MarshalDocument(d *Document) ([]byte, error) {
	return cborEncMode.Marshal(d)
}

// UnmarshalDocument deserializes a Document from CBOR bytes.
func UnmarshalDocument(data []byte) (*Document, error) {
	var d Document
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("wire: unmarshal document: %w", err)
	}
	return &d, nil
}

// ---------------------------------------------------------------------------
// Envelopes
// ---------------------------------------------------------------------------

// Envelope carries one message between runtimes.
type Envelope struct {
	Origin  uuid.UUID    `cbor:"1,keyasint"`
	Sender  vm.UnitID    `cbor:"2,keyasint"`
	Channel vm.ChannelID `cbor:"3,keyasint"`
	Payload Document     `cbor:"4,keyasint"`
}

// Seal encodes v as a message from u on ch.
func Seal(u *vm.Unit, ch vm.ChannelID, v vm.Value) ([]byte, error) {
	doc, err := Encode(u, v)
	if err != nil {
		return nil, err
	}
	env := &Envelope{
		Origin:  u.Runtime().ID(),
		Sender:  u.ID(),
		Channel: ch,
		Payload: *doc,
	}
	data, err := cborEncMode.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal envelope: %w", err)
	}
	log.Debugf("sealed %d nodes from unit %d on channel %d (%d bytes)", len(doc.Nodes), u.ID(), ch, len(data))
	return data, nil
}

// Open decodes an envelope without materialising its payload.
func Open(data []byte) (*Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: unmarshal envelope: %w", err)
	}
	return &env, nil
}

// Deliver materialises the payload in u's heap.
func (e *Envelope) Deliver(u *vm.Unit) (vm.Value, error) {
	return Decode(u, &e.Payload)
}
