// Package registry implements the process-wide board registry: an
// arena/slab of board records addressed by stable integer indices, with
// secondary lookup maps for handle, "host:port", and user board ID.
//
// The teacher's own registries (services/hal/registry.go,
// services/hal/internal/core/registry.go) are builder-registration maps,
// not a record store, so this package instead follows spec.md §9's
// REDESIGN FLAGS directly: the source's singly-linked list of board
// records with raw-pointer find_prev traversal is replaced by a slab plus
// secondary maps, with TabIndex kept as a separate monotonic counter
// rather than storage position (a later insert can reuse a lower slab
// slot after an earlier removal without reusing its tab index).
package registry

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"dio64board/wire"
)

// UserID is the caller's board key. NoneID marks a record in its
// deferred-close window (spec.md §3): board_id == NONE.
type UserID int32

// NoneID is the sentinel UserID for a record awaiting deferred-close
// expiry or reopen.
const NoneID UserID = -1

// Handle is the opaque, random-looking token returned by Open. It is
// unique within the process and stable across reconnections within the
// deferred-close window.
type Handle int64

// WorkerHandle is the registry's view of a live board worker: just enough
// surface for the façade and registry to drive it, without registry
// importing the board package, so registry stays independent of the
// worker implementation. The board package
// implements this interface; callers never see a raw queue pointer
// (spec.md §9 REDESIGN FLAGS).
type WorkerHandle interface {
	// RequestExit asks the worker to synthesize THREAD_EXIT and tear
	// itself down. Safe to call more than once.
	RequestExit()
}

// Board is one board record (spec.md §3).
type Board struct {
	UserID   UserID
	Handle   Handle
	TabIndex int

	Addr       string // "host:port"
	PortOffset int    // byte offset of the ':' separating host and port

	Worker WorkerHandle

	Config        wire.ClientConfig
	LastStatus    wire.ClientStatus
	LastBoardTime uint32

	ProgrammedReps uint32
	ActualReps     uint32

	Ignore  bool
	Running bool

	// PrimaryTab names the primary's tab index for a linked-group
	// secondary; -1 if this record is itself a primary or unlinked.
	PrimaryTab int
}

// Registry is the process-wide board store.
type Registry struct {
	mu sync.Mutex

	slab     map[int]*Board
	freelist []int
	nextSlot int
	nextTab  int

	byHandle map[Handle]int
	byAddr   map[string]int
	byUser   map[UserID]int
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		slab:     make(map[int]*Board),
		byHandle: make(map[Handle]int),
		byAddr:   make(map[string]int),
		byUser:   make(map[UserID]int),
	}
}

// PrimaryTabNone marks a Board.PrimaryTab as "not a linked secondary".
const PrimaryTabNone = -1

// NewHandle generates a random Handle not already live in the registry.
func (r *Registry) NewHandle() Handle {
	for {
		var b [8]byte
		_, _ = rand.Read(b[:])
		h := Handle(binary.LittleEndian.Uint64(b[:]) &^ (1 << 63)) // keep positive per DIO64 handle>0 convention
		if h == 0 {
			continue
		}
		r.mu.Lock()
		_, taken := r.byHandle[h]
		r.mu.Unlock()
		if !taken {
			return h
		}
	}
}

// Insert adds b to the registry, assigning it a fresh TabIndex, and returns
// the slab slot it was stored at. b.Handle and b.Addr must already be set
// and must not collide with a live record (callers are expected to have
// checked LookupAddr first under the façade's process lock).
func (r *Registry) Insert(b *Board) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	b.TabIndex = r.nextTab
	r.nextTab++

	slot := r.allocSlotLocked()
	r.slab[slot] = b
	r.byHandle[b.Handle] = slot
	if b.Addr != "" {
		r.byAddr[b.Addr] = slot
	}
	if b.UserID != NoneID {
		r.byUser[b.UserID] = slot
	}
	return slot
}

// AllocateTab reserves the next monotonic tab index without storing a
// record, so a caller can hand it to a worker before that worker's
// record exists (e.g. the façade must start the board's connection
// before it knows the connection succeeded, but wants the eventual
// record's TabIndex fixed from the start).
func (r *Registry) AllocateTab() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.nextTab
	r.nextTab++
	return t
}

// InsertAt stores b, which must already carry a TabIndex obtained from
// AllocateTab, without allocating a new one.
func (r *Registry) InsertAt(b *Board) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot := r.allocSlotLocked()
	r.slab[slot] = b
	r.byHandle[b.Handle] = slot
	if b.Addr != "" {
		r.byAddr[b.Addr] = slot
	}
	if b.UserID != NoneID {
		r.byUser[b.UserID] = slot
	}
	return slot
}

func (r *Registry) allocSlotLocked() int {
	if n := len(r.freelist); n > 0 {
		slot := r.freelist[n-1]
		r.freelist = r.freelist[:n-1]
		return slot
	}
	slot := r.nextSlot
	r.nextSlot++
	return slot
}

// Remove deletes the record at slot from the slab and all secondary maps,
// returning its freelist slot for reuse by a later Insert. The tab-index
// counter is never rewound, so tab indices stay monotonic in insertion
// order even though slab slots are recycled.
func (r *Registry) Remove(slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.slab[slot]
	if !ok {
		return
	}
	delete(r.slab, slot)
	delete(r.byHandle, b.Handle)
	if b.Addr != "" && r.byAddr[b.Addr] == slot {
		delete(r.byAddr, b.Addr)
	}
	if b.UserID != NoneID && r.byUser[b.UserID] == slot {
		delete(r.byUser, b.UserID)
	}
	r.freelist = append(r.freelist, slot)
}

// Lookup returns the board at slot, if live.
func (r *Registry) Lookup(slot int) (*Board, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.slab[slot]
	return b, ok
}

// LookupHandle finds a live board by handle.
func (r *Registry) LookupHandle(h Handle) (*Board, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.byHandle[h]
	if !ok {
		return nil, 0, false
	}
	return r.slab[slot], slot, true
}

// LookupAddr finds a live board by "host:port", as used to decide whether
// Open/OpenResource should reuse an existing record (spec.md §3: "at most
// one record may have the same IP:port at any time").
func (r *Registry) LookupAddr(addr string) (*Board, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.byAddr[addr]
	if !ok {
		return nil, 0, false
	}
	return r.slab[slot], slot, true
}

// LookupUser finds a live board by caller-supplied board ID. A board in
// its deferred-close window (UserID == NoneID) is never returned here.
func (r *Registry) LookupUser(id UserID) (*Board, int, bool) {
	if id == NoneID {
		return nil, 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.byUser[id]
	if !ok {
		return nil, 0, false
	}
	return r.slab[slot], slot, true
}

// MarkDeferredClose transitions a live record into its deferred-close
// window: its UserID becomes NoneID so no external command may target it
// except a matching re-open (spec.md §3), and it is dropped from byUser
// but remains reachable by handle/addr until Remove drops it. The worker
// does not call back into the registry; ExitAll removes the record, and so
// does the façade's next Open of the same address once the worker has exited.
func (r *Registry) MarkDeferredClose(slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.slab[slot]
	if !ok {
		return
	}
	if b.UserID != NoneID {
		delete(r.byUser, b.UserID)
	}
	b.UserID = NoneID
}

// Reopen cancels a record's deferred-close window: its UserID is restored
// so it is addressable again, without disturbing its Handle or TabIndex
// (spec.md §8: "the second Open returns a handle equal to the first").
func (r *Registry) Reopen(slot int, id UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.slab[slot]
	if !ok {
		return
	}
	b.UserID = id
	r.byUser[id] = slot
}

// SetIgnore flags a record as silently skipped by future fan-outs
// (spec.md §4.4, connect failure policy "Ignore").
func (r *Registry) SetIgnore(slot int, ignore bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.slab[slot]; ok {
		b.Ignore = ignore
	}
}

// All returns every live board ordered by TabIndex (spec.md §3: "all live
// records are in strictly increasing tab-index order").
func (r *Registry) All() []*Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Board, 0, len(r.slab))
	for _, b := range r.slab {
		out = append(out, b)
	}
	sortByTabIndex(out)
	return out
}

func sortByTabIndex(bs []*Board) {
	// Small-N insertion sort: board counts are at most a handful of linked
	// groups, never worth pulling in sort.Slice's reflection overhead.
	for i := 1; i < len(bs); i++ {
		for j := i; j > 0 && bs[j].TabIndex < bs[j-1].TabIndex; j-- {
			bs[j], bs[j-1] = bs[j-1], bs[j]
		}
	}
}

// Members returns the linked group rooted at primary's tab index: the
// primary itself followed by every secondary whose PrimaryTab matches, in
// ascending secondary-index (tab) order.
func (r *Registry) Members(primarySlot int) []*Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	primary, ok := r.slab[primarySlot]
	if !ok {
		return nil
	}
	out := []*Board{primary}
	var secondaries []*Board
	for _, b := range r.slab {
		if b != primary && b.PrimaryTab == primary.TabIndex {
			secondaries = append(secondaries, b)
		}
	}
	sortByTabIndex(secondaries)
	return append(out, secondaries...)
}

// Now reports the current time; a thin seam so tests can stub the clock if
// ever needed. Nothing in this module calls it; the worker's deferred-close
// timer uses time.AfterFunc directly.
func Now() time.Time { return time.Now() }

