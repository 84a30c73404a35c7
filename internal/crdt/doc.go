// Package crdt implements the replicated board document: a Lamport-clock
// addressed LWW-element-set over board entities (rows, stacks, columns,
// cards), in the style of the Replicated Growable Array reference design
// (identity = {counter, peer}, deletions are tombstones, merges are
// idempotent and commutative at entity granularity). Ordering among
// siblings is recovered from each entity's id, which is assigned in
// creation/append order — sufficient for this package's contract, since
// concurrent moves are always expressed as delete-then-insert rather than
// as in-place position edits.
package crdt

import "sync"

// ID is a Lamport timestamp plus the peer that minted it: a total,
// deterministic order for resolving concurrent operations.
type ID struct {
	Counter uint64
	Peer    uint64
}

// Greater gives the total order used to pick a winner between two
// concurrent writes to the same entity: higher counter wins, peer id
// breaks ties.
func (a ID) Greater(b ID) bool {
	if a.Counter != b.Counter {
		return a.Counter > b.Counter
	}
	return a.Peer > b.Peer
}

// Kind identifies what an Entity represents.
type Kind int

const (
	KindRow Kind = iota
	KindStack
	KindColumn
	KindCard
)

// Entity is one node of the replicated tree: a row, stack, column, or
// card. Fields irrelevant to its Kind are simply unused.
type Entity struct {
	ID         ID
	Parent     ID // zero ID for top-level rows/legacy columns
	Kind       Kind
	Title      string
	Content    string
	Checked    bool
	Kid        string
	Tombstone  bool
	LastTouch  ID // id of the operation that most recently touched this entity
}

// rootID is the sentinel parent of top-level rows (hierarchical) or
// top-level columns (legacy).
var rootID = ID{}

// Doc is the replicated board document.
type Doc struct {
	mu       sync.Mutex
	peer     uint64
	clock    uint64
	title    string
	titleID  ID
	format   string // "legacy" or "new"
	formatID ID
	entities map[ID]*Entity
}

// DefaultPeer is the identity used when no live-sync session overrides it.
const DefaultPeer uint64 = 1

// NewDoc creates an empty document owned by the given peer.
func NewDoc(peer uint64) *Doc {
	if peer == 0 {
		peer = DefaultPeer
	}
	return &Doc{peer: peer, entities: make(map[ID]*Entity)}
}

func (d *Doc) nextID() ID {
	d.clock++
	return ID{Counter: d.clock, Peer: d.peer}
}

func (d *Doc) bumpClock(seen uint64) {
	if seen > d.clock {
		d.clock = seen
	}
}

// insert creates a new entity and returns it. Callers hold d.mu.
func (d *Doc) insert(parent ID, kind Kind) *Entity {
	id := d.nextID()
	e := &Entity{ID: id, Parent: parent, Kind: kind, LastTouch: id}
	d.entities[id] = e
	return e
}

// touch stamps e as modified by a fresh local operation.
func (d *Doc) touch(e *Entity) {
	e.LastTouch = d.nextID()
}

// children returns the live (non-tombstoned) entities directly under
// parent with the given kind, in ascending-id (creation/append) order.
func (d *Doc) children(parent ID, kind Kind) []*Entity {
	var out []*Entity
	for _, e := range d.entities {
		if e.Parent == parent && e.Kind == kind && !e.Tombstone {
			out = append(out, e)
		}
	}
	sortByID(out)
	return out
}

func sortByID(es []*Entity) {
	for i := 1; i < len(es); i++ {
		for j := i; j > 0 && less(es[j].ID, es[j-1].ID); j-- {
			es[j], es[j-1] = es[j-1], es[j]
		}
	}
}

func less(a, b ID) bool {
	if a.Counter != b.Counter {
		return a.Counter < b.Counter
	}
	return a.Peer < b.Peer
}

// VersionVector is an opaque-to-callers per-peer max-counter-seen map.
type VersionVector map[uint64]uint64

// OplogVV returns the document's current version vector.
func (d *Doc) OplogVV() VersionVector {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vvLocked()
}

func (d *Doc) vvLocked() VersionVector {
	vv := make(VersionVector)
	note := func(id ID) {
		if id.Counter > vv[id.Peer] {
			vv[id.Peer] = id.Counter
		}
	}
	note(d.titleID)
	note(d.formatID)
	for _, e := range d.entities {
		note(e.LastTouch)
	}
	return vv
}
