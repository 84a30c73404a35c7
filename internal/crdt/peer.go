package crdt

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// DerivePeer turns a live-sync session id into a peer identity for a Doc,
// taking the first 8 bytes of the UUID and coercing any value that would
// collide with DefaultPeer upward by one.
func DerivePeer(sessionID uuid.UUID) uint64 {
	p := binary.BigEndian.Uint64(sessionID[:8])
	if p == DefaultPeer {
		p++
	}
	if p == 0 {
		p = DefaultPeer + 1
	}
	return p
}
