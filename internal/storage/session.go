package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lexera/boardcore/internal/board"
	"github.com/lexera/boardcore/internal/crdt"
)

// liveSession is one open live-sync client, with a peer identity derived
// from the session id. The session has no replica of its own: ApplySession
// writes through the board's replica, so edits made through a session are
// recorded under that replica's peer, not under Peer.
type liveSession struct {
	ID      uuid.UUID
	BoardID string
	Peer    uint64
}

// OpenSession starts a live-sync session against id, returning the session
// id, the board's current value, and its version vector so the caller can
// compute what it's missing via a later ExportCRDTUpdatesSince call.
func (e *Engine) OpenSession(id string) (uuid.UUID, *board.Board, crdt.VersionVector, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.getState(id)
	if err != nil {
		return uuid.UUID{}, nil, nil, err
	}
	if st.Bridge == nil {
		return uuid.UUID{}, nil, nil, fmt.Errorf("board %s has no replica to sync against", id)
	}

	sessID := uuid.New()
	sess := &liveSession{ID: sessID, BoardID: id, Peer: crdt.DerivePeer(sessID)}

	e.sessionsMu.Lock()
	e.sessions[sessID.String()] = sess
	e.sessionsMu.Unlock()

	return sessID, st.Board, st.Bridge.Doc.OplogVV(), nil
}

// CloseSession forgets a live-sync session. The board and its replica are
// untouched; this only releases the session's peer-identity bookkeeping.
func (e *Engine) CloseSession(sessionID uuid.UUID) error {
	e.sessionsMu.Lock()
	defer e.sessionsMu.Unlock()
	key := sessionID.String()
	if _, ok := e.sessions[key]; !ok {
		return fmt.Errorf("unknown session: %s", sessionID)
	}
	delete(e.sessions, key)
	return nil
}

func (e *Engine) session(sessionID uuid.UUID) (*liveSession, error) {
	e.sessionsMu.Lock()
	defer e.sessionsMu.Unlock()
	sess, ok := e.sessions[sessionID.String()]
	if !ok {
		return nil, fmt.Errorf("unknown session: %s", sessionID)
	}
	return sess, nil
}

// ApplySession writes clientBoard through the normal write algorithm, using
// the session's board as the current write target, then returns the
// resulting board alongside the outgoing delta the caller hasn't seen yet
// so a bidirectional sync loop can push it back out to the client.
func (e *Engine) ApplySession(ctx context.Context, sessionID uuid.UUID, clientBoard *board.Board, clientVV crdt.VersionVector) (*board.Board, []byte, error) {
	sess, err := e.session(sessionID)
	if err != nil {
		return nil, nil, err
	}

	lock := e.lockFor(sess.BoardID)
	lock.Lock()
	defer lock.Unlock()

	orig, err := e.getState(sess.BoardID)
	if err != nil {
		return nil, nil, err
	}
	if orig.Bridge == nil {
		return nil, nil, fmt.Errorf("board %s has no replica to sync against", sess.BoardID)
	}

	if _, err := e.writeLocked(ctx, sess.BoardID, orig, nil, clientBoard); err != nil {
		return nil, nil, err
	}

	st, err := e.getState(sess.BoardID)
	if err != nil {
		return nil, nil, err
	}
	delta, err := st.Bridge.ExportUpdatesSince(clientVV)
	if err != nil {
		return nil, nil, err
	}
	return st.Board, delta, nil
}

// ImportSession applies an out-of-band CRDT delta (produced by another
// ExportCRDTUpdatesSince or another peer's ApplySession) into the session's
// board, saving a snapshot and refreshing the search index, and reports
// whether anything actually changed.
func (e *Engine) ImportSession(ctx context.Context, sessionID uuid.UUID, updateBytes []byte) (*board.Board, crdt.VersionVector, bool, error) {
	sess, err := e.session(sessionID)
	if err != nil {
		return nil, nil, false, err
	}
	return e.ImportCRDTUpdates(ctx, sess.BoardID, updateBytes)
}
