package crdt

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/lexera/boardcore/internal/board"
)

// snapshot is the gob-encodable form of a full Doc, used by Save/Load.
type snapshot struct {
	Peer     uint64
	Clock    uint64
	Title    string
	TitleID  ID
	Format   string
	FormatID ID
	Entities []Entity
}

// Save produces a full binary snapshot of the document.
func (br *Bridge) Save() ([]byte, error) {
	d := br.Doc
	d.mu.Lock()
	snap := snapshot{
		Peer: d.peer, Clock: d.clock,
		Title: d.title, TitleID: d.titleID,
		Format: d.format, FormatID: d.formatID,
	}
	for _, e := range d.sortedEntities() {
		snap.Entities = append(snap.Entities, *e)
	}
	d.mu.Unlock()

	var buf bytes.Buffer
	if err := writeSnapshotHeader(&buf, br); err != nil {
		return nil, err
	}
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("encode crdt snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Load replaces the bridge's document with the contents of a snapshot
// produced by Save.
func (br *Bridge) Load(data []byte) error {
	r := bytes.NewReader(data)
	meta, err := readSnapshotHeader(r)
	if err != nil {
		return err
	}

	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode crdt snapshot: %w", err)
	}

	d := NewDoc(snap.Peer)
	d.clock = snap.Clock
	d.title = snap.Title
	d.titleID = snap.TitleID
	d.format = snap.Format
	d.formatID = snap.FormatID
	for i := range snap.Entities {
		e := snap.Entities[i]
		d.entities[e.ID] = &e
	}

	br.Doc = d
	br.Header = meta.Header
	br.Footer = meta.Footer
	br.Settings = board.SettingsFromArray(meta.Settings)
	return nil
}

// ExportUpdatesSince returns opaque bytes encoding every entity (and the
// title/format registers) whose last-touch counter exceeds the supplied
// version vector's entry for its peer — i.e. everything vv doesn't know
// about yet.
func (br *Bridge) ExportUpdatesSince(vv VersionVector) ([]byte, error) {
	d := br.Doc
	d.mu.Lock()
	var delta snapshot
	if d.titleID.Counter > vv[d.titleID.Peer] {
		delta.Title, delta.TitleID = d.title, d.titleID
	}
	if d.formatID.Counter > vv[d.formatID.Peer] {
		delta.Format, delta.FormatID = d.format, d.formatID
	}
	for _, e := range d.sortedEntities() {
		if e.LastTouch.Counter > vv[e.LastTouch.Peer] {
			delta.Entities = append(delta.Entities, *e)
		}
	}
	d.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(delta); err != nil {
		return nil, fmt.Errorf("encode crdt delta: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportUpdates applies a delta produced by ExportUpdatesSince. Importing
// the same delta twice is a no-op the second time: each entity is only
// overwritten when the incoming LastTouch id wins the Lamport comparison
// against what's already known, which is false once it's already been
// applied.
func (br *Bridge) ImportUpdates(data []byte) error {
	var delta snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&delta); err != nil {
		return fmt.Errorf("decode crdt delta: %w", err)
	}

	d := br.Doc
	d.mu.Lock()
	defer d.mu.Unlock()

	if delta.TitleID != (ID{}) && delta.TitleID.Greater(d.titleID) {
		d.title, d.titleID = delta.Title, delta.TitleID
	}
	if delta.FormatID != (ID{}) && delta.FormatID.Greater(d.formatID) {
		d.format, d.formatID = delta.Format, delta.FormatID
	}
	for i := range delta.Entities {
		incoming := delta.Entities[i]
		existing, ok := d.entities[incoming.ID]
		if !ok {
			cp := incoming
			d.entities[incoming.ID] = &cp
			d.bumpClock(incoming.LastTouch.Counter)
			continue
		}
		if incoming.LastTouch.Greater(existing.LastTouch) {
			cp := incoming
			d.entities[incoming.ID] = &cp
		}
		d.bumpClock(incoming.LastTouch.Counter)
	}
	return nil
}

// snapshotMeta carries the non-CRDT bridge fields (header/footer/settings)
// alongside a Save output so Load can restore them too.
type snapshotMeta struct {
	Header   string
	Footer   string
	Settings [17]string
}

func writeSnapshotHeader(buf *bytes.Buffer, br *Bridge) error {
	meta := snapshotMeta{Header: br.Header, Footer: br.Footer, Settings: br.Settings.Array()}
	var metaBuf bytes.Buffer
	if err := gob.NewEncoder(&metaBuf).Encode(meta); err != nil {
		return fmt.Errorf("encode crdt snapshot meta: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(metaBuf.Len()))
	buf.Write(lenBuf[:])
	buf.Write(metaBuf.Bytes())
	return nil
}

type readHeaderResult struct {
	Header   string
	Footer   string
	Settings [17]string
}

func readSnapshotHeader(r *bytes.Reader) (readHeaderResult, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return readHeaderResult{}, fmt.Errorf("read crdt snapshot header length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	metaBytes := make([]byte, n)
	if _, err := io.ReadFull(r, metaBytes); err != nil {
		return readHeaderResult{}, fmt.Errorf("read crdt snapshot header: %w", err)
	}
	var meta snapshotMeta
	if err := gob.NewDecoder(bytes.NewReader(metaBytes)).Decode(&meta); err != nil {
		return readHeaderResult{}, fmt.Errorf("decode crdt snapshot header: %w", err)
	}
	return readHeaderResult{Header: meta.Header, Footer: meta.Footer, Settings: meta.Settings}, nil
}
