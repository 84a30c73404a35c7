// Package selfwrite distinguishes the storage engine's own writes from
// external edits picked up by the file watcher, so an engine-initiated
// write never gets reprocessed as a foreign change.
package selfwrite

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// TTL is the default lifetime for an unconsumed fingerprint, used when New
// is given a non-positive duration.
const TTL = 10 * time.Second

type fingerprint struct {
	hash      string
	expiresAt time.Time
}

// Tracker registers content fingerprints before an engine-initiated write
// and consumes them when the watcher reports a matching read, so that write
// is reported as self rather than external. Fingerprints for the same path
// are queued: each registration is consumed by at most one subsequent read,
// independently of any other registration for that path.
type Tracker struct {
	mu      sync.Mutex
	entries map[string][]fingerprint
	ttl     time.Duration
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Tracker with the given fingerprint lifetime and starts its
// background sweep goroutine. A non-positive ttl falls back to TTL.
func New(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = TTL
	}
	t := &Tracker{
		entries: make(map[string][]fingerprint),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go t.sweep()
	return t
}

func normalizeLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Hash computes the self-write fingerprint hash for content.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(normalizeLF(content)))
	return hex.EncodeToString(sum[:])
}

// Register records that path is about to be written with the given
// content, so a subsequent matching watcher read is recognized as self.
func (t *Tracker) Register(path, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[path] = append(t.entries[path], fingerprint{
		hash:      Hash(content),
		expiresAt: time.Now().Add(t.ttl),
	})
}

// Consume reports whether content read from path matches an outstanding,
// unexpired fingerprint, and removes that fingerprint if so (consume on
// match: first-registered, first-matched, at most once).
func (t *Tracker) Consume(path, content string) bool {
	h := Hash(content)
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	fps := t.entries[path]
	for i, fp := range fps {
		if fp.expiresAt.Before(now) {
			continue
		}
		if fp.hash == h {
			t.entries[path] = append(fps[:i:i], fps[i+1:]...)
			if len(t.entries[path]) == 0 {
				delete(t.entries, path)
			}
			return true
		}
	}
	return false
}

// Stop terminates the background sweep goroutine and waits for it to exit.
func (t *Tracker) Stop() {
	close(t.stopCh)
	<-t.doneCh
}

func (t *Tracker) sweep() {
	defer close(t.doneCh)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.mu.Lock()
			now := time.Now()
			for path, fps := range t.entries {
				kept := fps[:0]
				for _, fp := range fps {
					if fp.expiresAt.After(now) {
						kept = append(kept, fp)
					}
				}
				if len(kept) == 0 {
					delete(t.entries, path)
				} else {
					t.entries[path] = kept
				}
			}
			t.mu.Unlock()
		case <-t.stopCh:
			return
		}
	}
}
