package cache

import (
	"strings"
	"sync"
)

// Memo keeps recently served bytecode in memory, keyed by pack, unit and
// the translated fingerprint the bytecode was built from, so a rebuilt unit
// never hits a stale copy.
type Memo struct {
	mu   sync.Mutex
	data map[string][]byte

	hits   int
	misses int
}

// NewMemo creates an empty memo.
func NewMemo() *Memo {
	return &Memo{data: make(map[string][]byte)}
}

func memoKey(pack, rel, fp string) string {
	return pack + "/" + rel + "@" + fp
}

// Get retrieves bytecode.
func (m *Memo) Get(pack, rel, fp string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[memoKey(pack, rel, fp)]
	if ok {
		m.hits++
	} else {
		m.misses++
	}
	return b, ok
}

// Set stores bytecode, replacing any older build of the same unit.
func (m *Memo) Set(pack, rel, fp string, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := pack + "/" + rel + "@"
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	m.data[memoKey(pack, rel, fp)] = b
}

// Forget drops everything held for pack.
func (m *Memo) Forget(pack string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, pack+"/") {
			delete(m.data, k)
		}
	}
}

// Stats returns memo statistics.
func (m *Memo) Stats() (hits, misses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}
