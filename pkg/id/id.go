package id

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

// ID is a 128-bit, lexicographically sortable identifier encoded as
// [8 bytes ms_timestamp][8 bytes counter], big-endian.
type ID [16]byte

// Bytes returns the raw 16-byte representation.
func (i ID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, i[:])
	return b
}

// String returns the hex encoding.
func (i ID) String() string { return hex.EncodeToString(i[:]) }

// Compare returns -1, 0, or 1 by lexical byte comparison.
func (i ID) Compare(other ID) int { return bytes.Compare(i[:], other[:]) }

// NowMs returns the current time in milliseconds since the Unix epoch.
// Overridable in tests.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Generator produces monotonically increasing IDs per process.
type Generator struct {
	mu      sync.Mutex
	lastMs  int64
	counter uint64
}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator { return &Generator{} }

// Next returns a new ID, strictly greater than any previous ID from this
// Generator. A backwards clock pins to lastMs; a counter overflow within the
// same millisecond waits for the next millisecond.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	if ms == g.lastMs {
		if g.counter == math.MaxUint64 {
			for ms <= g.lastMs {
				time.Sleep(time.Millisecond / 8)
				ms = NowMs()
			}
			g.counter = 0
		} else {
			g.counter++
		}
	} else {
		g.counter = 0
	}
	g.lastMs = ms

	var out ID
	binary.BigEndian.PutUint64(out[0:8], uint64(ms))
	binary.BigEndian.PutUint64(out[8:16], g.counter)
	return out
}
