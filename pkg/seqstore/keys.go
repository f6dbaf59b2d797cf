package seqstore

import (
	"strconv"
	"strings"
)

// Storage key layout (one slot per store instance, never per topic):
//
//	{protocol}@{version}:{context}//{scope joined by ':'}
//
// e.g. seq@1:3f1c.../store:sequence

// KeyInfo carries the key-derivation components supplied by the owning
// client. The derived key is stable for the lifetime of a store instance.
type KeyInfo struct {
	// Protocol is the owning protocol name, e.g. "seq".
	Protocol string
	// Version is the protocol version.
	Version int
	// Context identifies the owning client instance.
	Context string
	// Scope is the nested context path, e.g. ["store", "sequence"].
	Scope []string
}

// StorageKey derives the single persistence slot for the whole map.
func (k KeyInfo) StorageKey() string {
	var b strings.Builder
	b.WriteString(k.Protocol)
	b.WriteByte('@')
	b.WriteString(strconv.Itoa(k.Version))
	b.WriteByte(':')
	b.WriteString(k.Context)
	b.WriteString("//")
	b.WriteString(strings.Join(k.Scope, ":"))
	return b.String()
}
