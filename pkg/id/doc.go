// Package id provides a 128-bit, lexicographically sortable identifier.
//
// An ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes counter].
// Byte-wise comparison preserves generation order, which is what the
// lifecycle bus relies on to deliver events in subscription order.
//
// The Generator is monotonic per process: a regressing system clock pins to
// the last seen millisecond, and a counter overflow within one millisecond
// waits for the next millisecond before emitting.
package id
