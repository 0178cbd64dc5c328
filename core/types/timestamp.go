package types

import "time"

// UnixNanos encodes t for storage in the state trie. The zero time encodes as
// zero.
func UnixNanos(t time.Time) uint64 {
	if t.IsZero() || t.UnixNano() <= 0 {
		return 0
	}
	return uint64(t.UnixNano())
}

// FromUnixNanos decodes a stored instant in UTC. Zero decodes as the zero
// time.
func FromUnixNanos(n uint64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(n)).UTC()
}
