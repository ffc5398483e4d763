package parfor

import (
	"iter"
	"maps"
)

// Keyed is a collection that can only be walked through a cursor, such as a
// hash map. Len must match the number of entries the cursor yields.
type Keyed[E any] interface {
	Len() int
	Cursor() Cursor[E]
}

// Cursor yields the entries of a [Keyed] collection in batches. A cursor is
// only ever advanced by the scheduler's manager goroutine.
type Cursor[E any] interface {
	// Next appends up to k further entries to dst and returns it. Returning
	// fewer than k entries means the cursor is exhausted.
	Next(dst []E, k int) []E

	// Close releases the cursor. It is called exactly once.
	Close()
}

// Entry is one key/value pair of a map walked via [MapOf].
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// MapOf adapts a Go map to [Keyed]. The map must not be written while a run
// over it is in flight; concurrent reads from callbacks are fine.
func MapOf[K comparable, V any](m map[K]V) Keyed[Entry[K, V]] {
	return mapKeyed[K, V]{m: m}
}

type mapKeyed[K comparable, V any] struct {
	m map[K]V
}

func (k mapKeyed[K, V]) Len() int { return len(k.m) }

func (k mapKeyed[K, V]) Cursor() Cursor[Entry[K, V]] {
	next, stop := iter.Pull2(maps.All(k.m))
	return &pullCursor[K, V]{next: next, stop: stop}
}

type pullCursor[K comparable, V any] struct {
	next func() (K, V, bool)
	stop func()
}

func (c *pullCursor[K, V]) Next(dst []Entry[K, V], k int) []Entry[K, V] {
	for range k {
		key, val, ok := c.next()
		if !ok {
			break
		}
		dst = append(dst, Entry[K, V]{Key: key, Value: val})
	}
	return dst
}

func (c *pullCursor[K, V]) Close() { c.stop() }
