package parfor

// ForEach calls fn once for every element of items, in parallel on s, and
// returns once every call has finished. Bundles are zero-copy sub-slices of
// items, so fn may read its neighbours but must not write the slice.
//
// Failures do not stop the run. Every item is still delivered, and the
// returned error joins one [*ItemError] per failed item, whose Index is the
// element's offset in items.
//
//	err := parfor.ForEach(s, paths, func(p string) error {
//	    return process(p)
//	})
func ForEach[T any](s *Scheduler, items []T, fn func(item T) error) error {
	if fn == nil {
		panic("parfor: ForEach requires non-nil fn")
	}
	return s.submit(CollectionSlice, len(items), &sliceSource[T]{
		items: items,
		fn:    func(_ int, item T) error { return fn(item) },
	})
}

// ForEachKeyed calls fn once for every entry yielded by c's cursor. Bundles
// carry copies of the entries, pulled from the cursor by the manager.
//
// If the cursor yields fewer entries than c.Len reports, the run finishes
// with what it yielded. Entries beyond c.Len are discarded. Failures carry
// [NoIndex].
func ForEachKeyed[E any](s *Scheduler, c Keyed[E], fn func(entry E) error) error {
	if fn == nil {
		panic("parfor: ForEachKeyed requires non-nil fn")
	}
	n := c.Len()
	if n <= 0 {
		return nil
	}
	return s.submit(CollectionKeyed, n, &keyedSource[E]{
		cursor:    c.Cursor(),
		remaining: n,
		fn:        func(_ int, entry E) error { return fn(entry) },
	})
}

// ForRange calls fn once for every integer in [start, end). An empty or
// inverted range returns immediately.
func ForRange(s *Scheduler, start, end int, fn func(i int) error) error {
	if fn == nil {
		panic("parfor: ForRange requires non-nil fn")
	}
	if end < start {
		end = start
	}
	return s.submit(CollectionRange, end-start, &rangeSource{next: start, end: end, fn: fn})
}

// MapSlice calls fn for every element concurrently and collects the results
// in input order. On error it returns nil and the joined item errors, with
// the same attribution as [ForEach].
//
//	sizes, err := parfor.MapSlice(s, files, func(f File) (int64, error) {
//	    return f.Size(), nil
//	})
func MapSlice[T, R any](s *Scheduler, items []T, fn func(item T) (R, error)) ([]R, error) {
	if fn == nil {
		panic("parfor: MapSlice requires non-nil fn")
	}
	results := make([]R, len(items))
	err := s.submit(CollectionSlice, len(items), &sliceSource[T]{
		items: items,
		fn: func(i int, item T) error {
			r, err := fn(item)
			if err != nil {
				return err
			}
			results[i] = r // each offset is written by exactly one callback
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
