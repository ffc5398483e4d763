package parfor

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemError_Error(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		ie   *ItemError
		want string
	}{
		{
			name: "slice element",
			ie:   &ItemError{Run: 4, Kind: CollectionSlice, Index: 2, Item: "c", Err: cause},
			want: "parfor: run 4: element 2 (c): boom",
		},
		{
			name: "range value",
			ie:   &ItemError{Run: 1, Kind: CollectionRange, Index: -7, Item: -7, Err: cause},
			want: "parfor: run 1: index -7: boom",
		},
		{
			name: "keyed entry",
			ie:   &ItemError{Run: 9, Kind: CollectionKeyed, Index: NoIndex, Item: Entry[string, int]{"k", 1}, Err: cause},
			want: "parfor: run 9: entry {k 1}: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, tt.ie, tt.want)
			assert.ErrorIs(t, tt.ie, cause)
		})
	}
}

func TestItemError_Panicked(t *testing.T) {
	assert.False(t, (&ItemError{Err: errors.New("plain")}).Panicked())
	assert.True(t, (&ItemError{Err: &PanicError{Value: "x"}}).Panicked())
}

func TestFailedItems_Order(t *testing.T) {
	a := &ItemError{Run: 2, Index: 5}
	b := &ItemError{Run: 1, Index: 8}
	c := &ItemError{Run: 1, Index: 3}
	k1 := &ItemError{Run: 3, Index: NoIndex, Item: "x"}
	k2 := &ItemError{Run: 3, Index: NoIndex, Item: "y"}

	assert.Nil(t, FailedItems(nil))
	assert.Nil(t, FailedItems(errors.New("plain")))

	err := errors.Join(a, fmt.Errorf("wrapped: %w", errors.Join(b, k1, c)), k2)
	assert.Equal(t, []*ItemError{c, b, a, k1, k2}, FailedItems(err))
}

func TestFailedItems_NestedRunStaysCause(t *testing.T) {
	inner := errors.Join(
		&ItemError{Run: 8, Kind: CollectionRange, Index: 0},
		&ItemError{Run: 8, Kind: CollectionRange, Index: 1},
	)
	outer := &ItemError{Run: 7, Kind: CollectionSlice, Index: 3, Err: inner}

	got := FailedItems(errors.Join(outer))
	require.Len(t, got, 1)
	assert.Same(t, outer, got[0])
	assert.Len(t, FailedItems(got[0].Err), 2, "inner failures are reachable through the cause")
}

func TestFailedIndexes(t *testing.T) {
	err := errors.Join(
		&ItemError{Index: 9},
		&ItemError{Index: NoIndex},
		&ItemError{Index: -2},
		&ItemError{Index: 4},
	)
	assert.Equal(t, []int{-2, 4, 9}, FailedIndexes(err))
	assert.Nil(t, FailedIndexes(nil))
}

func TestPanics(t *testing.T) {
	pe := &PanicError{Value: "x"}
	err := errors.Join(
		&ItemError{Index: 1, Err: errors.New("plain")},
		&ItemError{Index: 2, Err: pe},
	)
	assert.Equal(t, []*PanicError{pe}, Panics(err))
	assert.Nil(t, Panics(errors.New("plain")))
}

func TestPanicError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	assert.ErrorIs(t, &PanicError{Value: cause}, cause)
	assert.Nil(t, (&PanicError{Value: "text"}).Unwrap())

	msg := (&PanicError{Value: "text", Worker: 3, Stack: "stack"}).Error()
	assert.Contains(t, msg, "panic on worker 3: text")
	assert.Contains(t, msg, "stack")
}

func TestRun_DuplicateElementsAreDistinguished(t *testing.T) {
	s := newTestScheduler(t, 4)

	items := make([]string, 300)
	for i := range items {
		items[i] = "same"
		if i%50 == 7 {
			items[i] = "bad"
		}
	}
	err := ForEach(s, items, func(v string) error {
		if v == "bad" {
			return errors.New("rejected")
		}
		return nil
	})
	require.Error(t, err)

	assert.Equal(t, []int{7, 57, 107, 157, 207, 257}, FailedIndexes(err))
	failed := FailedItems(err)
	require.Len(t, failed, 6)
	run := failed[0].Run
	for _, ie := range failed {
		assert.Equal(t, CollectionSlice, ie.Kind)
		assert.Equal(t, run, ie.Run, "one run per entry-point call")
		assert.Equal(t, "bad", ie.Item)
	}
}

func TestRun_KeyedFailuresHaveNoIndex(t *testing.T) {
	s := newTestScheduler(t, 2)

	err := ForEachKeyed(s, MapOf(map[string]int{"a": 1, "b": -1}), func(e Entry[string, int]) error {
		if e.Value < 0 {
			return errors.New("negative")
		}
		return nil
	})
	failed := FailedItems(err)
	require.Len(t, failed, 1)
	assert.Equal(t, CollectionKeyed, failed[0].Kind)
	assert.Equal(t, NoIndex, failed[0].Index)
	assert.Equal(t, Entry[string, int]{"b", -1}, failed[0].Item)
	assert.Empty(t, FailedIndexes(err))
}

func TestRun_CollectsItemErrors(t *testing.T) {
	s := newTestScheduler(t, 4)

	var ran atomic.Int64
	err := ForRange(s, 0, 100, func(i int) error {
		ran.Add(1)
		if i%10 == 3 {
			return fmt.Errorf("item %d is odd", i)
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, int64(100), ran.Load(), "failures must not stop the run")

	all := FailedItems(err)
	require.Len(t, all, 10)
	for n, ie := range all {
		assert.Equal(t, CollectionRange, ie.Kind)
		assert.Equal(t, n*10+3, ie.Index, "sorted by index")
		assert.Equal(t, ie.Index, ie.Item)
		assert.EqualError(t, ie.Err, fmt.Sprintf("item %d is odd", ie.Index))
	}
}

func TestRun_PanicAsError(t *testing.T) {
	s := newTestScheduler(t, 2)

	var ran atomic.Int64
	err := ForEach(s, []string{"a", "b", "boom", "c"}, func(v string) error {
		ran.Add(1)
		if v == "boom" {
			panic("kaboom")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, int64(4), ran.Load())

	failed := FailedItems(err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Index)
	assert.Equal(t, "boom", failed[0].Item)
	assert.True(t, failed[0].Panicked())

	panics := Panics(err)
	require.Len(t, panics, 1)
	assert.Equal(t, "kaboom", panics[0].Value)
	assert.NotEmpty(t, panics[0].Stack)
	assert.GreaterOrEqual(t, panics[0].Worker, 0)
	assert.Less(t, panics[0].Worker, s.Stats().Created)

	// Workers survive a panicking item.
	require.NoError(t, ForRange(s, 0, 10, func(int) error { return nil }))
}

func TestRun_PanicReraised(t *testing.T) {
	s := newTestScheduler(t, 2, WithPanicAsError(false))

	var ran atomic.Int64
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "panic must be re-raised in the caller")
			pe, ok := r.(*PanicError)
			require.True(t, ok, "re-raised value should be *PanicError, got %T", r)
			assert.Equal(t, "first", pe.Value)
		}()
		_ = ForRange(s, 0, 50, func(i int) error {
			ran.Add(1)
			if i == 0 {
				panic("first")
			}
			return nil
		})
	}()
	assert.Equal(t, int64(50), ran.Load(), "remaining items still run before the re-raise")
}

func TestRun_MaxErrors(t *testing.T) {
	log := &eventLog{}
	s := newTestScheduler(t, 4, WithMaxErrors(3), WithOnEvent(log.record))

	err := ForRange(s, 0, 40, func(int) error {
		return errors.New("fail")
	})
	require.Error(t, err)
	assert.Len(t, FailedItems(err), 3)

	done := log.ofKind(EventRunDone)
	require.Len(t, done, 1)
	assert.Equal(t, 3, done[0].Run.Errors)
	assert.Equal(t, 37, done[0].Run.DroppedErrors)
}

func TestOptionsValidate(t *testing.T) {
	mustPanic(t, "WithFirstBundleDivisor requires n > 0", func() { New(1, WithFirstBundleDivisor(0)) })
	mustPanic(t, "WithTargetBundleTime requires d > 0", func() { New(1, WithTargetBundleTime(0)) })
	mustPanic(t, "WithCostEpsilon requires d >= 0", func() { New(1, WithCostEpsilon(-1)) })
	mustPanic(t, "WithMaxErrors requires n >= 0", func() { New(1, WithMaxErrors(-1)) })
	mustPanic(t, "WithClock requires non-nil clock", func() { WithClock(nil) })
}
