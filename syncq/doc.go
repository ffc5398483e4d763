// Package syncq provides the blocking message queues used by the parfor
// scheduler.
//
// A [Queue] is an unbounded FIFO shared between any number of writers and a
// single logical reader:
//
//   - [Queue.Put] appends a message and wakes a blocked reader. It never
//     blocks the writer.
//   - [Queue.Get] blocks until a message is available.
//   - [Queue.Grab] and [Queue.Len] never block.
//
// Messages from one writer are delivered in the order they were put. There
// is no ordering between independent writers.
//
// A [Pool] caches idle queues so that short-lived reply queues can be
// recycled instead of reallocated. Queues must be empty when they are
// returned to the pool.
package syncq
