/*
 * Pandos - Active semaphore list.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package asl implements the Active Semaphore List: the map from a
// semaphore's address to its FIFO blocked-process queue, realized as a
// sorted singly-linked list with two sentinel nodes so traversal never
// needs a nil check.
//
// Descriptors come from a fixed pool array threaded through a free list;
// nothing here allocates after New.
package asl

import (
	"unsafe"

	"pandos/internal/pcb"
)

// descriptor is one ASL entry: a semaphore address (as a sort key) and the
// tail pointer of its FIFO blocked queue.
type descriptor struct {
	key   uintptr // address of the semaphore, 0 and ^uintptr(0) reserved for sentinels.
	sem   *int32
	queue pcb.Queue
	next  *descriptor
}

func keyOf(sem *int32) uintptr {
	return uintptr(unsafe.Pointer(sem))
}

// ASL is the active semaphore list.
type ASL struct {
	head, tail *descriptor // sentinels: head.key == 0, tail.key == ^uintptr(0).
	free       *descriptor // free-list of unused descriptors, threaded through next.
	pool       []descriptor
}

// New returns an ASL with capacity descriptors available beyond the two
// sentinels (capacity should be at least the max number of processes that
// can be simultaneously blocked, i.e. pcb.MaxProc).
func New(capacity int) *ASL {
	a := &ASL{pool: make([]descriptor, capacity+2)}
	a.head = &a.pool[0]
	a.tail = &a.pool[1]
	a.head.key = 0
	a.tail.key = ^uintptr(0)
	a.head.next = a.tail
	a.tail.next = nil

	for i := 2; i < len(a.pool); i++ {
		a.pool[i].next = a.free
		a.free = &a.pool[i]
	}
	return a
}

// findPred returns the last descriptor whose key is strictly less than
// key; always succeeds because the low sentinel has key 0 and every real
// address is > 0.
func (a *ASL) findPred(key uintptr) *descriptor {
	d := a.head
	for d.next.key < key {
		d = d.next
	}
	return d
}

// find returns the descriptor for sem, or nil if sem has no waiters.
func (a *ASL) find(sem *int32) *descriptor {
	key := keyOf(sem)
	pred := a.findPred(key)
	if pred.next.key == key {
		return pred.next
	}
	return nil
}

// InsertBlocked enqueues pb onto sem's wait queue, allocating a descriptor
// for sem if this is its first waiter. Returns false iff the descriptor
// pool is exhausted.
func (a *ASL) InsertBlocked(sem *int32, pb *pcb.ProcBlk) bool {
	key := keyOf(sem)
	pred := a.findPred(key)
	d := pred.next
	if d.key != key {
		if a.free == nil {
			return false
		}
		nd := a.free
		a.free = nd.next
		nd.key = key
		nd.sem = sem
		nd.queue = pcb.Queue{}
		nd.next = d
		pred.next = nd
		d = nd
	}
	d.queue.Enqueue(pb)
	pb.BlockedOn = sem
	return true
}

// RemoveBlocked dequeues and returns the head of sem's wait queue. If the
// queue becomes empty its descriptor is returned to the free list. Returns
// nil if sem has no waiters. The returned PCB's BlockedOn field is
// cleared here (unlike OutBlocked).
func (a *ASL) RemoveBlocked(sem *int32) *pcb.ProcBlk {
	key := keyOf(sem)
	pred := a.findPred(key)
	d := pred.next
	if d.key != key {
		return nil
	}
	woken := d.queue.Dequeue()
	if woken == nil {
		return nil
	}
	woken.BlockedOn = nil
	if d.queue.Empty() {
		pred.next = d.next
		d.next = a.free
		a.free = d
	}
	return woken
}

// HeadBlocked peeks at the head of sem's wait queue without removing it.
func (a *ASL) HeadBlocked(sem *int32) *pcb.ProcBlk {
	d := a.find(sem)
	if d == nil {
		return nil
	}
	return d.queue.Peek()
}

// OutBlocked removes pb from whichever semaphore queue it sits on by
// linear scan, WITHOUT clearing pb.BlockedOn — terminate needs that field
// to distinguish device semaphores (not incremented on removal) from
// ordinary ones (incremented). Reports whether pb was found.
func (a *ASL) OutBlocked(pb *pcb.ProcBlk) bool {
	if pb.BlockedOn == nil {
		return false
	}
	d := a.find(pb.BlockedOn)
	if d == nil {
		return false
	}
	if !d.queue.Remove(pb) {
		return false
	}
	if d.queue.Empty() {
		pred := a.findPred(d.key)
		pred.next = d.next
		d.next = a.free
		a.free = d
	}
	return true
}

// Sorted reports whether the descriptor chain between the sentinels is
// strictly increasing by key and every descriptor's queue is non-empty.
// Test support only.
func (a *ASL) Sorted() bool {
	prev := a.head.key
	for d := a.head.next; d != a.tail; d = d.next {
		if d.key <= prev {
			return false
		}
		if d.queue.Empty() {
			return false
		}
		prev = d.key
	}
	return true
}
