/*
 * Pandos - Process control blocks.
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

// Package pcb implements the process-control-block arena and the three
// linkages (ready/semaphore queue, process tree, free list) that every
// other nucleus component threads PCBs through. The linkages are
// intrusive: prev/next fields live on the ProcBlk itself, and splice-in/
// splice-out never allocates.
package pcb

import "pandos/internal/mips"

// MaxProc is the fixed PCB pool capacity.
const MaxProc = 20

// ProcBlk is one process control block. Every field a process could leave
// behind for its successor is reset to its zero value in Pool.Alloc: PCBs
// get reused, and no previous value may persist.
type ProcBlk struct {
	// Saved processor state.
	State mips.State

	// Accumulated CPU time, in microseconds.
	CPUTimeUsec int64

	// Queue linkage: exactly one of {ready queue, a semaphore's blocked
	// queue, neither}. qNext/qPrev are valid only while queued.
	qNext, qPrev *ProcBlk
	queue        *Queue // the queue currently holding this PCB, or nil.

	// Process-tree linkage.
	parent, firstChild, nextSibling, prevSibling *ProcBlk

	// BlockedOn is the address of the semaphore this PCB is blocked on,
	// or nil if not blocked. Cleared by removeBlocked, by alloc, and by the
	// nucleus after it has unwound a terminated victim; never by outBlocked.
	BlockedOn *int32

	// Support is a weak reference to this process's support record (nil for
	// the instantiator). Typed `any` to avoid an import cycle with package
	// support; callers type-assert to *support.Record.
	Support any

	idx  int
	live bool
}

// Pool is the fixed-capacity PCB arena.
type Pool struct {
	procs     [MaxProc]ProcBlk
	freeHead  int // index of first free PCB, or -1.
	freeNext  [MaxProc]int
	allocated int
}

// NewPool returns a pool with every PCB on the free list.
func NewPool() *Pool {
	p := &Pool{}
	for i := range p.procs {
		p.procs[i].idx = i
		p.freeNext[i] = i + 1
	}
	p.freeNext[MaxProc-1] = -1
	p.freeHead = 0
	return p
}

// Alloc removes a PCB from the free list, zeroes it, and returns it. It
// returns (nil, false) when the pool is exhausted; it never blocks.
func (p *Pool) Alloc() (*ProcBlk, bool) {
	if p.freeHead < 0 {
		return nil, false
	}
	i := p.freeHead
	p.freeHead = p.freeNext[i]
	p.allocated++

	idx := p.procs[i].idx
	p.procs[i] = ProcBlk{idx: idx, live: true}
	return &p.procs[i], true
}

// Free returns pb to the free list. pb must not be queued or linked into a
// process tree; callers are responsible for detaching it first.
func (p *Pool) Free(pb *ProcBlk) {
	if !pb.live {
		return
	}
	i := pb.idx
	*pb = ProcBlk{idx: i}
	p.freeNext[i] = p.freeHead
	p.freeHead = i
	p.allocated--
}

// Allocated returns the number of PCBs currently in use (test support).
func (p *Pool) Allocated() int { return p.allocated }

// FreeCount returns the number of PCBs available for allocation.
func (p *Pool) FreeCount() int { return MaxProc - p.allocated }

// --- Process tree -----------------------------------------------------

// Parent returns pb's parent, or nil for a root process.
func (pb *ProcBlk) Parent() *ProcBlk { return pb.parent }

// FirstChild returns pb's most recently inserted child, or nil.
func (pb *ProcBlk) FirstChild() *ProcBlk { return pb.firstChild }

// NextSibling returns the next younger sibling in pb's sibling list.
func (pb *ProcBlk) NextSibling() *ProcBlk { return pb.nextSibling }

// InsertChild makes child a child of parent, LIFO at parent's first-child
// slot.
func InsertChild(parent, child *ProcBlk) {
	child.parent = parent
	child.prevSibling = nil
	child.nextSibling = parent.firstChild
	if parent.firstChild != nil {
		parent.firstChild.prevSibling = child
	}
	parent.firstChild = child
}

// RemoveFirstChild detaches and returns parent's first child, or nil if
// parent has none.
func RemoveFirstChild(parent *ProcBlk) *ProcBlk {
	child := parent.firstChild
	if child == nil {
		return nil
	}
	DetachFromParent(child)
	return child
}

// DetachFromParent removes pb from its parent's sibling list. It is a
// no-op if pb has no parent. O(1): the sibling list is doubly linked so no
// scan is needed, unlike a singly linked sibling chain.
func DetachFromParent(pb *ProcBlk) {
	if pb.parent == nil {
		return
	}
	if pb.prevSibling != nil {
		pb.prevSibling.nextSibling = pb.nextSibling
	} else {
		pb.parent.firstChild = pb.nextSibling
	}
	if pb.nextSibling != nil {
		pb.nextSibling.prevSibling = pb.prevSibling
	}
	pb.parent = nil
	pb.nextSibling = nil
	pb.prevSibling = nil
}
