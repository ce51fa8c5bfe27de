/*
 * Pandos - Shared-region semaphores.
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

package support

import "pandos/internal/nucleus"

// ALSLCapacity bounds the number of simultaneously blocked shared-region
// waiters, sized to MaxUProcs since each U-proc can be
// blocked on at most one shared semaphore at a time.
const ALSLCapacity = MaxUProcs

type alslEntry struct {
	addr       uint32
	rec        *Record
	next, prev *alslEntry
}

// ALSL implements SYS19/20: P/V over semaphore cells whose
// address lies in the shared virtual region, blocking through each
// U-proc's private semaphore rather than the nucleus ready queue. Entries
// are a circular, tail-addressed, insertion-ordered list — one entry per
// blocked U-proc, tagged with the address it is waiting on — grounded on
// the same tail-pointer circular-queue idiom as pcb.Queue, generalized
// from "FIFO of any waiter" to "FIFO of waiters on possibly-different
// addresses, searched linearly by address on V".
type ALSL struct {
	n     *nucleus.Nucleus
	mutex int32
	tail  *alslEntry
	free  *alslEntry
	pool  []alslEntry
}

// NewALSL returns an ALSL with an empty, fully-free entry pool.
func NewALSL(n *nucleus.Nucleus) *ALSL {
	a := &ALSL{n: n, mutex: 1, pool: make([]alslEntry, ALSLCapacity)}
	for i := range a.pool {
		a.pool[i].next = a.free
		a.free = &a.pool[i]
	}
	return a
}

func (a *ALSL) enqueue(nd *alslEntry) {
	if a.tail == nil {
		nd.next, nd.prev = nd, nd
	} else {
		head := a.tail.next
		nd.next = head
		nd.prev = a.tail
		head.prev = nd
		a.tail.next = nd
	}
	a.tail = nd
}

func (a *ALSL) remove(nd *alslEntry) {
	if nd.next == nd {
		a.tail = nil
	} else {
		nd.prev.next = nd.next
		nd.next.prev = nd.prev
		if a.tail == nd {
			a.tail = nd.prev
		}
	}
	nd.next, nd.prev = nil, nil
}

// findOldest returns the first (in insertion order) entry tagged with
// addr, or nil.
func (a *ALSL) findOldest(addr uint32) *alslEntry {
	if a.tail == nil {
		return nil
	}
	head := a.tail.next
	for e := head;; e = e.next {
		if e.addr == addr {
			return e
		}
		if e == a.tail {
			return nil
		}
	}
}

// Wait is SYS19: P the shared semaphore at vaddr. vaddr outside
// KUSEGSHARE, or a full entry pool, traps the calling U-proc.
func (a *ALSL) Wait(rec *Record, vaddr uint32, sem *int32) {
	if !InKUSEGShare(vaddr) {
		a.n.TerminateSpecific(rec.Proc())
		return
	}
	a.n.Passeren(&a.mutex)
	*sem--
	if *sem < 0 {
		if a.free == nil {
			a.n.Verhogen(&a.mutex)
			a.n.TerminateSpecific(rec.Proc())
			return
		}
		nd := a.free
		a.free = nd.next
		nd.addr = vaddr
		nd.rec = rec
		a.enqueue(nd)
		a.n.Verhogen(&a.mutex)
		a.n.Passeren(&rec.PrivateSem)
		return
	}
	a.n.Verhogen(&a.mutex)
}

// Signal is SYS20: V the shared semaphore at vaddr, waking the oldest
// waiter tagged with that address if any.
func (a *ALSL) Signal(rec *Record, vaddr uint32, sem *int32) {
	if !InKUSEGShare(vaddr) {
		a.n.TerminateSpecific(rec.Proc())
		return
	}
	a.n.Passeren(&a.mutex)
	*sem++
	if *sem <= 0 {
		if nd := a.findOldest(vaddr); nd != nil {
			a.remove(nd)
			waiterSem := &nd.rec.PrivateSem
			nd.next = a.free
			a.free = nd
			a.n.Verhogen(&a.mutex)
			a.n.Verhogen(waiterSem)
			return
		}
	}
	a.n.Verhogen(&a.mutex)
}
