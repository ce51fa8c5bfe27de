/*
 * Pandos - Delay daemon.
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

// ADLCapacity is the number of outstanding delays the Active Delay List
// can hold at once — one per U-proc is the common case, so the pool is
// sized to MaxUProcs.
const ADLCapacity = MaxUProcs

type delayEntry struct {
	wakeTime int64 // microseconds since boot.
	sem      *int32
	next     *delayEntry
}

// DelayDaemon implements SYS18: a sorted, wake-time-ordered
// active-delay list, protected by its own mutex, drained on every
// pseudo-clock tick. Grounded on the same pool-plus-free-list discipline
// as pcb.Pool and asl.ASL, here threaded through a single sorted chain
// instead of the ASL's address-keyed one, since insertion order here is
// wake-time, not semaphore address.
type DelayDaemon struct {
	n     *nucleus.Nucleus
	mutex int32
	head  *delayEntry
	free  *delayEntry
	pool  []delayEntry
}

// NewDelayDaemon returns a daemon instance with an empty, fully-free ADL.
// The mutex starts at 1 (a binary semaphore).
func NewDelayDaemon(n *nucleus.Nucleus) *DelayDaemon {
	d := &DelayDaemon{n: n, mutex: 1, pool: make([]delayEntry, ADLCapacity)}
	for i := range d.pool {
		d.pool[i].next = d.free
		d.free = &d.pool[i]
	}
	return d
}

func (d *DelayDaemon) insertSorted(nd *delayEntry) {
	if d.head == nil || nd.wakeTime < d.head.wakeTime {
		nd.next = d.head
		d.head = nd
		return
	}
	p := d.head
	for p.next != nil && p.next.wakeTime <= nd.wakeTime {
		p = p.next
	}
	nd.next = p.next
	p.next = nd
}

// Sleep is SYS18: park rec's U-proc for seconds, to be woken by OnTick
// once now+seconds (in microseconds) has passed. Returns false (and traps
// the U-proc) if the ADL pool is exhausted.
func (d *DelayDaemon) Sleep(rec *Record, now int64, seconds int) bool {
	d.n.Passeren(&d.mutex)
	if d.free == nil {
		d.n.Verhogen(&d.mutex)
		d.n.TerminateSpecific(rec.Proc())
		return false
	}
	nd := d.free
	d.free = nd.next
	nd.wakeTime = now + int64(seconds)*1_000_000
	nd.sem = &rec.PrivateSem
	d.insertSorted(nd)

	// Release-and-sleep: release the list mutex and
	// immediately park on the private semaphore. No process can observe
	// the list unlocked with this U-proc not yet asleep, since both calls
	// run to completion on the same goroutine with no window for another
	// caller to run between them.
	d.n.Verhogen(&d.mutex)
	d.n.Passeren(&rec.PrivateSem)
	return true
}

// OnTick wakes every entry whose wake-time has arrived, oldest first.
// The list mutex guards only the list scan; each waiter's private
// semaphore is V'd after the mutex is released.
func (d *DelayDaemon) OnTick(now int64) {
	d.n.Passeren(&d.mutex)
	var due []*int32
	for d.head != nil && d.head.wakeTime <= now {
		nd := d.head
		d.head = nd.next
		due = append(due, nd.sem)
		nd.next = d.free
		d.free = nd
	}
	d.n.Verhogen(&d.mutex)

	for _, sem := range due {
		d.n.Verhogen(sem)
	}
}
