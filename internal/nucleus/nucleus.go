/*
 * Pandos - Kernel nucleus.
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

// Package nucleus implements the Pandos kernel nucleus: PCB/semaphore
// bookkeeping wired to a round-robin scheduler, the unified
// exception/interrupt dispatcher, and kernel system calls 1-8. It has no
// notion of actually fetching or executing a user instruction stream —
// that belongs to the external CPU/machine simulation — so every entry
// point here is the kernel-side reaction to a trap or interrupt the
// hardware model has already recognized and deposited into a PCB's saved
// state. A single mutex guards all scheduler state, since syscalls arrive
// both from the engine goroutine and from support-layer callers.
package nucleus

import (
	"fmt"
	"sync"
	"time"

	"pandos/internal/asl"
	"pandos/internal/device"
	"pandos/internal/pcb"
)

// Quantum is the round-robin time slice.
const Quantum = 5 * time.Millisecond

// PseudoClockPeriod is the interval-timer tick.
const PseudoClockPeriod = 100 * time.Millisecond

// PassUpVector holds the two pass-up destinations a support layer installs
// at boot: the TLB-refill (page-fault) handler and the general
// (program-trap) handler. There is no separate kernel
// stack pointer to record in this realization, since each handler simply
// runs on whatever goroutine called into the nucleus.
type PassUpVector struct {
	TLB     func(pb *pcb.ProcBlk)
	General func(pb *pcb.ProcBlk)
}

// DeadlockError is the payload nucleus panics with when the scheduler
// detects live, non-soft-blocked processes with nothing runnable.
type DeadlockError struct {
	LiveProcesses int
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("nucleus: deadlock detected with %d live process(es) and none runnable", e.LiveProcesses)
}

// Clock abstracts wall-clock time so tests can control CPU-time accounting
// deterministically.
type Clock func() time.Time

// Nucleus holds every piece of process-wide mutable kernel state: the
// PCB pool, the ASL, the ready
// queue, the running-process pointer, the soft-block/live-process
// counters, the device semaphore array, and the master semaphore.
type Nucleus struct {
	mu sync.Mutex

	Pool *pcb.Pool
	ASL  *asl.ASL

	ready   pcb.Queue
	current *pcb.ProcBlk

	liveProcesses int
	softBlock     int

	quantumStart time.Time
	clock        Clock

	deviceSem      [device.NumDeviceSems]int32
	pseudoClockSem int32
	MasterSem      int32 // counts U-proc terminations; instantiator Ps on it 8 times.
	masterWaiters  []chan struct{}

	passUp          PassUpVector
	terminationHook func(support any)

	Halted bool
}

// New returns a freshly initialized nucleus.
func New() *Nucleus {
	return &Nucleus{
		Pool:  pcb.NewPool(),
		ASL:   asl.New(pcb.MaxProc),
		clock: time.Now,
	}
}

// SetClock overrides the wall-clock source (test support).
func (n *Nucleus) SetClock(c Clock) { n.clock = c }

// SetPassUpVector installs the support layer's TLB and general handlers.
func (n *Nucleus) SetPassUpVector(v PassUpVector) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.passUp = v
}

// SetTerminationHook installs a callback invoked once per terminated
// process that carried a support record. The boot
// layer uses it to return the record to its pool, vacate the dead ASID's
// swap-pool frames, and V the master semaphore. The hook
// runs after the nucleus has finished all scheduler bookkeeping for the
// terminate, outside the nucleus lock.
func (n *Nucleus) SetTerminationHook(hook func(support any)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.terminationHook = hook
}

// Current returns the PCB presently assigned the CPU, or nil if idle.
func (n *Nucleus) Current() *pcb.ProcBlk {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// LiveProcesses returns the number of allocated, non-terminated processes.
func (n *Nucleus) LiveProcesses() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.liveProcesses
}

// SoftBlockCount returns the number of processes blocked on a device or
// pseudo-clock semaphore.
func (n *Nucleus) SoftBlockCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.softBlock
}

// DeviceSemaphore returns the address of the nucleus device semaphore for
// (line, unit, forRead) — callers (support-layer DMA helpers) P/V this
// address directly through Passeren/Verhogen.
func (n *Nucleus) DeviceSemaphore(line device.Line, unit uint8, forRead bool) *int32 {
	return &n.deviceSem[device.SemIndex(line, unit, forRead)]
}

// PseudoClockSemaphore returns the address of the pseudo-clock semaphore.
func (n *Nucleus) PseudoClockSemaphore() *int32 {
	return &n.pseudoClockSem
}

// accountElapsed adds the time since quantumStart to cur's accumulated CPU
// time. Called with mu held.
func (n *Nucleus) accountElapsed(cur *pcb.ProcBlk) {
	if cur == nil {
		return
	}
	elapsed := n.clock().Sub(n.quantumStart)
	if elapsed < 0 {
		elapsed = 0
	}
	cur.CPUTimeUsec += elapsed.Microseconds()
}

// schedule picks the next process to run. Called with
// mu held; returns having set n.current (possibly nil) and n.Halted.
func (n *Nucleus) schedule() {
	next := n.ready.Dequeue()
	if next == nil {
		switch {
		case n.liveProcesses == 0:
			n.current = nil
			n.Halted = true
			return
		case n.softBlock > 0:
			// Nothing runnable right now, but something is soft-blocked and
			// will eventually raise an interrupt that re-enters schedule().
			n.current = nil
			return
		default:
			panic(&DeadlockError{LiveProcesses: n.liveProcesses})
		}
	}
	n.current = next
	n.quantumStart = n.clock()
}

// Schedule is the exported, locking entry point used by the boot harness
// to kick off the very first dispatch.
func (n *Nucleus) Schedule() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.schedule()
}

// readyEmpty reports whether the ready queue holds no process (test
// support for "ready-queue FIFO").
func (n *Nucleus) readyEmpty() bool {
	return n.ready.Empty()
}
