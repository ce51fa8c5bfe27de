/*
 * Pandos - Kernel system calls.
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

package nucleus

import (
	"pandos/internal/device"
	"pandos/internal/mips"
	"pandos/internal/pcb"
)

// CreateProcess is SYS1. It allocates a PCB, copies initState into it,
// attaches support as its weak support-record reference, and inserts it
// into the ready queue as a child of the calling process.
// v0 is 0 on success, -1 if the PCB pool is exhausted.
func (n *Nucleus) CreateProcess(initState mips.State, support any) (*pcb.ProcBlk, int32) {
	n.mu.Lock()
	defer n.mu.Unlock()

	child, ok := n.Pool.Alloc()
	if !ok {
		return nil, -1
	}
	child.State = initState
	child.Support = support
	if n.current != nil {
		pcb.InsertChild(n.current, child)
	}
	n.ready.Enqueue(child)
	n.liveProcesses++
	return child, 0
}

// isSoftBlockSem reports whether sem is one of the device semaphores or
// the pseudo-clock semaphore — the distinction terminate needs when
// unwinding a victim's blocking state.
func (n *Nucleus) isSoftBlockSem(sem *int32) bool {
	if sem == &n.pseudoClockSem {
		return true
	}
	for i := range n.deviceSem {
		if &n.deviceSem[i] == sem {
			return true
		}
	}
	return false
}

// removeFromResidency detaches pb from whichever of {current, ready queue,
// a semaphore's blocked queue} it occupies, with the semaphore-value
// bookkeeping cancellation demands: a
// non-device semaphore is incremented (capacity freed), a device/clock
// semaphore is not (the eventual interrupt will do that) but soft-block is
// decremented immediately.
func (n *Nucleus) removeFromResidency(pb *pcb.ProcBlk) {
	switch {
	case pb == n.current:
		n.current = nil
	case pb.BlockedOn != nil:
		sem := pb.BlockedOn
		soft := n.isSoftBlockSem(sem)
		n.ASL.OutBlocked(pb)
		pb.BlockedOn = nil
		if soft {
			n.softBlock--
		} else {
			*sem++
		}
	default:
		n.ready.Remove(pb)
	}
}

// terminateSubtree recursively frees pb and all of its descendants,
// appending each victim's support-record reference (if any) to reaped so
// the caller can run the termination hook after releasing the lock —
// Pool.Free zeroes the PCB, so the reference must be captured first.
func (n *Nucleus) terminateSubtree(pb *pcb.ProcBlk, reaped *[]any) {
	for child := pb.FirstChild(); child != nil; child = pb.FirstChild() {
		n.terminateSubtree(child, reaped)
	}
	if pb.Support != nil {
		*reaped = append(*reaped, pb.Support)
	}
	n.removeFromResidency(pb)
	pcb.DetachFromParent(pb)
	n.Pool.Free(pb)
	n.liveProcesses--
}

// runTerminationHook invokes the installed hook once per reaped support
// record. Must be called without mu held: the boot layer's hook calls back
// into VerhogenMaster, which takes the lock itself.
func (n *Nucleus) runTerminationHook(hook func(support any), reaped []any) {
	if hook == nil {
		return
	}
	for _, sup := range reaped {
		hook(sup)
	}
}

// TerminateProcess is SYS2: kill the calling process and its entire
// descendant subtree, then reschedule.
func (n *Nucleus) TerminateProcess() {
	n.mu.Lock()
	var reaped []any
	if victim := n.current; victim != nil {
		n.terminateSubtree(victim, &reaped)
		n.schedule()
	}
	hook := n.terminationHook
	n.mu.Unlock()
	n.runTerminationHook(hook, reaped)
}

// TerminateSpecific kills pb (and its subtree) even when it is not the
// running process — used by the support layer to tear down a U-proc whose
// program trap was passed up with no support record, or whose pager hit a
// fatal I/O error.
func (n *Nucleus) TerminateSpecific(pb *pcb.ProcBlk) {
	n.mu.Lock()
	wasCurrent := pb == n.current
	var reaped []any
	n.terminateSubtree(pb, &reaped)
	if wasCurrent {
		n.schedule()
	}
	hook := n.terminationHook
	n.mu.Unlock()
	n.runTerminationHook(hook, reaped)
}

// passerenOn is the single blocking helper every blocking syscall shares:
// account
// elapsed CPU time, decrement sem, and if it went negative, insert the
// caller on sem's ASL queue, clear current, and reschedule. softBlock
// marks sem as a device/pseudo-clock semaphore for soft-block accounting.
func (n *Nucleus) passerenOn(sem *int32, softBlock bool) {
	cur := n.current
	n.accountElapsed(cur)
	*sem--
	if *sem < 0 {
		if softBlock {
			n.softBlock++
		}
		n.ASL.InsertBlocked(sem, cur)
		n.current = nil
		n.schedule()
	}
}

// Passeren is SYS3 (P).
func (n *Nucleus) Passeren(sem *int32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.passerenOn(sem, false)
}

// Verhogen is SYS4 (V): increment sem and, if a waiter was unblocked by
// doing so, move it to the ready queue.
func (n *Nucleus) Verhogen(sem *int32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verhogenOn(sem)
}

// verhogenOn is the shared increment-and-wake primitive used by SYS4 and
// by the interrupt handler's device/pseudo-clock V operations. Called with
// mu held.
func (n *Nucleus) verhogenOn(sem *int32) *pcb.ProcBlk {
	*sem++
	if *sem <= 0 {
		woken := n.ASL.RemoveBlocked(sem)
		if woken != nil {
			n.ready.Enqueue(woken)
		}
		return woken
	}
	return nil
}

// WaitIO is SYS5: block the caller on the device semaphore for
// (line, unit, forRead), counted as a soft block.
func (n *Nucleus) WaitIO(line device.Line, unit uint8, forRead bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	sem := &n.deviceSem[device.SemIndex(line, unit, forRead)]
	n.passerenOn(sem, true)
}

// GetCPUTime is SYS6: accumulated CPU time plus time elapsed in the
// current quantum.
func (n *Nucleus) GetCPUTime() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	cur := n.current
	if cur == nil {
		return 0
	}
	elapsed := n.clock().Sub(n.quantumStart)
	if elapsed < 0 {
		elapsed = 0
	}
	return cur.CPUTimeUsec + elapsed.Microseconds()
}

// WaitClock is SYS7: block on the pseudo-clock semaphore, soft-blocked.
func (n *Nucleus) WaitClock() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.passerenOn(&n.pseudoClockSem, true)
}

// GetSupportPtr is SYS8: return the calling process's support-record weak
// reference (nil for the instantiator).
func (n *Nucleus) GetSupportPtr() any {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return nil
	}
	return n.current.Support
}
