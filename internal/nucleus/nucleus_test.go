/*
 * Kernel nucleus test cases.
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
	"testing"
	"time"

	"pandos/internal/device"
	"pandos/internal/mips"
)

func fakeClock(t *time.Time) Clock {
	return func() time.Time { return *t }
}

func TestSchedulerRoundRobinFIFO(t *testing.T) {
	n := New()
	now := time.Unix(0, 0)
	n.SetClock(fakeClock(&now))

	_, rc := n.CreateProcess(mips.State{}, nil)
	if rc != 0 {
		t.Fatalf("CreateProcess rc = %d, want 0", rc)
	}
	second, rc := n.CreateProcess(mips.State{}, nil)
	if rc != 0 {
		t.Fatalf("CreateProcess rc = %d, want 0", rc)
	}

	n.Schedule()
	first := n.Current()
	if first == nil {
		t.Fatal("Current() = nil after Schedule")
	}

	n.OnQuantumTimer()
	if n.Current() != second {
		t.Fatalf("after preemption Current() = %p, want second process %p", n.Current(), second)
	}
	if n.readyEmpty() {
		t.Fatal("preempted process should have rejoined the ready queue")
	}
}

func TestCreateProcessExhaustion(t *testing.T) {
	n := New()
	capacity := n.Pool.FreeCount()
	for i := 0; i < capacity; i++ {
		if _, rc := n.CreateProcess(mips.State{}, nil); rc != 0 {
			t.Fatalf("CreateProcess #%d rc = %d, want 0", i, rc)
		}
	}
	if _, rc := n.CreateProcess(mips.State{}, nil); rc != -1 {
		t.Fatalf("CreateProcess past capacity rc = %d, want -1", rc)
	}
}

func TestPasserenBlocksAndVerhogenWakes(t *testing.T) {
	n := New()
	now := time.Unix(0, 0)
	n.SetClock(fakeClock(&now))

	var sem int32 = 1
	_, _ = n.CreateProcess(mips.State{}, nil)
	blocker, _ := n.CreateProcess(mips.State{}, nil)
	n.Schedule() // dispatches the first process

	// Advance past the first process and make blocker current directly by
	// preempting once, simulating the round-robin switch.
	n.OnQuantumTimer()
	if n.Current() != blocker {
		t.Fatalf("expected blocker to be current, got %p want %p", n.Current(), blocker)
	}

	n.Passeren(&sem) // sem 1 -> 0, does not block
	if n.Current() != blocker {
		t.Fatal("Passeren on a positive semaphore must not block the caller")
	}

	n.Passeren(&sem) // sem 0 -> -1, blocks
	if n.Current() == blocker {
		t.Fatal("Passeren on an exhausted semaphore must block the caller")
	}

	n.Verhogen(&sem)
	if !n.ASL.Sorted() {
		t.Fatal("ASL lost sortedness")
	}
}

func TestWaitIOAndDeviceInterruptDeliversStatus(t *testing.T) {
	n := New()
	now := time.Unix(0, 0)
	n.SetClock(fakeClock(&now))

	proc, _ := n.CreateProcess(mips.State{}, nil)
	n.Schedule()
	if n.Current() != proc {
		t.Fatal("expected sole process to be dispatched")
	}

	n.WaitIO(device.LineDisk, 0, false)
	if n.Current() != nil {
		t.Fatal("WaitIO must block the caller and idle the CPU")
	}
	if n.SoftBlockCount() != 1 {
		t.Fatalf("SoftBlockCount() = %d, want 1", n.SoftBlockCount())
	}

	n.OnDeviceInterrupt(device.LineDisk, 0, device.StatusReady)
	if n.Current() != proc {
		t.Fatal("device interrupt should redispatch the only runnable process")
	}
	if proc.State.Regs[mips.RegV0] != uint32(device.StatusReady) {
		t.Fatalf("v0 = %d, want %d", proc.State.Regs[mips.RegV0], device.StatusReady)
	}
	if n.SoftBlockCount() != 0 {
		t.Fatalf("SoftBlockCount() = %d, want 0 after wake", n.SoftBlockCount())
	}
}

func TestPseudoClockWakesAllWaiters(t *testing.T) {
	n := New()
	now := time.Unix(0, 0)
	n.SetClock(fakeClock(&now))

	a, _ := n.CreateProcess(mips.State{}, nil)
	b, _ := n.CreateProcess(mips.State{}, nil)
	n.Schedule()       // dispatches a
	n.OnQuantumTimer() // preempts a (now at ready tail), dispatches b

	// Park both on the pseudo-clock semaphore: blocking the current process
	// (b) lets the scheduler dispatch the other (a), which is then blocked
	// in turn.
	n.WaitClock() // blocks b, dispatches a
	n.WaitClock() // blocks a, CPU goes idle (both soft-blocked)

	if n.SoftBlockCount() != 2 {
		t.Fatalf("SoftBlockCount() = %d, want 2", n.SoftBlockCount())
	}

	n.OnPseudoClockTick()
	if n.SoftBlockCount() != 0 {
		t.Fatalf("SoftBlockCount() = %d, want 0 after tick", n.SoftBlockCount())
	}
	if n.Current() != a && n.Current() != b {
		t.Fatal("pseudo-clock tick should have dispatched one of the waiters")
	}
}

func TestTerminateProcessClosesSubtree(t *testing.T) {
	n := New()
	now := time.Unix(0, 0)
	n.SetClock(fakeClock(&now))

	parent, _ := n.CreateProcess(mips.State{}, nil)
	n.Schedule()
	_, _ = n.CreateProcess(mips.State{}, nil) // child of parent
	_, _ = n.CreateProcess(mips.State{}, nil) // grandchild-ish sibling, still child of parent

	before := n.Pool.Allocated()
	if before != 3 {
		t.Fatalf("Allocated() = %d, want 3", before)
	}

	n.TerminateProcess()
	if n.Pool.Allocated() != 0 {
		t.Fatalf("Allocated() = %d, want 0 after terminating the whole tree", n.Pool.Allocated())
	}
	if n.LiveProcesses() != 0 {
		t.Fatalf("LiveProcesses() = %d, want 0", n.LiveProcesses())
	}
	_ = parent
}

func TestTerminationHookReceivesEachSupportRecord(t *testing.T) {
	n := New()
	now := time.Unix(0, 0)
	n.SetClock(fakeClock(&now))

	var reaped []any
	n.SetTerminationHook(func(sup any) { reaped = append(reaped, sup) })

	parentSup := &struct{ name string }{"parent"}
	childSup := &struct{ name string }{"child"}
	_, _ = n.CreateProcess(mips.State{}, parentSup)
	n.Schedule()
	_, _ = n.CreateProcess(mips.State{}, childSup) // child of parent
	_, _ = n.CreateProcess(mips.State{}, nil)      // record-less child

	n.TerminateProcess()

	if len(reaped) != 2 {
		t.Fatalf("hook ran %d times, want 2 (only record-carrying victims)", len(reaped))
	}
	found := map[any]bool{reaped[0]: true, reaped[1]: true}
	if !found[parentSup] || !found[childSup] {
		t.Error("hook did not receive both victims' support records")
	}
}

func TestDeadlockPanicsWhenNothingRunnable(t *testing.T) {
	n := New()
	now := time.Unix(0, 0)
	n.SetClock(fakeClock(&now))

	var sem int32 = 0
	n.CreateProcess(mips.State{}, nil)
	n.Schedule()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on deadlock")
		}
		if _, ok := r.(*DeadlockError); !ok {
			t.Fatalf("panic value = %#v, want *DeadlockError", r)
		}
	}()
	n.Passeren(&sem) // blocks the only live, non-soft-blocked process: deadlock
}

func TestTerminalInterruptTransmitBeforeReceive(t *testing.T) {
	n := New()
	now := time.Unix(0, 0)
	n.SetClock(fakeClock(&now))

	tx, _ := n.CreateProcess(mips.State{}, nil)
	n.Schedule()
	n.WaitIO(device.LineTerminal, 2, false) // blocks tx on the transmit semaphore

	rx, _ := n.CreateProcess(mips.State{}, nil)
	n.Schedule()
	n.WaitIO(device.LineTerminal, 2, true) // blocks rx on the receive semaphore

	n.OnTerminalInterrupt(2, true, device.StatusReady, true, device.StatusCheck)

	if tx.State.Regs[mips.RegV0] != uint32(device.StatusReady) {
		t.Fatalf("tx v0 = %d, want %d", tx.State.Regs[mips.RegV0], device.StatusReady)
	}
	if rx.State.Regs[mips.RegV0] != uint32(device.StatusCheck) {
		t.Fatalf("rx v0 = %d, want %d", rx.State.Regs[mips.RegV0], device.StatusCheck)
	}
}
