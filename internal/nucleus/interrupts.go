/*
 * Pandos - Interrupt handlers.
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
)

// OnQuantumTimer handles a quantum-timer interrupt:
// pure preemption. The running process (if any) is re-enqueued at the
// ready-queue tail and another process is dispatched. If nothing is
// currently running there is nothing to preempt.
func (n *Nucleus) OnQuantumTimer() {
	n.mu.Lock()
	defer n.mu.Unlock()

	cur := n.current
	if cur == nil {
		return
	}
	n.accountElapsed(cur)
	n.current = nil
	n.ready.Enqueue(cur)
	n.schedule()
}

// OnPseudoClockTick handles the 100ms interval-timer interrupt: every
// process waiting on the pseudo-clock semaphore moves to the ready queue, soft-block is decremented once per waiter, and the
// semaphore resets to 0. If a process is
// already running, control simply returns to it; the scheduler is only
// re-entered when the CPU was idle.
func (n *Nucleus) OnPseudoClockTick() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for {
		woken := n.ASL.RemoveBlocked(&n.pseudoClockSem)
		if woken == nil {
			break
		}
		n.softBlock--
		n.ready.Enqueue(woken)
	}
	n.pseudoClockSem = 0

	if n.current == nil {
		n.schedule()
	}
}

// deliverDeviceInterruptLocked performs the V-and-wake half of a device
// completion interrupt: V the nucleus device
// semaphore for (line, unit, forRead); if that unblocks a waiter, place
// the device status into its v0 and decrement soft-block. Called with mu
// held; does not itself reschedule (callers decide once, after possibly
// delivering more than one sub-device interrupt — see OnTerminalInterrupt).
func (n *Nucleus) deliverDeviceInterruptLocked(line device.Line, unit uint8, forRead bool, status device.Status) {
	sem := &n.deviceSem[device.SemIndex(line, unit, forRead)]
	woken := n.verhogenOn(sem)
	if woken != nil {
		woken.State.Regs[mips.RegV0] = uint32(status)
		n.softBlock--
	}
}

// OnDeviceInterrupt handles a completion interrupt from a single-subdevice
// line (disk, flash, network, printer).
func (n *Nucleus) OnDeviceInterrupt(line device.Line, unit uint8, status device.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.deliverDeviceInterruptLocked(line, unit, false, status)
	if n.current == nil {
		n.schedule()
	}
}

// OnTerminalInterrupt handles a completion interrupt from a terminal unit,
// which multiplexes a transmit and a receive sub-device onto one line
//. When both sub-devices have a pending completion in the
// same event, transmit is delivered first.
func (n *Nucleus) OnTerminalInterrupt(unit uint8, txReady bool, txStatus device.Status, rxReady bool, rxStatus device.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if txReady {
		n.deliverDeviceInterruptLocked(device.LineTerminal, unit, false, txStatus)
	}
	if rxReady {
		n.deliverDeviceInterruptLocked(device.LineTerminal, unit, true, rxStatus)
	}
	if n.current == nil {
		n.schedule()
	}
}
