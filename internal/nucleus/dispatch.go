/*
 * Pandos - Exception dispatcher.
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
	"fmt"

	"pandos/internal/mips"
	"pandos/internal/pcb"
)

// instrSize is the fixed MIPS instruction width; the dispatcher advances a
// trapping PC past the instruction that caused the exception before doing
// anything else, "otherwise the process would re-issue the call on
// resume".
const instrSize = 4

// passUpSlot names which half of a support record's two exception
// contexts a pass-up targets.
type passUpSlot int

const (
	slotTLB passUpSlot = iota
	slotGeneral
)

// Dispatch is the unified exception entry point: the external
// CPU-simulation boundary calls this once per synchronous exception,
// handing it the PCB whose saved
// state the hardware just deposited. pb is ordinarily n.Current(), but the
// caller — not the nucleus — owns that decision, matching the hardware's
// own "deposit state, then trap" sequencing.
//
// Syscalls 1-8 are realized as the typed Go methods on
// Nucleus (CreateProcess, TerminateProcess, Passeren, ...) rather than as
// trap targets here — kernel-mode callers (the support layer, the delay
// daemon, the instantiator) invoke them directly. Dispatch's job for a
// syscall exception is therefore routing and privilege enforcement: reject
// (and pass up) a user-mode attempt to name 1-8, and otherwise hand every
// syscall to the support layer's general-exception slot, where the
// support-level dispatcher (internal/support) resolves the syscall number
// in a0 to the 9-20 service it names.
//
// Device interrupts (exception code 0) are NOT routed through Dispatch:
// they arrive asynchronously and are delivered instead through
// OnQuantumTimer/OnPseudoClockTick/OnDeviceInterrupt/OnTerminalInterrupt,
// each already scoped to the specific interrupt line that fired.
func (n *Nucleus) Dispatch(pb *pcb.ProcBlk) {
	code := mips.ExcCodeFromCause(pb.State.Cause)
	switch {
	case code == mips.ExcSyscall:
		n.dispatchSyscall(pb)
	case code.IsTLB():
		n.passUpOrDie(pb, slotTLB)
	case code.IsProgramTrap():
		n.passUpOrDie(pb, slotGeneral)
	default:
		panic(fmt.Sprintf("nucleus: unrecognized exception code %d", code))
	}
}

// dispatchSyscall handles exception code 8. A user-mode process naming
// syscall 1-8 is demoted to a reserved-instruction program trap before
// pass-up, "protect[ing] privileged services"; every other
// syscall trap (9-20, the only numbers a user-mode process may legally
// issue) passes up to the general slot unconditionally — the support
// layer, not the nucleus, knows how to service 9-20.
func (n *Nucleus) dispatchSyscall(pb *pcb.ProcBlk) {
	pb.State.PC += instrSize
	number := pb.State.Regs[mips.RegA0]

	userMode := pb.State.Status&mips.StatusKUc != 0
	if userMode && number >= 1 && number <= 8 {
		pb.State.Cause = rewriteCause(pb.State.Cause, mips.ExcReservedIns)
	}
	n.passUpOrDie(pb, slotGeneral)
}

// rewriteCause replaces the exception-code field of cause with code,
// leaving every other Cause bit untouched.
func rewriteCause(cause uint32, code mips.ExcCode) uint32 {
	const codeMask = 0x1f << 2
	return (cause &^ codeMask) | (uint32(code) << 2)
}

// passUpOrDie: if pb owns a
// support record, hand pb to the handler the Pass-Up Vector holds for the
// named slot (that handler copies the saved state into the record); if the
// slot has no handler, pb is terminated; otherwise pb has
// no support layer to appeal to (only the instantiator runs without one)
// and the whole subtree is terminated.
func (n *Nucleus) passUpOrDie(pb *pcb.ProcBlk, slot passUpSlot) {
	if pb.Support == nil {
		n.TerminateSpecific(pb)
		return
	}
	n.mu.Lock()
	handler := n.passUp.TLB
	if slot == slotGeneral {
		handler = n.passUp.General
	}
	n.mu.Unlock()
	if handler == nil {
		n.TerminateSpecific(pb)
		return
	}
	handler(pb)
}
