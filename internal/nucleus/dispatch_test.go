/*
 * Exception dispatcher test cases.
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

	"pandos/internal/mips"
	"pandos/internal/pcb"
)

func causeFor(code mips.ExcCode) uint32 { return uint32(code) << 2 }

func newUProc(t *testing.T, n *Nucleus, support any, kernelMode bool) *pcb.ProcBlk {
	t.Helper()
	var status uint32
	if !kernelMode {
		status = mips.StatusKUc
	}
	pb, rc := n.CreateProcess(mips.State{Status: status}, support)
	if rc != 0 {
		t.Fatalf("CreateProcess failed: rc=%d", rc)
	}
	return pb
}

func TestDispatchUserSyscall1To8DemotedToReservedInstruction(t *testing.T) {
	n := New()
	var gotCause uint32
	n.SetPassUpVector(PassUpVector{
		General: func(pb *pcb.ProcBlk) { gotCause = pb.State.Cause },
	})

	pb := newUProc(t, n, &struct{}{}, false)
	pb.State.Cause = causeFor(mips.ExcSyscall)
	pb.State.Regs[mips.RegA0] = 3
	pb.State.PC = 100

	n.Dispatch(pb)

	if pb.State.PC != 104 {
		t.Errorf("PC = %d, want 104 (advanced past the syscall instruction)", pb.State.PC)
	}
	if mips.ExcCodeFromCause(gotCause) != mips.ExcReservedIns {
		t.Errorf("pass-up cause code = %v, want ExcReservedIns", mips.ExcCodeFromCause(gotCause))
	}
}

func TestDispatchUserSyscall9To20NotDemoted(t *testing.T) {
	n := New()
	var gotCause uint32
	n.SetPassUpVector(PassUpVector{
		General: func(pb *pcb.ProcBlk) { gotCause = pb.State.Cause },
	})

	pb := newUProc(t, n, &struct{}{}, false)
	pb.State.Cause = causeFor(mips.ExcSyscall)
	pb.State.Regs[mips.RegA0] = 12

	n.Dispatch(pb)

	if mips.ExcCodeFromCause(gotCause) != mips.ExcSyscall {
		t.Errorf("pass-up cause code = %v, want ExcSyscall unchanged", mips.ExcCodeFromCause(gotCause))
	}
}

func TestDispatchKernelModeSyscall1To8NotDemoted(t *testing.T) {
	n := New()
	var gotCause uint32
	n.SetPassUpVector(PassUpVector{
		General: func(pb *pcb.ProcBlk) { gotCause = pb.State.Cause },
	})

	pb := newUProc(t, n, &struct{}{}, true)
	pb.State.Cause = causeFor(mips.ExcSyscall)
	pb.State.Regs[mips.RegA0] = 3

	n.Dispatch(pb)

	if mips.ExcCodeFromCause(gotCause) != mips.ExcSyscall {
		t.Errorf("kernel-mode syscall 1-8 should not be demoted, got %v", mips.ExcCodeFromCause(gotCause))
	}
}

func TestDispatchTLBExceptionPassesToTLBSlot(t *testing.T) {
	n := New()
	var called bool
	n.SetPassUpVector(PassUpVector{
		TLB:     func(pb *pcb.ProcBlk) { called = true },
		General: func(pb *pcb.ProcBlk) { t.Error("TLB exception should not reach the general slot") },
	})

	pb := newUProc(t, n, &struct{}{}, false)
	pb.State.Cause = causeFor(mips.ExcTLBLoad)

	n.Dispatch(pb)

	if !called {
		t.Error("TLB handler was not invoked")
	}
}

func TestDispatchProgramTrapPassesToGeneralSlot(t *testing.T) {
	n := New()
	var called bool
	n.SetPassUpVector(PassUpVector{
		General: func(pb *pcb.ProcBlk) { called = true },
	})

	pb := newUProc(t, n, &struct{}{}, false)
	pb.State.Cause = causeFor(mips.ExcBreakpoint)

	n.Dispatch(pb)

	if !called {
		t.Error("general handler was not invoked for a program trap")
	}
}

func TestDispatchNoSupportRecordTerminates(t *testing.T) {
	n := New()
	pb := newUProc(t, n, nil, false)
	pb.State.Cause = causeFor(mips.ExcBreakpoint)

	before := n.LiveProcesses()
	n.Dispatch(pb)

	if n.LiveProcesses() != before-1 {
		t.Errorf("LiveProcesses = %d, want %d (process with no support record terminated)", n.LiveProcesses(), before-1)
	}
}

func TestDispatchUnknownExceptionCodePanics(t *testing.T) {
	n := New()
	pb := newUProc(t, n, &struct{}{}, false)
	pb.State.Cause = causeFor(mips.ExcCode(13))

	defer func() {
		if recover() == nil {
			t.Fatal("expected Dispatch to panic on an unrecognized exception code")
		}
	}()
	n.Dispatch(pb)
}
