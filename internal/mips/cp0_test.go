/*
 * Coprocessor 0 test cases.
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

package mips

import "testing"

func TestEntryHiPacking(t *testing.T) {
	h := NewEntryHi(0x80000, 3)
	if got := h.VPN(); got != 0x80000 {
		t.Errorf("VPN() = %#x, want %#x", got, 0x80000)
	}
	if got := h.ASID(); got != 3 {
		t.Errorf("ASID() = %d, want 3", got)
	}

	h2 := h.WithASID(7)
	if h2.VPN() != h.VPN() {
		t.Errorf("WithASID changed VPN: %#x vs %#x", h2.VPN(), h.VPN())
	}
	if h2.ASID() != 7 {
		t.Errorf("WithASID() ASID = %d, want 7", h2.ASID())
	}
}

func TestEntryLoPacking(t *testing.T) {
	l := NewEntryLo(0x1234)
	if !l.Valid() || !l.Dirty() {
		t.Errorf("NewEntryLo should set Valid+Dirty, got %#x", l)
	}
	if l.Global() {
		t.Errorf("NewEntryLo should not set Global, got %#x", l)
	}
	if got := l.PFN(); got != 0x1234 {
		t.Errorf("PFN() = %#x, want %#x", got, 0x1234)
	}

	l2 := l.WithValid(false)
	if l2.Valid() {
		t.Error("WithValid(false) left Valid set")
	}
	if l2.PFN() != l.PFN() {
		t.Error("WithValid changed PFN")
	}

	l3 := l.WithGlobal(true)
	if !l3.Global() {
		t.Error("WithGlobal(true) did not set Global")
	}
}

func TestExcCodeFromCause(t *testing.T) {
	cases := []struct {
		cause uint32
		want  ExcCode
	}{
		{0, ExcInterrupt},
		{uint32(ExcTLBLoad) << 2, ExcTLBLoad},
		{uint32(ExcSyscall) << 2, ExcSyscall},
		{uint32(ExcOverflow) << 2, ExcOverflow},
	}
	for _, c := range cases {
		if got := ExcCodeFromCause(c.cause); got != c.want {
			t.Errorf("ExcCodeFromCause(%#x) = %d, want %d", c.cause, got, c.want)
		}
	}
}

func TestIsTLBAndIsProgramTrap(t *testing.T) {
	if !ExcTLBLoad.IsTLB() || !ExcTLBStore.IsTLB() || !ExcTLBMod.IsTLB() {
		t.Error("TLB codes should report IsTLB()")
	}
	if ExcSyscall.IsTLB() || ExcInterrupt.IsTLB() {
		t.Error("non-TLB codes should not report IsTLB()")
	}
	if !ExcAddrLoad.IsProgramTrap() || !ExcOverflow.IsProgramTrap() {
		t.Error("program trap codes should report IsProgramTrap()")
	}
	if ExcSyscall.IsProgramTrap() || ExcTLBLoad.IsProgramTrap() {
		t.Error("syscall/TLB codes should not report IsProgramTrap()")
	}
}
