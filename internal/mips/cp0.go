/*
 * Pandos - Coprocessor 0 state.
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

// Package mips models the subset of a MIPS32-class coprocessor 0 that the
// Pandos nucleus and support layer depend on: the EntryHi/EntryLo pair that
// makes up one software TLB/page-table entry, and the exception-code space
// the dispatcher switches on. Register bit layouts not needed by Pandos
// (Config, WatchLo/Hi, PRId, ...) are intentionally absent — the machine
// is treated as an opaque MMIO/CPU state source.
package mips

// EntryHi is the virtual half of a TLB/page-table entry: a virtual page
// number plus the ASID that owns it. Page size is 4KB (VPN shift of 12).
type EntryHi uint32

// EntryLo is the physical half of a TLB/page-table entry: a frame number
// plus the Global/Valid/Dirty control bits.
type EntryLo uint32

const (
	vpnShift  = 12
	vpnMask   = 0xfffff000
	asidShift = 0
	asidMask  = 0x000000ff

	pfnShift = 12
	pfnMask  = 0xfffff000

	// EntryLo control bits, in the conventional umps/MIPS positions.
	bitGlobal EntryLo = 1 << 8
	bitValid  EntryLo = 1 << 9
	bitDirty  EntryLo = 1 << 10 // "Dirty" here means writable.
)

// NewEntryHi packs a VPN and ASID into an EntryHi value.
func NewEntryHi(vpn uint32, asid uint8) EntryHi {
	return EntryHi((vpn << vpnShift) & vpnMask).WithASID(asid)
}

// WithASID returns a copy of h with its ASID field replaced.
func (h EntryHi) WithASID(asid uint8) EntryHi {
	return (h &^ asidMask) | EntryHi(asid)&asidMask
}

// VPN extracts the virtual page number.
func (h EntryHi) VPN() uint32 {
	return (uint32(h) & vpnMask) >> vpnShift
}

// ASID extracts the address space identifier (0 = kernel, 1..8 = U-proc).
func (h EntryHi) ASID() uint8 {
	return uint8(h & asidMask)
}

// NewEntryLo packs a physical frame number with Valid+Dirty(writable) set
// and Global clear — the state every demand-paged PTE is written with.
func NewEntryLo(pfn uint32) EntryLo {
	return EntryLo((pfn<<pfnShift)&pfnMask) | bitValid | bitDirty
}

// PFN extracts the physical frame number.
func (l EntryLo) PFN() uint32 {
	return (uint32(l) & pfnMask) >> pfnShift
}

// Valid reports whether the entry is present.
func (l EntryLo) Valid() bool { return l&bitValid != 0 }

// Dirty reports whether the entry is writable.
func (l EntryLo) Dirty() bool { return l&bitDirty != 0 }

// Global reports whether the entry ignores ASID on TLB match.
func (l EntryLo) Global() bool { return l&bitGlobal != 0 }

// WithValid returns a copy of l with the Valid bit set or cleared.
func (l EntryLo) WithValid(v bool) EntryLo {
	if v {
		return l | bitValid
	}
	return l &^ bitValid
}

// WithGlobal returns a copy of l with the Global bit set or cleared.
func (l EntryLo) WithGlobal(g bool) EntryLo {
	if g {
		return l | bitGlobal
	}
	return l &^ bitGlobal
}

// PTE is one page-table entry: the virtual half and the physical half.
type PTE struct {
	Hi EntryHi
	Lo EntryLo
}

// ExcCode is the cause-register exception code the dispatcher switches on.
type ExcCode int

// Exception codes. Codes 13 and above are unused by this
// machine and fall to the panic path in the dispatcher.
const (
	ExcInterrupt   ExcCode = 0
	ExcTLBMod      ExcCode = 1 // TLB-Modified
	ExcTLBLoad     ExcCode = 2 // TLB invalid, load/fetch
	ExcTLBStore    ExcCode = 3 // TLB invalid, store
	ExcAddrLoad    ExcCode = 4
	ExcAddrStore   ExcCode = 5
	ExcBusFetch    ExcCode = 6
	ExcBusData     ExcCode = 7
	ExcSyscall     ExcCode = 8
	ExcBreakpoint  ExcCode = 9
	ExcReservedIns ExcCode = 10
	ExcCoprocUnus  ExcCode = 11
	ExcOverflow    ExcCode = 12
)

// IsTLB reports whether code is one of the three TLB exception codes (1..3)
// that the dispatcher passes up to the Pager. TLB-Modified is included; the
// Pager itself treats it as a program trap.
func (c ExcCode) IsTLB() bool {
	return c == ExcTLBMod || c == ExcTLBLoad || c == ExcTLBStore
}

// IsProgramTrap reports whether code belongs to the general (non-TLB,
// non-syscall, non-interrupt) program-trap family routed to the "general"
// support-record slot.
func (c ExcCode) IsProgramTrap() bool {
	switch c {
	case ExcAddrLoad, ExcAddrStore, ExcBusFetch, ExcBusData,
		ExcBreakpoint, ExcReservedIns, ExcCoprocUnus, ExcOverflow:
		return true
	default:
		return false
	}
}

// State is the saved processor state the hardware deposits on exception
// entry: PC, Status, Cause, EntryHi, and the general-register file.
type State struct {
	PC       uint32
	Status   uint32
	Cause    uint32
	EntryHi  EntryHi
	Regs     [32]uint32 // Regs[29]=SP, Regs[31]=RA, Regs[4..7]=a0..a3, Regs[2]=v0.
}

// Register indices used by the syscall ABI.
const (
	RegSP = 29
	RegRA = 31
	RegV0 = 2
	RegA0 = 4
	RegA1 = 5
	RegA2 = 6
	RegA3 = 7
)

// ExcCodeFromCause extracts the exception code from a Cause register value,
// bits [6:2] in the conventional MIPS layout.
func ExcCodeFromCause(cause uint32) ExcCode {
	return ExcCode((cause >> 2) & 0x1f)
}

// StatusIE, StatusEXL are the Status-register bits the scheduler and
// dispatcher toggle around atomic windows.
const (
	StatusIE  uint32 = 1 << 0
	StatusEXL uint32 = 1 << 1
	StatusKUc uint32 = 1 << 2 // Current kernel/user mode bit.
)
