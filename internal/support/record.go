/*
 * Pandos - Support records.
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

// Package support implements the Pandos support layer: per-U-proc support
// records and private page tables, the demand-paging Pager, mutual-
// exclusion DMA helpers for disk and flash, the delay daemon, and the
// Active Logical Semaphore List for shared-region semaphores. Every type
// here is reached only through a pass-up from the nucleus (the program-trap/TLB handlers registered via
// nucleus.PassUpVector) or through a syscall number in the 9-20 range that
// the nucleus passes up to the general-exception handler for the support
// layer to resolve.
//
// Grounded throughout on the same small-fixed-pool, linear-scan style the
// nucleus packages use (pcb.Pool, asl.ASL): every list here is an array
// plus a free-list, sized to the fixed 8-U-proc, 16-frame ceilings, never
// a dynamically growing slice.
package support

import (
	"pandos/internal/mips"
	"pandos/internal/pcb"
)

// MaxUProcs is the number of support records the instantiator hands out,
// one per ASID 1..8.
const MaxUProcs = 8

// ExceptionContext is one (handler PC, kernel status, stack pointer)
// triple the instantiator installs for either a U-proc's TLB-refill slot
// or its general slot.
type ExceptionContext struct {
	PC       uint32
	Status   uint32
	StackPtr uint32
}

// Installed reports whether the instantiator has configured this context.
// A pass-up targeting an unconfigured context has nowhere to run, so the
// handlers treat it the same as a missing support record.
func (c ExceptionContext) Installed() bool { return c != (ExceptionContext{}) }

// Record is one U-proc's support record: the two saved exception states
// (populated by the nucleus pass-up), the two installed
// exception contexts, a private page table, a private semaphore used as
// the sole blocking primitive for SYS18/19, and a back-reference to the
// PCB it supports.
type Record struct {
	ASID uint8

	TLBState     mips.State
	GeneralState mips.State

	TLBContext     ExceptionContext
	GeneralContext ExceptionContext

	Table *PageTable

	PrivateSem int32

	proc *pcb.ProcBlk
	live bool
}

// Proc returns the PCB this record supports.
func (r *Record) Proc() *pcb.ProcBlk { return r.proc }

// Attach records which PCB this record supports. Used by the instantiator
//, which must allocate a support record before it has a
// PCB to point it at — nucleus.CreateProcess needs the support pointer as
// an argument, so the back-reference is completed immediately after.
func (r *Record) Attach(pb *pcb.ProcBlk) { r.proc = pb }

// Pool is the fixed-capacity support-record arena the instantiator draws
// from.
type Pool struct {
	records  [MaxUProcs]Record
	freeNext [MaxUProcs]int
	freeHead int
}

// NewPool returns a pool with every record on the free list, ASID already
// assigned to its slot number (1..8) so Alloc need not renumber on reuse.
func NewPool() *Pool {
	p := &Pool{}
	for i := range p.records {
		p.records[i].ASID = uint8(i + 1)
		p.freeNext[i] = i + 1
	}
	p.freeNext[MaxUProcs-1] = -1
	p.freeHead = 0
	return p
}

// Alloc removes a record from the free list, gives it a fresh private page
// table and PCB back-reference, and returns it. Returns (nil, false) if
// the pool is exhausted.
func (p *Pool) Alloc(proc *pcb.ProcBlk) (*Record, bool) {
	if p.freeHead < 0 {
		return nil, false
	}
	i := p.freeHead
	p.freeHead = p.freeNext[i]

	r := &p.records[i]
	asid := r.ASID
	*r = Record{ASID: asid, proc: proc, live: true}
	r.Table = NewPrivatePageTable(asid)
	return r, true
}

// FreeCount returns the number of records available for allocation.
func (p *Pool) FreeCount() int {
	count := 0
	for i := p.freeHead; i >= 0; i = p.freeNext[i] {
		count++
	}
	return count
}

// Free returns r to the free list.
func (p *Pool) Free(r *Record) {
	if !r.live {
		return
	}
	i := int(r.ASID) - 1
	asid := r.ASID
	*r = Record{ASID: asid}
	p.freeNext[i] = p.freeHead
	p.freeHead = i
}
