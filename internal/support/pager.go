/*
 * Pandos - Demand pager.
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

import (
	"pandos/internal/device"
	"pandos/internal/mips"
	"pandos/internal/nucleus"
)

// BackingSector maps a (table, index) pair to its linear sector in the
// backing store (disk 0): each U-proc's 32 private pages occupy a
// contiguous run, and the shared table's pages occupy the run immediately
// following the last U-proc's. Exported
// so the instantiator (internal/boot) can lay down each U-proc's initial
// code/data image at the same sectors the Pager will later fault it in
// from, without duplicating the layout formula.
func BackingSector(asid uint8, isShared bool, index int) int {
	if isShared {
		return MaxUProcs*PrivatePageCount + index
	}
	return int(asid-1)*PrivatePageCount + index
}

// Pager is the TLB-invalid exception handler. One Pager
// serves every U-proc; it is reached only via a nucleus pass-up, never
// called directly by a U-proc.
type Pager struct {
	n       *nucleus.Nucleus
	swapSem *int32
	pool    *SwapPool
	disk    device.SectorStore
	shared  *PageTable
}

// NewPager wires together the pieces the instantiator has already built:
// the nucleus (for the blocking P/V primitives and TerminateSpecific), the
// swap-pool mutex (a kernel semaphore initialized to 1), the swap pool
// itself, the backing disk, and the one global shared-region table.
func NewPager(n *nucleus.Nucleus, swapSem *int32, pool *SwapPool, disk device.SectorStore, shared *PageTable) *Pager {
	return &Pager{n: n, swapSem: swapSem, pool: pool, disk: disk, shared: shared}
}

// Handle services one TLB-invalid exception for rec's U-proc: pick a
// frame, evict and write back any tenant, read the faulted page in, and
// publish the new translation. It is reached through Handler.TLB, the
// nucleus's PassUpVector.TLB handler.
func (p *Pager) Handle(rec *Record) {
	pb := rec.Proc()
	if pb == nil {
		return
	}

	if mips.ExcCodeFromCause(pb.State.Cause) == mips.ExcTLBMod {
		// A write to a page mapped read-only: not a missing-translation
		// fault the Pager can service, a program trap.
		p.n.TerminateSpecific(pb)
		return
	}

	vpn := pb.State.EntryHi.VPN()
	var (
		pte    *mips.PTE
		idx    int
		shared bool
		ok     bool
	)
	if InKUSEGShare(vpn) {
		pte, idx, ok = p.shared.Find(vpn)
		shared = true
	} else {
		pte, idx, ok = rec.Table.Find(vpn)
	}
	if !ok {
		// Address outside both the private table and KUSEGSHARE: bad
		// argument from the U-proc.
		p.n.TerminateSpecific(pb)
		return
	}

	p.n.Passeren(p.swapSem)

	if shared && pte.Lo.Valid() {
		// Another U-proc paged this shared page in while we waited for the
		// mutex.
		p.n.Verhogen(p.swapSem)
		return
	}

	frame := p.pool.pick()
	victim := p.pool.Occupant(frame)
	if victim.Occupied {
		victim.PTE.Lo = victim.PTE.Lo.WithValid(false)
		victimSector := BackingSector(victim.ASID, victim.IsShared, victim.Index)
		if status := p.disk.WriteSector(victimSector, *p.pool.Page(frame)); status != device.StatusReady {
			p.n.Verhogen(p.swapSem)
			p.n.TerminateSpecific(pb)
			return
		}
	}

	sector := BackingSector(rec.ASID, shared, idx)
	page, status := p.disk.ReadSector(sector)
	if status != device.StatusReady {
		p.n.Verhogen(p.swapSem)
		p.n.TerminateSpecific(pb)
		return
	}

	*p.pool.Page(frame) = page
	p.pool.Occupy(frame, rec.ASID, shared, idx, pte)
	pte.Lo = mips.NewEntryLo(uint32(frame)).WithGlobal(shared)

	p.n.Verhogen(p.swapSem)
}
