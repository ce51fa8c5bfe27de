/*
 * Pandos - Swap pool.
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
)

// SwapPoolFrames is the number of physical frames reserved for demand
// paging: 2 × MaxUProcs.
const SwapPoolFrames = 16

// SwapEntry records a frame's current tenant: which table (private, keyed
// by ASID, or the shared table) owns it, at what index, and a direct
// pointer back to the owning PTE so the Pager can invalidate it without a
// second lookup.
type SwapEntry struct {
	Occupied bool
	ASID     uint8 // for a shared-table tenant, the ASID whose fault loaded it.
	IsShared bool
	Index    int
	PTE      *mips.PTE
}

// SwapPool is the fixed 16-frame pool the Pager allocates from. It holds
// no lock of its own: the swap-pool mutex is an ordinary kernel
// semaphore the Pager P's and V's through the nucleus,
// exactly like any other kernel semaphore, so SwapPool itself is plain
// data.
type SwapPool struct {
	frames [SwapPoolFrames]device.Page
	table  [SwapPoolFrames]SwapEntry
	next   int // FIFO round-robin cursor across all frames.
}

// NewSwapPool returns an empty swap pool.
func NewSwapPool() *SwapPool { return &SwapPool{} }

// pick chooses a victim frame: the first unoccupied frame, else the next
// frame in round-robin order.
func (s *SwapPool) pick() int {
	for i := range s.table {
		if !s.table[i].Occupied {
			return i
		}
	}
	f := s.next
	s.next = (s.next + 1) % SwapPoolFrames
	return f
}

// Occupant returns frame's current tenant descriptor.
func (s *SwapPool) Occupant(frame int) SwapEntry { return s.table[frame] }

// Page returns a pointer to frame's backing storage, for the Pager to
// read the faulted page into or read the victim page out of.
func (s *SwapPool) Page(frame int) *device.Page { return &s.frames[frame] }

// ReleaseASID vacates every frame holding one of asid's private pages.
// Called when asid's U-proc terminates: the dead process's PTEs are about
// to be recycled with its support record, so a later eviction must not
// write a stale frame back over the dead U-proc's backing sectors. Shared
// frames stay — the global table outlives any one U-proc.
func (s *SwapPool) ReleaseASID(asid uint8) {
	for i := range s.table {
		e := &s.table[i]
		if e.Occupied && !e.IsShared && e.ASID == asid {
			e.PTE.Lo = e.PTE.Lo.WithValid(false)
			s.table[i] = SwapEntry{}
		}
	}
}

// Occupy records frame's new tenant.
func (s *SwapPool) Occupy(frame int, asid uint8, isShared bool, index int, pte *mips.PTE) {
	s.table[frame] = SwapEntry{Occupied: true, ASID: asid, IsShared: isShared, Index: index, PTE: pte}
}
