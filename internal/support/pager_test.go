/*
 * Demand pager test cases.
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
	"testing"

	"pandos/internal/device"
	"pandos/internal/mips"
	"pandos/internal/nucleus"
)

type pagerFixture struct {
	n       *nucleus.Nucleus
	pager   *Pager
	pool    *SwapPool
	disk    *device.MemStore
	shared  *PageTable
	rec     *Record
	swapSem int32
}

func newPagerFixture(t *testing.T) *pagerFixture {
	t.Helper()
	f := &pagerFixture{
		n:      nucleus.New(),
		pool:   NewSwapPool(),
		disk:   device.NewMemStore(),
		shared: NewSharedPageTable(),
	}
	f.swapSem = 1
	f.pager = NewPager(f.n, &f.swapSem, f.pool, f.disk, f.shared)

	supportPool := NewPool()
	rec, ok := supportPool.Alloc(nil)
	if !ok {
		t.Fatal("support pool alloc failed")
	}
	pb, rc := f.n.CreateProcess(mips.State{}, rec)
	if rc != 0 {
		t.Fatalf("CreateProcess failed: rc=%d", rc)
	}
	rec.Attach(pb)
	f.n.Schedule()
	f.rec = rec
	return f
}

// fault simulates the nucleus passing up a TLB-invalid exception for vpn.
func (f *pagerFixture) fault(vpn uint32) {
	pb := f.rec.Proc()
	pb.State.EntryHi = mips.NewEntryHi(vpn, f.rec.ASID)
	pb.State.Cause = uint32(mips.ExcTLBLoad) << 2
	f.pager.Handle(f.rec)
}

// checkSwapConsistency asserts the swap-pool invariant: every occupied
// entry's PTE is valid and its PFN names that entry's frame.
func checkSwapConsistency(t *testing.T, pool *SwapPool) {
	t.Helper()
	for frame := 0; frame < SwapPoolFrames; frame++ {
		e := pool.Occupant(frame)
		if !e.Occupied {
			continue
		}
		if !e.PTE.Lo.Valid() {
			t.Errorf("frame %d occupied but its PTE is invalid", frame)
		}
		if e.PTE.Lo.PFN() != uint32(frame) {
			t.Errorf("frame %d occupied but its PTE's PFN = %d", frame, e.PTE.Lo.PFN())
		}
	}
}

func TestPagerFaultLoadsPageFromBackingStore(t *testing.T) {
	f := newPagerFixture(t)

	var page device.Page
	page[7] = 0xA5
	f.disk.WriteSector(BackingSector(1, false, 3), page)

	f.fault(UProcBaseVPN + 3)

	pte := f.rec.Table.Entry(3)
	if !pte.Lo.Valid() {
		t.Fatal("faulted PTE should be valid")
	}
	if !pte.Lo.Dirty() {
		t.Error("demand-paged PTE should be writable")
	}
	frame := int(pte.Lo.PFN())
	if f.pool.Page(frame)[7] != 0xA5 {
		t.Error("frame does not contain the backing-store page")
	}
	checkSwapConsistency(t, f.pool)

	if f.swapSem != 1 {
		t.Errorf("swap-pool mutex = %d after fault, want 1 (released)", f.swapSem)
	}
}

func TestPagerFIFOEvictionWritesVictimBack(t *testing.T) {
	f := newPagerFixture(t)

	// Fill all 16 frames, pages 0..15, then dirty page 0's frame in place
	// the way a U-proc store would.
	for i := 0; i < SwapPoolFrames; i++ {
		f.fault(UProcBaseVPN + uint32(i))
	}
	page0Frame := int(f.rec.Table.Entry(0).Lo.PFN())
	f.pool.Page(page0Frame)[10] = 0x55

	// The 17th distinct page evicts the FIFO head: page 0's frame.
	f.fault(UProcBaseVPN + 16)

	if f.rec.Table.Entry(0).Lo.Valid() {
		t.Error("victim PTE should have been invalidated")
	}
	if !f.rec.Table.Entry(16).Lo.Valid() {
		t.Error("faulted PTE should be valid")
	}
	if got := int(f.rec.Table.Entry(16).Lo.PFN()); got != page0Frame {
		t.Errorf("page 16 landed in frame %d, want evicted frame %d", got, page0Frame)
	}

	back, _ := f.disk.ReadSector(BackingSector(1, false, 0))
	if back[10] != 0x55 {
		t.Error("eviction did not write the dirty victim page back")
	}
	checkSwapConsistency(t, f.pool)
}

// TestPagerSecondPassEvictsFIFOTail walks all 32 private pages (31
// code/data pages and the stack page, in table order), then re-references
// page 0: with 16 frames, the first pass leaves pages 16..31 resident and
// the FIFO cursor back at the frame page 16 occupies, so the re-reference
// must evict page 16.
func TestPagerSecondPassEvictsFIFOTail(t *testing.T) {
	f := newPagerFixture(t)

	for i := 0; i < PrivatePageCount; i++ {
		f.fault(f.rec.Table.Entry(i).Hi.VPN())
	}
	for i := 0; i < SwapPoolFrames; i++ {
		if f.rec.Table.Entry(i).Lo.Valid() {
			t.Fatalf("page %d should have been evicted during the first pass", i)
		}
	}
	for i := SwapPoolFrames; i < PrivatePageCount; i++ {
		if !f.rec.Table.Entry(i).Lo.Valid() {
			t.Fatalf("page %d should be resident after the first pass", i)
		}
	}

	f.fault(UProcBaseVPN + 0)

	if f.rec.Table.Entry(16).Lo.Valid() {
		t.Error("page 16 (FIFO tail) should have been the eviction victim")
	}
	if !f.rec.Table.Entry(0).Lo.Valid() {
		t.Error("page 0 should be resident after the re-reference")
	}
	checkSwapConsistency(t, f.pool)
}

func TestPagerTLBModifiedTerminates(t *testing.T) {
	f := newPagerFixture(t)
	pb := f.rec.Proc()
	pb.State.EntryHi = mips.NewEntryHi(UProcBaseVPN, f.rec.ASID)
	pb.State.Cause = uint32(mips.ExcTLBMod) << 2

	before := f.n.LiveProcesses()
	f.pager.Handle(f.rec)
	if f.n.LiveProcesses() != before-1 {
		t.Error("a TLB-modified exception should terminate the U-proc")
	}
}

func TestPagerUnknownVPNTerminates(t *testing.T) {
	f := newPagerFixture(t)
	before := f.n.LiveProcesses()
	f.fault(0x12345) // neither a private-table slot nor KUSEGSHARE.
	if f.n.LiveProcesses() != before-1 {
		t.Error("a VPN outside the address space should terminate the U-proc")
	}
}

func TestPagerSharedFaultUsesSharedBackingRun(t *testing.T) {
	f := newPagerFixture(t)

	var page device.Page
	page[0] = 0xEE
	f.disk.WriteSector(BackingSector(0, true, 1), page)

	f.fault(KUSEGShareBaseVPN + 1)

	pte, _, ok := f.shared.Find(KUSEGShareBaseVPN + 1)
	if !ok || !pte.Lo.Valid() {
		t.Fatal("shared PTE should be valid after the fault")
	}
	if !pte.Lo.Global() {
		t.Error("a shared-region PTE should carry the Global bit")
	}
	if f.pool.Page(int(pte.Lo.PFN()))[0] != 0xEE {
		t.Error("frame does not contain the shared backing page")
	}
	checkSwapConsistency(t, f.pool)
}

func TestPagerSharedFaultAlreadyValidSkipsPaging(t *testing.T) {
	f := newPagerFixture(t)

	// Another U-proc paged the shared page in while this one waited on the
	// swap-pool mutex: the PTE is already valid, so the fault is a no-op.
	f.fault(KUSEGShareBaseVPN)
	pte, _, _ := f.shared.Find(KUSEGShareBaseVPN)
	wantFrame := pte.Lo.PFN()

	f.fault(KUSEGShareBaseVPN)
	if pte.Lo.PFN() != wantFrame {
		t.Error("a fault on an already-valid shared page must not re-page it")
	}
	occupied := 0
	for i := 0; i < SwapPoolFrames; i++ {
		if f.pool.Occupant(i).Occupied {
			occupied++
		}
	}
	if occupied != 1 {
		t.Errorf("occupied frames = %d, want 1", occupied)
	}
}

func TestPagerIOFailureReleasesMutexAndTerminates(t *testing.T) {
	f := newPagerFixture(t)
	f.pager.disk = failingStore{}

	before := f.n.LiveProcesses()
	f.fault(UProcBaseVPN)
	if f.n.LiveProcesses() != before-1 {
		t.Error("a backing-store I/O failure should terminate the faulting U-proc")
	}
	if f.swapSem != 1 {
		t.Errorf("swap-pool mutex = %d, want 1 (released before pass-up)", f.swapSem)
	}
}

type failingStore struct{}

func (failingStore) ReadSector(int) (device.Page, device.Status) {
	return device.Page{}, device.StatusCheck
}

func (failingStore) WriteSector(int, device.Page) device.Status {
	return device.StatusCheck
}

func TestSwapPoolReleaseASIDVacatesPrivateFrames(t *testing.T) {
	f := newPagerFixture(t)
	f.fault(UProcBaseVPN)
	f.fault(KUSEGShareBaseVPN)

	f.pool.ReleaseASID(f.rec.ASID)

	if f.rec.Table.Entry(0).Lo.Valid() {
		t.Error("released ASID's private PTE should be invalidated")
	}
	sharedStays := false
	for i := 0; i < SwapPoolFrames; i++ {
		e := f.pool.Occupant(i)
		if e.Occupied {
			if !e.IsShared {
				t.Errorf("frame %d still holds a private page of the released ASID", i)
			}
			sharedStays = true
		}
	}
	if !sharedStays {
		t.Error("shared frames must survive a private-ASID release")
	}
	checkSwapConsistency(t, f.pool)
}
