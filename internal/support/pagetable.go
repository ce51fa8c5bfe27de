/*
 * Pandos - Page tables.
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

import "pandos/internal/mips"

// PrivatePageCount is the size of a U-proc's private page table: 31
// code/data pages plus one stack page.
const PrivatePageCount = 32

// UProcBaseVPN is the first virtual page number a U-proc's code/data
// segment occupies. The exact value is immaterial — the machine's
// virtual-address layout is external — it only needs to be a stable,
// distinct VPN per table slot.
const UProcBaseVPN = 0x80000

// UProcStackVPN is the fixed VPN of a U-proc's single stack page,
// conventionally the top of KUSEG.
const UProcStackVPN = 0xBFFFF

// KUSEGShareBaseVPN is the first VPN of the shared virtual region
//, mapped by one global page table every
// U-proc consults for shared-region accesses.
const KUSEGShareBaseVPN = 0xC0000

// SharedPageCount is the number of shared pages the global table maps;
// their backing sectors follow the last U-proc's private run.
const SharedPageCount = 32

// PageTable is a small, linear-scanned VPN-to-PTE table — private
// (one per U-proc) or the single global shared-region table. Grounded on
// the same small-fixed-list-with-linear-scan idiom as asl.ASL and
// pcb.ProcBlk's sibling list: 32 entries is cheap enough to scan rather
// than hash, and a scan makes the "find the index for this VPN" and
// "assign VPNs at construction" logic trivially symmetric.
type PageTable struct {
	entries []mips.PTE
}

func newPageTable(vpns []uint32, asid uint8) *PageTable {
	pt := &PageTable{entries: make([]mips.PTE, len(vpns))}
	for i, vpn := range vpns {
		pt.entries[i].Hi = mips.NewEntryHi(vpn, asid)
	}
	return pt
}

// NewPrivatePageTable returns a fresh, all-invalid private page table for
// the given ASID: 31 code/data slots followed by one stack slot.
func NewPrivatePageTable(asid uint8) *PageTable {
	vpns := make([]uint32, PrivatePageCount)
	for i := 0; i < PrivatePageCount-1; i++ {
		vpns[i] = UProcBaseVPN + uint32(i)
	}
	vpns[PrivatePageCount-1] = UProcStackVPN
	return newPageTable(vpns, asid)
}

// NewSharedPageTable returns the single global, all-invalid shared-region
// table every U-proc's address space maps onto. ASID 0
// marks it global; the Pager additionally sets each filled entry's Global
// bit.
func NewSharedPageTable() *PageTable {
	vpns := make([]uint32, SharedPageCount)
	for i := range vpns {
		vpns[i] = KUSEGShareBaseVPN + uint32(i)
	}
	return newPageTable(vpns, 0)
}

// InKUSEGShare reports whether vpn falls in the shared virtual region.
func InKUSEGShare(vpn uint32) bool {
	return vpn >= KUSEGShareBaseVPN && vpn < KUSEGShareBaseVPN+SharedPageCount
}

// InKUSEG reports whether vpn falls anywhere in a U-proc's user segment,
// private or shared.
func InKUSEG(vpn uint32) bool {
	return (vpn >= UProcBaseVPN && vpn < UProcBaseVPN+PrivatePageCount-1) ||
		vpn == UProcStackVPN ||
		InKUSEGShare(vpn)
}

// Find returns the entry for vpn and its table index, or ok=false if vpn
// is not one of this table's slots.
func (pt *PageTable) Find(vpn uint32) (pte *mips.PTE, index int, ok bool) {
	for i := range pt.entries {
		if pt.entries[i].Hi.VPN() == vpn {
			return &pt.entries[i], i, true
		}
	}
	return nil, 0, false
}

// Entry returns the PTE at a known index (test support).
func (pt *PageTable) Entry(index int) *mips.PTE { return &pt.entries[index] }

// Len returns the number of slots in the table.
func (pt *PageTable) Len() int { return len(pt.entries) }
