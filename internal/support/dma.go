/*
 * Pandos - Disk and flash DMA.
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

// BackingStoreRegionEnd is the first flash block not reserved for holding
// a copy of the backing store's content.
const BackingStoreRegionEnd = MaxUProcs*PrivatePageCount + SharedPageCount

// DMA implements the disk and flash DMA helpers: one
// mutual-exclusion semaphore per physical device register, SYS14-17's
// device-0/backing-region validation, and the lock→WaitIO→transfer→V
// sequence common to both device families.
type DMA struct {
	n       *nucleus.Nucleus
	mutexes [device.NumDeviceSems]int32
	disks   [device.DevicesPerLine]device.SectorStore
	flashes [device.DevicesPerLine]device.SectorStore
}

// NewDMA wires the DMA helper to the nucleus and to per-unit disk/flash
// stores (index 0 of disks is the backing store the Pager itself uses;
// DMA syscalls reject unit 0 rather than opening it for U-proc use).
// Every mutex initializes to 1.
func NewDMA(n *nucleus.Nucleus, disks, flashes [device.DevicesPerLine]device.SectorStore) *DMA {
	d := &DMA{n: n, disks: disks, flashes: flashes}
	for i := range d.mutexes {
		d.mutexes[i] = 1
	}
	return d
}

// transfer is the mutual-exclusion-protected helper shared by disk and
// flash: P the device mutex, issue WaitIO (the calling
// U-proc must be the nucleus's current process), perform the transfer,
// deliver the completion interrupt, and read back the status the
// interrupt wrote into the U-proc's v0.
func (d *DMA) transfer(rec *Record, line device.Line, unit uint8, store device.SectorStore, sector int, buf *device.Page, write bool) device.Status {
	mutex := &d.mutexes[device.SemIndex(line, unit, false)]
	d.n.Passeren(mutex)
	defer d.n.Verhogen(mutex)

	d.n.WaitIO(line, unit, false)

	var status device.Status
	if write {
		status = store.WriteSector(sector, *buf)
	} else {
		page, s := store.ReadSector(sector)
		*buf = page
		status = s
	}
	d.n.OnDeviceInterrupt(line, unit, status)

	return device.Status(rec.Proc().State.Regs[mips.RegV0])
}

// WriteDisk is SYS14.
func (d *DMA) WriteDisk(rec *Record, unit uint8, sector int, buf *device.Page) device.Status {
	if unit == 0 {
		d.n.TerminateSpecific(rec.Proc())
		return device.StatusCheck
	}
	return d.transfer(rec, device.LineDisk, unit, d.disks[unit], sector, buf, true)
}

// ReadDisk is SYS15.
func (d *DMA) ReadDisk(rec *Record, unit uint8, sector int, buf *device.Page) device.Status {
	if unit == 0 {
		d.n.TerminateSpecific(rec.Proc())
		return device.StatusCheck
	}
	return d.transfer(rec, device.LineDisk, unit, d.disks[unit], sector, buf, false)
}

// WriteFlash is SYS16.
func (d *DMA) WriteFlash(rec *Record, unit uint8, block int, buf *device.Page) device.Status {
	if block < BackingStoreRegionEnd {
		d.n.TerminateSpecific(rec.Proc())
		return device.StatusCheck
	}
	return d.transfer(rec, device.LineFlash, unit, d.flashes[unit], block, buf, true)
}

// ReadFlash is SYS17.
func (d *DMA) ReadFlash(rec *Record, unit uint8, block int, buf *device.Page) device.Status {
	if block < BackingStoreRegionEnd {
		d.n.TerminateSpecific(rec.Proc())
		return device.StatusCheck
	}
	return d.transfer(rec, device.LineFlash, unit, d.flashes[unit], block, buf, false)
}
