/*
 * Pandos - System instantiator.
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

// Package boot implements the Pandos instantiator: the
// bootstrap that builds every support-layer singleton, copies each
// configured U-proc's flash boot image onto the backing store, creates the
// U-proc PCBs, wires the nucleus's Pass-Up Vector, and waits on the master
// semaphore for every U-proc to terminate.
//
// The support layer's DMA/pager/delay/ALSL singletons and the per-ASID
// terminal and printer lines are built once at boot and never
// reconstructed.
package boot

import (
	"encoding/binary"
	"fmt"
	"time"

	"pandos/config/workload"
	"pandos/internal/device"
	"pandos/internal/mips"
	"pandos/internal/nucleus"
	"pandos/internal/support"
)

// textSizeOffset and dataSizeOffset are the byte offsets into a flash
// image's first sector where the loader finds the code and data segment
// sizes.
const (
	textSizeOffset = 0x14
	dataSizeOffset = 0x24
)

// Kernel-text entries and stack area for the two pass-up exception
// contexts. Only the external CPU model ever jumps through these values —
// the in-process pass-up path reaches the same handlers via the Pass-Up
// Vector — but each support record still carries the context a hardware
// realization would load. Each ASID gets two dedicated stack pages,
// page-fault slot above the general slot.
const (
	handlerTextBase  = 0x0001_0000
	handlerStackBase = 0x0010_0000
)

// exceptionContexts builds the page-fault and general contexts for asid:
// kernel mode with interrupts enabled, each slot on its own stack page.
func exceptionContexts(asid uint8) (tlb, general support.ExceptionContext) {
	top := uint32(handlerStackBase) + uint32(asid)*2*device.PageSize
	tlb = support.ExceptionContext{
		PC:       handlerTextBase,
		Status:   mips.StatusIE,
		StackPtr: top,
	}
	general = support.ExceptionContext{
		PC:       handlerTextBase + device.PageSize,
		Status:   mips.StatusIE,
		StackPtr: top - device.PageSize,
	}
	return tlb, general
}

// System is every piece of booted Pandos state: the nucleus, the engine
// that drives its scheduler loop, and the support-layer singletons the
// instantiator built. cmd/pandos owns a System's lifetime.
type System struct {
	Nucleus *nucleus.Nucleus
	Engine  *nucleus.Engine
	Handler *support.Handler
	Support *support.Pool

	Terminals [support.MaxUProcs]*device.CharDevice
	Printers  [support.MaxUProcs]*device.CharDevice

	backing *device.FileStore
	flashes [device.DevicesPerLine]*device.FileStore
	delay   *support.DelayDaemon

	quantum   time.Duration
	numUProcs int
}

// Instantiate builds a full Pandos system from w and creates one U-proc PCB
// per configured flash image, in order:
// initialize the support-record pool, the swap pool and its mutex, the
// global shared-region page table, the per-device mutexes, copy each
// U-proc's initial image onto the backing store, then create the U-procs
// themselves. It does not start the engine or block on the master
// semaphore — callers do that via Run/AwaitHalt once they're ready to let
// time move.
func Instantiate(w workload.Workload) (*System, error) {
	n := nucleus.New()

	backing, err := device.OpenFileStore(w.BackingStore)
	if err != nil {
		return nil, fmt.Errorf("boot: backing store: %w", err)
	}

	swapSem := int32(1)
	pool := support.NewSwapPool()
	shared := support.NewSharedPageTable()
	pager := support.NewPager(n, &swapSem, pool, backing, shared)

	supportPool := support.NewPool()

	var disks [device.DevicesPerLine]device.SectorStore
	disks[0] = backing
	for i := 1; i < len(disks); i++ {
		disks[i] = device.NewMemStore()
	}

	sys := &System{
		Nucleus: n,
		Support: supportPool,
		backing: backing,
		quantum: w.Quantum,
	}

	var flashStores [device.DevicesPerLine]device.SectorStore
	for i := range flashStores {
		flashStores[i] = device.NewMemStore()
	}

	var terminals, printers [support.MaxUProcs]*device.CharDevice
	for i := range terminals {
		terminals[i] = device.NewCharDevice()
		printers[i] = device.NewCharDevice()
	}
	sys.Terminals = terminals
	sys.Printers = printers

	// The per-ASID flash images must be opened and copied onto the backing
	// store, and flashStores populated with the real file handles, before
	// NewDMA below — NewDMA takes the array by value, so any flash slot
	// filled in after that call would never reach the DMA helper.
	var configured [support.MaxUProcs]bool
	for asid := uint8(1); asid <= support.MaxUProcs; asid++ {
		path := w.FlashImages[asid-1]
		if path == "" {
			continue
		}
		flash, err := device.OpenFileStore(path)
		if err != nil {
			return nil, fmt.Errorf("boot: flash image for ASID %d: %w", asid, err)
		}
		sys.flashes[asid-1] = flash
		flashStores[asid-1] = flash

		pages, err := imagePageCount(flash)
		if err != nil {
			return nil, fmt.Errorf("boot: flash image for ASID %d: %w", asid, err)
		}
		if err := copyBootImage(flash, backing, asid, pages); err != nil {
			return nil, fmt.Errorf("boot: loading ASID %d: %w", asid, err)
		}
		configured[asid-1] = true
	}

	dma := support.NewDMA(n, disks, flashStores)
	delay := support.NewDelayDaemon(n)
	alsl := support.NewALSL(n)

	handler := support.NewHandler(n, dma, delay, alsl, pager, terminals, printers)
	sys.Handler = handler
	sys.delay = delay
	n.SetPassUpVector(nucleus.PassUpVector{TLB: handler.TLB, General: handler.General})

	// Every path that kills a U-proc — SYS2/SYS9, a program trap, a pager
	// I/O failure — funnels through the nucleus's terminate machinery, so
	// one hook covers the whole support-record lifecycle: vacate the dead
	// ASID's swap frames, return the record, and V the master semaphore the
	// instantiator's AwaitHalt is counting down.
	n.SetTerminationHook(func(sup any) {
		rec, ok := sup.(*support.Record)
		if !ok || rec == nil {
			return
		}
		pool.ReleaseASID(rec.ASID)
		supportPool.Free(rec)
		n.VerhogenMaster()
	})

	for asid := uint8(1); asid <= support.MaxUProcs; asid++ {
		if !configured[asid-1] {
			continue
		}
		rec, ok := supportPool.Alloc(nil)
		if !ok {
			return nil, fmt.Errorf("boot: support-record pool exhausted at ASID %d", asid)
		}
		rec.TLBContext, rec.GeneralContext = exceptionContexts(asid)

		state := initialState(asid)
		pb, rc := n.CreateProcess(state, rec)
		if rc != 0 {
			supportPool.Free(rec)
			return nil, fmt.Errorf("boot: PCB pool exhausted at ASID %d", asid)
		}
		rec.Attach(pb)

		sys.numUProcs++
	}

	return sys, nil
}

// imagePageCount reads a flash image's header sector and returns the
// number of PageSize pages its code+data segments occupy, clamped to the
// 31 code/data slots a private page table has.
func imagePageCount(flash device.SectorStore) (int, error) {
	header, status := flash.ReadSector(0)
	if status != device.StatusReady {
		return 0, fmt.Errorf("reading header: device status %v", status)
	}
	textSize := binary.BigEndian.Uint32(header[textSizeOffset: textSizeOffset+4])
	dataSize := binary.BigEndian.Uint32(header[dataSizeOffset: dataSizeOffset+4])

	total := textSize + dataSize
	pages := int((total + device.PageSize - 1) / device.PageSize)
	if pages > support.PrivatePageCount-1 {
		pages = support.PrivatePageCount - 1
	}
	return pages, nil
}

// copyBootImage copies the first n pages of flash onto the backing store,
// at the sectors the Pager will later fault them in from for asid.
func copyBootImage(flash, backing device.SectorStore, asid uint8, n int) error {
	for idx := 0; idx < n; idx++ {
		page, status := flash.ReadSector(idx)
		if status != device.StatusReady {
			return fmt.Errorf("reading flash page %d: device status %v", idx, status)
		}
		sector := support.BackingSector(asid, false, idx)
		if status := backing.WriteSector(sector, page); status != device.StatusReady {
			return fmt.Errorf("writing backing sector %d: device status %v", sector, status)
		}
	}
	return nil
}

// initialState builds the processor state a freshly created U-proc begins
// executing with: PC and SP pointing at the first code byte and the top of
// its single stack page, interrupts enabled, user mode, and EntryHi tagged
// with its ASID.
func initialState(asid uint8) mips.State {
	pc := uint32(support.UProcBaseVPN) * device.PageSize
	sp := uint32(support.UProcStackVPN+1) * device.PageSize

	var s mips.State
	s.PC = pc
	s.Regs[mips.RegSP] = sp
	s.Status = mips.StatusIE | mips.StatusKUc
	s.EntryHi = mips.NewEntryHi(support.UProcBaseVPN, asid)
	return s
}

// Run starts the engine goroutine and performs the very first scheduling
// decision.
func (s *System) Run() {
	s.Engine = nucleus.NewEngine(s.Nucleus, s.delay)
	s.Engine.SetQuantum(s.quantum)
	s.Engine.Start()
	s.Nucleus.Schedule()
}

// AwaitHalt blocks until every U-proc created at instantiation time has
// terminated,
// then stops the engine.
func (s *System) AwaitHalt() {
	s.Nucleus.AwaitMaster(s.numUProcs)
	if s.Engine != nil {
		s.Engine.Stop()
	}
}

// Close releases the backing store and flash image file handles.
func (s *System) Close() error {
	var firstErr error
	if err := s.backing.Close(); err != nil {
		firstErr = err
	}
	for _, f := range s.flashes {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NumUProcs returns the number of U-procs this system was instantiated
// with.
func (s *System) NumUProcs() int { return s.numUProcs }
