/*
 * Pandos - Support-level exception handling.
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

// General-exception resolution: program traps and syscalls 9-20.
//
// Syscalls 9-20 that carry a user buffer or a raw virtual address (11-17,
// 19, 20) are modeled here as typed Go methods taking the already-resolved
// Go value (a []byte, a *int32, a uint32 VPN) rather than as code that
// decodes a raw register into a guest-memory pointer: the byte layout of
// "U-proc memory" behind a virtual address is supplied by the external
// CPU/memory simulation, the same boundary that keeps raw
// device-register layouts
// out of package device. Handler.General, installed as the nucleus's
// PassUpVector.General, resolves only the two argument-free members of
// that range (9, 10) plus ordinary program traps; a future CPU-simulation
// front end calls the typed methods directly for 11-20, exactly as
// support-layer code already calls nucleus.Nucleus's syscall-1-8 methods
// directly rather than through Dispatch.
package support

import (
	"time"

	"pandos/internal/device"
	"pandos/internal/mips"
	"pandos/internal/nucleus"
	"pandos/internal/pcb"
)

// MaxTerminalWriteLen bounds a single WriteTerminal/WritePrinter
// transfer. ReadTerminal is bounded only by the length of its buffer.
const MaxTerminalWriteLen = 128

// Handler wires together every support-layer service a U-proc's
// general-exception pass-up can reach: the nucleus (for SYS9's
// TerminateSpecific and the DMA/ALSL/delay primitives' own P/V calls), the
// DMA helpers, the delay daemon, the ALSL, and one character device per
// U-proc for its dedicated terminal and printer line.
type Handler struct {
	n         *nucleus.Nucleus
	dma       *DMA
	delay     *DelayDaemon
	alsl      *ALSL
	pager     *Pager
	terminals [MaxUProcs]*device.CharDevice
	printers  [MaxUProcs]*device.CharDevice
	bootEpoch time.Time
}

// NewHandler returns a Handler over the already-constructed support-layer
// singletons.
func NewHandler(n *nucleus.Nucleus, dma *DMA, delay *DelayDaemon, alsl *ALSL, pager *Pager,
	terminals, printers [MaxUProcs]*device.CharDevice,
) *Handler {
	return &Handler{
		n: n, dma: dma, delay: delay, alsl: alsl, pager: pager,
		terminals: terminals, printers: printers, bootEpoch: time.Now(),
	}
}

// TLB is installed as nucleus.PassUpVector.TLB.
func (h *Handler) TLB(pb *pcb.ProcBlk) {
	rec, ok := pb.Support.(*Record)
	if !ok || rec == nil || !rec.TLBContext.Installed() {
		h.n.TerminateSpecific(pb)
		return
	}
	rec.TLBState = pb.State
	h.pager.Handle(rec)
}

// General is installed as nucleus.PassUpVector.General. It
// resolves ordinary program traps (terminate the subtree) and the two
// argument-free members of the user syscall range, 9 (Terminate) and 10
// (GetTOD); see the package doc comment for why 11-20 are reached as
// direct method calls instead.
func (h *Handler) General(pb *pcb.ProcBlk) {
	rec, ok := pb.Support.(*Record)
	if !ok || rec == nil || !rec.GeneralContext.Installed() {
		h.n.TerminateSpecific(pb)
		return
	}
	rec.GeneralState = pb.State

	if mips.ExcCodeFromCause(pb.State.Cause) != mips.ExcSyscall {
		h.n.TerminateSpecific(pb)
		return
	}
	switch pb.State.Regs[mips.RegA0] {
	case 9:
		h.Terminate(rec)
	case 10:
		pb.State.Regs[mips.RegV0] = uint32(h.GetTOD(rec))
	default:
		// Syscalls 11-20 carry buffers or raw virtual addresses the CPU
		// front end resolves before calling the typed methods
		// (WriteTerminal, Delay, PShared, ...) directly; a number landing
		// here is one no service answers to.
		h.n.TerminateSpecific(pb)
	}
}

// Terminate is SYS9: terminate the calling U-proc (and its subtree) from
// user mode.
func (h *Handler) Terminate(rec *Record) {
	h.n.TerminateSpecific(rec.Proc())
}

// GetTOD is SYS10: microseconds of wall-clock time since boot.
func (h *Handler) GetTOD(rec *Record) int64 {
	return time.Since(h.bootEpoch).Microseconds()
}

// status2result maps a device.Status to the syscall ABI's "len or
// -status" result convention.
func status2result(n int, status device.Status) int32 {
	if status != device.StatusReady {
		return -int32(status)
	}
	return int32(n)
}

// WritePrinter is SYS11: write up to MaxTerminalWriteLen bytes to the
// calling U-proc's dedicated printer line.
func (h *Handler) WritePrinter(rec *Record, data []byte) int32 {
	if len(data) > MaxTerminalWriteLen {
		h.n.TerminateSpecific(rec.Proc())
		return 0
	}
	n, status := h.printers[rec.ASID-1].Write(data)
	return status2result(n, status)
}

// WriteTerminal is SYS12: write up to MaxTerminalWriteLen bytes to the
// calling U-proc's dedicated terminal transmit line.
func (h *Handler) WriteTerminal(rec *Record, data []byte) int32 {
	if len(data) > MaxTerminalWriteLen {
		h.n.TerminateSpecific(rec.Proc())
		return 0
	}
	n, status := h.terminals[rec.ASID-1].Write(data)
	return status2result(n, status)
}

// ReadTerminal is SYS13: read whatever is pending on the calling U-proc's
// dedicated terminal receive line into buf.
func (h *Handler) ReadTerminal(rec *Record, buf []byte) int32 {
	n, status := h.terminals[rec.ASID-1].Read(buf)
	return status2result(n, status)
}

// WriteDisk is SYS14.
func (h *Handler) WriteDisk(rec *Record, unit uint8, sector int, buf *device.Page) int32 {
	return status2result(1, h.dma.WriteDisk(rec, unit, sector, buf))
}

// ReadDisk is SYS15.
func (h *Handler) ReadDisk(rec *Record, unit uint8, sector int, buf *device.Page) int32 {
	return status2result(1, h.dma.ReadDisk(rec, unit, sector, buf))
}

// WriteFlash is SYS16.
func (h *Handler) WriteFlash(rec *Record, unit uint8, block int, buf *device.Page) int32 {
	return status2result(1, h.dma.WriteFlash(rec, unit, block, buf))
}

// ReadFlash is SYS17.
func (h *Handler) ReadFlash(rec *Record, unit uint8, block int, buf *device.Page) int32 {
	return status2result(1, h.dma.ReadFlash(rec, unit, block, buf))
}

// Delay is SYS18. seconds < 0 traps the caller.
func (h *Handler) Delay(rec *Record, now int64, seconds int) {
	if seconds < 0 {
		h.n.TerminateSpecific(rec.Proc())
		return
	}
	h.delay.Sleep(rec, now, seconds)
}

// PShared is SYS19.
func (h *Handler) PShared(rec *Record, vaddr uint32, sem *int32) {
	h.alsl.Wait(rec, vaddr, sem)
}

// VShared is SYS20.
func (h *Handler) VShared(rec *Record, vaddr uint32, sem *int32) {
	h.alsl.Signal(rec, vaddr, sem)
}
