/*
 * Pandos - Peripheral device interface.
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

// Package device models the memory-mapped peripheral register space as an
// opaque interface boundary: field names and completion-status semantics
// only, never concrete bit layouts: a small interface plus named status
// constants, rather than structs mirroring real hardware registers.
package device

import (
	"fmt"
	"os"
)

// Status is the completion code a device posts to its interrupt line.
// Only Ready and Busy are distinguished
// from every other (failure) code; WaitIO callers treat anything but Ready
// as a failure and return its negation.
type Status uint8

const (
	StatusReady Status = 0 // Operation completed successfully.
	StatusBusy  Status = 1 // Device still processing a previous command.
	StatusCheck Status = 2 // Generic device/unit check (I/O failure).
)

// Line is one of the five interrupt lines peripheral devices are wired to
//. Lines 0-2 belong to the CPU/timer interrupts handled
// directly by the nucleus.
type Line int

const (
	LineDisk     Line = 3
	LineFlash    Line = 4
	LineNetwork  Line = 5
	LinePrinter  Line = 6
	LineTerminal Line = 7
)

// DevicesPerLine is the number of physical units multiplexed onto one
// interrupt line.
const DevicesPerLine = 8

// NumDeviceSems is the number of nucleus device semaphores: one per
// (line, unit) pair for the four non-terminal lines, plus two per unit on
// the terminal line (transmit, receive) — 4*8 + 2*8 = 48.
const NumDeviceSems = 48

// SemIndex computes a device's index into the nucleus device-semaphore
// array. forRead only matters for LineTerminal, which splits
// each unit into a transmit sub-device (32-39) and a receive sub-device
// (40-47).
func SemIndex(line Line, unit uint8, forRead bool) int {
	if line == LineTerminal {
		if forRead {
			return 40 + int(unit)
		}
		return 32 + int(unit)
	}
	return (int(line)-3)*DevicesPerLine + int(unit)
}

// PageSize is the fixed page/sector size: 4KB, matching a 32-page,
// 128KB-per-U-proc address space.
const PageSize = 4096

// Page is one page's worth of backing-store data.
type Page [PageSize]byte

// SectorStore is a disk- or flash-like random-access backing store
// addressed by linear sector number — the DMA helpers' only
// view of "disk" or "flash". Implemented once, over *os.File, rather than
// modelled as cylinder/head/sector hardware geometry; the pager and DMA
// helpers only ever need linear sector addressing.
type SectorStore interface {
	ReadSector(sector int) (Page, Status)
	WriteSector(sector int, p Page) Status
}

// FileStore is a SectorStore backed by a single flat file, one fixed-size
// sector per slot.
type FileStore struct {
	f *os.File
}

// OpenFileStore opens (creating if needed) a sector store backed by path.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", path, err)
	}
	return &FileStore{f: f}, nil
}

// Close closes the underlying file.
func (s *FileStore) Close() error { return s.f.Close() }

// ReadSector reads one PageSize-byte sector. A short/missing sector (never
// written) reads back as all zero bytes, matching a freshly IPLed disk.
func (s *FileStore) ReadSector(sector int) (Page, Status) {
	var p Page
	n, err := s.f.ReadAt(p[:], int64(sector)*PageSize)
	if err != nil && n == 0 {
		// Unwritten sector: treat as zero-filled rather than a failure, so a
		// fresh backing store need not be pre-formatted.
		return p, StatusReady
	}
	if n < PageSize {
		for i := n; i < PageSize; i++ {
			p[i] = 0
		}
	}
	return p, StatusReady
}

// WriteSector writes one PageSize-byte sector.
func (s *FileStore) WriteSector(sector int, p Page) Status {
	if _, err := s.f.WriteAt(p[:], int64(sector)*PageSize); err != nil {
		return StatusCheck
	}
	return StatusReady
}
