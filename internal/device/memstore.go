/*
 * Pandos - In-memory sector store.
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

package device

// MemStore is an in-memory SectorStore: scratch disk/flash space a U-proc
// can read and write via SYS14-17 without needing a backing file on disk.
// Grounded on the same "sparse, lazily-filled" semantics FileStore applies
// to an unwritten sector — a never-written MemStore sector reads back as
// all-zero.
type MemStore struct {
	sectors map[int]Page
}

// NewMemStore returns an empty in-memory sector store.
func NewMemStore() *MemStore {
	return &MemStore{sectors: make(map[int]Page)}
}

// ReadSector reads one sector, returning a zero page if it was never
// written.
func (s *MemStore) ReadSector(sector int) (Page, Status) {
	return s.sectors[sector], StatusReady
}

// WriteSector writes one sector.
func (s *MemStore) WriteSector(sector int, p Page) Status {
	s.sectors[sector] = p
	return StatusReady
}
