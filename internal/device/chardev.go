/*
 * Pandos - Character devices.
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

import "sync"

// CharDevice is a terminal- or printer-like byte-stream device. Pandos
// itself never interprets the bytes that cross this interface — the
// "echo/print helper" is explicitly an external collaborator
// — but the kernel and support layer still need something to hand a
// buffer to and get a completion status back from, so this package
// provides one straightforward in-memory implementation for the transmit
// and receive sides.
type CharDevice struct {
	mu  sync.Mutex
	buf []byte
}

// NewCharDevice returns an empty character device.
func NewCharDevice() *CharDevice { return &CharDevice{} }

// Write appends data to the device (e.g. a terminal transmit line or a
// printer). Writes always complete with StatusReady in this model; a real
// MMIO device would report StatusBusy while draining a previous command,
// but the support layer already serializes access through its
// mutual-exclusion device semaphores, so no device-side busy state is
// needed here.
func (d *CharDevice) Write(data []byte) (int, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = append(d.buf, data...)
	return len(data), StatusReady
}

// Read drains up to len(buf) bytes previously written to the device (a
// terminal receive line fed by some external source). Returns
// StatusBusy if nothing is available yet.
func (d *CharDevice) Read(buf []byte) (int, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.buf) == 0 {
		return 0, StatusBusy
	}
	n := copy(buf, d.buf)
	d.buf = d.buf[n:]
	return n, StatusReady
}

// Feed injects bytes as if they arrived from the outside world (e.g. a
// second U-proc's Write landing on the terminal this one Reads).
func (d *CharDevice) Feed(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = append(d.buf, data...)
}
