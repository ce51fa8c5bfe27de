/*
 * Pandos - Master semaphore.
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

package nucleus

// VerhogenMaster is the master-semaphore V performed for each terminating
// U-proc; the instantiator P's it once per U-proc it created before
// shutting the system down. Unlike an ordinary kernel semaphore, the
// master semaphore's waiter is never a schedulable PCB: the instantiator
// blocks on it from its own Go goroutine, not through the ready-queue/ASL
// machinery every other blocking syscall uses. A dedicated channel-based
// wait keeps that one exception explicit instead of overloading
// Passeren/Verhogen with a special-cased semaphore address.
func (n *Nucleus) VerhogenMaster() {
	n.mu.Lock()
	n.MasterSem++
	var wake chan struct{}
	if n.MasterSem <= 0 && len(n.masterWaiters) > 0 {
		wake = n.masterWaiters[0]
		n.masterWaiters = n.masterWaiters[1:]
	}
	n.mu.Unlock()
	if wake != nil {
		close(wake)
	}
}

// AwaitMaster blocks the calling goroutine until count V operations have
// occurred on the master semaphore since AwaitMaster itself started
// consuming them.
func (n *Nucleus) AwaitMaster(count int) {
	for i := 0; i < count; i++ {
		n.awaitMasterOnce()
	}
}

func (n *Nucleus) awaitMasterOnce() {
	n.mu.Lock()
	n.MasterSem--
	if n.MasterSem >= 0 {
		n.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	n.masterWaiters = append(n.masterWaiters, ch)
	n.mu.Unlock()
	<-ch
}
