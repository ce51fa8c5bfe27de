/*
 * Active semaphore list test cases.
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

package asl

import (
	"testing"

	"pandos/internal/pcb"
)

func TestInsertAndRemoveBlockedFIFO(t *testing.T) {
	a := New(pcb.MaxProc)
	p := pcb.NewPool()
	var sem int32

	a1, _ := p.Alloc()
	a2, _ := p.Alloc()
	a3, _ := p.Alloc()

	for _, pb := range []*pcb.ProcBlk{a1, a2, a3} {
		if !a.InsertBlocked(&sem, pb) {
			t.Fatal("InsertBlocked failed unexpectedly")
		}
	}
	if !a.Sorted() {
		t.Error("ASL should be sorted/occupied after inserts")
	}

	for i, want := range []*pcb.ProcBlk{a1, a2, a3} {
		got := a.RemoveBlocked(&sem)
		if got != want {
			t.Errorf("RemoveBlocked #%d = %p, want %p", i, got, want)
		}
		if got.BlockedOn != nil {
			t.Error("RemoveBlocked should clear BlockedOn")
		}
	}
	if a.RemoveBlocked(&sem) != nil {
		t.Error("RemoveBlocked on empty semaphore should return nil")
	}
	if !a.Sorted() {
		t.Error("descriptor should be freed once its queue drains")
	}
}

func TestSortedAcrossMultipleSemaphores(t *testing.T) {
	a := New(pcb.MaxProc)
	p := pcb.NewPool()
	sems := make([]int32, 5)
	// Insert in an order that does not match address order to exercise the
	// sorted-insert path.
	order := []int{3, 1, 4, 0, 2}
	for _, i := range order {
		pb, _ := p.Alloc()
		if !a.InsertBlocked(&sems[i], pb) {
			t.Fatal("InsertBlocked failed")
		}
	}
	if !a.Sorted() {
		t.Error("ASL should be address-sorted regardless of insertion order")
	}
}

func TestOutBlockedPreservesBlockedOn(t *testing.T) {
	a := New(pcb.MaxProc)
	p := pcb.NewPool()
	var sem int32
	pb, _ := p.Alloc()
	a.InsertBlocked(&sem, pb)

	if !a.OutBlocked(pb) {
		t.Fatal("OutBlocked should find pb")
	}
	if pb.BlockedOn != &sem {
		t.Error("OutBlocked must not clear BlockedOn (terminate needs it)")
	}
	if a.HeadBlocked(&sem) != nil {
		t.Error("semaphore queue should be empty after OutBlocked")
	}
	if a.OutBlocked(pb) {
		t.Error("OutBlocked twice should fail the second time")
	}
}

func TestDescriptorPoolExhaustion(t *testing.T) {
	a := New(2)
	p := pcb.NewPool()
	sems := make([]int32, 3)
	ok1 := a.InsertBlocked(&sems[0], mustAlloc(t, p))
	ok2 := a.InsertBlocked(&sems[1], mustAlloc(t, p))
	ok3 := a.InsertBlocked(&sems[2], mustAlloc(t, p))
	if !ok1 || !ok2 {
		t.Fatal("first two distinct semaphores should succeed")
	}
	if ok3 {
		t.Error("third distinct semaphore should fail: descriptor pool exhausted")
	}
}

func mustAlloc(t *testing.T, p *pcb.Pool) *pcb.ProcBlk {
	t.Helper()
	pb, ok := p.Alloc()
	if !ok {
		t.Fatal("pool exhausted")
	}
	return pb
}
