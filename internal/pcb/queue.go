/*
 * Pandos - Process queues.
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

package pcb

// Queue is a FIFO of PCBs realized as a circular doubly-linked list
// addressed by its tail pointer, so head = tail.qNext.
// Used both as the nucleus ready queue and as the wait queue hung off each
// ASL descriptor.
type Queue struct {
	tail *ProcBlk
}

// NewQueue returns an empty queue.
func NewQueue() *Queue { return &Queue{} }

// Empty reports whether the queue holds no PCBs.
func (q *Queue) Empty() bool { return q.tail == nil }

// Enqueue splices pb onto the tail of q.
func (q *Queue) Enqueue(pb *ProcBlk) {
	if q.tail == nil {
		pb.qNext, pb.qPrev = pb, pb
	} else {
		head := q.tail.qNext
		pb.qNext = head
		pb.qPrev = q.tail
		head.qPrev = pb
		q.tail.qNext = pb
	}
	q.tail = pb
	pb.queue = q
}

// Dequeue removes and returns the head of q, or nil if q is empty.
func (q *Queue) Dequeue() *ProcBlk {
	if q.tail == nil {
		return nil
	}
	head := q.tail.qNext
	if head == q.tail {
		q.tail = nil
	} else {
		q.tail.qNext = head.qNext
		head.qNext.qPrev = q.tail
	}
	head.qNext, head.qPrev, head.queue = nil, nil, nil
	return head
}

// Peek returns the head of q without removing it, or nil if q is empty.
func (q *Queue) Peek() *ProcBlk {
	if q.tail == nil {
		return nil
	}
	return q.tail.qNext
}

// Remove splices pb out of q directly, reporting whether pb was a member.
// O(1): the prev pointer makes a scan unnecessary.
func (q *Queue) Remove(pb *ProcBlk) bool {
	if pb.queue != q {
		return false
	}
	if pb.qNext == pb {
		q.tail = nil
	} else {
		pb.qPrev.qNext = pb.qNext
		pb.qNext.qPrev = pb.qPrev
		if q.tail == pb {
			q.tail = pb.qPrev
		}
	}
	pb.qNext, pb.qPrev, pb.queue = nil, nil, nil
	return true
}
