/*
 * Pandos - Kernel timer engine.
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

import (
	"log/slog"
	"sync"
	"time"
)

// TickKind distinguishes the two timer sources the engine selects on.
type TickKind int

const (
	// TickQuantum is a 5ms local-timer expiry.
	TickQuantum TickKind = iota
	// TickPseudoClock is the 100ms interval-timer tick.
	TickPseudoClock
)

// Tick is the value the quantum/pseudo-clock ticker goroutines post onto
// an Engine's event channel.
type Tick struct {
	Kind TickKind
	At   time.Time
}

// PseudoClockObserver is implemented by anything that must also react to the
// 100ms pseudo-clock tick alongside the nucleus's own bulk-wake — the
// delay daemon drains the Active Delay List on every tick. The engine
// invokes it after the nucleus's own
// pseudo-clock handling, on the same goroutine, so no locking is needed
// between the two.
type PseudoClockObserver interface {
	OnTick(nowUsec int64)
}

// Engine drives a Nucleus's scheduler loop: two tickers (quantum,
// pseudo-clock) post distinguishable Tick values onto a single event
// channel that one goroutine selects on, mutating nucleus state only from
// that goroutine.
type Engine struct {
	n       *Nucleus
	events  chan Tick
	done    chan struct{}
	wg      sync.WaitGroup
	quantum time.Duration

	clockObserver PseudoClockObserver
	bootEpoch     time.Time
}

// NewEngine returns an Engine wrapping n. observer (may be nil) receives
// OnTick after every pseudo-clock tick. The quantum ticker runs at
// Quantum;
// use SetQuantum before Start to override it with a workload-configured
// value (config/workload's "quantum" keyword).
func NewEngine(n *Nucleus, observer PseudoClockObserver) *Engine {
	return &Engine{
		n:             n,
		events:        make(chan Tick, 4),
		done:          make(chan struct{}),
		quantum:       Quantum,
		clockObserver: observer,
		bootEpoch:     time.Now(),
	}
}

// SetQuantum overrides the engine's quantum-timer period. Must be called
// before Start.
func (e *Engine) SetQuantum(d time.Duration) {
	if d > 0 {
		e.quantum = d
	}
}

// Start launches the quantum and pseudo-clock ticker goroutines and the
// engine's own select loop. It does not block.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.run()

	e.wg.Add(1)
	go e.tick(e.quantum, TickQuantum)

	e.wg.Add(1)
	go e.tick(PseudoClockPeriod, TickPseudoClock)
}

// Stop signals every goroutine Start launched to exit and waits for
// them.
func (e *Engine) Stop() {
	close(e.done)
	e.wg.Wait()
}

func (e *Engine) tick(period time.Duration, kind TickKind) {
	defer e.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			select {
			case e.events <- Tick{Kind: kind, At: now}:
			case <-e.done:
				return
			}
		case <-e.done:
			return
		}
	}
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case t := <-e.events:
			e.handle(t)
		case <-e.done:
			return
		}
	}
}

func (e *Engine) handle(t Tick) {
	switch t.Kind {
	case TickQuantum:
		e.n.OnQuantumTimer()
	case TickPseudoClock:
		e.n.OnPseudoClockTick()
		if e.clockObserver != nil {
			e.clockObserver.OnTick(t.At.Sub(e.bootEpoch).Microseconds())
		}
	default:
		slog.Warn("nucleus: engine received unknown tick kind", "kind", t.Kind)
	}
}
