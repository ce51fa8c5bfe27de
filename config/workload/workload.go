/*
 * Pandos - Workload configuration parser.
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

// Package workload loads the line-oriented configuration file that tells
// the boot harness (cmd/pandos) what to hand the instantiator: the eight
// U-proc flash image paths, the backing-store image path, and a handful
// of boot-time tunables.
//
// The grammar is line-oriented: '#' starts a comment running to end of
// line, and each remaining line binds one keyword to one or two plain
// whitespace-separated tokens.
package workload

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"pandos/internal/support"
)

// Workload is everything the instantiator needs to boot:
// one flash image path per ASID 1..8, the backing-store image path, and
// the boot-time quantum, and the log file path. Zero-value FlashImages entries
// name no U-proc for that ASID — the instantiator simply creates fewer
// than eight U-procs in that case, which is useful for the "boot with no
// U-procs, expect immediate halt" end-to-end scenario.
type Workload struct {
	FlashImages  [support.MaxUProcs]string
	BackingStore string
	Quantum      time.Duration
	LogFile      string
}

// Default returns a Workload with the standard 5ms quantum and no
// U-procs configured.
func Default() Workload {
	return Workload{Quantum: 5 * time.Millisecond}
}

// keyword handlers receive the remaining whitespace-separated fields on
// the line (the keyword itself already consumed).
type handler func(w *Workload, fields []string) error

var handlers = map[string]handler{
	"flash": func(w *Workload, f []string) error {
		if len(f) != 2 {
			return fmt.Errorf("flash requires <asid> <path>, got %q", f)
		}
		asid, err := strconv.Atoi(f[0])
		if err != nil || asid < 1 || asid > support.MaxUProcs {
			return fmt.Errorf("flash asid %q out of range 1..%d", f[0], support.MaxUProcs)
		}
		w.FlashImages[asid-1] = f[1]
		return nil
	},
	"disk": func(w *Workload, f []string) error {
		if len(f) != 1 {
			return fmt.Errorf("disk requires exactly one path, got %q", f)
		}
		w.BackingStore = f[0]
		return nil
	},
	"quantum": func(w *Workload, f []string) error {
		if len(f) != 1 {
			return fmt.Errorf("quantum requires exactly one duration, got %q", f)
		}
		d, err := time.ParseDuration(f[0])
		if err != nil {
			return fmt.Errorf("quantum: %w", err)
		}
		w.Quantum = d
		return nil
	},
	"logfile": func(w *Workload, f []string) error {
		if len(f) != 1 {
			return fmt.Errorf("logfile requires exactly one path, got %q", f)
		}
		w.LogFile = f[0]
		return nil
	},
}

// Parse reads a workload file from r (see package doc for grammar).
func Parse(r io.Reader) (Workload, error) {
	w := Default()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		key := strings.ToLower(fields[0])
		h, ok := handlers[key]
		if !ok {
			return w, fmt.Errorf("workload: line %d: unknown keyword %q", lineNo, fields[0])
		}
		if err := h(&w, fields[1:]); err != nil {
			return w, fmt.Errorf("workload: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return w, fmt.Errorf("workload: %w", err)
	}
	return w, nil
}

// Load opens and parses the workload file at path.
func Load(path string) (Workload, error) {
	f, err := os.Open(path)
	if err != nil {
		return Workload{}, fmt.Errorf("workload: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
