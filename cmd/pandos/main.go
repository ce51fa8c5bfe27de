/*
 * Pandos - Main process.
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

// Parses flags with getopt, sets up slog via util/logger, loads the
// workload file, instantiates the system, and runs a liner-based monitor
// console alongside signal handling. The console only needs enough
// vocabulary to inspect scheduler state and request a shutdown.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	getopt "github.com/pborman/getopt/v2"

	"pandos/config/workload"
	"pandos/internal/boot"
	"pandos/util/logger"
)

var commands = []string{"status", "help", "quit"}

func main() {
	optConfig := getopt.StringLong("config", 'c', "pandos.cfg", "Workload configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Echo debug-level log records to stderr")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	w, err := workload.Load(*optConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pandos: loading workload: %v\n", err)
		os.Exit(1)
	}

	// -log on the command line overrides the workload file's logfile
	// keyword; either may be absent, in which case logging goes to stderr
	// only (util/logger.NewHandler's nil-file behavior).
	logPath := w.LogFile
	if *optLogFile != "" {
		logPath = *optLogFile
	}
	var logFile *os.File
	if logPath != "" {
		logFile, err = os.Create(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pandos: creating log file: %v\n", err)
			os.Exit(1)
		}
		defer logFile.Close()
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	log := slog.New(logger.NewHandler(logFile, &slog.HandlerOptions{Level: programLevel}, *optDebug))
	slog.SetDefault(log)

	log.Info("pandos started")

	sys, err := boot.Instantiate(w)
	if err != nil {
		log.Error("instantiating system", "error", err)
		os.Exit(1)
	}
	defer sys.Close()

	log.Info("system instantiated", "uprocs", sys.NumUProcs())
	sys.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	halted := make(chan struct{})
	go func() {
		sys.AwaitHalt()
		close(halted)
	}()

	quit := make(chan struct{})
	go consoleLoop(sys, log, quit)

	select {
	case <-sigChan:
		log.Info("got quit signal")
	case <-halted:
		log.Info("all U-procs terminated")
	case <-quit:
		log.Info("operator requested shutdown")
	}

	if sys.Engine != nil {
		sys.Engine.Stop()
	}
	log.Info("pandos shut down")
}

// consoleLoop runs the operator monitor console until the operator quits
// or stdin is closed. It never blocks system shutdown: the caller selects
// on quit alongside the signal and halt channels rather than waiting on
// this goroutine to return.
func consoleLoop(sys *boot.System, log *slog.Logger, quit chan<- struct{}) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(partial string) []string {
		var matches []string
		for _, c := range commands {
			if strings.HasPrefix(c, partial) {
				matches = append(matches, c)
			}
		}
		return matches
	})

	for {
		input, err := line.Prompt("pandos> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) {
				log.Error("reading console command", "error", err)
			}
			close(quit)
			return
		}
		line.AppendHistory(input)

		switch strings.TrimSpace(input) {
		case "":
			continue
		case "status":
			printStatus(sys)
		case "help":
			fmt.Println("commands: status, quit")
		case "quit":
			close(quit)
			return
		default:
			fmt.Printf("unknown command %q (try \"help\")\n", input)
		}
	}
}

func printStatus(sys *boot.System) {
	fmt.Printf("live U-procs: %d\n", sys.Nucleus.LiveProcesses())
	if cur := sys.Nucleus.Current(); cur != nil {
		fmt.Printf("current: ASID %d PC %#x\n", cur.State.EntryHi.ASID(), cur.State.PC)
	} else {
		fmt.Println("current: none")
	}
	fmt.Printf("halted: %v\n", sys.Nucleus.Halted)
}
