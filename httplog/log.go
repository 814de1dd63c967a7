// Package httplog provides the leveled loggers shared by the httpcore
// subsystems that log (dispatch, route, cachestore, httpclient); the pure
// cachepolicy package does not log.
package httplog

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	stdLogFlags     = log.LstdFlags | log.Lshortfile | log.LUTC
	outputCallDepth = 2

	DebugLogger = log.New(os.Stderr, "DEBUG: ", stdLogFlags)
	InfoLogger  = log.New(os.Stderr, "INFO: ", stdLogFlags)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", stdLogFlags)
	FatalLogger = log.New(os.Stderr, "FATAL: ", log.LstdFlags|log.Llongfile|log.LUTC)

	debug = flag.Bool("debug", false, "Whether to print debug messages")
)

func init() {
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)
		s := <-c
		Infof("obtained signal %q, terminating", s)
		time.Sleep(time.Second)
		os.Exit(0)
	}()
}

// SetDebug overrides the -debug flag programmatically, so a loaded config
// file's log_debug setting can take effect without requiring the flag on
// the command line.
func SetDebug(d bool) {
	*debug = d
}

// SuppressOutput silences or restores the debug, info and error loggers;
// FatalLogger always writes to stderr. Tests call this so that
// table-driven runs covering expected error paths don't spam stderr.
func SuppressOutput(suppress bool) {
	out := io.Writer(os.Stderr)
	if suppress {
		out = io.Discard
	}
	DebugLogger.SetOutput(out)
	InfoLogger.SetOutput(out)
	ErrorLogger.SetOutput(out)
}

func Debugf(format string, args ...interface{}) {
	if !*debug {
		return
	}
	DebugLogger.Output(outputCallDepth, fmt.Sprintf(format, args...))
}

func Infof(format string, args ...interface{}) {
	InfoLogger.Output(outputCallDepth, fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	ErrorLogger.Output(outputCallDepth, fmt.Sprintf(format, args...))
}

func Fatalf(format string, args ...interface{}) {
	FatalLogger.Output(outputCallDepth, fmt.Sprintf(format, args...))
	os.Exit(1)
}
