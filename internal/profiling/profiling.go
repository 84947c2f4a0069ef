// Package profiling captures pprof profiles and execution traces around a
// command or a daemon run, and reports the process's runtime usage.
package profiling

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Options names the output file of each profile. Empty paths are skipped.
type Options struct {
	CPU       string
	Heap      string
	Trace     string
	Goroutine string
}

// Enabled reports whether any profile was requested.
func (o Options) Enabled() bool {
	return o.CPU != "" || o.Heap != "" || o.Trace != "" || o.Goroutine != ""
}

// Session is a running profiling session. CPU profiling and tracing run
// from Start to Stop; heap and goroutine snapshots are taken at Stop.
type Session struct {
	opts      Options
	cpuFile   *os.File
	traceFile *os.File
}

// Start begins CPU profiling and tracing as requested. If one of them
// fails, whatever already started is stopped again.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}

	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		s.cpuFile = f
	}

	if opts.Trace != "" {
		f, err := os.Create(opts.Trace)
		if err != nil {
			s.stopCPU()
			return nil, fmt.Errorf("failed to create trace file: %w", err)
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			s.stopCPU()
			return nil, fmt.Errorf("failed to start trace: %w", err)
		}
		s.traceFile = f
	}

	return s, nil
}

// Stop ends the session and writes the snapshot profiles. It is safe to
// call more than once; later calls do nothing.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	var errs []error
	errs = append(errs, s.stopCPU(), s.stopTrace())

	if s.opts.Heap != "" {
		runtime.GC()
		errs = append(errs, WriteProfile("heap", s.opts.Heap, 0))
	}
	if s.opts.Goroutine != "" {
		errs = append(errs, WriteProfile("goroutine", s.opts.Goroutine, 1))
	}
	s.opts = Options{}
	return errors.Join(errs...)
}

func (s *Session) stopCPU() error {
	if s.cpuFile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := s.cpuFile.Close()
	s.cpuFile = nil
	return err
}

func (s *Session) stopTrace() error {
	if s.traceFile == nil {
		return nil
	}
	trace.Stop()
	err := s.traceFile.Close()
	s.traceFile = nil
	return err
}

// WriteProfile writes the named runtime profile (heap, allocs, goroutine,
// block, mutex, threadcreate) to path.
func WriteProfile(name, path string, debug int) error {
	p := pprof.Lookup(name)
	if p == nil {
		return fmt.Errorf("unknown profile %q", name)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s profile file: %w", name, err)
	}
	if err := p.WriteTo(f, debug); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s profile: %w", name, err)
	}
	return f.Close()
}

// Usage is a snapshot of the process's runtime resource use.
type Usage struct {
	HeapBytes  uint64 `json:"heap_bytes"`
	SysBytes   uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

// ReadUsage returns the current runtime usage.
func ReadUsage() Usage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Usage{
		HeapBytes:  m.HeapAlloc,
		SysBytes:   m.Sys,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
}
