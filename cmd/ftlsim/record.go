package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/garethgeorge/goftl/internal/ftl"
	"github.com/garethgeorge/goftl/internal/workload"
)

// recorder writes the generated workload of a run to a trace file.
type recorder struct {
	path  string
	f     *os.File
	trace *workload.TraceWriter
	done  bool
}

func createRecorder(path string, logicalSize int64) (*recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace: %w", err)
	}
	trace, err := workload.NewTraceWriter(f, logicalSize)
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}
	return &recorder{path: path, f: f, trace: trace}, nil
}

func (r *recorder) append(lba ftl.LBA) error {
	if err := r.trace.Append(lba); err != nil {
		return fmt.Errorf("record trace: %w", err)
	}
	return nil
}

func (r *recorder) count() int64 {
	return r.trace.Count()
}

// finish flushes the trace and closes the file, reporting either failure.
func (r *recorder) finish() error {
	if r.done {
		return nil
	}
	r.done = true
	if err := r.trace.Close(); err != nil {
		return errors.Join(err, r.f.Close())
	}
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("close trace %s: %w", r.path, err)
	}
	return nil
}

// abort releases the encoder and file of a run that failed before finish.
func (r *recorder) abort() {
	if r.done {
		return
	}
	r.done = true
	_ = r.trace.Close()
	_ = r.f.Close()
}
