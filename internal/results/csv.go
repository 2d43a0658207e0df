package results

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
)

// Header is the first line of the result CSV.
const Header = "cpufreq(GHz),gpufreq(MHz),Gflops,power(W),GflopsPerW,exetime(s),N,NB"

// CSVSink writes records to a CSV file, flushing after every row.
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	closed bool
}

// NewCSVSink truncates path and writes the header.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create result file: %w", err)
	}

	s := &CSVSink{file: f, w: bufio.NewWriter(f)}
	if _, err := fmt.Fprintln(s.w, Header); err != nil {
		f.Close()
		return nil, err
	}
	if err := s.w.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// FormatRow renders a record as a CSV row without the newline.
func FormatRow(r Record) string {
	return fmt.Sprintf("%.1f,%d,%.0f,%.1f,%.2f,%.2f,%d,%d",
		r.CPUGHz, r.GPUMHz, r.Gflops, r.PowerW, r.GflopsPerW, r.ExecSeconds, r.N, r.NB)
}

func (s *CSVSink) Write(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return os.ErrClosed
	}
	if _, err := fmt.Fprintln(s.w, FormatRow(r)); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	flushErr := s.w.Flush()
	if err := s.file.Close(); err != nil {
		return err
	}
	return flushErr
}
