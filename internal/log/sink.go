package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// dailySink is the single write target behind the zap core. It owns both the
// date-named file and the console stream, and serializes writes to both under
// one mutex.
type dailySink struct {
	mu       sync.Mutex
	name     string
	dir      string
	now      func() time.Time
	console  io.Writer
	file     *os.File
	path     string
	attempts bool // file open attempted
}

// FileName returns the log file name for the given day.
func FileName(name string, day time.Time) string {
	return name + "_" + day.Format("20060102") + ".log"
}

func (s *dailySink) openLocked() {
	s.attempts = true
	path := filepath.Join(s.dir, FileName(s.name, s.now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(s.console, "[%s] Failed to open log file %s: %v\n", s.name, path, err)
		return
	}
	s.file = f
	s.path = path
	fmt.Fprintf(s.console, "[%s] Log file initialized: %s\n", s.name, path)
}

// Write implements zapcore.WriteSyncer. It never reports an error to zap so a
// failing file sink cannot suppress the console copy.
func (s *dailySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attempts {
		s.openLocked()
	}
	if s.file != nil {
		if _, err := s.file.Write(p); err != nil {
			fmt.Fprintf(s.console, "[%s] log file write failed: %v\n", s.name, err)
		}
	}
	s.console.Write(p)
	return len(p), nil
}

// Sync flushes both sinks.
func (s *dailySink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.file != nil {
		if err := s.file.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
			errs = append(errs, err)
		}
	}
	if syncer, ok := s.console.(interface{ Sync() error }); ok {
		// stderr on a terminal rejects fsync; that is not a lost write
		_ = syncer.Sync()
	}
	return errors.Join(errs...)
}

// Path returns the open file path.
func (s *dailySink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Close closes the file; later writes go to the console only.
func (s *dailySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
