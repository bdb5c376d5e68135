package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// TeeWriter writes to a primary writer and appends a copy to a log file.
// It implements io.WriteCloser.
type TeeWriter struct {
	primary io.Writer
	logFile *os.File
	mu      sync.Mutex
}

// NewTeeWriter creates a TeeWriter appending to the log file at path.
func NewTeeWriter(primary io.Writer, path string) (*TeeWriter, error) {
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &TeeWriter{
		primary: primary,
		logFile: logFile,
	}, nil
}

// Write writes to both destinations. The primary write result wins; a
// failed file write does not fail the stream.
func (t *TeeWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.primary.Write(p)
	if _, fileErr := t.logFile.Write(p); fileErr != nil && err == nil {
		err = fmt.Errorf("write log file: %w", fileErr)
	}
	return n, err
}

// Close closes the log file. The primary writer is left open.
func (t *TeeWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.logFile.Close()
}
