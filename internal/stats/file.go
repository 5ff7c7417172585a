package stats

import (
	"fmt"
	"os"
	"sync"
)

// MaxFileSize is the size threshold spec.md §6 sets for the
// statistics file: "rotated by size (100 MB) up to 10 generations".
const MaxFileSize = 100 * 1024 * 1024

// MaxGenerations is the number of rotated generations kept.
const MaxGenerations = 10

// FileWriter appends one line per ACK to a size-rotated statistics
// file. Rotation is hand-rolled rather than pulled from a logging
// rotation library (see DESIGN.md) since the format here is a flat
// data file, not a log stream, and the policy is a single size
// threshold with a fixed generation count.
type FileWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
	size int64
}

// NewFileWriter opens (creating if necessary) the statistics file at
// path.
func NewFileWriter(path string) (w *FileWriter, err error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening statistics file %s: %w", path, err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("statting statistics file %s: %w", path, err)
	}

	return &FileWriter{path: path, f: f, size: st.Size()}, nil
}

// WriteLease appends one lease record, per spec.md §6's
// "<hwaddr>#####<comma-separated-PRL-codes>#####<vendor-class>"
// format.
func (w *FileWriter) WriteLease(hwAddr string, prlCodes []byte, vendorClass string) error {
	codes := make([]byte, 0, len(prlCodes)*4)
	for i, c := range prlCodes {
		if i > 0 {
			codes = append(codes, ',')
		}

		codes = fmt.Appendf(codes, "%d", c)
	}

	line := fmt.Sprintf("%s#####%s#####%s\n", hwAddr, codes, vendorClass)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(line)) > MaxFileSize {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := w.f.WriteString(line)
	if err != nil {
		return fmt.Errorf("writing statistics line: %w", err)
	}

	w.size += int64(n)

	return nil
}

// rotateLocked renames generations 9→10 down to 0(current)→1 and
// reopens a fresh current file. Callers must hold w.mu.
func (w *FileWriter) rotateLocked() error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("closing statistics file before rotation: %w", err)
	}

	for gen := MaxGenerations - 1; gen >= 1; gen-- {
		oldPath := w.generationPath(gen)
		newPath := w.generationPath(gen + 1)

		if _, err := os.Stat(oldPath); err == nil {
			_ = os.Rename(oldPath, newPath)
		}
	}

	if err := os.Rename(w.path, w.generationPath(1)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotating statistics file: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("reopening statistics file: %w", err)
	}

	w.f = f
	w.size = 0

	return nil
}

func (w *FileWriter) generationPath(gen int) string {
	if gen == 0 {
		return w.path
	}

	return fmt.Sprintf("%s.%d", w.path, gen)
}

// Close closes the underlying file.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.f.Close()
}
