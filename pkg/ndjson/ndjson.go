// Package ndjson reads and writes gzip-compressed newline-delimited JSON
// files, one record per line.
package ndjson

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// maxLineSize bounds a single record when reading.
const maxLineSize = 16 * 1024 * 1024

// Writer encodes records as gzip-compressed NDJSON.
type Writer struct {
	gz    *gzip.Writer
	buf   *bufio.Writer
	enc   *json.Encoder
	count int
}

// NewWriter creates a writer that compresses to w. Close must be called to
// flush the gzip trailer; it does not close w.
func NewWriter(w io.Writer) *Writer {
	gz := gzip.NewWriter(w)
	buf := bufio.NewWriter(gz)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	return &Writer{gz: gz, buf: buf, enc: enc}
}

// Write encodes v as one line.
func (w *Writer) Write(v any) error {
	// Encode appends the newline.
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encode record %d: %w", w.count+1, err)
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.count
}

// Close flushes buffered data and the gzip trailer.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.gz.Close()
		return fmt.Errorf("flush: %w", err)
	}
	if err := w.gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}
	return nil
}

// Reader decodes gzip-compressed NDJSON.
type Reader struct {
	gz      *gzip.Reader
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a reader over the compressed stream r.
func NewReader(r io.Reader) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	return &Reader{gz: gz, scanner: scanner}, nil
}

// Next returns the next record. It returns io.EOF after the last one.
// Blank lines are skipped.
func (r *Reader) Next() (json.RawMessage, error) {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("line %d: invalid JSON", r.line)
		}
		return append(json.RawMessage(nil), line...), nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	return nil, io.EOF
}

// Close releases the gzip reader. It does not close the underlying stream.
func (r *Reader) Close() error {
	return r.gz.Close()
}

// WriteFile writes records to path. The parent directory is created if
// needed. Data is written to a temporary file in the same directory and
// renamed into place, so path never holds a partial export.
func WriteFile[T any](path string, records []T) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := NewWriter(tmp)
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// ReadFile reads every record of the file at path.
func ReadFile(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r, err := NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer r.Close()

	var records []json.RawMessage
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		records = append(records, rec)
	}
}
