package persist

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
)

// StreamKind tags the backing store of a Reader or Writer.
type StreamKind int

const (
	StreamFile StreamKind = iota
	StreamMemory
	StreamBolt
)

// String returns a human-readable name for the stream kind.
func (k StreamKind) String() string {
	switch k {
	case StreamFile:
		return "file"
	case StreamMemory:
		return "memory"
	case StreamBolt:
		return "bolt"
	default:
		return "unknown"
	}
}

// Reader is the input side of a catalog format.
type Reader interface {
	// GetByte returns the next byte, or io.EOF.
	GetByte() (byte, error)
	// Fill drains the rest of the stream into one buffer.
	Fill() ([]byte, error)
	Kind() StreamKind
}

// Writer is the output side of a catalog format.
type Writer interface {
	io.Writer
	PutByte(b byte) error
	Flush() error
	Kind() StreamKind
}

const fillStart = 4096

// Drain reads until EOF into a buffer whose capacity doubles on overflow.
// Stream implementations outside this package use it for Fill.
func Drain(read func([]byte) (int, error)) ([]byte, error) {
	buf := make([]byte, 0, fillStart)
	for {
		if len(buf) == cap(buf) {
			next := make([]byte, len(buf), cap(buf)*2)
			copy(next, buf)
			buf = next
		}
		n, err := read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if errors.Is(err, io.EOF) {
			return buf, nil
		}
		if err != nil {
			return buf, err
		}
	}
}

// FileReader reads from an open file.
type FileReader struct {
	f  *os.File
	br *bufio.Reader
}

// NewFileReader wraps f. The caller keeps ownership of f.
func NewFileReader(f *os.File) *FileReader {
	return &FileReader{f: f, br: bufio.NewReaderSize(f, 64*1024)}
}

func (r *FileReader) GetByte() (byte, error) { return r.br.ReadByte() }
func (r *FileReader) Fill() ([]byte, error)  { return Drain(r.br.Read) }
func (r *FileReader) Kind() StreamKind       { return StreamFile }

// File returns the backing file.
func (r *FileReader) File() *os.File { return r.f }

// Buffered exposes the buffered reader so line-oriented parsers share the
// stream position with GetByte (section loads depend on this).
func (r *FileReader) Buffered() *bufio.Reader { return r.br }

// FileWriter writes to an open file.
type FileWriter struct {
	f  *os.File
	bw *bufio.Writer
}

// NewFileWriter wraps f. The caller keeps ownership of f.
func NewFileWriter(f *os.File) *FileWriter {
	return &FileWriter{f: f, bw: bufio.NewWriterSize(f, 64*1024)}
}

func (w *FileWriter) Write(p []byte) (int, error) { return w.bw.Write(p) }
func (w *FileWriter) PutByte(b byte) error        { return w.bw.WriteByte(b) }
func (w *FileWriter) Flush() error                { return w.bw.Flush() }
func (w *FileWriter) Kind() StreamKind            { return StreamFile }

// File returns the backing file.
func (w *FileWriter) File() *os.File { return w.f }

// MemReader reads from a byte slice.
type MemReader struct {
	data []byte
	pos  int
}

// NewMemReader returns a reader over data.
func NewMemReader(data []byte) *MemReader { return &MemReader{data: data} }

func (r *MemReader) GetByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *MemReader) Fill() ([]byte, error) {
	return Drain(func(p []byte) (int, error) {
		if r.pos >= len(r.data) {
			return 0, io.EOF
		}
		n := copy(p, r.data[r.pos:])
		r.pos += n
		return n, nil
	})
}

func (r *MemReader) Kind() StreamKind { return StreamMemory }

// MemWriter collects output in memory.
type MemWriter struct {
	buf bytes.Buffer
}

func (w *MemWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *MemWriter) PutByte(b byte) error        { return w.buf.WriteByte(b) }
func (w *MemWriter) Flush() error                { return nil }
func (w *MemWriter) Kind() StreamKind            { return StreamMemory }

// Bytes returns everything written so far.
func (w *MemWriter) Bytes() []byte { return w.buf.Bytes() }

// RequireFile returns r as a *FileReader, or an unsupported error naming the
// format that needed it.
func RequireFile(r Reader, format string) (*FileReader, error) {
	if fr, ok := r.(*FileReader); ok {
		return fr, nil
	}
	return nil, Unsupportedf("%s format requires a file stream, got %s", format, r.Kind())
}

// RequireFileWriter is the Writer counterpart of RequireFile.
func RequireFileWriter(w Writer, format string) (*FileWriter, error) {
	if fw, ok := w.(*FileWriter); ok {
		return fw, nil
	}
	return nil, Unsupportedf("%s format requires a file stream, got %s", format, w.Kind())
}
