package suite

import (
	"bytes"
	"io"
	"sync"

	"github.com/acarl005/stripansi"
)

// lineWriter buffers writes until a full line is available, then writes the
// line to dst with an optional prefix and transform. Writers that share a
// destination must share mu, since os/exec copies stdout and stderr from
// separate goroutines.
type lineWriter struct {
	mu        *sync.Mutex
	dst       io.Writer
	prefix    string
	transform func(string) string
	buf       []byte
}

func newLineWriter(mu *sync.Mutex, dst io.Writer, prefix string, transform func(string) string) *lineWriter {
	return &lineWriter{mu: mu, dst: dst, prefix: prefix, transform: transform}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := string(w.buf[:i+1])
		w.buf = w.buf[i+1:]
		if err := w.emit(line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush writes any trailing partial line, terminated with a newline.
func (w *lineWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	line := string(w.buf) + "\n"
	w.buf = nil
	return w.emit(line)
}

func (w *lineWriter) emit(line string) error {
	if w.transform != nil {
		line = w.transform(line)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.dst, w.prefix+line)
	return err
}

// stripANSI removes terminal escape sequences so log files stay readable.
func stripANSI(s string) string {
	return stripansi.Strip(s)
}
