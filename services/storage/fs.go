package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FS is the file-like store the log needs: append, sequential read, and an
// existence check. Implementations: DirFS on hosts, littlefs on RP2 flash,
// MemFS in tests and the simulator.
type FS interface {
	OpenAppend(name string) (io.WriteCloser, error)
	OpenRead(name string) (io.ReadCloser, error)
	Exists(name string) bool
}

// DirFS stores files under a directory of the host filesystem.
type DirFS struct{ Root string }

func (d DirFS) path(name string) string { return filepath.Join(d.Root, filepath.Clean("/"+name)) }

func (d DirFS) OpenAppend(name string) (io.WriteCloser, error) {
	p := d.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func (d DirFS) OpenRead(name string) (io.ReadCloser, error) { return os.Open(d.path(name)) }

func (d DirFS) Exists(name string) bool {
	_, err := os.Stat(d.path(name))
	return err == nil
}

// MemFS keeps files in memory. FailOpen forces every open to fail, to model
// an unmounted or worn-out flash.
type MemFS struct {
	mu       sync.Mutex
	files    map[string][]byte
	FailOpen bool
}

func NewMemFS() *MemFS { return &MemFS{files: map[string][]byte{}} }

func (m *MemFS) OpenAppend(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOpen {
		return nil, os.ErrPermission
	}
	if _, ok := m.files[name]; !ok {
		m.files[name] = nil
	}
	return &memWriter{fs: m, name: name}, nil
}

func (m *MemFS) OpenRead(name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOpen {
		return nil, os.ErrPermission
	}
	b, ok := m.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), b...))), nil
}

func (m *MemFS) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok
}

// Bytes returns a copy of a file's content.
func (m *MemFS) Bytes(name string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.files[name]...)
}

type memWriter struct {
	fs   *MemFS
	name string
}

func (w *memWriter) Write(p []byte) (int, error) {
	w.fs.mu.Lock()
	w.fs.files[w.name] = append(w.fs.files[w.name], p...)
	w.fs.mu.Unlock()
	return len(p), nil
}

func (w *memWriter) Close() error { return nil }
