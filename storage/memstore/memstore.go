// Package memstore is an in-process persistence adapter and temporary-
// stream factory, used by unit and scenario tests that need no real I/O.
package memstore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/stage"
)

type objectKey struct {
	name    string
	typ     stage.StreamType
	version int
}

// Store implements stage.Persistence by holding every uploaded object's
// bytes in memory, keyed by (name, type, version).
type Store struct {
	mu      sync.Mutex
	objects map[objectKey][]byte
}

func New() *Store {
	return &Store{objects: make(map[objectKey][]byte)}
}

func (s *Store) OpenRead(ctx context.Context, name string, typ stage.StreamType, version int) (rowio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	data := s.objects[objectKey{name, typ, version}]
	s.mu.Unlock()
	cp := append([]byte(nil), data...)
	return newMemStream(cp), nil
}

// Upload takes ownership of stream and closes it before returning,
// regardless of outcome.
func (s *Store) Upload(ctx context.Context, name string, typ stage.StreamType, version int, stream rowio.Stream) (err error) {
	defer func() {
		if cerr := stream.Close(); err == nil {
			err = cerr
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("memstore: seek for upload: %w", err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return fmt.Errorf("memstore: read for upload: %w", err)
	}
	key := objectKey{name, typ, version}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(data) == 0 {
		delete(s.objects, key)
		return nil
	}
	s.objects[key] = data
	return nil
}

// TempFactory is a rowio.TempStreamFactory backed by in-memory buffers.
type TempFactory struct{}

func NewTempFactory() TempFactory { return TempFactory{} }

func (TempFactory) New(label string) (rowio.Stream, error) {
	return newMemStream(nil), nil
}

// memStream is a growable in-memory buffer satisfying rowio.Stream.
type memStream struct {
	buf []byte
	pos int64
}

func newMemStream(data []byte) *memStream { return &memStream{buf: data} }

func (m *memStream) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memStream) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memStream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("memstore: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("memstore: negative seek position %d", abs)
	}
	m.pos = abs
	return abs, nil
}

func (m *memStream) Truncate(size int64) error {
	switch {
	case size < int64(len(m.buf)):
		m.buf = m.buf[:size]
	case size > int64(len(m.buf)):
		grown := make([]byte, size)
		copy(grown, m.buf)
		m.buf = grown
	}
	return nil
}

func (m *memStream) Close() error { return nil }
