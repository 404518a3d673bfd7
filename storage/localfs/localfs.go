// Package localfs is a one-file-per-(name,type,version) persistence
// adapter and a real-file temporary-stream factory, for cmd/viewctl and
// integration tests that want durable, inspectable state.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/stage"
)

// Store implements stage.Persistence against the local filesystem.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store { return &Store{baseDir: baseDir} }

func (s *Store) objectPath(name string, typ stage.StreamType, version int) string {
	return filepath.Join(s.baseDir, sanitize(name), typ.String(), fmt.Sprintf("%d.bin", version))
}

// OpenRead returns an empty stream, not an error, when the object has never
// been uploaded (version 0, or any other missing version).
func (s *Store) OpenRead(ctx context.Context, name string, typ stage.StreamType, version int) (rowio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.objectPath(name, typ, version)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			tmp, terr := os.CreateTemp("", "sortedview-empty-*")
			if terr != nil {
				return nil, fmt.Errorf("localfs: create empty placeholder: %w", terr)
			}
			return &fileStream{f: tmp, removeOnClose: true}, nil
		}
		return nil, fmt.Errorf("localfs: open %s: %w", path, err)
	}
	return &fileStream{f: f}, nil
}

// Upload persists stream's full contents, or deletes any existing object
// when stream is empty. The stream is closed before Upload returns,
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
	path := s.objectPath(name, typ, version)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("localfs: mkdir for %s: %w", path, err)
	}
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("localfs: seek for upload: %w", err)
	}

	tmpPath := path + ".upload"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("localfs: create %s: %w", tmpPath, err)
	}
	n, copyErr := io.Copy(out, stream)
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("localfs: write %s: %w", path, copyErr)
	}
	if n == 0 {
		os.Remove(tmpPath)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("localfs: remove %s: %w", path, err)
		}
		return nil
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("localfs: rename %s: %w", path, err)
	}
	return nil
}

// TempFactory is a rowio.TempStreamFactory backed by real temp files under
// dir (os.TempDir() when dir is empty).
type TempFactory struct {
	dir string
}

func NewTempFactory(dir string) TempFactory { return TempFactory{dir: dir} }

func (t TempFactory) New(label string) (rowio.Stream, error) {
	f, err := os.CreateTemp(t.dir, sanitize(label)+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("localfs: create temp stream %q: %w", label, err)
	}
	return &fileStream{f: f, removeOnClose: true}, nil
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(s)
}

type fileStream struct {
	f             *os.File
	removeOnClose bool
}

func (s *fileStream) Read(p []byte) (int, error)  { return s.f.Read(p) }
func (s *fileStream) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s *fileStream) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}
func (s *fileStream) Truncate(size int64) error { return s.f.Truncate(size) }

func (s *fileStream) Close() error {
	name := s.f.Name()
	err := s.f.Close()
	if s.removeOnClose {
		if rerr := os.Remove(name); err == nil {
			err = rerr
		}
	}
	return err
}
