// Package gobcolumn implements a row-group-paginated serialization adapter:
// each Add call becomes one zstd-compressed gob frame, length-prefixed so
// Read can stream frames back one row group at a time instead of
// materializing the whole stream.
package gobcolumn

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/block/sortedview/pkg/rowio"
)

// Serializer implements rowio.Serializer[T] for any gob-encodable T.
type Serializer[T any] struct{}

// New returns a gobcolumn serializer for T. The zero value is also usable;
// New exists for symmetry with this codebase's other NewX() constructors.
func New[T any]() *Serializer[T] { return &Serializer[T]{} }

func (Serializer[T]) Write(stream rowio.Stream) rowio.Writer[T] {
	return &writer[T]{stream: stream}
}

func (Serializer[T]) Read(ctx context.Context, stream rowio.Stream) (rowio.Cursor[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("gobcolumn: new zstd reader: %w", err)
	}
	c := &readCursor[T]{stream: stream, dec: dec}
	if err := c.loadNextGroup(); err != nil {
		dec.Close()
		return nil, err
	}
	return c, nil
}

type writer[T any] struct {
	stream rowio.Stream
}

// Add writes one row group as a single length-prefixed, zstd-compressed gob
// frame.
func (w *writer[T]) Add(ctx context.Context, batch []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(batch); err != nil {
		return fmt.Errorf("gobcolumn: encode row group: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("gobcolumn: new zstd writer: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(buf.Bytes(), nil)

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(compressed)))
	if _, err := w.stream.Write(header[:]); err != nil {
		return fmt.Errorf("gobcolumn: write frame header: %w", err)
	}
	if _, err := w.stream.Write(compressed); err != nil {
		return fmt.Errorf("gobcolumn: write frame: %w", err)
	}
	return nil
}

// Finish repositions the stream to 0 so it can be reopened for reading
// without the caller needing to know the encoding.
func (w *writer[T]) Finish(context.Context) error {
	_, err := w.stream.Seek(0, io.SeekStart)
	return err
}

type readCursor[T any] struct {
	stream rowio.Stream
	dec    *zstd.Decoder

	group []T
	pos   int
	eof   bool
}

func (c *readCursor[T]) loadNextGroup() error {
	c.group = nil
	c.pos = 0

	var header [4]byte
	if _, err := io.ReadFull(c.stream, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			c.eof = true
			return nil
		}
		return fmt.Errorf("gobcolumn: read frame header: %w", err)
	}
	n := binary.BigEndian.Uint32(header[:])
	compressed := make([]byte, n)
	if _, err := io.ReadFull(c.stream, compressed); err != nil {
		return fmt.Errorf("gobcolumn: read frame: %w", err)
	}
	raw, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("gobcolumn: decompress frame: %w", err)
	}
	var batch []T
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&batch); err != nil {
		return fmt.Errorf("gobcolumn: decode frame: %w", err)
	}
	c.group = batch
	if len(c.group) == 0 {
		return c.loadNextGroup()
	}
	return nil
}

func (c *readCursor[T]) Valid() bool { return !c.eof && c.pos < len(c.group) }

func (c *readCursor[T]) Value() T {
	var zero T
	if !c.Valid() {
		return zero
	}
	return c.group[c.pos]
}

func (c *readCursor[T]) Next() error {
	c.pos++
	if c.pos >= len(c.group) && !c.eof {
		return c.loadNextGroup()
	}
	return nil
}

// Close releases the decoder only; stream belongs to whoever opened it.
func (c *readCursor[T]) Close() error {
	c.dec.Close()
	return nil
}
