// Package blockbinary implements a block-compressed binary serialization
// adapter: the whole stream is one gob-encoded slice compressed as a
// single zstd block, the complement of gobcolumn's per-row-group framing —
// simpler and cheaper for small streams, at the cost of reading the full
// stream into memory on both Write.Finish and Read.
package blockbinary

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/block/sortedview/pkg/rowio"
)

// Serializer implements rowio.Serializer[T] as a single zstd-compressed gob
// block per stream.
type Serializer[T any] struct{}

func New[T any]() *Serializer[T] { return &Serializer[T]{} }

func (Serializer[T]) Write(stream rowio.Stream) rowio.Writer[T] {
	return &writer[T]{stream: stream}
}

func (Serializer[T]) Read(ctx context.Context, stream rowio.Stream) (rowio.Cursor[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("blockbinary: read stream: %w", err)
	}
	if len(raw) == 0 {
		return rowio.Empty[T](), nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("blockbinary: new zstd reader: %w", err)
	}
	defer dec.Close()
	decompressed, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("blockbinary: decompress block: %w", err)
	}
	var rows []T
	if err := gob.NewDecoder(bytes.NewReader(decompressed)).Decode(&rows); err != nil {
		return nil, fmt.Errorf("blockbinary: decode block: %w", err)
	}
	return rowio.NewSliceCursor(rows), nil
}

// writer accumulates every Add'd batch in memory — a single-block codec has
// no row-group boundary to flush at — and encodes one block on Finish.
type writer[T any] struct {
	stream rowio.Stream
	rows   []T
}

func (w *writer[T]) Add(ctx context.Context, batch []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.rows = append(w.rows, batch...)
	return nil
}

func (w *writer[T]) Finish(context.Context) error {
	if len(w.rows) == 0 {
		_, err := w.stream.Seek(0, io.SeekStart)
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w.rows); err != nil {
		return fmt.Errorf("blockbinary: encode block: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("blockbinary: new zstd writer: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(buf.Bytes(), nil)
	if _, err := w.stream.Write(compressed); err != nil {
		return fmt.Errorf("blockbinary: write block: %w", err)
	}
	_, err = w.stream.Seek(0, io.SeekStart)
	return err
}
