package verdb

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// Codec serializes a typed record set to and from a single byte buffer.
// Implementations operate on the entire table content at once; there is no
// streaming or partial decode.
type Codec[T any] interface {
	Encode(rows []T) ([]byte, error)
	Decode(data []byte) ([]T, error)
}

// Parquet is the production [Codec], storing the record set as one parquet
// buffer with the schema derived from T.
type Parquet[T any] struct{}

// Encode implements [Codec].
func (Parquet[T]) Encode(rows []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return nil, fmt.Errorf("failed to encode parquet: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode implements [Codec].
func (Parquet[T]) Decode(data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode parquet: %w", err)
	}
	return rows, nil
}
