// Package datasource abstracts where raw table files come from. The load
// engine consumes any Source; the file subpackage provides the local-disk
// implementation used for OULAD extracts.
package datasource

import (
	"context"
	"io"
)

// Source yields the raw bytes of one table file.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
