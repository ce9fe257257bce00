package transfer

import (
	"context"
	"io"

	"github.com/vladzaharia/dangerprep-sub010/pkg/progress"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// EnumerateFunc receives one enumerated item. Returning an error
// stops the enumeration and propagates to the caller.
type EnumerateFunc func(item types.Item) error

// SourceProvider enumerates and fetches items for a content type.
// Enumerations are finite and non-restartable per call; failures
// propagate as classified errors.
type SourceProvider interface {
	// Enumerate walks the candidates for a content type, calling fn
	// once per item. It must observe ctx between items.
	Enumerate(ctx context.Context, ct types.ContentType, fn EnumerateFunc) error

	// Fetch opens the byte stream for one item ref. The caller closes
	// the stream.
	Fetch(ctx context.Context, ref string) (io.ReadCloser, error)
}

// DestinationSink receives transferred bytes. All operations are
// cancellable through ctx.
type DestinationSink interface {
	// Write streams r into the destination at ref and returns the
	// bytes written
	Write(ctx context.Context, ref string, r io.Reader) (int64, error)

	// Exists reports whether a destination ref is already present
	Exists(ctx context.Context, ref string) (bool, error)

	// Delete removes a destination ref
	Delete(ctx context.Context, ref string) error
}

// Opener is an optional sink capability: re-reading written content
// for checksum verification. Sinks that cannot read back simply skip
// verification.
type Opener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Transferor moves the bytes for one planned transfer. It must drive
// the supplied tracker and honor ctx at its suspension points. The
// executor owns the tracker's terminal transition.
type Transferor interface {
	Run(ctx context.Context, planned types.PlannedTransfer, tracker *progress.Tracker) error
}
