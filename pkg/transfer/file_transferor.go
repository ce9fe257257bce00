package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
	"github.com/vladzaharia/dangerprep-sub010/pkg/metrics"
	"github.com/vladzaharia/dangerprep-sub010/pkg/progress"
	"github.com/vladzaharia/dangerprep-sub010/pkg/storage"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// FileTransferorConfig tunes the reference transferor
type FileTransferorConfig struct {
	// BandwidthLimit caps the transfer rate in bytes per second.
	// Zero means unlimited.
	BandwidthLimit int64

	// VerifyChecksum re-reads the written destination and compares
	// SHA-256 sums. Requires a sink that implements Opener.
	VerifyChecksum bool

	// Markers records completions so unchanged items are skipped on
	// later passes. Nil disables skipping.
	Markers storage.Store
}

// FileTransferor streams one planned transfer from a source provider
// into a destination sink, driving the progress tracker by bytes
type FileTransferor struct {
	src     SourceProvider
	sink    DestinationSink
	config  FileTransferorConfig
	limiter *rate.Limiter
}

// NewFileTransferor composes a source and sink into a runnable
// transfer unit
func NewFileTransferor(src SourceProvider, sink DestinationSink, config FileTransferorConfig) *FileTransferor {
	t := &FileTransferor{
		src:    src,
		sink:   sink,
		config: config,
	}
	if config.BandwidthLimit > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(config.BandwidthLimit), int(config.BandwidthLimit))
	}
	return t
}

// Run moves the bytes for one planned transfer. The executor owns the
// tracker's terminal transition; Run only feeds byte progress.
func (t *FileTransferor) Run(ctx context.Context, planned types.PlannedTransfer, tracker *progress.Tracker) error {
	logger := log.WithContentType(planned.ContentType)

	if t.skip(planned) {
		logger.Debug().Str("ref", planned.SourceRef).Msg("Marker present, skipping transfer")
		if tracker != nil {
			tracker.Update(0, planned.EstimatedBytes, planned.Name)
		}
		metrics.TransferFilesTotal.WithLabelValues(planned.ContentType, "skipped").Inc()
		return nil
	}

	src, err := t.src.Fetch(ctx, planned.SourceRef)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", planned.SourceRef, err)
	}
	defer src.Close()

	hasher := sha256.New()
	reader := &meteredReader{
		ctx:     ctx,
		r:       io.TeeReader(src, hasher),
		limiter: t.limiter,
		tracker: tracker,
		name:    planned.Name,
	}

	written, err := t.sink.Write(ctx, planned.DestinationRef, reader)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", planned.DestinationRef, err)
	}

	if planned.EstimatedBytes > 0 && written != planned.EstimatedBytes {
		t.discard(ctx, planned)
		return errdefs.Wrapf(errdefs.ClassIntegrity, errdefs.ErrTruncated,
			"%s: wrote %d of %d bytes", planned.DestinationRef, written, planned.EstimatedBytes)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if t.config.VerifyChecksum {
		if err := t.verify(ctx, planned.DestinationRef, sum); err != nil {
			t.discard(ctx, planned)
			return err
		}
	}

	if t.config.Markers != nil {
		marker := &storage.Marker{
			ContentType: planned.ContentType,
			Ref:         planned.SourceRef,
			SizeBytes:   written,
			Checksum:    sum,
			CompletedAt: time.Now(),
		}
		if err := t.config.Markers.PutMarker(marker); err != nil {
			// The transfer itself succeeded; a lost marker only costs
			// a redundant copy next pass
			logger.Warn().Err(err).Str("ref", planned.SourceRef).Msg("Failed to record marker")
		}
	}

	metrics.TransferBytesTotal.WithLabelValues(planned.ContentType, string(types.DirectionFromSource)).Add(float64(written))
	metrics.TransferFilesTotal.WithLabelValues(planned.ContentType, "completed").Inc()

	logger.Info().
		Str("ref", planned.SourceRef).
		Int64("bytes", written).
		Msg("Transfer completed")
	return nil
}

// skip reports whether a completion marker covers the planned item
// at its current size
func (t *FileTransferor) skip(planned types.PlannedTransfer) bool {
	if t.config.Markers == nil {
		return false
	}
	marker, err := t.config.Markers.GetMarker(planned.ContentType, planned.SourceRef)
	if err != nil || marker == nil {
		return false
	}
	return marker.SizeBytes == planned.EstimatedBytes
}

// verify re-reads the destination and compares checksums
func (t *FileTransferor) verify(ctx context.Context, ref, want string) error {
	opener, ok := t.sink.(Opener)
	if !ok {
		return nil
	}

	rc, err := opener.Open(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to verify %s: %w", ref, err)
	}
	defer rc.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, rc); err != nil {
		return errdefs.Wrapf(errdefs.ClassSystem, err, "failed to verify %s", ref)
	}

	got := hex.EncodeToString(hasher.Sum(nil))
	if got != want {
		return errdefs.Wrapf(errdefs.ClassIntegrity, errdefs.ErrChecksumMismatch,
			"%s: destination %s, source %s", ref, got, want)
	}
	return nil
}

// discard removes a destination whose content failed integrity checks
func (t *FileTransferor) discard(ctx context.Context, planned types.PlannedTransfer) {
	if err := t.sink.Delete(ctx, planned.DestinationRef); err != nil {
		lg := log.WithContentType(planned.ContentType)
		lg.Warn().
			Err(err).
			Str("ref", planned.DestinationRef).
			Msg("Failed to remove corrupt destination")
	}
	metrics.TransferFilesTotal.WithLabelValues(planned.ContentType, "failed").Inc()
}

// meteredReader observes cancellation, applies the bandwidth cap, and
// feeds byte counts into the tracker as the sink drains it
type meteredReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
	tracker *progress.Tracker
	name    string

	total int64
}

func (m *meteredReader) Read(p []byte) (int, error) {
	if m.ctx.Err() != nil {
		return 0, fmt.Errorf("transfer interrupted: %w", errdefs.ErrCanceled)
	}

	n, err := m.r.Read(p)
	if n > 0 {
		m.total += int64(n)
		if m.limiter != nil {
			if werr := m.limiter.WaitN(m.ctx, n); werr != nil {
				return n, fmt.Errorf("transfer interrupted: %w", errdefs.ErrCanceled)
			}
		}
		if m.tracker != nil {
			m.tracker.Update(0, m.total, m.name)
		}
	}
	return n, err
}
