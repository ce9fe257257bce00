package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
)

// FileSink writes transferred items into a local directory tree.
// Writes go to a temp file in the destination directory and are
// renamed into place, so readers never observe partial content.
type FileSink struct {
	root string
}

// NewFileSink creates a destination sink rooted at dir, creating it
// when absent
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errdefs.Wrapf(errdefs.ClassSystem, err, "failed to create sink root %s", dir)
	}
	return &FileSink{root: filepath.Clean(dir)}, nil
}

// Root returns the sink root directory
func (s *FileSink) Root() string {
	return s.root
}

// Write streams r into ref atomically and returns the bytes written
func (s *FileSink) Write(ctx context.Context, ref string, r io.Reader) (int64, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errdefs.Wrapf(errdefs.ClassSystem, err, "failed to create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".syncd-*.partial")
	if err != nil {
		return 0, errdefs.Wrapf(errdefs.ClassSystem, err, "failed to create temp file in %s", dir)
	}
	tmpPath := tmp.Name()

	written, err := copyContext(ctx, tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return written, err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return written, errdefs.Wrapf(errdefs.ClassSystem, err, "failed to sync %s", ref)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return written, errdefs.Wrapf(errdefs.ClassSystem, err, "failed to close %s", ref)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return written, errdefs.Wrapf(errdefs.ClassSystem, err, "failed to place %s", ref)
	}

	return written, nil
}

// Exists reports whether ref is present
func (s *FileSink) Exists(_ context.Context, ref string) (bool, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errdefs.Wrapf(errdefs.ClassSystem, err, "failed to stat %s", ref)
}

// Delete removes ref. Deleting an absent ref is not an error.
func (s *FileSink) Delete(_ context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errdefs.Wrapf(errdefs.ClassSystem, err, "failed to delete %s", ref)
	}
	return nil
}

// Open re-reads written content for checksum verification
func (s *FileSink) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ClassSystem, err, "failed to open %s", ref)
	}
	return f, nil
}

// resolve maps a ref onto the filesystem, refusing refs that escape
// the root
func (s *FileSink) resolve(ref string) (string, error) {
	if ref == "" {
		return "", errdefs.New(errdefs.ClassPrecondition, "empty destination ref")
	}
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errdefs.Newf(errdefs.ClassPrecondition, "ref %q escapes sink root", ref)
	}
	return path, nil
}

// copyContext copies r into w in chunks, observing ctx before each
// read
func copyContext(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, 128<<10)
	var written int64

	for {
		if ctx.Err() != nil {
			return written, fmt.Errorf("write interrupted: %w", errdefs.ErrCanceled)
		}

		n, err := r.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, errdefs.Wrapf(errdefs.ClassSystem, werr, "write failed")
			}
			if wn != n {
				return written, errdefs.Wrap(errdefs.ClassSystem, io.ErrShortWrite)
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
