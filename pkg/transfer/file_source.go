package transfer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// FileSource enumerates and fetches items from a local or mounted
// directory tree (network file store mount, removable media mount)
type FileSource struct {
	root string
}

// NewFileSource creates a source provider rooted at dir
func NewFileSource(dir string) (*FileSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ClassSystem, err, "source root %s unavailable", dir)
	}
	if !info.IsDir() {
		return nil, errdefs.Newf(errdefs.ClassConfiguration, "source root %s is not a directory", dir)
	}
	return &FileSource{root: filepath.Clean(dir)}, nil
}

// Root returns the source root directory
func (s *FileSource) Root() string {
	return s.root
}

// Enumerate walks the content type's subtree under the source root.
// Item refs are root-relative so Fetch can resolve them; item names
// are relative to the content type's own base so destination layouts
// mirror the source.
func (s *FileSource) Enumerate(ctx context.Context, ct types.ContentType, fn EnumerateFunc) error {
	base := s.baseDir(ct)

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		ref, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}

		return fn(types.Item{
			Ref:        filepath.ToSlash(ref),
			Name:       filepath.ToSlash(name),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("enumeration of %s interrupted: %w", ct.Name, errdefs.ErrCanceled)
		}
		return errdefs.Wrapf(errdefs.ClassSystem, err, "failed to enumerate %s", ct.Name)
	}
	return nil
}

// Fetch opens one enumerated file for reading
func (s *FileSource) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("fetch of %s aborted: %w", ref, errdefs.ErrCanceled)
	}

	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ClassSystem, err, "failed to fetch %s", ref)
	}
	return f, nil
}

// baseDir picks the subtree a content type enumerates: its remote
// path when set, its name otherwise
func (s *FileSource) baseDir(ct types.ContentType) string {
	sub := ct.RemotePath
	if sub == "" {
		sub = ct.Name
	}
	return filepath.Join(s.root, filepath.FromSlash(sub))
}

// resolve maps a root-relative ref onto the filesystem, refusing
// refs that escape the root
func (s *FileSource) resolve(ref string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errdefs.Newf(errdefs.ClassPrecondition, "ref %q escapes source root", ref)
	}
	return path, nil
}
