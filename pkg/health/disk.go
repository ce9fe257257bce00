package health

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DiskProbe checks free space on the filesystem holding a path.
// Appliances fill their content partitions routinely, so this probe
// usually guards the sync destination root.
type DiskProbe struct {
	// Path is any path on the filesystem to inspect
	Path string

	// MinFreeBytes marks the component down when the available space
	// falls below it. Zero disables the check.
	MinFreeBytes uint64

	// WarnFreeBytes marks the component degraded below this threshold.
	// Zero disables the check.
	WarnFreeBytes uint64
}

// NewDiskProbe creates a disk space probe for the given path
func NewDiskProbe(path string, minFree, warnFree uint64) *DiskProbe {
	return &DiskProbe{Path: path, MinFreeBytes: minFree, WarnFreeBytes: warnFree}
}

// Check inspects the filesystem, reporting free and total bytes
func (p *DiskProbe) Check(_ context.Context) Result {
	if _, err := os.Stat(p.Path); err != nil {
		return Result{Status: StatusDown, Message: fmt.Sprintf("path unavailable: %v", err)}
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(p.Path, &stat); err != nil {
		return Result{Status: StatusDown, Message: fmt.Sprintf("statfs failed: %v", err)}
	}

	free := stat.Bavail * uint64(stat.Bsize)
	total := stat.Blocks * uint64(stat.Bsize)
	details := map[string]interface{}{
		"free_bytes":  free,
		"total_bytes": total,
	}

	if p.MinFreeBytes > 0 && free < p.MinFreeBytes {
		return Result{
			Status:  StatusDown,
			Message: fmt.Sprintf("only %d bytes free, need %d", free, p.MinFreeBytes),
			Details: details,
		}
	}
	if p.WarnFreeBytes > 0 && free < p.WarnFreeBytes {
		return Result{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("%d bytes free, below warning threshold %d", free, p.WarnFreeBytes),
			Details: details,
		}
	}
	return Result{Status: StatusUp, Details: details}
}

// WritableProbe verifies a directory accepts writes by creating and
// removing a canary file. Catches read-only remounts that free-space
// checks miss.
type WritableProbe struct {
	// Dir is the directory to test
	Dir string
}

// NewWritableProbe creates a write access probe for the given directory
func NewWritableProbe(dir string) *WritableProbe {
	return &WritableProbe{Dir: dir}
}

// Check writes and removes a canary file in the directory
func (p *WritableProbe) Check(_ context.Context) Result {
	f, err := os.CreateTemp(p.Dir, ".healthcheck-*")
	if err != nil {
		return Result{Status: StatusDown, Message: fmt.Sprintf("directory not writable: %v", err)}
	}
	name := f.Name()
	_, werr := f.WriteString("ok")
	cerr := f.Close()
	if rerr := os.Remove(name); rerr != nil && werr == nil && cerr == nil {
		return Result{Status: StatusDegraded, Message: fmt.Sprintf("canary remove failed: %v", rerr)}
	}
	if werr != nil {
		return Result{Status: StatusDown, Message: fmt.Sprintf("write failed: %v", werr)}
	}
	if cerr != nil {
		return Result{Status: StatusDown, Message: fmt.Sprintf("close failed: %v", cerr)}
	}
	return Result{Status: StatusUp}
}
