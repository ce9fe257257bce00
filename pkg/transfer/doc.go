/*
Package transfer defines the agent-facing byte movement capabilities
and ships the reference file implementations.

The runtime core consumes three capabilities:

  - SourceProvider enumerates candidate items for a content type and
    opens their byte streams
  - DestinationSink receives streams, checks existence, and deletes
  - Transferor composes the two into one runnable unit per planned
    transfer, driving the progress tracker and honoring cancellation

# File Implementations

FileSource walks a local or mounted tree (NFS/SMB mount, removable
media mountpoint). Refs are root-relative paths; names are relative to
the content type's subtree so destinations mirror the source layout.

FileSink writes through a temp file in the destination directory and
renames into place, so a crashed or cancelled transfer never leaves a
half-written file under the final name. It also implements Opener,
which lets the transferor verify checksums by re-reading.

FileTransferor streams source to sink with:

  - cancellation checks before every read
  - an optional bandwidth cap (golang.org/x/time/rate)
  - SHA-256 computed on the fly, optionally verified against a
    destination re-read; mismatches are integrity errors and the
    corrupt destination is removed
  - completion markers (pkg/storage) consulted to skip items whose
    size is unchanged since the last successful pass

# Error Classes

Missing roots and I/O failures surface as system errors (retryable).
Refs escaping a root are precondition errors. Short writes and
checksum mismatches are integrity errors: not retryable, and the host
raises a critical notification for them.

# Integration Points

This package integrates with:

  - pkg/planner: enumeration feeds plan candidates
  - pkg/service: runs one Transferor per planned transfer through the
    executor
  - pkg/progress: transfers report byte progress to their tracker
  - pkg/storage: markers persist across restarts
*/
package transfer
