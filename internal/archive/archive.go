package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Failure kinds surfaced by the Runner. All of them are recoverable and
// user-facing; callers translate them into response messages.
var (
	// ErrNoInputFiles is returned for an empty input set.
	ErrNoInputFiles = errors.New("no input files to archive")
	// ErrUnreadableSource is returned when any source file cannot be opened
	// or read. The whole build aborts rather than producing a partial archive.
	ErrUnreadableSource = errors.New("source file unreadable")
	// ErrWriteFailure is returned when the destination cannot be written.
	ErrWriteFailure = errors.New("archive write failure")
	// ErrAlreadyRunning is returned when a build for the same key is in
	// flight. The second trigger is rejected, never queued.
	ErrAlreadyRunning = errors.New("archive job already running")
)

// Entry is one source file to include in the archive. Name becomes the ZIP
// entry name as-is; name collisions must be resolved by the caller before
// invocation. Open must yield the file's bytes; it is called exactly once.
type Entry struct {
	Name string
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// Result describes a successfully written artifact.
type Result struct {
	Path    string
	Size    int64
	Entries int
}

// Runner builds ZIP artifacts from sets of source files. At most one build
// per key runs at a time; it is safe for concurrent use.
type Runner struct {
	locks *keyedLock
}

// NewRunner creates a Runner with its own lock table.
func NewRunner() *Runner {
	return &Runner{locks: newKeyedLock()}
}

// Run builds a ZIP at target containing the given entries in order.
//
// The build is atomic from the caller's perspective: bytes are written to a
// temporary sibling path and renamed into place only after a clean close, so
// a concurrent reader of target never observes a truncated artifact and a
// failed run leaves any prior artifact untouched.
func (r *Runner) Run(ctx context.Context, key string, entries []Entry, target string) (Result, error) {
	if len(entries) == 0 {
		return Result{}, ErrNoInputFiles
	}
	if !r.locks.tryAcquire(key) {
		return Result{}, fmt.Errorf("%w: key %q", ErrAlreadyRunning, key)
	}
	defer r.locks.release(key)

	return buildZip(ctx, entries, target)
}

// buildZip writes the archive to target via a temporary file. On any failure
// the temporary file is removed and target is left as it was.
func buildZip(ctx context.Context, entries []Entry, target string) (Result, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Result{}, fmt.Errorf("%w: create artifact dir: %v", ErrWriteFailure, err)
	}

	tmp := target + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return Result{}, fmt.Errorf("%w: create temp artifact: %v", ErrWriteFailure, err)
	}

	cleanup := func() {
		f.Close()
		os.Remove(tmp)
	}

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			cleanup()
			return Result{}, fmt.Errorf("%w: entry %s: %v", ErrWriteFailure, e.Name, err)
		}
		src, err := e.Open(ctx)
		if err != nil {
			cleanup()
			return Result{}, fmt.Errorf("%w: %s: %v", ErrUnreadableSource, e.Name, err)
		}
		_, err = io.Copy(w, src)
		src.Close()
		if err != nil {
			cleanup()
			return Result{}, fmt.Errorf("%w: %s: %v", ErrUnreadableSource, e.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		cleanup()
		return Result{}, fmt.Errorf("%w: finalize archive: %v", ErrWriteFailure, err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return Result{}, fmt.Errorf("%w: sync artifact: %v", ErrWriteFailure, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return Result{}, fmt.Errorf("%w: close artifact: %v", ErrWriteFailure, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return Result{}, fmt.Errorf("%w: publish artifact: %v", ErrWriteFailure, err)
	}

	st, err := os.Stat(target)
	if err != nil {
		return Result{}, fmt.Errorf("%w: stat artifact: %v", ErrWriteFailure, err)
	}
	return Result{Path: target, Size: st.Size(), Entries: len(entries)}, nil
}
