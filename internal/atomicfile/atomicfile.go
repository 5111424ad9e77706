// Package atomicfile provides stream-based atomic-replace writes for the
// lease file and the DUID file, on both Unix and Windows.
//
// See https://github.com/google/renameio/issues/1.
package atomicfile

import (
	"io/fs"

	"github.com/AdguardTeam/golibs/errors"
)

// PendingFile is a file being written that has not yet replaced its target
// path.
type PendingFile interface {
	// Cleanup closes the file and removes it without renaming it into place.
	// Use CloseReplace to close and commit the write.
	Cleanup() (err error)

	// CloseReplace closes the pending file and replaces the destination file
	// with it, possibly atomically.
	//
	// This method is not safe for concurrent use by multiple goroutines.
	CloseReplace() (err error)

	// Write writes len(b) bytes from b to the file.  It returns the number of
	// bytes written and an error, if any.  Write returns a non-nil error when
	// n != len(b).
	Write(b []byte) (n int, err error)
}

// New opens a pending file for filePath with the given permission mode.  The
// caller must call either Cleanup or CloseReplace on the result.
func New(filePath string, mode fs.FileMode) (f PendingFile, err error) {
	return newPendingFile(filePath, mode)
}

// WithDeferredCleanup finalizes a pending file based on the error returned by
// the operation that wrote to it: on a non-nil returned error the file is
// discarded, otherwise it is committed.  Use it as:
//
//	f, err := atomicfile.New(path, mode)
//	if err != nil {
//		return err
//	}
//	defer func() { err = atomicfile.WithDeferredCleanup(err, f) }()
func WithDeferredCleanup(returned error, file PendingFile) (err error) {
	if returned != nil {
		return errors.WithDeferred(returned, file.Cleanup())
	}

	return errors.WithDeferred(nil, file.CloseReplace())
}

// WriteFile writes data to filePath atomically, creating it with mode if it
// does not exist.
func WriteFile(filePath string, data []byte, mode fs.FileMode) (err error) {
	f, err := New(filePath, mode)
	if err != nil {
		return errors.Annotate(err, "opening pending file: %w")
	}
	defer func() { err = WithDeferredCleanup(err, f) }()

	_, err = f.Write(data)
	if err != nil {
		return errors.Annotate(err, "writing pending file: %w")
	}

	return nil
}
