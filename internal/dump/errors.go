package dump

import "errors"

var (
	// ErrIO is returned when the dump file cannot be opened or stat'ed.
	ErrIO = errors.New("dump: io error")
	// ErrEmptyFile is returned for zero-length files.
	ErrEmptyFile = errors.New("dump: empty file")
	// ErrMapFailed is returned when memory-mapping the file fails.
	ErrMapFailed = errors.New("dump: mmap failed")
	// ErrTruncatedHeader is returned when the file is shorter than the header.
	ErrTruncatedHeader = errors.New("dump: truncated header")
	// ErrTruncatedBody is returned when the file size disagrees with the header.
	ErrTruncatedBody = errors.New("dump: truncated body")
	// ErrInvalidHeader is returned when header fields are inconsistent with each other.
	ErrInvalidHeader = errors.New("dump: invalid header")
	// ErrInvalidInput is returned by the writer for malformed vectors or hashes.
	ErrInvalidInput = errors.New("dump: invalid input")
)

// IsFormatError reports whether err means the file exists but its contents are corrupt.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrTruncatedHeader) ||
		errors.Is(err, ErrTruncatedBody) ||
		errors.Is(err, ErrInvalidHeader)
}
