package zipfmt

import "errors"

var (
	// ErrCorruptArchive is returned when a structural signature or consistency check fails.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrTruncatedFile is returned when declared sizes exceed the actual file length.
	ErrTruncatedFile = errors.New("truncated archive")

	// ErrUnsupportedFeature is returned for encrypted entries and container
	// extensions that are not modelled (multi-disk, zip64).
	ErrUnsupportedFeature = errors.New("unsupported archive feature")

	// ErrUndecodableName is returned when a name cannot be decoded under the source encoding.
	ErrUndecodableName = errors.New("undecodable name")

	// ErrUnencodableName is returned when a name cannot be represented in the target encoding.
	ErrUnencodableName = errors.New("unencodable name")

	// ErrIO wraps read, write and rename failures.
	ErrIO = errors.New("i/o error")
)
