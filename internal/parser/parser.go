package parser

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ossyrian/runzip/internal/zipfmt"
)

// DefaultMaxArchiveSize is the largest archive the 32-bit record layout can address.
const DefaultMaxArchiveSize int64 = 0xFFFFFFFF

// ZipReader reads the structural metadata of a zip archive.
// Payload bytes are never read, only their byte ranges are recorded.
type ZipReader struct {
	file    io.ReadSeeker
	logger  *slog.Logger
	maxSize int64 // archives larger than this are rejected, 0 disables the check

	size int64             // length of the source, set by ReadEndRecord
	end  *zipfmt.EndRecord // end of central directory record
}

// NewZipReader creates a reader over file. A nil logger discards output.
func NewZipReader(file io.ReadSeeker, logger *slog.Logger, maxSize int64) *ZipReader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ZipReader{
		file:    file,
		logger:  logger,
		maxSize: maxSize,
	}
}

// ReadEndRecord locates and decodes the end of central directory record.
//
// The record is searched backwards from EOF within the maximum comment
// length. A comment may itself contain the signature, so the last match
// whose comment length ends exactly at EOF is preferred; failing that, the
// last match whose record fits inside the file is used.
func (r *ZipReader) ReadEndRecord() (*zipfmt.EndRecord, error) {
	size, err := r.file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to determine archive size: %w", zipfmt.ErrIO, err)
	}
	r.size = size

	if r.maxSize > 0 && size > r.maxSize {
		return nil, fmt.Errorf("%w: archive size %d exceeds limit %d", zipfmt.ErrUnsupportedFeature, size, r.maxSize)
	}
	if size < zipfmt.EndOfCentralDirLen {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", zipfmt.ErrCorruptArchive, size)
	}

	window := min(size, int64(zipfmt.EndOfCentralDirSearchLimit))
	start := size - window
	if _, err := r.file.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: failed to seek to end record search window: %w", zipfmt.ErrIO, err)
	}
	buf := make([]byte, window)
	if _, err := io.ReadFull(r.file, buf); err != nil {
		return nil, fmt.Errorf("%w: failed to read end record search window: %w", zipfmt.ErrIO, err)
	}

	var fallback *zipfmt.EndRecord
	for p := len(buf) - zipfmt.EndOfCentralDirLen; p >= 0; p-- {
		if binary.LittleEndian.Uint32(buf[p:p+4]) != zipfmt.EndOfCentralDirSignature {
			continue
		}

		rec := zipfmt.ParseEndRecord(buf[p:])
		rec.Offset = start + int64(p)

		if rec.ExactCommentSpan {
			r.end = &rec
			break
		}
		if fallback == nil && p+zipfmt.EndOfCentralDirLen+int(rec.CommentLen) <= len(buf) {
			fallback = &rec
		}
	}
	if r.end == nil {
		r.end = fallback
	}
	if r.end == nil {
		return nil, fmt.Errorf("%w: end of central directory signature not found", zipfmt.ErrCorruptArchive)
	}

	if !r.end.ExactCommentSpan {
		r.logger.Warn("end record does not reach end of file",
			"end_offset", r.end.Offset,
			"trailing_bytes", size-r.end.Offset-zipfmt.EndOfCentralDirLen-int64(r.end.CommentLen),
		)
	}

	r.logger.Debug("found end record",
		"offset", r.end.Offset,
		"entries", r.end.TotalEntries,
		"dir_offset", r.end.DirOffset,
		"dir_size", r.end.DirSize,
		"comment_len", r.end.CommentLen,
	)

	return r.end, r.validateEndRecord()
}

// validateEndRecord checks the end record against the file layout.
func (r *ZipReader) validateEndRecord() error {
	end := r.end

	if end.DiskNumber != 0 || end.DirDisk != 0 {
		return fmt.Errorf("%w: multi-disk archive (disk %d, directory disk %d)",
			zipfmt.ErrUnsupportedFeature, end.DiskNumber, end.DirDisk)
	}

	hasLocator, err := r.hasZip64Locator()
	if err != nil {
		return err
	}
	if hasLocator {
		return fmt.Errorf("%w: zip64 end of central directory", zipfmt.ErrUnsupportedFeature)
	}

	if end.EntriesOnDisk != end.TotalEntries {
		return fmt.Errorf("%w: entries on disk (%d) differ from total entries (%d)",
			zipfmt.ErrCorruptArchive, end.EntriesOnDisk, end.TotalEntries)
	}

	dirEnd := int64(end.DirOffset) + int64(end.DirSize)
	if dirEnd > r.size {
		return fmt.Errorf("%w: central directory [%d, %d) exceeds file length %d",
			zipfmt.ErrTruncatedFile, end.DirOffset, dirEnd, r.size)
	}
	if dirEnd > end.Offset {
		return fmt.Errorf("%w: central directory [%d, %d) overlaps end record at %d",
			zipfmt.ErrCorruptArchive, end.DirOffset, dirEnd, end.Offset)
	}

	return nil
}

// hasZip64Locator reports whether a zip64 locator precedes the end record.
func (r *ZipReader) hasZip64Locator() (bool, error) {
	pos := r.end.Offset - zipfmt.Zip64LocatorLen
	if pos < 0 {
		return false, nil
	}
	if _, err := r.file.Seek(pos, io.SeekStart); err != nil {
		return false, fmt.Errorf("%w: failed to seek to zip64 locator: %w", zipfmt.ErrIO, err)
	}
	var sig uint32
	if err := binary.Read(r.file, binary.LittleEndian, &sig); err != nil {
		return false, fmt.Errorf("%w: failed to read zip64 locator: %w", zipfmt.ErrIO, err)
	}
	return sig == zipfmt.Zip64EndOfCentralDirLocatorSignature, nil
}

// ReadDir parses exactly the declared number of central directory entries.
// ReadEndRecord must have been called first.
func (r *ZipReader) ReadDir() ([]zipfmt.EntryRecord, error) {
	if r.end == nil {
		return nil, errors.New("end record has not been read")
	}
	end := r.end

	if _, err := r.file.Seek(int64(end.DirOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: failed to seek to central directory: %w", zipfmt.ErrIO, err)
	}
	dir := bufio.NewReader(io.LimitReader(r.file, int64(end.DirSize)))

	r.logger.Debug("reading directory entries",
		"entry_count", end.TotalEntries,
	)

	entries := make([]zipfmt.EntryRecord, 0, end.TotalEntries)
	var consumed int64

	for i := 0; i < int(end.TotalEntries); i++ {
		entry, err := zipfmt.ReadCentralDirEntry(dir)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: entry %d runs past the declared directory size %d",
					zipfmt.ErrCorruptArchive, i, end.DirSize)
			}
			return nil, fmt.Errorf("failed to read entry %d: %w", i, err)
		}
		consumed += int64(zipfmt.CentralDirectoryLen + len(entry.Name) + len(entry.Extra) + len(entry.Comment))

		if err := r.validateEntry(i, &entry); err != nil {
			return nil, err
		}

		r.logger.Debug("read directory entry",
			"index", i,
			"name_len", len(entry.Name),
			"flags", entry.Flags,
			"method", entry.Method,
			"compressed_size", entry.CompressedSize,
			"offset", entry.LocalHeaderOffset,
		)

		entries = append(entries, entry)
	}

	if leftover := int64(end.DirSize) - consumed; leftover > 0 {
		sig, err := dir.Peek(4)
		if err != nil || binary.LittleEndian.Uint32(sig) != zipfmt.DigitalSignatureSignature {
			return nil, fmt.Errorf("%w: %d unparsed directory bytes after %d entries",
				zipfmt.ErrCorruptArchive, leftover, len(entries))
		}
	}

	r.logger.Debug("read directory",
		"entry_count", len(entries),
	)

	return entries, nil
}

// validateEntry rejects entries this tool cannot rewrite safely.
func (r *ZipReader) validateEntry(i int, e *zipfmt.EntryRecord) error {
	if e.IsEncrypted() || e.Flags&zipfmt.FlagMaskedHeaders != 0 {
		return fmt.Errorf("%w: entry %d is encrypted", zipfmt.ErrUnsupportedFeature, i)
	}
	if e.CompressedSize == 0xFFFFFFFF || e.UncompressedSize == 0xFFFFFFFF || e.LocalHeaderOffset == 0xFFFFFFFF {
		return fmt.Errorf("%w: entry %d uses zip64 sizes", zipfmt.ErrUnsupportedFeature, i)
	}
	if e.DiskNumberStart != 0 {
		return fmt.Errorf("%w: entry %d starts on disk %d", zipfmt.ErrUnsupportedFeature, i, e.DiskNumberStart)
	}

	payloadEnd := e.LocalHeaderOffset + zipfmt.LocalFileHeaderLen + int64(e.CompressedSize)
	if payloadEnd > r.size {
		return fmt.Errorf("%w: entry %d declares data up to %d, file length is %d",
			zipfmt.ErrTruncatedFile, i, payloadEnd, r.size)
	}
	if payloadEnd > int64(r.end.DirOffset) {
		return fmt.Errorf("%w: entry %d data overlaps the central directory", zipfmt.ErrCorruptArchive, i)
	}

	return nil
}

// Parse reads the end record and central directory of file into a ContainerModel.
func Parse(file io.ReadSeeker, logger *slog.Logger, maxSize int64) (*zipfmt.ContainerModel, error) {
	reader := NewZipReader(file, logger, maxSize)

	end, err := reader.ReadEndRecord()
	if err != nil {
		return nil, err
	}

	entries, err := reader.ReadDir()
	if err != nil {
		return nil, err
	}

	if len(entries) != int(end.TotalEntries) {
		return nil, fmt.Errorf("%w: read %d entries, end record declares %d",
			zipfmt.ErrCorruptArchive, len(entries), end.TotalEntries)
	}

	reader.logger.Info("scanned archive",
		"entries", len(entries),
		"dir_offset", end.DirOffset,
		"dir_size", end.DirSize,
	)

	return &zipfmt.ContainerModel{
		Entries:    entries,
		Comment:    end.Comment,
		EntryCount: int(end.TotalEntries),
		DirOffset:  int64(end.DirOffset),
		DirSize:    int64(end.DirSize),
		EndOffset:  end.Offset,
		Size:       reader.size,
	}, nil
}
