// Package rewriter regenerates an archive with new names, copying every
// payload byte range from the source unchanged.
package rewriter

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ossyrian/runzip/internal/convert"
	"github.com/ossyrian/runzip/internal/zipfmt"
)

const (
	copyBufferSize = 64 * 1024
	maxOffset      = 0xFFFFFFFF
)

// countingWriter tracks the absolute output position
type countingWriter struct {
	dest io.Writer
	n    int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.dest.Write(p)
	w.n += int64(n)
	return n, err
}

// Result describes the layout of a rewritten archive.
type Result struct {
	Offsets   []int64 // new local header offset per entry
	DirOffset int64
	DirSize   int64
	Size      int64
}

// Writer rewrites one archive. It is not safe for concurrent use.
type Writer struct {
	src    io.ReadSeeker
	in     *bufio.Reader
	out    *bufio.Writer
	cw     *countingWriter
	logger *slog.Logger
}

// NewWriter creates a Writer copying from src into dst. A nil logger discards output.
func NewWriter(src io.ReadSeeker, dst io.Writer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cw := &countingWriter{dest: dst}
	return &Writer{
		src:    src,
		in:     bufio.NewReaderSize(src, copyBufferSize),
		out:    bufio.NewWriterSize(cw, copyBufferSize),
		cw:     cw,
		logger: logger,
	}
}

// Rewrite writes a complete archive for model with the names, comments and
// flags from plans (one per entry, in directory order) and the given
// archive comment.
func Rewrite(ctx context.Context, src io.ReadSeeker, model *zipfmt.ContainerModel, plans []convert.Plan, comment []byte, dst io.Writer, logger *slog.Logger) (*Result, error) {
	return NewWriter(src, dst, logger).Rewrite(ctx, model, plans, comment)
}

// Rewrite performs the rewrite. See the package-level Rewrite.
func (w *Writer) Rewrite(ctx context.Context, model *zipfmt.ContainerModel, plans []convert.Plan, comment []byte) (*Result, error) {
	if len(plans) != len(model.Entries) {
		return nil, fmt.Errorf("got %d plans for %d entries", len(plans), len(model.Entries))
	}
	if len(comment) > zipfmt.MaxCommentLen {
		return nil, fmt.Errorf("%w: archive comment is %d bytes", zipfmt.ErrUnencodableName, len(comment))
	}

	if err := w.copyPrefix(model); err != nil {
		return nil, err
	}

	res := &Result{Offsets: make([]int64, len(model.Entries))}
	for i := range model.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		offset, err := w.writeEntry(i, &model.Entries[i], &plans[i])
		if err != nil {
			return nil, err
		}
		res.Offsets[i] = offset
	}

	res.DirOffset = w.position()
	if res.DirOffset > maxOffset {
		return nil, fmt.Errorf("%w: central directory would start beyond 4 GiB", zipfmt.ErrUnsupportedFeature)
	}
	for i := range model.Entries {
		if err := w.writeDirEntry(&model.Entries[i], &plans[i], res.Offsets[i]); err != nil {
			return nil, err
		}
	}
	res.DirSize = w.position() - res.DirOffset
	if res.DirSize > maxOffset || res.DirOffset+res.DirSize > maxOffset {
		return nil, fmt.Errorf("%w: central directory would end beyond 4 GiB", zipfmt.ErrUnsupportedFeature)
	}

	end := zipfmt.EncodeEndRecord(len(model.Entries), uint32(res.DirSize), uint32(res.DirOffset), comment)
	if err := w.write(end); err != nil {
		return nil, err
	}
	if err := w.out.Flush(); err != nil {
		return nil, fmt.Errorf("%w: failed to flush output: %w", zipfmt.ErrIO, err)
	}
	res.Size = w.cw.n

	w.logger.Debug("rewrote archive",
		"entries", len(model.Entries),
		"dir_offset", res.DirOffset,
		"dir_size", res.DirSize,
		"size", res.Size,
	)

	return res, nil
}

// copyPrefix copies any bytes before the first local header, such as a
// self-extractor stub, so they stay in front of the entries.
func (w *Writer) copyPrefix(model *zipfmt.ContainerModel) error {
	first := model.DirOffset
	for i := range model.Entries {
		first = min(first, model.Entries[i].LocalHeaderOffset)
	}
	if first == 0 {
		return nil
	}

	w.logger.Debug("copying data before first entry", "bytes", first)
	if err := w.seek(0); err != nil {
		return err
	}
	return w.copyN(first, "archive prefix")
}

// writeEntry writes the local header and payload of one entry and returns
// the offset the header was written at.
func (w *Writer) writeEntry(i int, e *zipfmt.EntryRecord, p *convert.Plan) (int64, error) {
	offset := w.position()
	if offset > maxOffset {
		return 0, fmt.Errorf("%w: entry %d would start beyond 4 GiB", zipfmt.ErrUnsupportedFeature, i)
	}
	if len(p.Name) > zipfmt.MaxNameLen {
		return 0, fmt.Errorf("%w: entry %d name is %d bytes", zipfmt.ErrUnencodableName, i, len(p.Name))
	}

	if err := w.seek(e.LocalHeaderOffset); err != nil {
		return 0, err
	}
	lh, err := zipfmt.ReadLocalHeader(w.in)
	if err != nil {
		return 0, sourceError(fmt.Sprintf("local header of entry %d", i), err)
	}

	// only the marker bit follows the plan, the rest stays as stored
	lh.Flags = lh.Flags&^zipfmt.FlagUTF8 | p.Flags&zipfmt.FlagUTF8

	if err := w.write(lh.Encode(p.Name)); err != nil {
		return 0, err
	}
	if err := w.copyN(int64(e.CompressedSize), fmt.Sprintf("payload of entry %d", i)); err != nil {
		return 0, err
	}
	if lh.Flags&zipfmt.FlagDataDescriptor != 0 {
		if err := w.copyDataDescriptor(i); err != nil {
			return 0, err
		}
	}

	w.logger.Debug("wrote entry",
		"index", i,
		"old_offset", e.LocalHeaderOffset,
		"new_offset", offset,
		"renamed", p.Renamed,
	)

	return offset, nil
}

// copyDataDescriptor copies the descriptor that follows a streamed payload.
// The signature is optional, so its presence decides the length.
func (w *Writer) copyDataDescriptor(i int) error {
	n := int64(zipfmt.DataDescriptorLen)
	sig, err := w.in.Peek(4)
	if err != nil {
		return sourceError(fmt.Sprintf("data descriptor of entry %d", i), err)
	}
	if binary.LittleEndian.Uint32(sig) == zipfmt.DataDescriptorSignature {
		n = zipfmt.DataDescriptorWithSigLen
	}
	return w.copyN(n, fmt.Sprintf("data descriptor of entry %d", i))
}

func (w *Writer) writeDirEntry(e *zipfmt.EntryRecord, p *convert.Plan, offset int64) error {
	if len(p.Comment) > zipfmt.MaxCommentLen {
		return fmt.Errorf("%w: entry comment is %d bytes", zipfmt.ErrUnencodableName, len(p.Comment))
	}
	rec := *e
	rec.LocalHeaderOffset = offset
	rec.Name = p.Name
	rec.Comment = p.Comment
	rec.Flags = p.Flags
	return w.write(rec.EncodeCentralDir())
}

func (w *Writer) position() int64 {
	return w.cw.n + int64(w.out.Buffered())
}

func (w *Writer) seek(offset int64) error {
	if _, err := w.src.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("%w: failed to seek source to %d: %w", zipfmt.ErrIO, offset, err)
	}
	w.in.Reset(w.src)
	return nil
}

func (w *Writer) write(b []byte) error {
	if _, err := w.out.Write(b); err != nil {
		return fmt.Errorf("%w: failed to write output: %w", zipfmt.ErrIO, err)
	}
	return nil
}

// copyN copies n bytes from the source to the output.
func (w *Writer) copyN(n int64, what string) error {
	written, err := io.CopyN(w.out, w.in, n)
	if err != nil {
		if written < n && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
			return fmt.Errorf("%w: source ended after %d of %d bytes of %s", zipfmt.ErrCorruptArchive, written, n, what)
		}
		return fmt.Errorf("%w: failed to copy %s: %w", zipfmt.ErrIO, what, err)
	}
	return nil
}

// sourceError classifies a read failure: short reads and bad signatures
// mean the archive is damaged, anything else is an I/O failure.
func sourceError(what string, err error) error {
	switch {
	case errors.Is(err, zipfmt.ErrCorruptArchive):
		return fmt.Errorf("failed to read %s: %w", what, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %s is cut short", zipfmt.ErrCorruptArchive, what)
	default:
		return fmt.Errorf("%w: failed to read %s: %w", zipfmt.ErrIO, what, err)
	}
}
