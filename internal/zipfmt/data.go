package zipfmt

import (
	"encoding/binary"
	"fmt"
	"io"
)

func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// ReadCentralDirEntry reads one central directory entry from r,
// starting at its signature.
func ReadCentralDirEntry(r io.Reader) (EntryRecord, error) {
	var buf [CentralDirectoryLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return EntryRecord{}, fmt.Errorf("failed to read directory entry: %w", err)
	}
	if sig := le32(buf[0:4]); sig != CentralDirectorySignature {
		return EntryRecord{}, fmt.Errorf("%w: invalid directory entry signature 0x%08X", ErrCorruptArchive, sig)
	}

	e := EntryRecord{
		VersionMadeBy:      le16(buf[4:6]),
		VersionNeeded:      le16(buf[6:8]),
		Flags:              le16(buf[8:10]),
		Method:             le16(buf[10:12]),
		ModTime:            le16(buf[12:14]),
		ModDate:            le16(buf[14:16]),
		CRC32:              le32(buf[16:20]),
		CompressedSize:     le32(buf[20:24]),
		UncompressedSize:   le32(buf[24:28]),
		DiskNumberStart:    le16(buf[34:36]),
		InternalAttributes: le16(buf[36:38]),
		ExternalAttributes: le32(buf[38:42]),
		LocalHeaderOffset:  int64(le32(buf[42:46])),
	}
	nameLen := int(le16(buf[28:30]))
	extraLen := int(le16(buf[30:32]))
	commentLen := int(le16(buf[32:34]))

	// name, extra and comment are contiguous
	tail := make([]byte, nameLen+extraLen+commentLen)
	if _, err := io.ReadFull(r, tail); err != nil {
		return EntryRecord{}, fmt.Errorf("failed to read directory entry variable fields: %w", err)
	}
	e.Name = tail[:nameLen:nameLen]
	e.Extra = tail[nameLen : nameLen+extraLen : nameLen+extraLen]
	e.Comment = tail[nameLen+extraLen:]

	return e, nil
}

// EncodeCentralDir serializes e as a central directory entry.
// The caller guarantees that the offset and variable field lengths fit their fields.
func (e *EntryRecord) EncodeCentralDir() []byte {
	buf := make([]byte, CentralDirectoryLen+len(e.Name)+len(e.Extra)+len(e.Comment))

	binary.LittleEndian.PutUint32(buf[0:4], CentralDirectorySignature)
	binary.LittleEndian.PutUint16(buf[4:6], e.VersionMadeBy)
	binary.LittleEndian.PutUint16(buf[6:8], e.VersionNeeded)
	binary.LittleEndian.PutUint16(buf[8:10], e.Flags)
	binary.LittleEndian.PutUint16(buf[10:12], e.Method)
	binary.LittleEndian.PutUint16(buf[12:14], e.ModTime)
	binary.LittleEndian.PutUint16(buf[14:16], e.ModDate)
	binary.LittleEndian.PutUint32(buf[16:20], e.CRC32)
	binary.LittleEndian.PutUint32(buf[20:24], e.CompressedSize)
	binary.LittleEndian.PutUint32(buf[24:28], e.UncompressedSize)
	binary.LittleEndian.PutUint16(buf[28:30], uint16(len(e.Name)))
	binary.LittleEndian.PutUint16(buf[30:32], uint16(len(e.Extra)))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(len(e.Comment)))
	binary.LittleEndian.PutUint16(buf[34:36], e.DiskNumberStart)
	binary.LittleEndian.PutUint16(buf[36:38], e.InternalAttributes)
	binary.LittleEndian.PutUint32(buf[38:42], e.ExternalAttributes)
	binary.LittleEndian.PutUint32(buf[42:46], uint32(e.LocalHeaderOffset))

	n := CentralDirectoryLen
	n += copy(buf[n:], e.Name)
	n += copy(buf[n:], e.Extra)
	copy(buf[n:], e.Comment)

	return buf
}

// ReadLocalHeader reads a local file header from r, starting at its signature.
// The stored name is skipped; r is left positioned at the first payload byte.
func ReadLocalHeader(r io.Reader) (LocalHeader, error) {
	var buf [LocalFileHeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return LocalHeader{}, fmt.Errorf("failed to read local header: %w", err)
	}
	if sig := le32(buf[0:4]); sig != LocalFileHeaderSignature {
		return LocalHeader{}, fmt.Errorf("%w: invalid local header signature 0x%08X", ErrCorruptArchive, sig)
	}

	h := LocalHeader{
		VersionNeeded:    le16(buf[4:6]),
		Flags:            le16(buf[6:8]),
		Method:           le16(buf[8:10]),
		ModTime:          le16(buf[10:12]),
		ModDate:          le16(buf[12:14]),
		CRC32:            le32(buf[14:18]),
		CompressedSize:   le32(buf[18:22]),
		UncompressedSize: le32(buf[22:26]),
		NameLen:          le16(buf[26:28]),
		ExtraLen:         le16(buf[28:30]),
	}

	if _, err := io.CopyN(io.Discard, r, int64(h.NameLen)); err != nil {
		return LocalHeader{}, fmt.Errorf("failed to skip local header name: %w", err)
	}
	h.Extra = make([]byte, h.ExtraLen)
	if _, err := io.ReadFull(r, h.Extra); err != nil {
		return LocalHeader{}, fmt.Errorf("failed to read local header extra field: %w", err)
	}

	return h, nil
}

// Encode serializes h with the given name.
func (h LocalHeader) Encode(name []byte) []byte {
	buf := make([]byte, LocalFileHeaderLen+len(name)+len(h.Extra))

	binary.LittleEndian.PutUint32(buf[0:4], LocalFileHeaderSignature)
	binary.LittleEndian.PutUint16(buf[4:6], h.VersionNeeded)
	binary.LittleEndian.PutUint16(buf[6:8], h.Flags)
	binary.LittleEndian.PutUint16(buf[8:10], h.Method)
	binary.LittleEndian.PutUint16(buf[10:12], h.ModTime)
	binary.LittleEndian.PutUint16(buf[12:14], h.ModDate)
	binary.LittleEndian.PutUint32(buf[14:18], h.CRC32)
	binary.LittleEndian.PutUint32(buf[18:22], h.CompressedSize)
	binary.LittleEndian.PutUint32(buf[22:26], h.UncompressedSize)
	binary.LittleEndian.PutUint16(buf[26:28], uint16(len(name)))
	binary.LittleEndian.PutUint16(buf[28:30], uint16(len(h.Extra)))

	n := LocalFileHeaderLen
	n += copy(buf[n:], name)
	copy(buf[n:], h.Extra)

	return buf
}

// ParseEndRecord decodes an end of central directory record from b,
// which must start at the signature and hold at least EndOfCentralDirLen bytes.
// The comment is taken from whatever follows, up to the declared length.
func ParseEndRecord(b []byte) EndRecord {
	r := EndRecord{
		DiskNumber:    le16(b[4:6]),
		DirDisk:       le16(b[6:8]),
		EntriesOnDisk: le16(b[8:10]),
		TotalEntries:  le16(b[10:12]),
		DirSize:       le32(b[12:16]),
		DirOffset:     le32(b[16:20]),
		CommentLen:    le16(b[20:22]),
	}
	rest := b[EndOfCentralDirLen:]
	r.ExactCommentSpan = len(rest) == int(r.CommentLen)
	if int(r.CommentLen) <= len(rest) {
		r.Comment = append([]byte(nil), rest[:r.CommentLen]...)
	}
	return r
}

// EncodeEndRecord serializes a single-disk end of central directory record.
func EncodeEndRecord(entries int, dirSize, dirOffset uint32, comment []byte) []byte {
	buf := make([]byte, EndOfCentralDirLen+len(comment))

	binary.LittleEndian.PutUint32(buf[0:4], EndOfCentralDirSignature)
	binary.LittleEndian.PutUint16(buf[4:6], 0)
	binary.LittleEndian.PutUint16(buf[6:8], 0)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(entries))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(entries))
	binary.LittleEndian.PutUint32(buf[12:16], dirSize)
	binary.LittleEndian.PutUint32(buf[16:20], dirOffset)
	binary.LittleEndian.PutUint16(buf[20:22], uint16(len(comment)))
	copy(buf[EndOfCentralDirLen:], comment)

	return buf
}

// ExtraFields splits raw extra field bytes into a map of tag to field data
// (without the 4-byte tag/size header). Malformed trailing bytes are ignored.
func ExtraFields(extra []byte) map[uint16][]byte {
	m := make(map[uint16][]byte)
	for off := 0; off+4 <= len(extra); {
		tag := le16(extra[off : off+2])
		size := int(le16(extra[off+2 : off+4]))
		off += 4
		if off+size > len(extra) {
			break
		}
		m[tag] = extra[off : off+size]
		off += size
	}
	return m
}
