// Package ziptest builds zip archives byte by byte for tests.
//
// Records are laid out with encoding/binary directly, so fixtures do not
// depend on the codecs they are used to test.
package ziptest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

const (
	localSig      uint32 = 0x04034b50
	centralSig    uint32 = 0x02014b50
	endSig        uint32 = 0x06054b50
	descriptorSig uint32 = 0x08074b50
	zip64LocSig   uint32 = 0x07064b50

	flagDescriptor uint16 = 1 << 3
)

// Entry is one stored (method 0) member.
type Entry struct {
	Name    []byte
	Data    []byte
	Flags   uint16
	Comment []byte
	Extra   []byte

	// Descriptor writes zero CRC/sizes in the local header followed by a
	// data descriptor after the payload. NoDescriptorSig omits its signature.
	Descriptor      bool
	NoDescriptorSig bool

	// Overrides for broken fixtures. Zero means computed.
	CompressedSize uint32
	Offset         uint32
	DiskStart      uint16
}

// Archive describes a whole fixture.
type Archive struct {
	Prefix   []byte // bytes before the first entry
	Entries  []Entry
	Comment  []byte
	Trailing []byte // bytes after the end record

	// Overrides for broken fixtures.
	EntriesOnDisk *uint16
	DirSize       *uint32
	DiskNumber    uint16
	Zip64Locator  bool
}

// Layout reports where records were written.
type Layout struct {
	Offsets   []int64
	DirOffset int64
	DirSize   int64
	EndOffset int64
}

// Build returns the archive bytes and their layout.
func (a Archive) Build() ([]byte, Layout) {
	buf := new(bytes.Buffer)
	buf.Write(a.Prefix)

	var layout Layout
	for _, e := range a.Entries {
		layout.Offsets = append(layout.Offsets, int64(buf.Len()))
		writeLocal(buf, e)
	}

	layout.DirOffset = int64(buf.Len())
	for i, e := range a.Entries {
		offset := uint32(layout.Offsets[i])
		if e.Offset != 0 {
			offset = e.Offset
		}
		writeCentral(buf, e, offset)
	}
	layout.DirSize = int64(buf.Len()) - layout.DirOffset

	if a.Zip64Locator {
		w(buf, zip64LocSig)
		w(buf, uint32(0))
		w(buf, uint64(0))
		w(buf, uint32(1))
	}

	layout.EndOffset = int64(buf.Len())
	count := uint16(len(a.Entries))
	onDisk := count
	if a.EntriesOnDisk != nil {
		onDisk = *a.EntriesOnDisk
	}
	dirSize := uint32(layout.DirSize)
	if a.DirSize != nil {
		dirSize = *a.DirSize
	}
	buf.Write(EndRecord(a.DiskNumber, onDisk, count, dirSize, uint32(layout.DirOffset), a.Comment))
	buf.Write(a.Trailing)

	return buf.Bytes(), layout
}

// Bytes is Build without the layout.
func (a Archive) Bytes() []byte {
	b, _ := a.Build()
	return b
}

// Build is a shortcut for an archive with the given entries only.
func Build(entries ...Entry) []byte {
	return Archive{Entries: entries}.Bytes()
}

// EndRecord encodes an end of central directory record.
func EndRecord(disk, onDisk, total uint16, dirSize, dirOffset uint32, comment []byte) []byte {
	buf := new(bytes.Buffer)
	w(buf, endSig)
	w(buf, disk)
	w(buf, disk)
	w(buf, onDisk)
	w(buf, total)
	w(buf, dirSize)
	w(buf, dirOffset)
	w(buf, uint16(len(comment)))
	buf.Write(comment)
	return buf.Bytes()
}

func (e Entry) sizes() (crc, size uint32) {
	size = uint32(len(e.Data))
	if e.CompressedSize != 0 {
		size = e.CompressedSize
	}
	return crc32.ChecksumIEEE(e.Data), size
}

func (e Entry) flags() uint16 {
	if e.Descriptor {
		return e.Flags | flagDescriptor
	}
	return e.Flags
}

func writeLocal(buf *bytes.Buffer, e Entry) {
	crc, size := e.sizes()
	localCRC, localSize := crc, size
	if e.Descriptor {
		localCRC, localSize = 0, 0
	}

	w(buf, localSig)
	w(buf, uint16(20))          // version needed
	w(buf, e.flags())           // flags
	w(buf, uint16(0))           // method: stored
	w(buf, uint16(0x6000))      // mod time
	w(buf, uint16(0x5A21))      // mod date
	w(buf, localCRC)            // crc-32
	w(buf, localSize)           // compressed size
	w(buf, localSize)           // uncompressed size
	w(buf, uint16(len(e.Name))) // name length
	w(buf, uint16(len(e.Extra)))
	buf.Write(e.Name)
	buf.Write(e.Extra)
	buf.Write(e.Data)

	if e.Descriptor {
		if !e.NoDescriptorSig {
			w(buf, descriptorSig)
		}
		w(buf, crc)
		w(buf, size)
		w(buf, size)
	}
}

func writeCentral(buf *bytes.Buffer, e Entry, offset uint32) {
	crc, size := e.sizes()

	w(buf, centralSig)
	w(buf, uint16(0x031E)) // made by: unix, 3.0
	w(buf, uint16(20))
	w(buf, e.flags())
	w(buf, uint16(0))
	w(buf, uint16(0x6000))
	w(buf, uint16(0x5A21))
	w(buf, crc)
	w(buf, size)
	w(buf, size)
	w(buf, uint16(len(e.Name)))
	w(buf, uint16(len(e.Extra)))
	w(buf, uint16(len(e.Comment)))
	w(buf, e.DiskStart)
	w(buf, uint16(0))            // internal attributes
	w(buf, uint32(0o100644<<16)) // external attributes
	w(buf, offset)
	buf.Write(e.Name)
	buf.Write(e.Extra)
	buf.Write(e.Comment)
}

func w(buf *bytes.Buffer, v any) {
	_ = binary.Write(buf, binary.LittleEndian, v) //nolint:errcheck // bytes.Buffer writes do not fail
}
