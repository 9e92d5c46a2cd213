package zipfmt

import "hash/crc32"

// ContainerModel is the parsed structure of one archive.
// Payload bytes are never held here, only their byte ranges.
type ContainerModel struct {
	Entries    []EntryRecord // directory order, preserved on rewrite
	Comment    []byte        // archive comment from the end record
	EntryCount int           // total entries declared by the end record
	DirOffset  int64         // start of the central directory
	DirSize    int64         // size of the central directory in bytes
	EndOffset  int64         // start of the end of central directory record
	Size       int64         // length of the source
}

// EntryRecord holds one central directory entry.
// CRC32, CompressedSize, UncompressedSize and Method are copied verbatim on rewrite.
type EntryRecord struct {
	LocalHeaderOffset int64

	VersionMadeBy      uint16
	VersionNeeded      uint16
	Flags              uint16
	Method             uint16
	ModTime            uint16 // MS-DOS time
	ModDate            uint16 // MS-DOS date
	CRC32              uint32
	CompressedSize     uint32
	UncompressedSize   uint32
	DiskNumberStart    uint16
	InternalAttributes uint16
	ExternalAttributes uint32

	Name    []byte
	Extra   []byte
	Comment []byte
}

// IsUTF8 reports whether the EFS bit is set.
func (e *EntryRecord) IsUTF8() bool {
	return e.Flags&FlagUTF8 != 0
}

// IsEncrypted reports whether the entry uses traditional or strong encryption.
func (e *EntryRecord) IsEncrypted() bool {
	return e.Flags&(FlagEncrypted|FlagStrongEncrypted) != 0
}

// UnicodePath returns the UTF-8 name stored in an Info-ZIP Unicode Path
// extra field, if present and its CRC matches the raw name.
func (e *EntryRecord) UnicodePath() ([]byte, bool) {
	data, ok := ExtraFields(e.Extra)[UnicodePathExtraTag]
	// version(1) + crc(4) + name
	if !ok || len(data) < 5 || data[0] != 1 {
		return nil, false
	}
	if le32(data[1:5]) != crc32.ChecksumIEEE(e.Name) {
		return nil, false
	}
	return data[5:], true
}

// LocalHeader is the fixed part of a local file header plus its extra field.
// The name is replaced on rewrite so only its length is kept.
type LocalHeader struct {
	VersionNeeded    uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	NameLen          uint16
	ExtraLen         uint16
	Extra            []byte
}

// EndRecord is the end of central directory record.
type EndRecord struct {
	DiskNumber       uint16
	DirDisk          uint16
	EntriesOnDisk    uint16
	TotalEntries     uint16
	DirSize          uint32
	DirOffset        uint32
	CommentLen       uint16
	Comment          []byte
	Offset           int64 // where the record starts in the source
	ExactCommentSpan bool  // the comment ends exactly at EOF
}
