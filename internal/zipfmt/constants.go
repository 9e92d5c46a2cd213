package zipfmt

// Record signatures. Every signature starts with the "PK" marker.
const (
	LocalFileHeaderSignature             uint32 = 0x04034b50
	DataDescriptorSignature              uint32 = 0x08074b50
	CentralDirectorySignature            uint32 = 0x02014b50
	DigitalSignatureSignature            uint32 = 0x05054b50
	EndOfCentralDirSignature             uint32 = 0x06054b50
	Zip64EndOfCentralDirSignature        uint32 = 0x06064b50
	Zip64EndOfCentralDirLocatorSignature uint32 = 0x07064b50
)

// Fixed record sizes, signature included.
const (
	LocalFileHeaderLen         = 30
	CentralDirectoryLen        = 46
	EndOfCentralDirLen         = 22
	Zip64LocatorLen            = 20
	DataDescriptorLen          = 12 // crc + sizes, no signature
	DataDescriptorWithSigLen   = 16
	MaxCommentLen              = 0xFFFF
	MaxNameLen                 = 0xFFFF
	EndOfCentralDirSearchLimit = EndOfCentralDirLen + MaxCommentLen
)

// General purpose bit flags.
const (
	FlagEncrypted       uint16 = 1 << 0
	FlagDataDescriptor  uint16 = 1 << 3
	FlagStrongEncrypted uint16 = 1 << 6
	// FlagUTF8 is the language encoding flag (EFS): name and comment are UTF-8.
	FlagUTF8 uint16 = 1 << 11
	// FlagMaskedHeaders marks an encrypted central directory.
	FlagMaskedHeaders uint16 = 1 << 13
)

// UnicodePathExtraTag is the Info-ZIP Unicode Path extra field.
const UnicodePathExtraTag uint16 = 0x7075
