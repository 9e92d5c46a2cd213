package codepage

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrNoMapping is returned when a byte or rune has no counterpart
// in the table of the requested encoding.
var ErrNoMapping = errors.New("no mapping in code page")

// Encoding identifies one of the filename encodings runzip understands.
// The legacy members are single-byte Cyrillic code pages backed by
// static 256-entry tables.
type Encoding int

const (
	Unknown Encoding = iota
	UTF8
	Windows1251
	CP866
	KOI8R
	KOI8U
)

// Candidates lists the legacy encodings in detection preference order.
// When two candidates score the same, the earlier one wins.
var Candidates = [...]Encoding{Windows1251, CP866, KOI8R, KOI8U}

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf-8"
	case Windows1251:
		return "windows-1251"
	case CP866:
		return "cp866"
	case KOI8R:
		return "koi8-r"
	case KOI8U:
		return "koi8-u"
	default:
		return "unknown"
	}
}

// Parse returns the encoding for a user-supplied name.
// Besides the short aliases below, any IANA name or alias of a supported
// code page is accepted (for example "IBM866" or "csKOI8R").
func Parse(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8", "utf-8-mac":
		return UTF8, nil
	case "windows-1251", "cp1251", "win1251":
		return Windows1251, nil
	case "cp866", "ibm866", "866":
		return CP866, nil
	case "koi8-r", "koi8r":
		return KOI8R, nil
	case "koi8-u", "koi8u":
		return KOI8U, nil
	}

	enc, err := ianaindex.IANA.Encoding(strings.TrimSpace(name))
	if err == nil && enc != nil {
		for _, c := range Candidates {
			if c.table() == enc {
				return c, nil
			}
		}
	}
	return Unknown, fmt.Errorf("unsupported encoding: %s", name)
}

// IsLegacy reports whether e is one of the single-byte code pages.
func (e Encoding) IsLegacy() bool {
	return e.table() != nil
}

func (e Encoding) table() *charmap.Charmap {
	switch e {
	case Windows1251:
		return charmap.Windows1251
	case CP866:
		return charmap.CodePage866
	case KOI8R:
		return charmap.KOI8R
	case KOI8U:
		return charmap.KOI8U
	default:
		return nil
	}
}

// DecodeByte maps a single byte to its code point.
// ok is false when the byte is unassigned in the table (for example
// 0x98 in windows-1251).
func (e Encoding) DecodeByte(b byte) (r rune, ok bool) {
	t := e.table()
	if t == nil {
		return utf8.RuneError, false
	}
	r = t.DecodeByte(b)
	return r, r != utf8.RuneError
}

// Decode converts raw bytes in encoding e into a UTF-8 string.
// For UTF8 the input is validated and returned as is.
func (e Encoding) Decode(raw []byte) (string, error) {
	if e == UTF8 {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("%w: invalid utf-8 sequence", ErrNoMapping)
		}
		return string(raw), nil
	}

	t := e.table()
	if t == nil {
		return "", fmt.Errorf("cannot decode from %s", e)
	}

	var sb strings.Builder
	sb.Grow(len(raw) * 2)
	for i, b := range raw {
		r := t.DecodeByte(b)
		if r == utf8.RuneError {
			return "", fmt.Errorf("%w: byte 0x%02X at position %d in %s", ErrNoMapping, b, i, e)
		}
		sb.WriteRune(r)
	}
	return sb.String(), nil
}

// Encode converts a UTF-8 string into encoding e.
func (e Encoding) Encode(s string) ([]byte, error) {
	if e == UTF8 {
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("%w: invalid utf-8 sequence", ErrNoMapping)
		}
		return []byte(s), nil
	}

	t := e.table()
	if t == nil {
		return nil, fmt.Errorf("cannot encode to %s", e)
	}

	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := t.EncodeRune(r)
		if !ok {
			return nil, fmt.Errorf("%w: %q has no %s representation", ErrNoMapping, r, e)
		}
		out = append(out, b)
	}
	return out, nil
}

// IsASCII reports whether every byte of raw is 7-bit.
func IsASCII(raw []byte) bool {
	for _, b := range raw {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
