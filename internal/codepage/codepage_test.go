package codepage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/runzip/internal/codepage"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    codepage.Encoding
		wantErr bool
	}{
		{input: "utf-8", want: codepage.UTF8},
		{input: "UTF8", want: codepage.UTF8},
		{input: "utf-8-mac", want: codepage.UTF8},
		{input: "windows-1251", want: codepage.Windows1251},
		{input: "cp1251", want: codepage.Windows1251},
		{input: " CP866 ", want: codepage.CP866},
		{input: "IBM866", want: codepage.CP866},
		{input: "koi8-r", want: codepage.KOI8R},
		{input: "KOI8-R", want: codepage.KOI8R},
		{input: "koi8u", want: codepage.KOI8U},
		{input: "latin1", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := codepage.Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, codepage.Unknown, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringParses(t *testing.T) {
	for _, enc := range append(codepage.Candidates[:], codepage.UTF8) {
		got, err := codepage.Parse(enc.String())
		require.NoError(t, err)
		assert.Equal(t, enc, got)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		enc     codepage.Encoding
		input   []byte
		want    string
		wantErr bool
	}{
		{
			name:  "windows-1251",
			enc:   codepage.Windows1251,
			input: []byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2},
			want:  "Привет",
		},
		{
			name:  "cp866",
			enc:   codepage.CP866,
			input: []byte{0x8F, 0xE0, 0xA8, 0xA2, 0xA5, 0xE2},
			want:  "Привет",
		},
		{
			name:  "koi8-r",
			enc:   codepage.KOI8R,
			input: []byte{0xF0, 0xD2, 0xC9, 0xD7, 0xC5, 0xD4},
			want:  "Привет",
		},
		{
			name:  "koi8-u ukrainian letter",
			enc:   codepage.KOI8U,
			input: []byte{0xA6},
			want:  "і",
		},
		{
			name:    "unassigned windows-1251 byte",
			enc:     codepage.Windows1251,
			input:   []byte{'a', 0x98},
			wantErr: true,
		},
		{
			name:    "invalid utf-8",
			enc:     codepage.UTF8,
			input:   []byte{0xC3},
			wantErr: true,
		},
		{
			name:    "unknown encoding",
			enc:     codepage.Unknown,
			input:   []byte("a"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.enc.Decode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_NoMapping(t *testing.T) {
	_, err := codepage.Windows1251.Decode([]byte{'a', 0x98})
	assert.ErrorIs(t, err, codepage.ErrNoMapping)
	assert.Contains(t, err.Error(), "0x98")

	_, ok := codepage.Windows1251.DecodeByte(0x98)
	assert.False(t, ok)
	r, ok := codepage.Windows1251.DecodeByte(0xC0)
	assert.True(t, ok)
	assert.Equal(t, 'А', r)
}

func TestEncode(t *testing.T) {
	got, err := codepage.CP866.Encode("Привет")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x8F, 0xE0, 0xA8, 0xA2, 0xA5, 0xE2}, got)

	_, err = codepage.KOI8R.Encode("€")
	assert.ErrorIs(t, err, codepage.ErrNoMapping)

	// koi8-r has no Ukrainian і, koi8-u does
	_, err = codepage.KOI8R.Encode("і")
	assert.ErrorIs(t, err, codepage.ErrNoMapping)
	got, err = codepage.KOI8U.Encode("і")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA6}, got)
}

func TestIsLegacy(t *testing.T) {
	for _, enc := range codepage.Candidates {
		assert.True(t, enc.IsLegacy(), enc.String())
	}
	assert.False(t, codepage.UTF8.IsLegacy())
	assert.False(t, codepage.Unknown.IsLegacy())
}

func TestIsASCII(t *testing.T) {
	assert.True(t, codepage.IsASCII([]byte("dir/file.txt")))
	assert.True(t, codepage.IsASCII(nil))
	assert.False(t, codepage.IsASCII([]byte{'a', 0x80}))
}
