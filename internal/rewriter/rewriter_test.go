package rewriter_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/runzip/internal/convert"
	"github.com/ossyrian/runzip/internal/parser"
	"github.com/ossyrian/runzip/internal/rewriter"
	"github.com/ossyrian/runzip/internal/zipfmt"
	"github.com/ossyrian/runzip/internal/ziptest"
)

var (
	privetCP1251 = []byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2}
	failCP1251   = []byte{0xF4, 0xE0, 0xE9, 0xEB}
)

// keepPlans returns plans that change nothing.
func keepPlans(model *zipfmt.ContainerModel) []convert.Plan {
	plans := make([]convert.Plan, len(model.Entries))
	for i, e := range model.Entries {
		plans[i] = convert.Plan{Name: e.Name, Comment: e.Comment, Flags: e.Flags}
	}
	return plans
}

func rename(p *convert.Plan, name string) {
	p.Name = []byte(name)
	p.Flags |= zipfmt.FlagUTF8
	p.Renamed = true
	p.Changed = true
}

func parse(t *testing.T, data []byte) *zipfmt.ContainerModel {
	t.Helper()
	model, err := parser.Parse(bytes.NewReader(data), nil, 0)
	require.NoError(t, err)
	return model
}

func rewrite(t *testing.T, data []byte, model *zipfmt.ContainerModel, plans []convert.Plan, comment []byte) ([]byte, *rewriter.Result) {
	t.Helper()
	var out bytes.Buffer
	res, err := rewriter.Rewrite(context.Background(), bytes.NewReader(data), model, plans, comment, &out, nil)
	require.NoError(t, err)
	require.Equal(t, int64(out.Len()), res.Size)
	return out.Bytes(), res
}

func TestRewrite_UnchangedIsByteIdentical(t *testing.T) {
	tests := []struct {
		name    string
		archive ziptest.Archive
	}{
		{
			name: "utf-8 names",
			archive: ziptest.Archive{Entries: []ziptest.Entry{
				{Name: []byte("Привет.txt"), Data: []byte("hello"), Flags: zipfmt.FlagUTF8},
				{Name: []byte("dir/"), Flags: zipfmt.FlagUTF8},
				{Name: []byte("dir/файл"), Data: []byte("world"), Flags: zipfmt.FlagUTF8, Comment: []byte("note")},
			}},
		},
		{
			name: "data descriptors",
			archive: ziptest.Archive{Entries: []ziptest.Entry{
				{Name: []byte("a"), Data: []byte("with signature"), Descriptor: true},
				{Name: []byte("b"), Data: []byte("without signature"), Descriptor: true, NoDescriptorSig: true},
				{Name: []byte("c"), Data: []byte("plain")},
			}},
		},
		{
			name: "prefix and archive comment",
			archive: ziptest.Archive{
				Prefix:  []byte("#!/bin/sh\nexit 0\n"),
				Entries: []ziptest.Entry{{Name: []byte("x"), Data: []byte("1")}},
				Comment: []byte("archive comment"),
			},
		},
		{
			name:    "empty archive",
			archive: ziptest.Archive{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.archive.Bytes()
			model := parse(t, data)

			out, res := rewrite(t, data, model, keepPlans(model), model.Comment)

			assert.Equal(t, data, out)
			assert.Equal(t, model.DirOffset, res.DirOffset)
			assert.Equal(t, model.DirSize, res.DirSize)
		})
	}
}

func TestRewrite_OffsetsShiftByCumulativeDelta(t *testing.T) {
	archive := ziptest.Archive{Entries: []ziptest.Entry{
		{Name: privetCP1251, Data: []byte("first")},
		{Name: failCP1251, Data: []byte("second payload")},
		{Name: []byte("ascii.txt"), Data: []byte("third")},
		{Name: []byte("last"), Data: []byte("fourth"), Descriptor: true},
	}}
	data, layout := archive.Build()
	model := parse(t, data)

	plans := keepPlans(model)
	rename(&plans[0], "Привет") // 6 -> 12 bytes
	rename(&plans[1], "файл")   // 4 -> 8 bytes

	out, res := rewrite(t, data, model, plans, nil)

	wantDelta := []int64{0, 6, 10, 10}
	for i := range model.Entries {
		assert.Equal(t, layout.Offsets[i]+wantDelta[i], res.Offsets[i], "entry %d", i)
	}
	assert.Equal(t, layout.DirOffset+10, res.DirOffset)
	assert.Equal(t, layout.DirSize+10, res.DirSize)

	// the written directory points at the headers that were actually written
	got := parse(t, out)
	require.Len(t, got.Entries, len(model.Entries))
	assert.Equal(t, res.DirOffset, got.DirOffset)
	assert.Equal(t, res.DirSize, got.DirSize)
	for i, e := range got.Entries {
		assert.Equal(t, res.Offsets[i], e.LocalHeaderOffset)
		assert.Equal(t, uint32(0x4034b50), leUint32(out[e.LocalHeaderOffset:]))

		orig := model.Entries[i]
		assert.Equal(t, orig.CRC32, e.CRC32)
		assert.Equal(t, orig.CompressedSize, e.CompressedSize)
		assert.Equal(t, orig.UncompressedSize, e.UncompressedSize)
		assert.Equal(t, orig.Method, e.Method)
		assert.Equal(t, payload(t, data, orig), payload(t, out, e), "payload of entry %d", i)
	}

	assert.Equal(t, "Привет", string(got.Entries[0].Name))
	assert.True(t, got.Entries[0].IsUTF8())
	assert.Equal(t, "ascii.txt", string(got.Entries[2].Name))
	assert.False(t, got.Entries[2].IsUTF8())
}

func TestRewrite_ReadableByThirdPartyReader(t *testing.T) {
	archive := ziptest.Archive{
		Entries: []ziptest.Entry{
			{Name: privetCP1251, Data: []byte("hello"), Comment: failCP1251},
			{Name: []byte("b.txt"), Data: []byte("streamed"), Descriptor: true},
		},
		Comment: []byte("old"),
	}
	data := archive.Bytes()
	model := parse(t, data)

	plans := keepPlans(model)
	rename(&plans[0], "Привет.txt")
	plans[0].Comment = []byte("файл")

	out, _ := rewrite(t, data, model, plans, []byte("новый"))

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "новый", zr.Comment)

	assert.Equal(t, "Привет.txt", zr.File[0].Name)
	assert.Equal(t, "файл", zr.File[0].Comment)
	assert.Equal(t, "hello", readZipFile(t, zr.File[0]))
	assert.Equal(t, "streamed", readZipFile(t, zr.File[1]))
}

func TestRewrite_DeflatedArchiveFromZipWriter(t *testing.T) {
	var src bytes.Buffer
	zw := zip.NewWriter(&src)
	files := []struct {
		name    []byte
		content string
	}{
		{name: privetCP1251, content: "compressed content, compressed content"},
		{name: []byte("docs/readme.md"), content: "# readme"},
		{name: failCP1251, content: ""},
	}
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: string(f.name), Method: zip.Deflate, NonUTF8: true})
		require.NoError(t, err)
		_, err = io.WriteString(w, f.content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	data := src.Bytes()
	model := parse(t, data)
	require.Len(t, model.Entries, len(files))
	for _, e := range model.Entries {
		assert.NotZero(t, e.Flags&zipfmt.FlagDataDescriptor)
	}

	plans := keepPlans(model)
	rename(&plans[0], "Привет")
	rename(&plans[2], "файл")

	out, _ := rewrite(t, data, model, plans, model.Comment)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.Len(t, zr.File, len(files))

	wantNames := []string{"Привет", "docs/readme.md", "файл"}
	for i, f := range zr.File {
		assert.Equal(t, wantNames[i], f.Name)
		assert.Equal(t, zip.Deflate, f.Method)
		assert.Equal(t, files[i].content, readZipFile(t, f))
	}
}

func TestRewrite_Errors(t *testing.T) {
	data := ziptest.Build(
		ziptest.Entry{Name: []byte("a"), Data: bytes.Repeat([]byte("x"), 100)},
		ziptest.Entry{Name: []byte("b"), Data: []byte("y")},
	)
	model := parse(t, data)

	t.Run("plan count mismatch", func(t *testing.T) {
		_, err := rewriter.Rewrite(context.Background(), bytes.NewReader(data), model, nil, nil, io.Discard, nil)
		require.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := rewriter.Rewrite(ctx, bytes.NewReader(data), model, keepPlans(model), nil, io.Discard, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("source shrinks mid copy", func(t *testing.T) {
		short := data[:50]
		_, err := rewriter.Rewrite(context.Background(), bytes.NewReader(short), model, keepPlans(model), nil, io.Discard, nil)
		assert.ErrorIs(t, err, zipfmt.ErrCorruptArchive)
	})

	t.Run("local header signature damaged", func(t *testing.T) {
		damaged := bytes.Clone(data)
		damaged[0] = 'X'
		_, err := rewriter.Rewrite(context.Background(), bytes.NewReader(damaged), model, keepPlans(model), nil, io.Discard, nil)
		assert.ErrorIs(t, err, zipfmt.ErrCorruptArchive)
	})

	t.Run("write failure", func(t *testing.T) {
		_, err := rewriter.Rewrite(context.Background(), bytes.NewReader(data), model, keepPlans(model), nil, failingWriter{}, nil)
		assert.ErrorIs(t, err, zipfmt.ErrIO)
	})
}

func TestReplaceFile(t *testing.T) {
	t.Run("replaces content and keeps mode", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "a.zip")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0o640))

		err := rewriter.ReplaceFile(context.Background(), path, func(w io.Writer) error {
			_, err := io.WriteString(w, "new content")
			return err
		})
		require.NoError(t, err)

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "new content", string(got))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
		assertOnlyFile(t, dir, "a.zip")
	})

	t.Run("failure leaves original untouched", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "a.zip")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
		boom := errors.New("boom")

		err := rewriter.ReplaceFile(context.Background(), path, func(w io.Writer) error {
			_, _ = io.WriteString(w, "partial")
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "old", string(got))
		assertOnlyFile(t, dir, "a.zip")
	})

	t.Run("cancelled context discards output", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "a.zip")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

		ctx, cancel := context.WithCancel(context.Background())
		err := rewriter.ReplaceFile(ctx, path, func(w io.Writer) error {
			_, err := io.WriteString(w, "new")
			cancel()
			return err
		})
		require.ErrorIs(t, err, context.Canceled)

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "old", string(got))
		assertOnlyFile(t, dir, "a.zip")
	})

	t.Run("source is released before the rename", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "a.zip")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
		src, err := os.Open(path)
		require.NoError(t, err)
		rel := &releaseRecorder{c: src, path: path}

		err = rewriter.ReplaceFile(context.Background(), path, func(w io.Writer) error {
			if _, err := io.Copy(w, src); err != nil {
				return err
			}
			_, err := io.WriteString(w, " and new")
			return err
		}, rel)
		require.NoError(t, err)

		assert.True(t, rel.closed)
		assert.Equal(t, "old", rel.contentAtClose, "closed after the rename")
		assert.ErrorIs(t, src.Close(), os.ErrClosed)

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "old and new", string(got))
		assertOnlyFile(t, dir, "a.zip")
	})

	t.Run("release error leaves original untouched", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "a.zip")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
		src, err := os.Open(path)
		require.NoError(t, err)
		require.NoError(t, src.Close())

		err = rewriter.ReplaceFile(context.Background(), path, func(w io.Writer) error {
			_, err := io.WriteString(w, "new")
			return err
		}, src)
		require.ErrorIs(t, err, zipfmt.ErrIO)

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "old", string(got))
		assertOnlyFile(t, dir, "a.zip")
	})

	t.Run("missing file", func(t *testing.T) {
		err := rewriter.ReplaceFile(context.Background(), filepath.Join(t.TempDir(), "none.zip"), func(io.Writer) error {
			return nil
		})
		assert.ErrorIs(t, err, zipfmt.ErrIO)
	})
}

// releaseRecorder notes what path held when it was closed.
type releaseRecorder struct {
	c              io.Closer
	path           string
	closed         bool
	contentAtClose string
}

func (r *releaseRecorder) Close() error {
	r.closed = true
	data, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}
	r.contentAtClose = string(data)
	return r.c.Close()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func assertOnlyFile(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, name, entries[0].Name())
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// payload returns the stored payload bytes of e within data.
func payload(t *testing.T, data []byte, e zipfmt.EntryRecord) []byte {
	t.Helper()
	h := data[e.LocalHeaderOffset:]
	nameLen := int(h[26]) | int(h[27])<<8
	extraLen := int(h[28]) | int(h[29])<<8
	start := e.LocalHeaderOffset + zipfmt.LocalFileHeaderLen + int64(nameLen+extraLen)
	return data[start : start+int64(e.CompressedSize)]
}

func readZipFile(t *testing.T, f *zip.File) string {
	t.Helper()
	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}
