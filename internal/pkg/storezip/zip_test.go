package storezip

import (
	"archive/zip"
	"bytes"
	"hash/crc32"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_ReadableByStandardReader(t *testing.T) {
	t.Parallel()

	modTime := time.Date(2024, 3, 15, 10, 30, 42, 0, time.UTC)
	files := []File{
		{Name: "slice.json", Data: []byte(`{"a":1}` + "\n")},
		{Name: "manifest.json", Data: []byte(`{}`)},
		{Name: "empty.txt", Data: nil},
	}
	data, err := Build(files, modTime)
	require.NoError(t, err)

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, r.File, len(files))
	for i, f := range r.File {
		assert.Equal(t, files[i].Name, f.Name)
		assert.Equal(t, zip.Store, f.Method)
		assert.Equal(t, crc32.ChecksumIEEE(files[i].Data), f.CRC32)
		assert.Equal(t, modTime.Truncate(2*time.Second), f.Modified.UTC())

		rc, err := f.Open()
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, len(files[i].Data), len(got))
		assert.Equal(t, string(files[i].Data), string(got))
	}
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	modTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []File{{Name: "a.txt", Data: []byte("hello")}, {Name: "b.txt", Data: []byte("world")}}

	first, err := Build(files, modTime)
	require.NoError(t, err)
	second, err := Build(files, modTime.In(time.FixedZone("UTC+8", 8*3600)))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	changed, err := Build([]File{{Name: "a.txt", Data: []byte("hellO")}, files[1]}, modTime)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}

func TestBuild_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Build([]File{{Name: ""}}, time.Now())
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = Build([]File{{Name: "a"}, {Name: "a"}}, time.Now())
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestDOSDateTime(t *testing.T) {
	t.Parallel()

	tm, dt := DOSDateTime(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, uint16(0), tm)
	assert.Equal(t, uint16(0x21), dt)

	tm, dt = DOSDateTime(time.Date(2000, 2, 3, 4, 5, 6, 0, time.UTC))
	assert.Equal(t, uint16(4<<11|5<<5|3), tm)
	assert.Equal(t, uint16(20<<9|2<<5|3), dt)
}

func TestBuild_Layout(t *testing.T) {
	t.Parallel()

	data, err := Build([]File{{Name: "a", Data: []byte("x")}}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	// 本地头 30 + 名字 1 + 数据 1，中央目录 46 + 1，结尾 22
	assert.Len(t, data, 30+1+1+46+1+22)
	assert.Equal(t, []byte{0x50, 0x4b, 0x03, 0x04}, data[:4])
	assert.Equal(t, []byte{0x50, 0x4b, 0x05, 0x06}, data[len(data)-22:len(data)-18])
}
