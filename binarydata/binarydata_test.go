package binarydata_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ExPixel/godisasm/binarydata"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "binarydata-*.bin")
	require.NoError(t, err)
	_, err = f.Write(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestOpenSpansWholeFile(t *testing.T) {
	content := []byte("0123456789abcdef")
	path := writeTempFile(t, content)

	bd, err := binarydata.Open(path)
	require.NoError(t, err)
	defer bd.Close()

	require.Equal(t, len(content), bd.Len())
	require.Equal(t, content, bd.AsBytes())
	require.Equal(t, path, bd.Path())
}

func TestSliceInvariant(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")
	path := writeTempFile(t, content)

	bd, err := binarydata.Open(path)
	require.NoError(t, err)
	defer bd.Close()

	for _, rng := range [][2]int{{0, 3}, {4, 9}, {10, 10}, {0, len(content)}} {
		sub := bd.Slice(rng[0], rng[1])
		require.Equal(t, content[rng[0]:rng[1]], sub.AsBytes())
		sub.Close()
	}
}

func TestSliceClampsToParentBounds(t *testing.T) {
	content := []byte("0123456789")
	path := writeTempFile(t, content)

	bd, err := binarydata.Open(path)
	require.NoError(t, err)
	defer bd.Close()

	parent := bd.Slice(2, 8) // "23456789"[:6] == "234567"
	defer parent.Close()
	require.Equal(t, []byte("234567"), parent.AsBytes())

	// a slice of the sub-view that requests beyond its own bounds clamps,
	// it must never read back into the parent's excluded bytes
	over := parent.Slice(0, 100)
	defer over.Close()
	require.Equal(t, []byte("234567"), over.AsBytes())
}

func TestSequentialReadAndSeek(t *testing.T) {
	content := []byte("0123456789")
	path := writeTempFile(t, content)

	bd, err := binarydata.Open(path)
	require.NoError(t, err)
	defer bd.Close()

	buf := make([]byte, 4)
	n, err := bd.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte("0123"), buf)

	pos := bd.Seek(0, binarydata.SeekStart)
	require.Equal(t, int64(0), pos)

	n, err = bd.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte("0123"), buf[:n])

	bd.Seek(0, binarydata.SeekEnd)
	n, err = bd.Read(buf)
	require.Equal(t, 0, n)
	require.Error(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := binarydata.Open("/nonexistent/path/to/nothing")
	require.Error(t, err)
}
