package sourceresolver_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ExPixel/godisasm/sourceresolver"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pow.c")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestResolveReturnsRequestedLine(t *testing.T) {
	path := writeTempFile(t, "int pow(int x) {\n  return x * x;\n}\n")

	r := sourceresolver.New()
	defer r.Close()

	text, ok, err := r.Resolve(path, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "  return x * x;", text)
}

func TestResolveHandlesLastLineWithoutTrailingNewline(t *testing.T) {
	path := writeTempFile(t, "line one\nline two\nline three")

	r := sourceresolver.New()
	defer r.Close()

	text, ok, err := r.Resolve(path, 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "line three", text)
}

func TestResolveOutOfOrderExtendsOffsetsLazily(t *testing.T) {
	path := writeTempFile(t, "a\nb\nc\nd\ne\n")

	r := sourceresolver.New()
	defer r.Close()

	text, ok, err := r.Resolve(path, 4)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "d", text)

	text, ok, err = r.Resolve(path, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", text)
}

func TestResolveMissesBeyondEndOfFile(t *testing.T) {
	path := writeTempFile(t, "only line\n")

	r := sourceresolver.New()
	defer r.Close()

	_, ok, err := r.Resolve(path, 5)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolveCachesMissingPathWithoutError(t *testing.T) {
	r := sourceresolver.New()
	defer r.Close()

	missing := filepath.Join(t.TempDir(), "does-not-exist.c")

	_, ok, err := r.Resolve(missing, 1)
	require.NoError(t, err)
	require.False(t, ok)

	// Second lookup hits the cached miss rather than re-opening the file.
	_, ok, err = r.Resolve(missing, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadLinesSkipsMissesAndAppendsHits(t *testing.T) {
	path := writeTempFile(t, "alpha\nbeta\ngamma\n")
	missing := filepath.Join(t.TempDir(), "gone.c")

	r := sourceresolver.New()
	defer r.Close()

	var out []string
	err := r.LoadLines([]sourceresolver.Request{
		{Path: path, Line: 1},
		{Path: missing, Line: 1},
		{Path: path, Line: 3},
	}, &out)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "gamma"}, out)
}
