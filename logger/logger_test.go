package logger_test

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ExPixel/godisasm/logger"
)

func TestCentralLogger(t *testing.T) {
	w := &strings.Builder{}

	logger.Clear()
	logger.Write(w)
	require.Equal(t, "", w.String())

	logger.Log("test", "this is a test")
	logger.Write(w)
	require.Equal(t, "test: this is a test\n", w.String())

	w.Reset()

	logger.Log("test2", "this is another test")
	logger.Write(w)
	require.Equal(t, "test: this is a test\ntest2: this is another test\n", w.String())

	w.Reset()
	logger.Tail(w, 100)
	require.Equal(t, "test: this is a test\ntest2: this is another test\n", w.String())

	w.Reset()
	logger.Tail(w, 2)
	require.Equal(t, "test: this is a test\ntest2: this is another test\n", w.String())

	w.Reset()
	logger.Tail(w, 1)
	require.Equal(t, "test2: this is another test\n", w.String())

	w.Reset()
	logger.Tail(w, 0)
	require.Equal(t, "", w.String())
}

func TestCentralLoggerInstance(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Write(w)
	require.Equal(t, "", w.String())

	log.Log(logger.Allow, "test", "this is a test")
	log.Write(w)
	require.Equal(t, "test: this is a test\n", w.String())

	w.Reset()

	log.Log(logger.Allow, "test2", "this is another test")
	log.Write(w)
	require.Equal(t, "test: this is a test\ntest2: this is another test\n", w.String())

	w.Reset()
	log.Tail(w, 100)
	require.Equal(t, "test: this is a test\ntest2: this is another test\n", w.String())

	w.Reset()
	log.Tail(w, 2)
	require.Equal(t, "test: this is a test\ntest2: this is another test\n", w.String())

	w.Reset()
	log.Tail(w, 1)
	require.Equal(t, "test2: this is another test\n", w.String())

	w.Reset()
	log.Tail(w, 0)
	require.Equal(t, "", w.String())
}

// prohibitLogging randomises whether logging is allowed, exercising the
// Permission interface.
type prohibitLogging struct {
	allow int
}

func (p prohibitLogging) AllowLogging() bool {
	return p.allow > 50
}

func TestPermissions(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	var p prohibitLogging

	for n := 0; n < 100; n++ {
		p.allow = rand.Intn(100)
		log.Clear()
		w.Reset()
		log.Log(p, "tag", "detail")
		log.Write(w)
		if p.AllowLogging() {
			require.Equal(t, "tag: detail\n", w.String())
		} else {
			require.Equal(t, "", w.String())
		}
	}
}

func TestErrorLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	err := errors.New("test error")

	log.Log(logger.Allow, "tag", err)
	log.Write(w)
	require.Equal(t, "tag: test error\n", w.String())

	log.Clear()
	w.Reset()

	log.Logf(logger.Allow, "tag", "wrapped: %v", err)
	log.Write(w)
	require.Equal(t, "tag: wrapped: test error\n", w.String())
}

type stringerTest struct{}

func (stringerTest) String() string {
	return "stringer test"
}

func TestStringerLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Log(logger.Allow, "tag", stringerTest{})
	log.Write(w)
	require.Equal(t, "tag: stringer test\n", w.String())
}

func TestIntLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Log(logger.Allow, "tag", 100)
	log.Write(w)
	require.Equal(t, "tag: 100\n", w.String())
}

func TestCapacity(t *testing.T) {
	log := logger.NewLogger(2)
	w := &strings.Builder{}

	log.Log(logger.Allow, "a", 1)
	log.Log(logger.Allow, "b", 2)
	log.Log(logger.Allow, "c", 3)

	log.Write(w)
	require.Equal(t, "b: 2\nc: 3\n", w.String())
}
