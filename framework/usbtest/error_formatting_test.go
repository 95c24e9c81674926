package usbtest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReformatError(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Nil(t, reformatError(nil))
	})

	t.Run("plain error is unchanged", func(t *testing.T) {
		err := errors.New("stream 2 stalled")
		assert.Equal(t, err, reformatError(err))
	})

	t.Run("testify failure is rearranged", func(t *testing.T) {
		raw := strings.Join([]string{
			"",
			"\tError Trace:\tprogress_test.go:40",
			"\t            \tstreamset.go:88",
			"\t            \ttest_scope.go:120",
			"\tError:      \tNot equal:",
			"\t            \texpected: 10",
			"\t            \tactual  : 7",
		}, "\n")

		reformatted := reformatError(errors.New(raw))
		assert.Equal(t, strings.Join([]string{
			"Not equal:",
			"expected: 10",
			"actual  : 7",
			"  Error trace:",
			"    progress_test.go:40",
			"    streamset.go:88",
		}, "\n"), reformatted.Error())
	})

	t.Run("unexpected error preamble is collapsed", func(t *testing.T) {
		raw := strings.Join([]string{
			"",
			"\tError Trace:\trun_test.go:12",
			"\tError:      \tReceived unexpected error:",
			"\t            \tdevice went away",
		}, "\n")

		reformatted := reformatError(errors.New(raw))
		assert.Equal(t, strings.Join([]string{
			"Error: device went away",
			"  Error trace:",
			"    run_test.go:12",
		}, "\n"), reformatted.Error())
	})
}
