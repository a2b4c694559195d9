// pkg/cup_err/errors_test.go

package cup_err

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedErrorClassification(t *testing.T) {
	t.Parallel()

	base := errors.New("user declined to continue")
	expected := NewExpectedError(base)

	assert.True(t, IsExpectedUserError(expected))
	assert.False(t, IsExpectedUserError(base))
	assert.True(t, IsExpectedUserError(fmt.Errorf("outer: %w", expected)))

	assert.Nil(t, NewExpectedError(nil))
}

func TestGetExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, GetExitCode(nil))
	assert.Equal(t, 0, GetExitCode(NewExpectedError(errors.New("aborted"))))
	assert.Equal(t, 1, GetExitCode(errors.New("apt-get install failed")))
}

func TestExtractSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		output        string
		maxCandidates int
		want          string
	}{
		{
			name:          "empty output",
			output:        "",
			maxCandidates: 2,
			want:          "No output provided.",
		},
		{
			name:          "picks error lines",
			output:        "reading state...\nE: Unable to locate package foo\ndone",
			maxCandidates: 2,
			want:          "E: Unable to locate package foo",
		},
		{
			name:          "caps candidates",
			output:        "error one\nerror two\nerror three",
			maxCandidates: 2,
			want:          "error one - error two",
		},
		{
			name:          "falls back to first non-empty line",
			output:        "\nall good here\n",
			maxCandidates: 2,
			want:          "all good here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractSummary(tt.output, tt.maxCandidates))
		})
	}
}
