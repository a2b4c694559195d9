// pkg/interaction/prompt_test.go

package interaction

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbrew/canvasup/pkg/cup_err"
	"github.com/opsbrew/canvasup/pkg/cup_io"
)

func withInput(t *testing.T, input string) *cup_io.RuntimeContext {
	t.Helper()
	old := Reader
	Reader = strings.NewReader(input)
	t.Cleanup(func() { Reader = old })
	return cup_io.NewContext(context.Background(), "test")
}

func TestPromptRequired(t *testing.T) {
	t.Run("value returned trimmed", func(t *testing.T) {
		rc := withInput(t, "  canvas.example.org  \n")
		got, err := PromptRequired(rc, "Domain")
		require.NoError(t, err)
		assert.Equal(t, "canvas.example.org", got)
	})

	t.Run("empty input re-prompts", func(t *testing.T) {
		rc := withInput(t, "\n\nvalue\n")
		got, err := PromptRequired(rc, "Domain")
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	})

	t.Run("EOF is a user abort", func(t *testing.T) {
		rc := withInput(t, "")
		_, err := PromptRequired(rc, "Domain")
		require.Error(t, err)
		assert.True(t, cup_err.IsExpectedUserError(err))
	})
}

func TestPromptWithDefault(t *testing.T) {
	t.Run("empty input takes default", func(t *testing.T) {
		rc := withInput(t, "\n")
		got, err := PromptWithDefault(rc, "Branch", "prod")
		require.NoError(t, err)
		assert.Equal(t, "prod", got)
	})

	t.Run("explicit value wins", func(t *testing.T) {
		rc := withInput(t, "main\n")
		got, err := PromptWithDefault(rc, "Branch", "prod")
		require.NoError(t, err)
		assert.Equal(t, "main", got)
	})
}

func TestPromptYesNo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "y", input: "y\n", want: true},
		{name: "yes uppercase", input: "YES\n", want: true},
		{name: "n", input: "n\n", want: false},
		{name: "no", input: "no\n", want: false},
		{name: "garbage then answer", input: "maybe\nok\ny\n", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := withInput(t, tt.input)
			got, err := PromptYesNo(rc, "Continue?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPromptSecretConfirmed(t *testing.T) {
	// Non-TTY input falls back to plain reads.
	t.Run("matching entries accepted", func(t *testing.T) {
		rc := withInput(t, "hunter22\nhunter22\n")
		got, err := PromptSecretConfirmed(rc, "Password")
		require.NoError(t, err)
		assert.Equal(t, "hunter22", got)
	})

	t.Run("mismatch retries until match", func(t *testing.T) {
		rc := withInput(t, "first\nsecond\nmatch\nmatch\n")
		got, err := PromptSecretConfirmed(rc, "Password")
		require.NoError(t, err)
		assert.Equal(t, "match", got)
	})
}
