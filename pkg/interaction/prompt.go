// pkg/interaction/prompt.go

package interaction

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/opsbrew/canvasup/pkg/cup_err"
	"github.com/opsbrew/canvasup/pkg/cup_io"
)

// Reader is the input source for prompts. Tests point it at a strings.Reader.
var Reader io.Reader = os.Stdin

// A single buffered reader is shared across prompts so read-ahead from one
// prompt is not lost before the next. Rebuilt when Reader is swapped.
var (
	buffered    *bufio.Reader
	bufferedFor io.Reader
)

func input() *bufio.Reader {
	if buffered == nil || bufferedFor != Reader {
		buffered = bufio.NewReader(Reader)
		bufferedFor = Reader
	}
	return buffered
}

// PromptRequired keeps asking until a non-empty string is entered.
// EOF is treated as a user abort and returns an expected error.
func PromptRequired(rc *cup_io.RuntimeContext, label string) (string, error) {
	logger := otelzap.Ctx(rc.Ctx)
	reader := input()

	for {
		logger.Info("terminal prompt: " + label + ":")
		text, err := reader.ReadString('\n')
		if err != nil && text == "" {
			return "", cup_err.NewExpectedError(cerr.Wrap(err, "input aborted"))
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		logger.Info("terminal prompt: Input cannot be empty.")
	}
}

// PromptWithDefault returns the entered value or the default when empty.
func PromptWithDefault(rc *cup_io.RuntimeContext, label, defaultValue string) (string, error) {
	logger := otelzap.Ctx(rc.Ctx)
	reader := input()

	logger.Info(fmt.Sprintf("terminal prompt: %s [%s]:", label, defaultValue))
	text, err := reader.ReadString('\n')
	if err != nil && text == "" {
		return "", cup_err.NewExpectedError(cerr.Wrap(err, "input aborted"))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return defaultValue, nil
	}
	return text, nil
}

// PromptYesNo loops until the user answers yes or no.
func PromptYesNo(rc *cup_io.RuntimeContext, label string) (bool, error) {
	logger := otelzap.Ctx(rc.Ctx)
	reader := input()

	for {
		logger.Info("terminal prompt: " + label + " (y/n):")
		text, err := reader.ReadString('\n')
		if err != nil && text == "" {
			return false, cup_err.NewExpectedError(cerr.Wrap(err, "input aborted"))
		}
		switch strings.ToLower(strings.TrimSpace(text)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		logger.Info("terminal prompt: Please answer y or n.")
	}
}

// PromptSecret reads hidden input from the terminal, re-prompting until
// non-empty. Falls back to plain reads when stdin is not a TTY (tests,
// pipes), since ReadPassword requires one.
func PromptSecret(rc *cup_io.RuntimeContext, label string) (string, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if f, ok := Reader.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return PromptRequired(rc, label)
	}

	for {
		logger.Info("terminal prompt: " + label + ":")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", cerr.Wrap(err, "read secret input")
		}
		secret := strings.TrimSpace(string(raw))
		if secret != "" {
			return secret, nil
		}
		logger.Info("terminal prompt: Input cannot be empty.")
	}
}

// PromptSecretConfirmed reads a secret twice and requires both reads to match.
func PromptSecretConfirmed(rc *cup_io.RuntimeContext, label string) (string, error) {
	logger := otelzap.Ctx(rc.Ctx)

	for {
		first, err := PromptSecret(rc, label)
		if err != nil {
			return "", err
		}
		second, err := PromptSecret(rc, label+" (again)")
		if err != nil {
			return "", err
		}
		if first == second {
			return first, nil
		}
		logger.Warn("Secret inputs did not match, retrying",
			zap.String("label", label))
		logger.Info("terminal prompt: Entries did not match, try again.")
	}
}
