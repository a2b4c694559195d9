// pkg/logger/terminal_core.go

package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"
)

// TerminalPromptPrefix marks log messages that are really user-facing
// terminal output (prompts, summaries). The terminal core strips the prefix
// and prints them as plain text on stdout instead of as structured entries.
const TerminalPromptPrefix = "terminal prompt:"

type terminalCore struct {
	base zapcore.Core
}

func newTerminalCore(base zapcore.Core) zapcore.Core {
	return &terminalCore{base: base}
}

func (c *terminalCore) Enabled(level zapcore.Level) bool {
	return c.base.Enabled(level)
}

func (c *terminalCore) With(fields []zapcore.Field) zapcore.Core {
	return &terminalCore{base: c.base.With(fields)}
}

func (c *terminalCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if strings.HasPrefix(entry.Message, TerminalPromptPrefix) {
		return ce.AddCore(entry, c)
	}
	return c.base.Check(entry, ce)
}

func (c *terminalCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if !strings.HasPrefix(entry.Message, TerminalPromptPrefix) {
		return c.base.Write(entry, fields)
	}

	text := strings.TrimSpace(strings.TrimPrefix(entry.Message, TerminalPromptPrefix))
	if text != "" {
		printLines(text)
	}

	if len(fields) > 0 {
		enc := zapcore.NewMapObjectEncoder()
		for _, field := range fields {
			field.AddTo(enc)
		}

		keys := make([]string, 0, len(enc.Fields))
		for key := range enc.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			printLines(fmt.Sprintf("  %s: %v", key, enc.Fields[key]))
		}
	}

	if text == "" && len(fields) == 0 {
		fmt.Println()
	}
	return nil
}

func (c *terminalCore) Sync() error {
	return c.base.Sync()
}

func printLines(value string) {
	for _, line := range strings.Split(value, "\n") {
		fmt.Println(line)
	}
}
