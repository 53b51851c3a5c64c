package util

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds a timestamped JSON logger writing to stdout and any extra outputs.
func NewLogger(level string, outputs ...io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	var w io.Writer = os.Stdout
	if len(outputs) > 0 {
		w = zerolog.MultiLevelWriter(append([]io.Writer{os.Stdout}, outputs...)...)
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// OpenLogFile opens path for appending; an empty path yields a nil writer and no error.
func OpenLogFile(path string) (*os.File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
