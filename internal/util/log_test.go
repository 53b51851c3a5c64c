package util

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("debug")
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	logger = NewLogger("invalid")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", logger.GetLevel())
	}

	logger = NewLogger("")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info for empty level, got %s", logger.GetLevel())
	}
}

func TestNewLoggerWritesExtraOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", &buf)
	logger.Info().Str("instrument", "EUR_USD").Msg("hello")
	if !strings.Contains(buf.String(), "EUR_USD") {
		t.Fatalf("extra output missing log line: %q", buf.String())
	}
}

func TestOpenLogFile(t *testing.T) {
	f, err := OpenLogFile("")
	if err != nil || f != nil {
		t.Fatalf("expected nil file for empty path, got %v %v", f, err)
	}

	path := filepath.Join(t.TempDir(), "trade_log.txt")
	f, err = OpenLogFile(path)
	if err != nil {
		t.Fatalf("OpenLogFile returned error: %v", err)
	}
	if _, err := f.WriteString("line\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "line\n" {
		t.Fatalf("unexpected file content %q (%v)", data, err)
	}
}
