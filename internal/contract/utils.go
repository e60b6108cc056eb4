package contract

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/recap/schema"
)

// Color variables for console output.
var (
	MajorColor   = color.New(color.FgRed, color.Bold) // MajorColor marks high-weight entries.
	NotableColor = color.New(color.FgYellow)          // NotableColor marks mid-weight entries.
	MinorColor   = color.New(color.FgCyan)            // MinorColor marks informational entries.
	FailedColor  = color.New(color.FgRed)
	OKColor      = color.New(color.FgGreen)
)

// GetColorLabel returns a colored impact label for console output (table).
func GetColorLabel(score float64) string {
	text := schema.GetPlainLabel(score)
	switch text {
	case "Major":
		return MajorColor.Sprint(text)
	case "Notable":
		return NotableColor.Sprint(text)
	default:
		return MinorColor.Sprint(text)
	}
}

// GetStatusLabel returns a colored chunk status.
func GetStatusLabel(status schema.ChunkStatus) string {
	if status == schema.ChunkFailed {
		return FailedColor.Sprint(status)
	}
	return OKColor.Sprint(status)
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s'. must be debug, info, warn, error", s)
	}
	return level, nil
}

// NewLogger builds the structured logger shared by all components.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LoggerOrDefault returns log, or slog.Default() when log is nil.
func LoggerOrDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}

// GetRunDBFilePath returns the path to the SQLite DB file for run history.
func GetRunDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".recap_runs.db"
	}
	return filepath.Join(homeDir, ".recap_runs.db")
}

// TruncateText truncates text to a maximum width with an ellipsis suffix.
// Requires maxWidth > 3 so there is room for the ellipsis and some content.
func TruncateText(text string, maxWidth int) string {
	runes := []rune(text)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return text
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
