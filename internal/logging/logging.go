package logging

import (
	"io"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
)

const logFile = "iotray/iotray.log"

// New creates a zerolog logger at info level with console and file output.
func New() zerolog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel creates a logger with console and file output. Unknown
// levels fall back to info. If the log file cannot be opened the logger
// writes to the console only.
func NewWithLevel(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	var out io.Writer = console
	if f, ferr := openLogFile(); ferr == nil {
		out = zerolog.MultiLevelWriter(console, f)
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Caller().Logger()
	if err != nil {
		logger.Warn().Str("level", level).Msg("Unknown log level, using info")
	}
	return logger
}

// Path returns the log file location under the XDG state dir
// (~/Library/Application Support on macOS).
func Path() (string, error) {
	return xdg.StateFile(logFile)
}

func openLogFile() (*os.File, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}
