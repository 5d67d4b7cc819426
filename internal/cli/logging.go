// Package cli holds the configuration and logging setup shared by the auspice commands.
package cli

import (
	"log/slog"
	"os"

	"github.com/nextstrain/auspice/internal/constants"
)

// textLogger is the default logger of the process, writing text through the log package.
var textLogger = slog.Default()

// SetVerbosity sets the level of the default logger from the count of -v flags:
// warnings by default, info with -v and debug from -vv.
func SetVerbosity(count int) {
	slog.SetLogLoggerLevel(levelFor(count))
}

// SetSlog sets the level and format of the default logger. JSON logs go to stderr, leaving stdout to
// the command output, and carry their source location at debug level.
func SetSlog(count int, jsonLogs bool) {
	level := levelFor(count)
	if !jsonLogs {
		slog.SetDefault(textLogger)
		SetVerbosity(count)
		return
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})))
}

func levelFor(count int) slog.Level {
	switch {
	case count <= 0:
		return constants.DefaultLogLevel
	case count == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
