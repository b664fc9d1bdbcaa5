package main

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the process logger. verbosity 0 logs warnings, 1 adds
// info, 2 or more adds debug. A non-empty logFile is rotated at 10MB and
// returned as the closer; otherwise the closer is nil.
func newLogger(verbosity int, logFile string) (*slog.Logger, io.Closer) {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	var closer io.Closer
	if logFile != "" {
		lj := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		out, closer = lj, lj
	}

	opts := &slog.HandlerOptions{Level: level}
	return slog.New(slog.NewTextHandler(out, opts)), closer
}
