// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sleepy-project/sleepy-agent/internal/config"
)

// Setup points the global logger at a rotating log file and, when running in
// the foreground, at a console writer on stderr as well. The returned closer
// releases the log file.
func Setup(cfg config.LogConfig, foreground bool) (io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}
	zerolog.SetGlobalLevel(level)

	rotatingFile := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}

	var out io.Writer = rotatingFile
	if foreground {
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
		out = zerolog.MultiLevelWriter(console, rotatingFile)
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return rotatingFile, nil
}
