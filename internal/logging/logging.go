package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a process logger.
type Options struct {
	Level   string
	File    string
	Verbose bool
	JSON    bool
	// Stderr is written to alongside File; defaults to os.Stderr.
	Stderr io.Writer
}

// New builds the process logger. Verbose forces debug; an unknown level
// falls back to info. A non-empty File adds a rotating log file.
func New(opts Options) (*logrus.Logger, io.Closer) {
	logger := logrus.New()
	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out := opts.Stderr
	if out == nil {
		out = os.Stderr
	}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(out, rotator)
		closer = rotator
	}
	logger.SetOutput(out)

	SetLevel(logger, opts.Level, opts.Verbose)
	return logger, closer
}

// SetLevel applies a configured level; used again on config reload.
func SetLevel(logger *logrus.Logger, level string, verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		return
	}
	if level == "" {
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", level)
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
