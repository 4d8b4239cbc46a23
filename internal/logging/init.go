// Package logging sets up the process wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
)

const (
	JSON = "json"
	Text = "text"
	Tint = "tint"
)

// New returns a logger of the given type writing to out.
func New(loggingType, logLevelName string, out io.Writer) (*slog.Logger, error) {
	var logLevel slog.Level
	err := logLevel.UnmarshalText([]byte(logLevelName))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse log level")
	}

	var (
		logHandlerOptions = slog.HandlerOptions{
			AddSource: true,
			Level:     logLevel,
		}
		logHandler slog.Handler
	)

	switch loggingType {
	case JSON:
		logHandler = slog.NewJSONHandler(out, &logHandlerOptions)
	case Text:
		logHandler = slog.NewTextHandler(out, &logHandlerOptions)
	case Tint:
		logHandler = tint.NewHandler(out, &tint.Options{
			AddSource: logHandlerOptions.AddSource,
			Level:     logHandlerOptions.Level,
			NoColor:   out != os.Stdout && out != os.Stderr,
		})
	default:
		return nil, errors.Errorf("unknown logging type: %s", loggingType)
	}

	return slog.New(logHandler), nil
}

// Initialize installs the default logger. Records go to stderr and, when logFile is set,
// are also appended to logFile. The returned closer releases the log file.
func Initialize(loggingType, logLevelName, logFile string) (io.Closer, error) {
	var (
		out    io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to open log file %s", logFile)
		}
		out = io.MultiWriter(os.Stderr, file)
		closer = file
	}

	logger, err := New(loggingType, logLevelName, out)
	if err != nil {
		_ = closer.Close()

		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("logging initialized", "logLevel", logLevelName, "file", logFile)

	return closer, nil
}
