package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// SetupLogger configures the standard logrus logger. format is "json" or
// "text"; anything else falls back to json. An unknown level is an error
// and leaves the logger at info.
func SetupLogger(level, format string) error {
	return configureLogger(logrus.StandardLogger(), os.Stdout, level, format)
}

func configureLogger(l *logrus.Logger, out io.Writer, level, format string) error {
	l.SetOutput(out)
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		l.SetLevel(logrus.InfoLevel)
		return fmt.Errorf("log level %q: %w", level, err)
	}
	l.SetLevel(lvl)
	return nil
}
