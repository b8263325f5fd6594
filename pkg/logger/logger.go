package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"portfolio-rag/config"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.SetOutput(os.Stdout)
	log.SetLevel(parseLevel(string(config.Cfg.LogLevel)))
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableQuote:    true,
		PadLevelText:    true,
	})
}

func parseLevel(s string) logrus.Level {
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// callerPrefix returns "file.go:line" of the function that called the logger helper.
func callerPrefix() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown:0"
	}
	return fmt.Sprintf("%s:%d", file[strings.LastIndex(file, "/")+1:], line)
}

func Debug(format string, args ...interface{}) {
	log.Debugf(callerPrefix()+" "+format, args...)
}

func Info(format string, args ...interface{}) {
	log.Infof(callerPrefix()+" "+format, args...)
}

func Warn(format string, args ...interface{}) {
	log.Warnf(callerPrefix()+" "+format, args...)
}

// Error logs format with err attached as the "error" field.
func Error(err error, format string, args ...interface{}) {
	entry := log.WithFields(logrus.Fields{})
	if err != nil {
		entry = entry.WithField("error", err.Error())
	}
	entry.Errorf(callerPrefix()+" "+format, args...)
}

func Fatal(err error, format string, args ...interface{}) {
	entry := log.WithFields(logrus.Fields{})
	if err != nil {
		entry = entry.WithField("error", err.Error())
	}
	entry.Fatalf(callerPrefix()+" "+format, args...)
}

// For returns an entry tagged with the module name.
func For(module config.Module) *logrus.Entry {
	return log.WithField("module", string(module))
}

func WithField(key string, value interface{}) *logrus.Entry {
	return log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return log.WithFields(fields)
}

// SetLevel sets the log level directly
func SetLevel(levelStr string) error {
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return fmt.Errorf("invalid log level: %v", err)
	}
	log.SetLevel(level)
	return nil
}

// SetOutput redirects log output, mostly for tests and the CLI --quiet mode.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func GetLogger() *logrus.Logger {
	return log
}
