package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields is a set of structured key/value pairs attached to a log entry.
type Fields = logrus.Fields

// Logger is the structured logger handed to every component.
// The zero value discards everything.
type Logger struct {
	entry *logrus.Entry
}

// Options configures New.
type Options struct {
	Level  string // debug|info|warn|error (default info)
	Format string // text|json (default text)
}

func New(w io.Writer, opts Options) Logger {
	base := logrus.New()
	if w == nil {
		w = io.Discard
	}
	base.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}
	return Logger{entry: logrus.NewEntry(base)}
}

// Nop returns a logger that writes nowhere.
func Nop() Logger {
	return New(io.Discard, Options{Level: "panic"})
}

func (l Logger) With(fields Fields) Logger {
	if l.entry == nil {
		return l
	}
	return Logger{entry: l.entry.WithFields(fields)}
}

func (l Logger) WithField(key string, value any) Logger {
	return l.With(Fields{key: value})
}

func (l Logger) WithError(err error) Logger {
	if l.entry == nil || err == nil {
		return l
	}
	return Logger{entry: l.entry.WithError(err)}
}

func (l Logger) Debug(message string) {
	if l.entry != nil {
		l.entry.Debug(message)
	}
}

func (l Logger) Info(message string) {
	if l.entry != nil {
		l.entry.Info(message)
	}
}

func (l Logger) Warn(message string) {
	if l.entry != nil {
		l.entry.Warn(message)
	}
}

func (l Logger) Error(message string) {
	if l.entry != nil {
		l.entry.Error(message)
	}
}

// Writer exposes the logger as an io.Writer at the given level, for
// bridging libraries that log through the standard log package. The caller
// closes it to release the pipe and its goroutine.
func (l Logger) Writer(level string) io.WriteCloser {
	if l.entry == nil {
		return nopWriteCloser{io.Discard}
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	return l.entry.WriterLevel(lvl)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
