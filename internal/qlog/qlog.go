// Package qlog wraps logrus behind the narrow logging interface quic-go's
// internal/utils.Logger exposes, so call sites across qonn/http3 read as
// c.logger.Debugf(...) backed by a real structured logger instead of a
// hand-rolled one.
package qlog

import "github.com/sirupsen/logrus"

// Logger is the logging surface consumed throughout qonn and http3.
type Logger interface {
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithPrefix(prefix string) Logger
}

type entryLogger struct {
	entry *logrus.Entry
}

// Default is the package-level logger, analogous to quic-go's
// utils.DefaultLogger.
var Default Logger = &entryLogger{entry: logrus.NewEntry(logrus.StandardLogger())}

func (l *entryLogger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *entryLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *entryLogger) WithPrefix(prefix string) Logger {
	return &entryLogger{entry: l.entry.WithField("component", prefix)}
}
