package logging

import (
	"github.com/sirupsen/logrus"
)

// ConsoleSink writes colorized lines to the terminal via logrus.
type ConsoleSink struct {
	log *logrus.Logger
}

// NewConsoleSink builds a ConsoleSink writing to stderr with forced
// color output, so colors survive test harnesses and CI pipes.
func NewConsoleSink() *ConsoleSink {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true})
	return &ConsoleSink{log: l}
}

// Emit implements Sink.
func (c *ConsoleSink) Emit(r Record) {
	entry := c.log.WithField("component", r.Component)
	text := r.ColoredText
	if text == "" {
		text = r.PlainText
	}
	switch r.Severity {
	case Error:
		entry.Error(text)
	case Warn:
		entry.Warn(text)
	default:
		entry.Info(text)
	}
}
