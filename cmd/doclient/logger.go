package main

import (
	"io"

	doclient "github.com/goliatone/go-doclient"
	"github.com/goliatone/go-doclient/activitymap"
	"github.com/sirupsen/logrus"
)

var _ doclient.Logger = logrusLogger{}

// logrusLogger adapts a logrus entry to doclient.Logger.
type logrusLogger struct {
	entry *logrus.Entry
}

func newLogger(out io.Writer, level string) logrusLogger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	l.SetLevel(lvl)

	return logrusLogger{entry: logrus.NewEntry(l).WithField("component", "doclient")}
}

func (l logrusLogger) Debug(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

func (l logrusLogger) Info(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l logrusLogger) Warn(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

func (l logrusLogger) Error(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

// activitySink logs session events at info level.
func (l logrusLogger) activitySink(baseURL string) doclient.ActivitySink {
	return activitymap.Sink(func(n activitymap.Normalized) error {
		l.entry.WithFields(logrus.Fields(n.Metadata)).
			WithFields(logrus.Fields{
				"actor":  n.ActorID,
				"object": n.ObjectID,
			}).
			Info(n.Verb)
		return nil
	}, activitymap.WithChannel("cli"), activitymap.WithObjectID(baseURL))
}
