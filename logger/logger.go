/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger is the logging interface consumed by every component of
// this framework (§6 "Logging interface": level checks plus formatted
// emit). The framework core never imports logrus directly outside this
// package, so a host can supply its own Logger implementation instead.
package logger

import "github.com/sirupsen/logrus"

// Fields attaches structured context to a log line.
type Fields map[string]interface{}

// Logger is the logging contract every domain package depends on.
type Logger interface {
	IsInfoEnabled() bool
	IsErrorEnabled() bool

	WithFields(f Fields) Logger

	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warning(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New returns a Logger backed by a logrus.Logger at the given level name
// ("debug", "info", "warn", "error" ...); an unrecognized level defaults to
// info.
func New(level string) Logger {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	l.SetLevel(lvl)

	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// NewDiscard returns a Logger that drops everything, useful as a default
// when a host does not register one.
func NewDiscard() Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})

	return &logrusLogger{entry: logrus.NewEntry(l)}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (l *logrusLogger) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}

func (l *logrusLogger) IsErrorEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.ErrorLevel)
}

func (l *logrusLogger) WithFields(f Fields) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(f))}
}

func (l *logrusLogger) Debug(msg string, args ...interface{}) {
	l.entry.Debugf(msg, args...)
}

func (l *logrusLogger) Info(msg string, args ...interface{}) {
	l.entry.Infof(msg, args...)
}

func (l *logrusLogger) Warning(msg string, args ...interface{}) {
	l.entry.Warnf(msg, args...)
}

func (l *logrusLogger) Error(msg string, args ...interface{}) {
	l.entry.Errorf(msg, args...)
}

func (l *logrusLogger) Fatal(msg string, args ...interface{}) {
	l.entry.Fatalf(msg, args...)
}
