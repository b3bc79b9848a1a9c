/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
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

// Package logger is the structured logging surface shared by every component
// of the connection engine. It wraps logrus the way nabbar-golib's own
// logger package does, so components depend on the small Logger interface
// below instead of importing logrus directly.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nabbar/connengine/logger/level"
)

// Fields is a structured set of key/value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger is the minimal structured logging contract used across the engine.
type Logger interface {
	SetLevel(lvl level.Level)
	GetLevel() level.Level

	WithField(key string, val interface{}) Logger
	WithFields(f Fields) Logger

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// LogError logs err at ErrorLevel with msg as context, no-op on nil err.
	LogError(msg string, err error)
}

type logger struct {
	mu  sync.RWMutex
	lvl level.Level
	lg  *logrus.Logger
	ent *logrus.Entry
}

// New builds a Logger writing to w (os.Stderr if nil) at the given level.
func New(lvl level.Level, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl.Logrus())
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &logger{lvl: lvl, lg: l, ent: logrus.NewEntry(l)}
}

func (l *logger) SetLevel(lvl level.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lvl = lvl
	l.lg.SetLevel(lvl.Logrus())
}

func (l *logger) GetLevel() level.Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lvl
}

func (l *logger) WithField(key string, val interface{}) Logger {
	return &logger{lvl: l.GetLevel(), lg: l.lg, ent: l.ent.WithField(key, val)}
}

func (l *logger) WithFields(f Fields) Logger {
	return &logger{lvl: l.GetLevel(), lg: l.lg, ent: l.ent.WithFields(logrus.Fields(f))}
}

func (l *logger) Debugf(format string, args ...interface{}) { l.ent.Debugf(format, args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.ent.Infof(format, args...) }
func (l *logger) Warnf(format string, args ...interface{})  { l.ent.Warnf(format, args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.ent.Errorf(format, args...) }

func (l *logger) LogError(msg string, err error) {
	if err == nil {
		return
	}
	l.ent.WithField("error", err.Error()).Error(msg)
}

// Discard returns a Logger that drops every entry, for components
// constructed without an explicit logger (tests, embedding callers that
// don't care about diagnostics).
func Discard() Logger {
	return New(level.FatalLevel, io.Discard)
}
