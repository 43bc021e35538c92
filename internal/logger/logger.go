// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mcfuse/mcfs/cfg"
)

// defaultLogger is the slog.Logger every package-level helper writes
// through. Replaced wholesale by Init/SetLogFormat/redirectLogsToGivenBuffer
// (test-only) rather than reconfigured in place, mirroring how the
// teacher's logger package swaps loggers rather than mutating handlers.
var defaultLogger = slog.New(defaultHandlerFactory().createJsonOrTextHandler(os.Stderr, new(slog.LevelVar), ""))

// loggerFactory remembers enough to rebuild the handler whenever the
// output format, destination, or rotation policy changes at runtime.
type loggerFactory struct {
	format string

	file *os.File

	sysWriter io.Writer

	level string

	logRotateConfig cfg.LogRotateConfig

	async *AsyncLogger
}

var defaultLoggerFactory = defaultHandlerFactory()

func defaultHandlerFactory() *loggerFactory {
	return &loggerFactory{
		format:          "text",
		sysWriter:       os.Stderr,
		level:           severityInfo,
		logRotateConfig: cfg.LogRotateConfig{MaxFileSizeMb: 10, BackupFileCount: 10, Compress: true},
	}
}

// Init builds the process-wide logger from the resolved config: file or
// stderr destination, rotation via lumberjack, async decoupling from the
// FUSE worker path, and the configured severity/format.
func Init(c cfg.Config) error {
	return InitLogFile(c.Logging)
}

// InitLogFile wires the destination (file, rotated via lumberjack, or
// stderr), the format, and the severity. Kept as its own entry point
// (distinct from Init) since tests exercise it directly against a
// narrower cfg.LoggingConfig, the way the teacher keeps file-wiring
// separate from full process Init.
func InitLogFile(c cfg.LoggingConfig) error {
	factory := &loggerFactory{
		format:          c.Format,
		level:           string(c.Severity),
		logRotateConfig: c.LogRotate,
	}

	var dest io.Writer
	if c.FilePath == "" {
		factory.sysWriter = os.Stderr
		dest = os.Stderr
	} else {
		lj := &lumberjack.Logger{
			Filename:   string(c.FilePath),
			MaxSize:    c.LogRotate.MaxFileSizeMb,
			MaxBackups: c.LogRotate.BackupFileCount,
			Compress:   c.LogRotate.Compress,
		}
		f, err := os.OpenFile(string(c.FilePath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		factory.file = f
		async := NewAsyncLogger(lj, 10000)
		factory.async = async
		dest = async
	}

	programLevel := new(slog.LevelVar)
	setLoggingLevel(factory.level, programLevel)
	defaultLogger = slog.New(factory.createJsonOrTextHandler(dest, programLevel, ""))
	defaultLoggerFactory = factory
	return nil
}

// SetLogFormat swaps the active handler's format ("text" or "json",
// defaulting to "json" for anything else) without touching the
// destination or level.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format

	var dest io.Writer = os.Stderr
	switch {
	case defaultLoggerFactory.async != nil:
		dest = defaultLoggerFactory.async
	case defaultLoggerFactory.sysWriter != nil:
		dest = defaultLoggerFactory.sysWriter
	}

	programLevel := new(slog.LevelVar)
	setLoggingLevel(defaultLoggerFactory.level, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(dest, programLevel, ""))
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	if f.format == "text" {
		return &textHandler{w: w, level: level, prefix: prefix}
	}
	return &jsonHandler{w: w, level: level, prefix: prefix}
}

func log(level slog.Level, format string, v ...interface{}) {
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	msg := format
	if len(v) > 0 {
		msg = fmt.Sprintf(format, v...)
	}
	defaultLogger.Log(context.Background(), level, msg)
}

func Tracef(format string, v ...interface{}) { log(LevelTrace, format, v...) }
func Debugf(format string, v ...interface{}) { log(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { log(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { log(LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { log(LevelError, format, v...) }

// Trace, Debug, Info, Warn, and Error carry structured key/value fields
// (inode numbers, command ids, dimensions) instead of %v-formatted
// strings, for call sites that want attributable fields rather than a
// prose message.
func Trace(msg string, args ...any) { defaultLogger.Log(context.Background(), LevelTrace, msg, args...) }
func Debug(msg string, args ...any) { defaultLogger.Log(context.Background(), LevelDebug, msg, args...) }
func Info(msg string, args ...any)  { defaultLogger.Log(context.Background(), LevelInfo, msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Log(context.Background(), LevelWarn, msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Log(context.Background(), LevelError, msg, args...) }

// legacyWriter adapts the structured logger to io.Writer so a
// stdlib *log.Logger (the type jacobsa/fuse's MountConfig.ErrorLogger
// and DebugLogger expect) can write through it at a fixed level.
type legacyWriter struct {
	level slog.Level
}

func (w legacyWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSuffix(string(p), "\n")
	if defaultLogger.Enabled(context.Background(), w.level) {
		defaultLogger.Log(context.Background(), w.level, msg)
	}
	return len(p), nil
}

// StdLogger returns a *log.Logger prefixed with prefix that writes
// through the package logger at level, for handing to APIs (like
// jacobsa/fuse's MountConfig) that require the standard library's
// logger type rather than slog.
func StdLogger(level slog.Level, prefix string) *log.Logger {
	return log.New(legacyWriter{level: level}, prefix, 0)
}
