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

import "log/slog"

// The core's severities extend slog's four levels with TRACE (finer
// than DEBUG) and OFF (coarser than ERROR), matching the teacher's
// logger package.
const (
	LevelTrace slog.Level = slog.LevelDebug - 4
	LevelDebug slog.Level = slog.LevelDebug
	LevelInfo  slog.Level = slog.LevelInfo
	LevelWarn  slog.Level = slog.LevelWarn
	LevelError slog.Level = slog.LevelError
	LevelOff   slog.Level = slog.LevelError + 4
)

const (
	severityTrace   = "TRACE"
	severityDebug   = "DEBUG"
	severityInfo    = "INFO"
	severityWarning = "WARNING"
	severityError   = "ERROR"
)

func severityName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return severityTrace
	case l < LevelInfo:
		return severityDebug
	case l < LevelWarn:
		return severityInfo
	case l < LevelError:
		return severityWarning
	default:
		return severityError
	}
}

// ParseLevel maps a config severity string ("TRACE".."OFF") onto its
// slog.Level, defaulting to INFO for an unrecognized value.
func ParseLevel(severity string) slog.Level {
	switch severity {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARNING", "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "OFF":
		return LevelOff
	default:
		return LevelInfo
	}
}

func setLoggingLevel(severity string, v *slog.LevelVar) {
	v.Set(ParseLevel(severity))
}
