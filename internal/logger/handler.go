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
	"log/slog"
	"strings"
	"sync"
)

// textHandler renders "time=\"...\" severity=LEVEL message=\"...\" k=v
// ...", matching the teacher's plain operator-facing log line.
type textHandler struct {
	mu     sync.Mutex
	w      io.Writer
	level  *slog.LevelVar
	prefix string
	attrs  []slog.Attr
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "time=%q severity=%s message=%q", r.Time.Format("01/02/2006 15:04:05.000000"), severityName(r.Level), h.prefix+r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := &textHandler{w: h.w, level: h.level, prefix: h.prefix}
	n.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return n
}

func (h *textHandler) WithGroup(_ string) slog.Handler {
	return h
}

// jsonHandler renders "{\"timestamp\":{\"seconds\":N,\"nanos\":N},
// \"severity\":\"LEVEL\",\"message\":\"...\"[,\"k\":v...]}", the format
// the teacher's log ingestion pipeline expects.
type jsonHandler struct {
	mu     sync.Mutex
	w      io.Writer
	level  *slog.LevelVar
	prefix string
	attrs  []slog.Attr
}

func (h *jsonHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *jsonHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "{\"timestamp\":{\"seconds\":%d,\"nanos\":%d},\"severity\":%q,\"message\":%q",
		r.Time.Unix(), r.Time.Nanosecond(), severityName(r.Level), h.prefix+r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, ",%q:%q", a.Key, fmt.Sprint(a.Value.Any()))
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, ",%q:%q", a.Key, fmt.Sprint(a.Value.Any()))
		return true
	})
	b.WriteString("}\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := &jsonHandler{w: h.w, level: h.level, prefix: h.prefix}
	n.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return n
}

func (h *jsonHandler) WithGroup(_ string) slog.Handler {
	return h
}
