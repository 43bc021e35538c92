// Copyright 2025 Google LLC
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
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncLogger decouples log writes from the FUSE worker path: Write
// copies the bytes and hands them to a background goroutine, so a slow
// or stalled log sink (rotation, disk contention) never blocks a
// filesystem operation. A full buffer drops the message rather than
// blocking, logging the drop to stderr.
type AsyncLogger struct {
	dest io.WriteCloser
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

// NewAsyncLogger starts the background writer goroutine, buffering up
// to bufferSize pending writes.
func NewAsyncLogger(dest io.WriteCloser, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		dest: dest,
		ch:   make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer close(a.done)
	for b := range a.ch {
		if _, err := a.dest.Write(b); err != nil {
			fmt.Fprintf(os.Stderr, "asynclogger: write failed: %v\n", err)
		}
	}
}

// Write implements io.Writer. It never blocks on a full buffer; it
// drops the message and reports the drop to stderr instead.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	b := make([]byte, len(p))
	copy(b, p)

	select {
	case a.ch <- b:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close drains the buffer and closes the underlying writer.
func (a *AsyncLogger) Close() error {
	a.once.Do(func() { close(a.ch) })
	<-a.done
	return a.dest.Close()
}
