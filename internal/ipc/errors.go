// Copyright 2015 Google Inc. All Rights Reserved.
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

package ipc

import (
	"fmt"

	"github.com/jacobsa/fuse"
)

// Kind tags the error taxonomy of the channel. None of these are fatal
// to the mount; the adaptor maps each to a FUSE errno and replies.
type Kind int

const (
	NoGame Kind = iota
	NoCurrentGame
	ClientError
	Connecting
	Sending
	Receiving
	SettingTimeout
	Deserialization
	UnexpectedGameResponse
	UnexpectedResponse
	BadInput
	BadData
)

func (k Kind) String() string {
	switch k {
	case NoGame:
		return "no_game"
	case NoCurrentGame:
		return "no_current_game"
	case ClientError:
		return "client_error"
	case Connecting:
		return "connecting"
	case Sending:
		return "sending"
	case Receiving:
		return "receiving"
	case SettingTimeout:
		return "setting_timeout"
	case Deserialization:
		return "deserialization"
	case UnexpectedGameResponse:
		return "unexpected_game_response"
	case UnexpectedResponse:
		return "unexpected_response"
	case BadInput:
		return "bad_input"
	case BadData:
		return "bad_data"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the channel's error type. Cause wraps the underlying system
// error when one exists (e.g. the *net.OpError behind Connecting).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error around an underlying cause.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Errno maps the taxonomy onto the FUSE errno table of §7. This lives
// next to the error type itself, the way the teacher keeps its small
// sentinel errors close to the code that produces them, rather than
// duplicating a parallel switch inside the adaptor.
func (e *Error) Errno() error {
	switch e.Kind {
	case NoGame:
		return fuse.ENOENT
	case NoCurrentGame, ClientError:
		return fuse.EOPNOTSUPP
	case Connecting, Sending, Receiving, SettingTimeout, Deserialization:
		return fuse.EIO
	case UnexpectedGameResponse, UnexpectedResponse, BadInput, BadData:
		return fuse.EINVAL
	default:
		return fuse.EIO
	}
}

// Errno maps err onto a FUSE errno if it is (or wraps) an *Error,
// falling back to EIO for anything else so a caller never has to
// special-case a plain Go error reaching the adaptor boundary.
func Errno(err error) error {
	if err == nil {
		return nil
	}
	var ipcErr *Error
	if asError(err, &ipcErr) {
		return ipcErr.Errno()
	}
	return fuse.EIO
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
