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
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// maxFrameLength guards against a corrupt length prefix turning a
// malformed frame into an unbounded allocation.
const maxFrameLength = 16 << 20

// writeFrame encodes v with gob and writes it to w as a 4-byte
// little-endian length prefix followed by that many payload bytes, per
// §6's wire framing.
func writeFrame(w io.Writer, v interface{}) error {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(v); err != nil {
		return Wrap(Deserialization, err)
	}

	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(payload.Len()))

	if _, err := w.Write(lenPrefix[:]); err != nil {
		return Wrap(Sending, err)
	}
	if _, err := w.Write(payload.Bytes()); err != nil {
		return Wrap(Sending, err)
	}
	return nil
}

// readFrame reads a 4-byte little-endian length prefix and that many
// payload bytes from r, then gob-decodes into v.
func readFrame(r io.Reader, v interface{}) error {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Wrap(Receiving, err)
	}

	length := binary.LittleEndian.Uint32(lenPrefix[:])
	if length > maxFrameLength {
		return New(Deserialization, fmt.Sprintf("frame length %d exceeds limit", length))
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Wrap(Receiving, err)
	}

	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
		return Wrap(Deserialization, err)
	}
	return nil
}
