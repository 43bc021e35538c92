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
	"strconv"
	"strings"

	"github.com/mcfuse/mcfs/internal/state"
)

// CommandID names a read or write command a file's behaviour binds to.
// The schema package defines the concrete set (player.name,
// player.health, entity.health, ...); the channel treats it as opaque.
type CommandID uint32

// BodyType tags how a command's bytes are parsed and formatted.
type BodyType int

const (
	Integer BodyType = iota
	Float
	String
	Position
	Block
)

// bodyValue is the decoded form of a BodyType payload, used on both the
// read (response) and write (request) paths.
type bodyValue struct {
	Int      int64
	Flt      float64
	Str      string
	Pos      [3]float64
	BlockPos state.BlockPos
}

// ParseBody implements the Write parse rule of §7: trim trailing
// whitespace, then parse per BodyType. Integer/Float use a standard
// decimal parse; String keeps the trimmed text; Position is three
// whitespace-separated decimals; Block is three integers separated by
// comma or whitespace.
func ParseBody(bt BodyType, raw []byte) (bodyValue, error) {
	text := strings.TrimRight(string(raw), " \t\r\n")

	switch bt {
	case Integer:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return bodyValue{}, New(BadInput, "not an integer: "+text)
		}
		return bodyValue{Int: n}, nil

	case Float:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return bodyValue{}, New(BadInput, "not a float: "+text)
		}
		return bodyValue{Flt: f}, nil

	case String:
		return bodyValue{Str: text}, nil

	case Position:
		fields := strings.Fields(text)
		if len(fields) != 3 {
			return bodyValue{}, New(BadInput, "position needs 3 components: "+text)
		}
		var pos [3]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return bodyValue{}, New(BadInput, "not a position: "+text)
			}
			pos[i] = v
		}
		return bodyValue{Pos: pos}, nil

	case Block:
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) != 3 {
			return bodyValue{}, New(BadInput, "block needs 3 components: "+text)
		}
		var coords [3]int32
		for i, f := range fields {
			v, err := strconv.ParseInt(f, 10, 32)
			if err != nil {
				return bodyValue{}, New(BadInput, "not a block position: "+text)
			}
			coords[i] = int32(v)
		}
		return bodyValue{BlockPos: state.BlockPos{X: coords[0], Y: coords[1], Z: coords[2]}}, nil
	}

	return bodyValue{}, New(BadInput, "unknown body type")
}

// FormatBody renders a read command's response body the way §4.G
// prescribes: Float → debug-printed number; Integer → decimal; String →
// as-is; Position → three lines of debug-printed floats.
func FormatBody(bt BodyType, v bodyValue) []byte {
	var buf bytes.Buffer
	switch bt {
	case Integer:
		buf.WriteString(strconv.FormatInt(v.Int, 10))
		buf.WriteByte('\n')
	case Float:
		buf.WriteString(strconv.FormatFloat(v.Flt, 'g', -1, 64))
		buf.WriteByte('\n')
	case String:
		buf.WriteString(v.Str)
		buf.WriteByte('\n')
	case Position:
		for _, c := range v.Pos {
			buf.WriteString(strconv.FormatFloat(c, 'g', -1, 64))
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// --- Wire types -------------------------------------------------------
//
// These mirror §6's Request/Command/WriteBody/StateRequest/Response/
// StateResponse contracts directly; gob (see DESIGN.md for why stdlib)
// encodes them across the length-prefixed frame of the wire.

type requestTag uint8

const (
	tagCommand requestTag = iota
	tagStateRequest
)

// wireRequest is the top-level framed message sent to the game.
type wireRequest struct {
	Tag          requestTag
	Command      *wireCommand
	StateRequest *wireStateRequest
}

type wireCommand struct {
	CmdID           CommandID
	TargetEntityID  *int32
	TargetIsPlayer  *bool
	TargetWorld     *state.Dimension
	TargetBlock     *state.BlockPos
	Write           *wireWriteBody
	ExpectBody      BodyType
	ExpectBodyValid bool
}

type wireWriteBodyTag uint8

const (
	writeInt32 wireWriteBodyTag = iota
	writeFloat32
	writeString
	writeVec3
	writeBlockPos
)

type wireWriteBody struct {
	Tag      wireWriteBodyTag
	Int32    int32
	Float32  float32
	Str      string
	Vec3     [3]float64
	BlockPos state.BlockPos
}

type wireStateRequest struct {
	EntitiesByID bool
	TargetWorld  *state.Dimension
	TargetBlock  *state.BlockPos
}

type wireErrorCode uint8

const (
	errNoCurrentGame wireErrorCode = iota
	errClient
	errUnexpected
)

// wireResponse answers a Command.
type wireResponse struct {
	Error       *wireErrorCode
	ErrorText   string
	Float32     *float32
	Int32       *int32
	Str         *string
	Vec3        *[3]float64
	WrittenBody bool
}

// wireStateResponse answers a StateRequest.
type wireStateResponse struct {
	PlayerEntityID *int32
	PlayerWorld    *state.Dimension
	Entities       []wireEntity
	Block          *wireBlock
}

type wireEntity struct {
	ID     int32
	Living bool
}

type wireBlock struct {
	Pos      state.BlockPos
	HasColor bool
}
