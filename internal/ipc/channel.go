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

// Package ipc implements the length-prefixed framed RPC channel to the
// running game, grounded on ipc/src/channel.rs of the source this
// filesystem's schema was distilled from.
package ipc

import (
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/mcfuse/mcfs/internal/state"
)

// ioTimeout bounds every socket read and write, per §5.
const ioTimeout = 5 * time.Second

// maxRetries is the number of reconnect attempts made after a write
// fails with a broken pipe or refused connection, per §4.B.
const maxRetries = 2

// SocketPath returns the well-known path the game listens on:
// ${TMPDIR or /tmp}/minecraft-fuse-${USER or "user"}.
func SocketPath() string {
	dir := os.Getenv("TMPDIR")
	if dir == "" {
		dir = "/tmp"
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "user"
	}
	return dir + "/minecraft-fuse-" + user
}

// Channel is a connection to the game over a local Unix stream socket.
// Round trips and Close are serialised by an internal mutex, so at most
// one request is in flight at a time; per §5 it is exclusively owned by
// a single caller (the FUSE adaptor).
type Channel struct {
	mu   sync.Mutex
	path string
	conn net.Conn
}

// OpenExisting connects to the well-known socket path. It reports
// NoGame if the path does not exist, Connecting for any other dial
// failure.
func OpenExisting() (*Channel, error) {
	path := SocketPath()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, New(NoGame, path)
		}
		return nil, Wrap(Connecting, err)
	}

	c := &Channel{path: path}
	if err := c.dial(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Channel) dial() error {
	conn, err := net.DialTimeout("unix", c.path, ioTimeout)
	if err != nil {
		return Wrap(Connecting, err)
	}
	c.conn = conn
	return nil
}

func (c *Channel) setTimeouts() error {
	deadline := time.Now().Add(ioTimeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return Wrap(SettingTimeout, err)
	}
	return nil
}

// Close releases the underlying socket.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// isRecoverable reports whether err is a broken-pipe, connection-refused
// or closed-connection condition eligible for the reconnect-and-retry
// policy of §4.B/§7.
func isRecoverable(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscallBrokenPipe) ||
		errors.Is(err, syscallConnRefused)
}

// sendRaw writes req and reads resp, retrying through a reconnect up to
// maxRetries times if the write fails with a recoverable error. Each
// call starts its own attempt count, matching attempt_write's reboot
// loop in the source.
func (c *Channel) sendRaw(req interface{}, resp interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	attempt := 0
	for {
		if c.conn == nil {
			if err := c.dial(); err != nil {
				return err
			}
		}

		if err := c.setTimeouts(); err != nil {
			return err
		}

		writeErr := writeFrame(c.conn, req)
		if writeErr == nil {
			return readFrame(c.conn, resp)
		}

		var ipcErr *Error
		if !asError(writeErr, &ipcErr) || !isRecoverable(ipcErr.Cause) {
			return writeErr
		}

		attempt++
		_ = c.conn.Close()
		c.conn = nil

		if attempt > maxRetries {
			return writeErr
		}
	}
}

// SendReadCommand frames a read request for cmd, awaits exactly one
// response, and returns the typed body formatted per bt.
func (c *Channel) SendReadCommand(cmd CommandID, bt BodyType, cs state.CommandState) ([]byte, error) {
	req := wireRequest{Tag: tagCommand, Command: commandFromState(cmd, cs, nil)}
	req.Command.ExpectBody = bt
	req.Command.ExpectBodyValid = true

	var resp wireResponse
	if err := c.sendRaw(req, &resp); err != nil {
		return nil, err
	}

	if err := responseError(resp); err != nil {
		return nil, err
	}

	v, err := bodyFromResponse(bt, resp)
	if err != nil {
		return nil, err
	}
	return FormatBody(bt, v), nil
}

// SendWriteCommand parses raw as bt, sends it as a write command, and
// returns the number of input bytes accepted (which is len(raw): writes
// are whole-body, offsets are ignored).
func (c *Channel) SendWriteCommand(cmd CommandID, bt BodyType, raw []byte, cs state.CommandState) (int, error) {
	v, err := ParseBody(bt, raw)
	if err != nil {
		return 0, err
	}

	wb, err := writeBodyFromValue(bt, v)
	if err != nil {
		return 0, err
	}

	req := wireRequest{Tag: tagCommand, Command: commandFromState(cmd, cs, wb)}

	var resp wireResponse
	if err := c.sendRaw(req, &resp); err != nil {
		return 0, err
	}
	if err := responseError(resp); err != nil {
		return 0, err
	}

	return len(raw), nil
}

// SendStateRequest frames a StateRequest for interest and returns the
// decoded snapshot.
func (c *Channel) SendStateRequest(interest state.Interest) (*state.Snapshot, error) {
	req := wireRequest{
		Tag: tagStateRequest,
		StateRequest: &wireStateRequest{
			EntitiesByID: interest.EntitiesByID,
			TargetWorld:  interest.TargetWorld,
			TargetBlock:  interest.TargetBlock,
		},
	}

	var resp wireStateResponse
	if err := c.sendRaw(req, &resp); err != nil {
		return nil, err
	}

	return snapshotFromWire(resp), nil
}

func commandFromState(cmd CommandID, cs state.CommandState, write *wireWriteBody) *wireCommand {
	wc := &wireCommand{
		CmdID:       cmd,
		TargetWorld: cs.TargetWorld,
		TargetBlock: cs.TargetBlock,
		Write:       write,
	}
	if cs.TargetEntity != nil {
		if cs.TargetEntity.Player {
			isPlayer := true
			wc.TargetIsPlayer = &isPlayer
		} else {
			id := cs.TargetEntity.EntityID
			wc.TargetEntityID = &id
		}
	}
	return wc
}

func writeBodyFromValue(bt BodyType, v bodyValue) (*wireWriteBody, error) {
	switch bt {
	case Integer:
		return &wireWriteBody{Tag: writeInt32, Int32: int32(v.Int)}, nil
	case Float:
		return &wireWriteBody{Tag: writeFloat32, Float32: float32(v.Flt)}, nil
	case String:
		return &wireWriteBody{Tag: writeString, Str: v.Str}, nil
	case Position:
		return &wireWriteBody{Tag: writeVec3, Vec3: v.Pos}, nil
	case Block:
		return &wireWriteBody{Tag: writeBlockPos, BlockPos: v.BlockPos}, nil
	}
	return nil, New(BadData, "unknown body type")
}

func responseError(resp wireResponse) error {
	if resp.Error == nil {
		return nil
	}
	switch *resp.Error {
	case errNoCurrentGame:
		return New(NoCurrentGame, resp.ErrorText)
	case errClient:
		return New(ClientError, resp.ErrorText)
	default:
		return New(UnexpectedGameResponse, resp.ErrorText)
	}
}

func bodyFromResponse(bt BodyType, resp wireResponse) (bodyValue, error) {
	switch bt {
	case Integer:
		if resp.Int32 == nil {
			return bodyValue{}, New(UnexpectedResponse, "expected integer body")
		}
		return bodyValue{Int: int64(*resp.Int32)}, nil
	case Float:
		if resp.Float32 == nil {
			return bodyValue{}, New(UnexpectedResponse, "expected float body")
		}
		return bodyValue{Flt: float64(*resp.Float32)}, nil
	case String:
		if resp.Str == nil {
			return bodyValue{}, New(UnexpectedResponse, "expected string body")
		}
		return bodyValue{Str: *resp.Str}, nil
	case Position:
		if resp.Vec3 == nil {
			return bodyValue{}, New(UnexpectedResponse, "expected position body")
		}
		return bodyValue{Pos: *resp.Vec3}, nil
	}
	return bodyValue{}, New(UnexpectedResponse, "unknown body type")
}

func snapshotFromWire(resp wireStateResponse) *state.Snapshot {
	snap := &state.Snapshot{
		PlayerEntityID: resp.PlayerEntityID,
		PlayerWorld:    resp.PlayerWorld,
	}
	for _, e := range resp.Entities {
		snap.Entities = append(snap.Entities, state.EntityDescriptor{ID: e.ID, Living: e.Living})
	}
	if resp.Block != nil {
		snap.Block = &state.BlockInfo{Pos: resp.Block.Pos, HasColor: resp.Block.HasColor}
	}
	return snap
}
