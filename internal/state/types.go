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

// Package state models the live game snapshot, the caller's interest in
// it, and the short-TTL cache that mediates between the two.
package state

import "fmt"

// Dimension is one of the three worlds a player or entity can occupy.
type Dimension int

const (
	Overworld Dimension = iota
	Nether
	End
)

func (d Dimension) String() string {
	switch d {
	case Overworld:
		return "overworld"
	case Nether:
		return "nether"
	case End:
		return "end"
	default:
		return fmt.Sprintf("dimension(%d)", int(d))
	}
}

// BlockPos is a block coordinate triple.
type BlockPos struct {
	X, Y, Z int32
}

func (p BlockPos) String() string {
	return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z)
}

// EntityDescriptor is one entry of a snapshot's entity list.
type EntityDescriptor struct {
	ID     int32
	Living bool
}

// BlockInfo is the detail returned for a block the caller expressed
// interest in.
type BlockInfo struct {
	Pos      BlockPos
	HasColor bool
}

// Snapshot is the decoded StateResponse most recently received from the
// game. Every field but Entities is optional in the sense that it may
// be unset; a nil pointer or zero-length slice means the game did not
// report that facet for the requested interest.
type Snapshot struct {
	PlayerEntityID *int32
	PlayerWorld    *Dimension
	Entities       []EntityDescriptor
	Block          *BlockInfo
}

// Interest is the set of fields a caller wants populated in the next
// snapshot. The zero value asks for nothing beyond whatever the game
// always reports.
type Interest struct {
	EntitiesByID bool
	TargetWorld  *Dimension
	TargetBlock  *BlockPos
}

// IsAdditive reports whether next asks for a strict superset of data
// relative to i: either it turns on EntitiesByID where i had it off, or
// it sets a non-nil TargetBlock that disagrees with i's. Per spec, only
// a newly non-nil, differing TargetBlock counts — a new nil value, or
// one equal to the old, is not additive.
func (i Interest) IsAdditive(next Interest) bool {
	if next.EntitiesByID && !i.EntitiesByID {
		return true
	}
	if next.TargetBlock != nil {
		if i.TargetBlock == nil || *i.TargetBlock != *next.TargetBlock {
			return true
		}
	}
	return false
}

// EntityRef identifies the target of a command: either the calling
// player or a specific entity id.
type EntityRef struct {
	Player   bool
	EntityID int32
}

// CommandState is the per-request context composed by an ancestor walk
// over the registry: which entity, world, and/or block a file's read or
// write command should be scoped to.
type CommandState struct {
	TargetEntity *EntityRef
	TargetWorld  *Dimension
	TargetBlock  *BlockPos
}
