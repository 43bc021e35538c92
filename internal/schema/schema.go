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

// Package schema is the declarative tree content spec.md §1 scopes out of
// the core's design: what files and directories exist under player/ and
// worlds/, and which command/body type each one binds to. It is a
// consumer of internal/registry's builder, not part of the engine.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mcfuse/mcfs/internal/ipc"
	"github.com/mcfuse/mcfs/internal/registry"
	"github.com/mcfuse/mcfs/internal/state"
)

// Command IDs this schema binds its files to. The channel treats these as
// opaque; only the game-side command dispatcher needs to agree on them.
const (
	CmdPlayerName ipc.CommandID = iota + 1
	CmdPlayerHealth
	CmdPlayerControl
	CmdWorldTime
	CmdEntityHealth
	CmdBlockType
)

// controlReadme is the control file's static content; it is a
// ForShow-adjacent readme, not a growing log.
const controlReadme = "Write a command string to this file to act on the player.\n" +
	"Supported verbs: \"kill\", \"heal <amount>\", \"teleport <x> <y> <z>\".\n"

// Build populates b with the tree spec.md §8's end-to-end scenarios
// exercise: player/{name,health,world,entity,control},
// worlds/overworld/{time,entities/by-id/<id>/{health,living},
// blocks/<x,y,z>/{type,adjacent/...}}.
func Build(b *registry.Builder) {
	root := b.Root()

	player := b.AddDir(root, "player", registry.AssociatedData{Kind: registry.AssocPlayerID})
	b.AddFile(player, "name", registry.FileBehaviour{
		Kind:      registry.BehaviourReadOnly,
		CommandID: CmdPlayerName,
		BodyType:  ipc.String,
	}, registry.AssociatedData{})
	b.AddFile(player, "health", registry.FileBehaviour{
		Kind:      registry.BehaviourReadWrite,
		CommandID: CmdPlayerHealth,
		BodyType:  ipc.Float,
	}, registry.AssociatedData{})
	b.AddLink(player, "world", playerWorldTarget, playerWorldTag)
	b.AddLink(player, "entity", playerEntityTarget, playerEntityTag)
	b.AddFile(player, "control", registry.FileBehaviour{
		Kind:      registry.BehaviourCommandProxy,
		CommandID: CmdPlayerControl,
		Readme:    []byte(controlReadme),
		ParseFn:   parseControlCommand,
	}, registry.AssociatedData{})

	worlds := b.AddDir(root, "worlds", registry.AssociatedData{})
	overworld := b.AddDir(worlds, "overworld", registry.AssociatedData{Kind: registry.AssocWorld, World: state.Overworld})
	b.AddFile(overworld, "time", registry.FileBehaviour{
		Kind:      registry.BehaviourReadWrite,
		CommandID: CmdWorldTime,
		BodyType:  ipc.Integer,
	}, registry.AssociatedData{})

	entities := b.AddDir(overworld, "entities", registry.AssociatedData{})
	b.AddDynamicDir(entities, "by-id", registry.DynEntitiesByID, entitiesByIDGenerator, entitiesByIDTag)

	blocks := b.AddDir(overworld, "blocks", registry.AssociatedData{})
	b.AddPhantom(blocks, parseBlockName, blockInterest, blockGenerator)
}

// --- player/entity ------------------------------------------------------

// identity tags for the static entries above: these entries are built
// once by the builder and never regenerated, so a stable identity tag is
// enough (Equal is never invoked against them).
var playerEntityTag = new(int)
var playerWorldTag = new(int)

// playerEntityTarget routes through the player/world symlink rather than
// spelling out worlds/overworld itself, so the link still resolves to the
// right subtree if the player is ever in a dimension other than the
// overworld: relative to player/, "world" is the sibling symlink, and
// "world/entities/by-id/<id>" walks through it.
func playerEntityTarget(snap *state.Snapshot) (string, bool) {
	if snap.PlayerEntityID == nil {
		return "", false
	}
	return fmt.Sprintf("world/entities/by-id/%d", *snap.PlayerEntityID), true
}

// playerWorldTarget resolves player/world to the worlds/ subtree matching
// the player's current dimension, e.g. "../worlds/overworld".
func playerWorldTarget(snap *state.Snapshot) (string, bool) {
	if snap.PlayerWorld == nil {
		return "", false
	}
	return "../worlds/" + snap.PlayerWorld.String(), true
}

func parseControlCommand(utf8 string) (string, bool) {
	cmd := strings.TrimSpace(utf8)
	if cmd == "" {
		return "", false
	}
	return cmd, true
}

// --- worlds/overworld/entities/by-id ------------------------------------

var entitiesByIDTag = new(int)

// entityDetailIdentTag identifies every per-entity directory's nested
// generator across regenerations: the directory's AssociatedData already
// carries the entity id, so the generator function itself need not.
var entityDetailIdentTag = new(int)

func entitiesByIDGenerator(snap *state.Snapshot, reg *registry.Proposals) {
	for _, e := range snap.Entities {
		reg.Propose(strconv.FormatInt(int64(e.ID), 10), registry.Entry{
			Kind:  registry.KindDir,
			Assoc: registry.AssociatedData{Kind: registry.AssocEntityID, EntityID: e.ID},
			Dynamic: &registry.DynGenerator{
				Type:      registry.DynPhantomGenerated,
				Generator: entityDetailGenerator,
				IdentTag:  entityDetailIdentTag,
			},
		})
	}
}

// entityDetailGenerator produces one entity's health/living files. Its
// content does not vary by entity id — the id is already on the parent
// directory's AssociatedData and reaches a read/write through the
// ancestor walk, not through this generator.
func entityDetailGenerator(snap *state.Snapshot, reg *registry.Proposals) {
	reg.Propose("health", registry.Entry{
		Kind: registry.KindFile,
		Behaviour: registry.FileBehaviour{
			Kind:      registry.BehaviourReadWrite,
			CommandID: CmdEntityHealth,
			BodyType:  ipc.Float,
		},
	})
	// living is a ForShow presence marker (spec.md §8 scenario 5): "ls"
	// shows it, reading it returns EOPNOTSUPP.
	reg.Propose("living", registry.Entry{
		Kind: registry.KindFile,
		Behaviour: registry.FileBehaviour{
			Kind: registry.BehaviourForShow,
		},
	})
}

// --- worlds/overworld/blocks/<x,y,z> -------------------------------------

// blockPhantomType is the single PhantomStateType this schema registers;
// there is only one phantom kind under blocks/, so the enum has one value.
const blockPhantomType registry.PhantomStateType = 0

func parseBlockName(name string) (registry.PhantomStateType, registry.AssociatedData, bool) {
	pos, ok := registry.ParseBlockPosition(name)
	if !ok {
		return 0, registry.AssociatedData{}, false
	}
	return blockPhantomType, registry.AssociatedData{Kind: registry.AssocBlock, Block: pos}, true
}

func blockInterest(registry.PhantomStateType) registry.DynamicStateType {
	return registry.DynBlock
}

// blockTypeFilter excludes the "type" file from a listing until the
// game has actually reported block detail for this position (the
// generator runs the instant the phantom directory is materialised,
// before a round trip necessarily completed on a slow connection).
func blockTypeFilter(snap *state.Snapshot) registry.FilterResult {
	if snap.Block == nil {
		return registry.Exclude
	}
	return registry.IncludeSelf
}

var adjacentIdentTag = new(int)

func blockGenerator(snap *state.Snapshot, reg *registry.Proposals) {
	reg.Propose("type", registry.Entry{
		Kind: registry.KindFile,
		Behaviour: registry.FileBehaviour{
			Kind:      registry.BehaviourReadWrite,
			CommandID: CmdBlockType,
			BodyType:  ipc.String,
		},
		Filter: blockTypeFilter,
	})
	reg.Propose("adjacent", registry.Entry{
		Kind: registry.KindDir,
		Dynamic: &registry.DynGenerator{
			Type:      registry.DynPhantomGenerated,
			Generator: adjacentGenerator,
			IdentTag:  adjacentIdentTag,
		},
	})
}

// adjacentOffset is one of the six neighbours of a block, per spec.md §8
// scenario 6.
type adjacentOffset struct {
	name       string
	dx, dy, dz int32
}

var adjacentOffsets = []adjacentOffset{
	{"west", -1, 0, 0},
	{"east", 1, 0, 0},
	{"below", 0, -1, 0},
	{"above", 0, 1, 0},
	{"north", 0, 0, -1},
	{"south", 0, 0, 1},
}

var adjacentLinkTag = new(int)

// adjacentGenerator proposes the six neighbour symlinks. It does not read
// the block's position itself: each link's adjacentTarget reads it off
// snap.Block (not off the directory's AssociatedData) when the link is
// resolved.
func adjacentGenerator(snap *state.Snapshot, reg *registry.Proposals) {
	for _, off := range adjacentOffsets {
		reg.Propose(off.name, registry.Entry{
			Kind:           registry.KindLink,
			Target:         adjacentTarget(off),
			TargetIdentTag: adjacentLinkTag,
		})
	}
}

// adjacentTarget closes over a fixed neighbour offset; the returned
// string is a left-inverse-formatted relative path two levels up from
// the adjacent/ directory into the sibling block's phantom name.
func adjacentTarget(off adjacentOffset) registry.LinkTargetFn {
	return func(snap *state.Snapshot) (string, bool) {
		if snap.Block == nil {
			return "", false
		}
		neighbour := state.BlockPos{
			X: snap.Block.Pos.X + off.dx,
			Y: snap.Block.Pos.Y + off.dy,
			Z: snap.Block.Pos.Z + off.dz,
		}
		return "../../" + registry.FormatBlockPosition(neighbour), true
	}
}
