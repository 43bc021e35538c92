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

// Package registry is the core of the core: the Entry tagged union
// (this file), the inode/parent/children/dynamic-state/phantom registry
// (registry.go), generation and phantom materialisation (generate.go),
// phantom-name parsing and formatting (phantom.go), and the fluent
// builder that seeds the static tree (builder.go).
package registry

import (
	"github.com/jacobsa/fuse/fuseops"

	"github.com/mcfuse/mcfs/internal/ipc"
	"github.com/mcfuse/mcfs/internal/state"
)

// Kind tags which of the three Entry variants a value holds.
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindLink
)

// BehaviourKind tags which FileBehaviour variant a File entry carries.
type BehaviourKind int

const (
	BehaviourReadOnly BehaviourKind = iota
	BehaviourWriteOnly
	BehaviourReadWrite
	BehaviourStatic
	BehaviourCommandProxy
	BehaviourForShow
)

// ParseCommandFn transforms a write's UTF-8 body into the server-command
// string a CommandProxy file sends. ok=false means the input didn't
// parse; the adaptor replies EINVAL.
type ParseCommandFn func(utf8 string) (command string, ok bool)

// FileBehaviour describes how a File entry's bytes are produced and
// consumed, per §3.
type FileBehaviour struct {
	Kind BehaviourKind

	// ReadOnly, WriteOnly, ReadWrite.
	CommandID ipc.CommandID
	BodyType  ipc.BodyType

	// Static.
	StaticBytes []byte

	// CommandProxy.
	Readme    []byte
	ParseFn   ParseCommandFn
	FnIdentTag interface{}
}

// Readable reports whether a read() against this behaviour produces
// bytes rather than EOPNOTSUPP.
func (b FileBehaviour) Readable() bool {
	switch b.Kind {
	case BehaviourReadOnly, BehaviourReadWrite, BehaviourStatic, BehaviourCommandProxy:
		return true
	default:
		return false
	}
}

// Writable reports whether write() against this behaviour is accepted.
func (b FileBehaviour) Writable() bool {
	switch b.Kind {
	case BehaviourWriteOnly, BehaviourReadWrite, BehaviourCommandProxy:
		return true
	default:
		return false
	}
}

// FilterResult is the outcome of evaluating an Entry's filter against a
// snapshot.
type FilterResult int

const (
	IncludeSelf FilterResult = iota
	IncludeAllChildren
	Exclude
)

// FilterFn decides whether an entry is visible given the current
// snapshot.
type FilterFn func(snap *state.Snapshot) FilterResult

// LinkTargetFn computes a symlink's target given the current snapshot;
// a nil return (ok=false) maps to EINVAL on readlink.
type LinkTargetFn func(snap *state.Snapshot) (target string, ok bool)

// GeneratorFn produces a dynamic directory's children from a snapshot.
// It calls reg.Propose for each child it wants materialised; the
// registry resolves identity/reuse against the prior generation.
type GeneratorFn func(snap *state.Snapshot, reg *Proposals)

// DynamicStateType tags what kind of live data a dynamic directory's
// generator depends on, and therefore what StateInterest fields must be
// populated before it runs.
type DynamicStateType int

const (
	DynEntitiesByID DynamicStateType = iota
	DynPlayerID
	DynBlock
	DynPhantomGenerated
)

// PhantomStateType tags a concrete phantom kind once a name has been
// parsed (e.g. a parsed block coordinate). A schema registers one
// parser per phantom-bearing directory; the parser's return value
// becomes this tag plus the per-instance AssociatedData.
type PhantomStateType int

// AssociatedDataKind tags which field of AssociatedData is populated.
type AssociatedDataKind int

const (
	AssocNone AssociatedDataKind = iota
	AssocPlayerID
	AssocEntityID
	AssocWorld
	AssocBlock
)

// AssociatedData binds context to an entry: which player/entity/world/
// block it concerns. Applied to a CommandState and to an Interest on an
// ancestor walk, first-writer (closest ancestor) wins.
type AssociatedData struct {
	Kind     AssociatedDataKind
	EntityID int32
	World    state.Dimension
	Block    state.BlockPos
}

// ApplyToState sets the matching CommandState field iff it is not
// already set, implementing the closer-ancestor-wins rule of §4.E.
func (a AssociatedData) ApplyToState(cs *state.CommandState) {
	switch a.Kind {
	case AssocPlayerID:
		if cs.TargetEntity == nil {
			cs.TargetEntity = &state.EntityRef{Player: true}
		}
	case AssocEntityID:
		if cs.TargetEntity == nil {
			cs.TargetEntity = &state.EntityRef{EntityID: a.EntityID}
		}
	case AssocWorld:
		if cs.TargetWorld == nil {
			w := a.World
			cs.TargetWorld = &w
		}
	case AssocBlock:
		if cs.TargetBlock == nil {
			b := a.Block
			cs.TargetBlock = &b
		}
	}
}

// ApplyToInterest mirrors ApplyToState for the StateInterest being
// accumulated during interest aggregation.
func (a AssociatedData) ApplyToInterest(in *state.Interest) {
	switch a.Kind {
	case AssocWorld:
		if in.TargetWorld == nil {
			w := a.World
			in.TargetWorld = &w
		}
	case AssocBlock:
		if in.TargetBlock == nil {
			b := a.Block
			in.TargetBlock = &b
		}
	}
}

// DynGenerator pairs a DynamicStateType with the function that
// materialises a dynamic directory's children.
type DynGenerator struct {
	Type      DynamicStateType
	Generator GeneratorFn
	// IdentTag distinguishes generator closures that share a Go function
	// value but capture different data (see Entry.Equal).
	IdentTag interface{}
}

// Entry is the tagged union of §3: File, Dir, or Link.
type Entry struct {
	Kind Kind
	Name string

	// File.
	Behaviour FileBehaviour

	// Dir.
	Dynamic *DynGenerator

	// Link.
	Target LinkTargetFn
	// TargetIdentTag distinguishes Target closures the same way
	// DynGenerator.IdentTag does for generators.
	TargetIdentTag interface{}

	// Common to all three.
	Filter   FilterFn
	FilterTag interface{}
	Assoc    AssociatedData
}

// EvalFilter applies the entry's filter, defaulting to IncludeSelf when
// none is set (Files/Links) and IncludeSelf for filterless Dirs too,
// per §4.D.
func (e Entry) EvalFilter(snap *state.Snapshot) FilterResult {
	if e.Filter == nil {
		return IncludeSelf
	}
	return e.Filter(snap)
}

// Equal implements the structural/content equality of §4.D used by the
// generation diff to decide whether a freshly proposed entry is the
// "same" entry as one already registered under that name, and therefore
// entitled to keep its inode. Two entries are equal when they have the
// same variant, same AssociatedData, the same filter identity, and the
// same behaviour/target identity. Closures are compared by an identity
// tag supplied by the generator (FilterTag/TargetIdentTag/IdentTag/
// Behaviour.FnIdentTag) rather than by Go func value, which is not
// comparable when the closure captures data — see §4.D and §9.
func (e Entry) Equal(o Entry) bool {
	if e.Kind != o.Kind || e.Name != o.Name || e.Assoc != o.Assoc {
		return false
	}
	if !identTagsEqual(e.FilterTag, o.FilterTag) {
		return false
	}

	switch e.Kind {
	case KindFile:
		return e.Behaviour.Kind == o.Behaviour.Kind &&
			e.Behaviour.CommandID == o.Behaviour.CommandID &&
			e.Behaviour.BodyType == o.Behaviour.BodyType &&
			identTagsEqual(e.Behaviour.FnIdentTag, o.Behaviour.FnIdentTag)

	case KindDir:
		if (e.Dynamic == nil) != (o.Dynamic == nil) {
			return false
		}
		if e.Dynamic == nil {
			return true
		}
		return e.Dynamic.Type == o.Dynamic.Type &&
			identTagsEqual(e.Dynamic.IdentTag, o.Dynamic.IdentTag)

	case KindLink:
		return identTagsEqual(e.TargetIdentTag, o.TargetIdentTag)
	}
	return false
}

func identTagsEqual(a, b interface{}) bool {
	return a == b
}

// DirentKind maps an Entry's Kind onto the FUSE dirent type for
// readdir, per §4.G.
func (e Entry) DirentKind() fuseops.DirentType {
	switch e.Kind {
	case KindDir:
		return fuseops.DT_Directory
	case KindLink:
		return fuseops.DT_Link
	default:
		return fuseops.DT_File
	}
}
