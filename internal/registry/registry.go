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

package registry

import (
	"fmt"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"

	"github.com/mcfuse/mcfs/internal/inode"
	"github.com/mcfuse/mcfs/internal/state"
)

// childRef names one child of a directory by inode and name. A
// directory's []childRef is kept in registration order, matching §3's
// "Name ordering is registration order."
type childRef struct {
	inode fuseops.InodeID
	name  string
}

// dynamicStateKey is the (parent inode, dynamic type) composite key
// dynamic_state is indexed by in §3.
type dynamicStateKey struct {
	parent fuseops.InodeID
	typ    DynamicStateType
}

type dynamicStateRecord struct {
	generated     map[fuseops.InodeID]struct{}
	timeCollected time.Time
}

// phantomRegistration is the parse/interest/generator triple a phantom
// directory is registered with, per §4.E/§4.F.
type phantomRegistration struct {
	parse     func(name string) (PhantomStateType, AssociatedData, bool)
	interest  func(PhantomStateType) DynamicStateType
	generator GeneratorFn
}

// Registry is the FilesystemStructure of §3: the live inode→entry map,
// parent/child links, the dynamic-state table, and the phantom table.
// GUARDED_BY(mu), the same invariant-checked-mutex idiom the teacher
// uses for DirInode and the top-level fileSystem.
type Registry struct {
	mu syncutil.InvariantMutex

	clock     timeutil.Clock
	ttl       time.Duration
	allocator *inode.Allocator

	// GUARDED_BY(mu)
	entries map[fuseops.InodeID]Entry
	// GUARDED_BY(mu)
	children map[fuseops.InodeID][]childRef
	// GUARDED_BY(mu)
	parent map[fuseops.InodeID]fuseops.InodeID
	// GUARDED_BY(mu)
	dynamicState map[dynamicStateKey]dynamicStateRecord
	// GUARDED_BY(mu)
	phantoms map[fuseops.InodeID]phantomRegistration
	// GUARDED_BY(mu)
	dynamicBlockSets map[dynamicStateKey]*blockSet
}

// New constructs an empty Registry with only the root directory
// present, per §4.F's builder() allocating root inode 1. blockSize sets
// the dynamic inode allocator's block size (0 selects
// inode.DefaultBlockSize).
func New(clock timeutil.Clock, ttl time.Duration, blockSize uint64) *Registry {
	if ttl == 0 {
		ttl = state.DefaultTTL
	}
	r := &Registry{
		clock:            clock,
		ttl:              ttl,
		allocator:        inode.NewAllocator(blockSize),
		entries:          make(map[fuseops.InodeID]Entry),
		children:         make(map[fuseops.InodeID][]childRef),
		parent:           make(map[fuseops.InodeID]fuseops.InodeID),
		dynamicState:     make(map[dynamicStateKey]dynamicStateRecord),
		phantoms:         make(map[fuseops.InodeID]phantomRegistration),
		dynamicBlockSets: make(map[dynamicStateKey]*blockSet),
	}
	r.entries[inode.RootInodeID] = Entry{Kind: KindDir, Name: ""}
	r.mu = syncutil.NewInvariantMutex(r.checkInvariants)
	return r
}

func (r *Registry) Lock()   { r.mu.Lock() }
func (r *Registry) Unlock() { r.mu.Unlock() }

// checkInvariants verifies the structural invariants of §3 that the maps
// can show: root has no parent; every other inode has a parent and
// appears in that parent's children; every inode in a dynamic_state
// record is registered, has the record's parent, and is not static. It
// does not check that root is a directory. It is wired into
// syncutil.InvariantMutex so every Lock/Unlock pair re-validates the registry the way fs.checkInvariants does in the
// teacher.
func (r *Registry) checkInvariants() {
	for id := range r.entries {
		if id == inode.RootInodeID {
			if _, ok := r.parent[id]; ok {
				panic("root must not have a parent")
			}
			continue
		}
		p, ok := r.parent[id]
		if !ok {
			panic(fmt.Sprintf("inode %d has no parent entry", id))
		}
		found := false
		for _, c := range r.children[p] {
			if c.inode == id {
				found = true
				break
			}
		}
		if !found {
			panic(fmt.Sprintf("inode %d missing from children[%d]", id, p))
		}
	}

	for key, rec := range r.dynamicState {
		for id := range rec.generated {
			if _, ok := r.entries[id]; !ok {
				panic(fmt.Sprintf("dynamic_state[%v] references unregistered inode %d", key, id))
			}
			if r.parent[id] != key.parent {
				panic(fmt.Sprintf("dynamic_state[%v] inode %d has wrong parent", key, id))
			}
			if inode.IsStatic(id) {
				panic(fmt.Sprintf("static inode %d present in dynamic_state", id))
			}
		}
	}
}

// --- Builder-facing registration (static topology) --------------------

// registerStatic inserts a static entry under parent with the given
// name, allocating a fresh static inode. Used only by Builder.
func (r *Registry) registerStatic(parent fuseops.InodeID, name string, e Entry) fuseops.InodeID {
	id := r.allocator.AllocateStatic()
	e.Name = name
	r.entries[id] = e
	r.parent[id] = parent
	r.children[parent] = append(r.children[parent], childRef{inode: id, name: name})
	return id
}

func (r *Registry) registerPhantomParser(
	parent fuseops.InodeID,
	parse func(string) (PhantomStateType, AssociatedData, bool),
	interest func(PhantomStateType) DynamicStateType,
	gen GeneratorFn,
) {
	r.phantoms[parent] = phantomRegistration{parse: parse, interest: interest, generator: gen}
}

// --- Public lookup contract --------------------------------------------

// LookupInode returns the entry for id, if registered.
func (r *Registry) LookupInode(id fuseops.InodeID) (Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// LookupChild does an exact UTF-8 name match among parent's children,
// returning the first match per invariant 4.
func (r *Registry) LookupChild(parent fuseops.InodeID, name string) (fuseops.InodeID, Entry, bool) {
	for _, c := range r.children[parent] {
		if c.name == name {
			return c.inode, r.entries[c.inode], true
		}
	}
	return 0, Entry{}, false
}

// ChildEntry pairs a child's entry with its registered name, the
// iteration element of LookupChildren.
type ChildEntry struct {
	Inode fuseops.InodeID
	Entry Entry
	Name  string
}

// LookupChildren returns parent's children in registration order.
func (r *Registry) LookupChildren(parent fuseops.InodeID) ([]ChildEntry, bool) {
	refs, ok := r.children[parent]
	if !ok {
		return nil, false
	}
	out := make([]ChildEntry, 0, len(refs))
	for _, c := range refs {
		out = append(out, ChildEntry{Inode: c.inode, Entry: r.entries[c.inode], Name: c.name})
	}
	return out, true
}

// Parent returns id's parent inode, if any (root has none).
func (r *Registry) Parent(id fuseops.InodeID) (fuseops.InodeID, bool) {
	p, ok := r.parent[id]
	return p, ok
}

// CommandStateForInode performs the ancestor walk of §4.E, composing a
// CommandState by applying each ancestor's AssociatedData, closest wins.
func (r *Registry) CommandStateForInode(id fuseops.InodeID) state.CommandState {
	var cs state.CommandState
	r.walkAncestors(id, func(_ fuseops.InodeID, e Entry) {
		e.Assoc.ApplyToState(&cs)
	})
	return cs
}

func (r *Registry) walkAncestors(id fuseops.InodeID, visit func(fuseops.InodeID, Entry)) {
	for {
		e, ok := r.entries[id]
		if !ok {
			return
		}
		visit(id, e)
		p, ok := r.parent[id]
		if !ok {
			return
		}
		id = p
	}
}
