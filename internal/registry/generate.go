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
	"github.com/jacobsa/fuse/fuseops"

	"github.com/mcfuse/mcfs/internal/inode"
	"github.com/mcfuse/mcfs/internal/state"
)

// proposal is one child a GeneratorFn wants materialised under its
// parent directory.
type proposal struct {
	name  string
	entry Entry
}

// Proposals is the registrar a GeneratorFn populates; the registry
// resolves each proposal against the prior generation to decide reuse
// vs. fresh allocation, per §4.E step 3.
type Proposals struct {
	proposed []proposal
}

// Propose records one child a generator wants under its directory.
func (p *Proposals) Propose(name string, e Entry) {
	p.proposed = append(p.proposed, proposal{name: name, entry: e})
}

// Names returns the proposed children's names in proposal order. Exposed
// for tests that exercise a GeneratorFn directly, without running it
// through the full diff-and-reuse machinery of EnsureGenerated.
func (p *Proposals) Names() []string {
	names := make([]string, len(p.proposed))
	for i, pr := range p.proposed {
		names[i] = pr.name
	}
	return names
}

// blockSet is the sequence of inode.Blocks drawn for one dynamic
// directory's children over its lifetime — possibly more than one if a
// single generation proposes more children than the allocator's block
// size. All of a key's blocks are freed together when the dynamic
// directory fully collapses, matching §4.A's "blocks of inodes may be
// whole-freed when an entire dynamic dir collapses."
type blockSet struct {
	blocks []inode.Block
	cur    int
}

func (r *Registry) nextDynamicInode(key dynamicStateKey) fuseops.InodeID {
	bs := r.dynamicBlockSets[key]
	if bs == nil {
		bs = &blockSet{}
		r.dynamicBlockSets[key] = bs
	}
	for {
		if bs.cur < len(bs.blocks) {
			if id, ok := bs.blocks[bs.cur].Next(); ok {
				return id
			}
			bs.cur++
			continue
		}
		bs.blocks = append(bs.blocks, r.allocator.Allocate())
	}
}

func (r *Registry) freeDynamicBlocks(key dynamicStateKey) {
	bs := r.dynamicBlockSets[key]
	if bs == nil {
		return
	}
	for _, b := range bs.blocks {
		r.allocator.Free(b)
	}
	delete(r.dynamicBlockSets, key)
}

// EnsureGenerated implements §4.E's generation-and-diff algorithm. It is
// idempotent: calling it twice with the same snapshot and the same
// DynamicInterest produces an identical tree with identical inode ids
// (per §8's idempotence property), because every already-registered,
// content-equal child is retained rather than replaced.
func (r *Registry) EnsureGenerated(snap *state.Snapshot, di DynamicInterest) {
	if di.Phantom != nil {
		r.materializePhantom(snap, di.Phantom)
	}

	for _, k := range di.dynamicsRequired {
		if !di.needFetching[k] {
			continue
		}
		// The phantom's own key was already regenerated above, keyed by
		// its freshly allocated inode rather than its parent's; skip the
		// parent-keyed placeholder entry here.
		if di.Phantom != nil && k.inode == di.Phantom.parent && k.typ == di.Phantom.dynType {
			continue
		}
		r.regenerate(snap, k)
	}
}

// materializePhantom allocates the phantom directory's inode (if this
// is the first time this name has been looked up), registers it, and
// runs its generator immediately — a phantom directory's children must
// exist the instant it is materialised, independent of any prior
// dynamic_state record.
func (r *Registry) materializePhantom(snap *state.Snapshot, p *phantomPending) {
	if existing, e, ok := r.LookupChild(p.parent, p.name); ok && e.Kind == KindDir {
		r.regenerate(snap, dynamicStateKey{parent: existing, typ: p.dynType})
		return
	}

	newID := r.allocatePhantomInode()
	entry := Entry{
		Kind:  KindDir,
		Name:  p.name,
		Assoc: p.assoc,
		Dynamic: &DynGenerator{
			Type:      p.dynType,
			Generator: p.generate,
		},
	}
	r.entries[newID] = entry
	r.parent[newID] = p.parent
	r.children[p.parent] = append(r.children[p.parent], childRef{inode: newID, name: p.name})

	r.regenerate(snap, dynamicStateKey{parent: newID, typ: p.dynType})
}

// allocatePhantomInode draws one inode from the parent+root dynamic
// range the same way regular dynamic children do, keyed by a reserved
// dynamic type so phantom directory inodes themselves participate in
// the same block bookkeeping as their children.
func (r *Registry) allocatePhantomInode() fuseops.InodeID {
	key := dynamicStateKey{parent: 0, typ: DynPhantomGenerated}
	return r.nextDynamicInode(key)
}

// regenerate runs the generator for key's dynamic directory, diffs the
// result against the prior generation, and unregisters whatever is now
// stale.
func (r *Registry) regenerate(snap *state.Snapshot, key dynamicStateKey) {
	entry, ok := r.entries[key.parent]
	if !ok || entry.Dynamic == nil {
		return
	}

	props := &Proposals{}
	entry.Dynamic.Generator(snap, props)

	kept := make(map[fuseops.InodeID]struct{}, len(props.proposed))
	for _, p := range props.proposed {
		childID, existing, found := r.LookupChild(key.parent, p.name)
		if found && existing.Equal(p.entry) {
			kept[childID] = struct{}{}
			continue
		}

		// Either no prior child had this name, or one did but its content
		// differs: either way a fresh inode is minted. In the latter case
		// the old inode is swept up as stale below, since it is absent
		// from kept.
		id := r.nextDynamicInode(key)

		r.entries[id] = p.entry
		r.parent[id] = key.parent
		r.children[key.parent] = append(r.children[key.parent], childRef{inode: id, name: p.name})
		kept[id] = struct{}{}
	}

	prior := r.dynamicState[key]
	stale := make(map[fuseops.InodeID]struct{})
	for id := range prior.generated {
		if _, ok := kept[id]; !ok {
			stale[id] = struct{}{}
		}
	}
	// §4.E step 5: any dynamic child of this parent not accounted for by
	// this generation is also stale, even if it predates the current
	// dynamic_state record (e.g. after a schema change).
	for _, c := range r.children[key.parent] {
		if inode.IsStatic(c.inode) {
			continue
		}
		if _, isKept := kept[c.inode]; isKept {
			continue
		}
		stale[c.inode] = struct{}{}
	}

	for id := range stale {
		r.unregisterRecursive(id)
	}
	r.pruneChildList(key.parent, stale)

	if len(kept) == 0 {
		delete(r.dynamicState, key)
		r.freeDynamicBlocks(key)
		return
	}

	r.dynamicState[key] = dynamicStateRecord{generated: kept, timeCollected: r.clock.Now()}
}

// pruneChildList removes every inode in stale from parent's children
// list, preserving the relative order of what remains.
func (r *Registry) pruneChildList(parent fuseops.InodeID, stale map[fuseops.InodeID]struct{}) {
	if len(stale) == 0 {
		return
	}
	refs := r.children[parent]
	out := refs[:0]
	for _, c := range refs {
		if _, dead := stale[c.inode]; dead {
			continue
		}
		out = append(out, c)
	}
	r.children[parent] = out
}

// unregisterRecursive removes id and every descendant reachable through
// children from registry, parent, children, dynamic_state, and
// phantoms — invariant 3 of §8.
func (r *Registry) unregisterRecursive(id fuseops.InodeID) {
	for _, c := range r.children[id] {
		r.unregisterRecursive(c.inode)
	}

	delete(r.entries, id)
	delete(r.parent, id)
	delete(r.children, id)
	delete(r.phantoms, id)

	for key, rec := range r.dynamicState {
		if key.parent == id {
			delete(r.dynamicState, key)
			r.freeDynamicBlocks(key)
			continue
		}
		if _, present := rec.generated[id]; present {
			delete(rec.generated, id)
		}
	}
}
