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
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/timeutil"
)

// Builder is the fluent construction API of §4.F: it seeds the static
// topology while the resulting Registry remains open to dynamic
// mutation at runtime. A Builder is single-use; Finish consumes it.
type Builder struct {
	r    *Registry
	done bool
}

// NewBuilder starts a build against a fresh Registry rooted at inode 1.
// ttl governs both the game-state cache (owned by the caller, not the
// registry) and the dynamic_state TTL used by interest aggregation; a
// zero ttl selects state.DefaultTTL. blockSize sets the dynamic inode
// allocator's block size; a zero blockSize selects inode.DefaultBlockSize.
func NewBuilder(clock timeutil.Clock, ttl time.Duration, blockSize uint64) *Builder {
	return &Builder{r: New(clock, ttl, blockSize)}
}

// Root returns the root directory's inode (always 1).
func (b *Builder) Root() fuseops.InodeID {
	return fuseops.RootInodeID
}

// AddEntry statically registers e as a child of parent under name,
// returning its freshly allocated static inode.
func (b *Builder) AddEntry(parent fuseops.InodeID, name string, e Entry) fuseops.InodeID {
	if b.done {
		panic("registry: AddEntry after Finish")
	}
	return b.r.registerStatic(parent, name, e)
}

// AddDir is a convenience wrapper over AddEntry for a plain static
// directory (no dynamic generator).
func (b *Builder) AddDir(parent fuseops.InodeID, name string, assoc AssociatedData) fuseops.InodeID {
	return b.AddEntry(parent, name, Entry{Kind: KindDir, Assoc: assoc})
}

// AddDynamicDir registers a static directory whose children are
// produced on demand by gen, per §4.E/§4.F.
func (b *Builder) AddDynamicDir(parent fuseops.InodeID, name string, typ DynamicStateType, gen GeneratorFn, identTag interface{}) fuseops.InodeID {
	return b.AddEntry(parent, name, Entry{
		Kind: KindDir,
		Dynamic: &DynGenerator{
			Type:      typ,
			Generator: gen,
			IdentTag:  identTag,
		},
	})
}

// AddFile registers a static file entry.
func (b *Builder) AddFile(parent fuseops.InodeID, name string, behaviour FileBehaviour, assoc AssociatedData) fuseops.InodeID {
	return b.AddEntry(parent, name, Entry{Kind: KindFile, Behaviour: behaviour, Assoc: assoc})
}

// AddLink registers a static symlink whose target is computed by
// target at readlink time.
func (b *Builder) AddLink(parent fuseops.InodeID, name string, target LinkTargetFn, identTag interface{}) fuseops.InodeID {
	return b.AddEntry(parent, name, Entry{Kind: KindLink, Target: target, TargetIdentTag: identTag})
}

// AddPhantom registers parent as a phantom-bearing directory: any
// lookup under it whose name parses successfully materialises a
// just-in-time directory, per §4.E/§4.F.
func (b *Builder) AddPhantom(
	parent fuseops.InodeID,
	parse func(name string) (PhantomStateType, AssociatedData, bool),
	interest func(PhantomStateType) DynamicStateType,
	generator GeneratorFn,
) {
	if b.done {
		panic("registry: AddPhantom after Finish")
	}
	b.r.registerPhantomParser(parent, parse, interest, generator)
}

// Finish seals the builder and returns the live Registry. The returned
// Registry's static topology is fixed from here on; dynamic and phantom
// entries continue to be created and destroyed at runtime.
func (b *Builder) Finish() *Registry {
	b.done = true
	return b.r
}
