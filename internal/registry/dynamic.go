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

	"github.com/mcfuse/mcfs/internal/state"
)

// dynKey is one (ancestor inode, dynamic type) pair discovered during an
// interest-aggregation ancestor walk.
type dynKey struct {
	inode fuseops.InodeID
	typ   DynamicStateType
}

// phantomPending describes a not-yet-materialised phantom directory
// that a lookup's child name resolved to.
type phantomPending struct {
	parent   fuseops.InodeID
	name     string
	dynType  DynamicStateType
	assoc    AssociatedData
	generate GeneratorFn
}

// DynamicInterest is the result of InterestForInode: what dynamic
// directories need (re)generating, the StateInterest to fetch for it,
// and an optional phantom directory to materialise first.
type DynamicInterest struct {
	dynamicsRequired []dynKey
	needFetching     map[dynKey]bool
	Interest         state.Interest
	Phantom          *phantomPending
}

// InterestForInode implements §4.E's interest aggregation: walk
// ancestors collecting dynamic generators and AssociatedData, resolve
// an optional phantom child name, then decide which dynamic types are
// stale enough to need fetching.
func (r *Registry) InterestForInode(id fuseops.InodeID, lookedUpChild *string) DynamicInterest {
	di := DynamicInterest{needFetching: make(map[dynKey]bool)}

	r.walkAncestors(id, func(ancestor fuseops.InodeID, e Entry) {
		if e.Kind == KindDir && e.Dynamic != nil {
			di.dynamicsRequired = append(di.dynamicsRequired, dynKey{inode: ancestor, typ: e.Dynamic.Type})
		}
		e.Assoc.ApplyToInterest(&di.Interest)
	})

	if lookedUpChild != nil {
		if reg, ok := r.phantoms[id]; ok {
			if ty, assoc, ok := reg.parse(*lookedUpChild); ok {
				dynTy := reg.interest(ty)
				key := dynKey{inode: id, typ: dynTy}
				di.dynamicsRequired = append(di.dynamicsRequired, key)
				di.Phantom = &phantomPending{
					parent:   id,
					name:     *lookedUpChild,
					dynType:  dynTy,
					assoc:    assoc,
					generate: reg.generator,
				}
			}
		}
	}

	now := r.clock.Now()
	for _, k := range di.dynamicsRequired {
		rec, ok := r.dynamicState[dynamicStateKey{parent: k.inode, typ: k.typ}]
		if !ok || now.Sub(rec.timeCollected) > r.ttl {
			di.needFetching[k] = true
		}
	}

	for k, need := range di.needFetching {
		if !need {
			continue
		}
		requiredInterestFields(k.typ, di.Phantom, &di.Interest)
	}

	return di
}

// requiredInterestFields sets the StateInterest fields a given dynamic
// type's generator depends on, per §4.E step 5.
func requiredInterestFields(typ DynamicStateType, phantom *phantomPending, interest *state.Interest) {
	switch typ {
	case DynEntitiesByID:
		interest.EntitiesByID = true
	case DynBlock:
		if phantom != nil && phantom.assoc.Kind == AssocBlock {
			b := phantom.assoc.Block
			interest.TargetBlock = &b
		}
	case DynPlayerID, DynPhantomGenerated:
		// No extra interest field required, per §4.E step 5.
	}
}

// NeedsFetch reports whether any dynamic directory InterestForInode
// discovered is stale and needs the snapshot (re)fetched. Callers skip
// the cache refresh entirely when this is false and no phantom is
// pending, keeping a plain file read from forcing a snapshot fetch it
// doesn't need beyond its own command.
func (di DynamicInterest) NeedsFetch() bool {
	if di.Phantom != nil {
		return true
	}
	for _, need := range di.needFetching {
		if need {
			return true
		}
	}
	return false
}
