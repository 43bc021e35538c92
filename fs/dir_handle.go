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

package fs

import (
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"

	"github.com/mcfuse/mcfs/internal/registry"
	"github.com/mcfuse/mcfs/internal/state"
)

// dirHandle serves one open directory's listing. Grounded on the
// teacher's dirHandle (fs/dir_handle.go), but without its GCS
// continuation-token bookkeeping: lookup_children is an in-memory,
// unpaginated call, so each ReadDir call re-derives its window directly
// from the kernel-supplied offset instead of replaying a cursor against
// a remote listing API.
type dirHandle struct {
	mu syncutil.InvariantMutex

	reg   *registry.Registry
	inode fuseops.InodeID
}

// Create a directory handle serving listings of inode out of reg.
func newDirHandle(reg *registry.Registry, inode fuseops.InodeID) *dirHandle {
	dh := &dirHandle{reg: reg, inode: inode}
	dh.mu = syncutil.NewInvariantMutex(func() {})
	return dh
}

// readDir serves one ReadDirOp against snap, which the caller has
// already brought current enough for this directory's dynamic children
// and entry filters (§4.G's "refresh dynamics as in lookup").
//
// Offsets are positions in the directory's full child list (registration
// order); an offset past the end yields an empty, successful listing, a
// boundary behaviour §8 requires.
//
// EXCLUSIVE_LOCKS_REQUIRED(dh.mu)
func (dh *dirHandle) readDir(op *fuseops.ReadDirOp, snap *state.Snapshot) error {
	dh.reg.Lock()
	children, ok := dh.reg.LookupChildren(dh.inode)
	dh.reg.Unlock()
	if !ok {
		return fuse.ENOENT
	}

	// offset >= len(children) (including arbitrarily past the end) is a
	// boundary case, not an error, per §8: it yields an empty, successful
	// listing rather than EINVAL.
	offset := int(op.Offset)
	if offset > len(children) {
		offset = len(children)
	}

	if op.Data == nil {
		op.Data = make([]byte, 0, op.Size)
	}

	// Once any entry's filter returns IncludeAllChildren, every entry
	// after it in this listing is included unconditionally, per §4.G.
	includeAll := false

	for i := offset; i < len(children); i++ {
		c := children[i]

		result := registry.IncludeSelf
		if !includeAll {
			result = c.Entry.EvalFilter(snap)
		}
		if result == registry.Exclude {
			continue
		}
		if result == registry.IncludeAllChildren {
			includeAll = true
		}

		dirent := fuseops.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  c.Inode,
			Name:   c.Name,
			Type:   c.Entry.DirentKind(),
		}

		free := op.Data[len(op.Data):cap(op.Data)]
		n := fuseutil.WriteDirent(free, dirent)
		if n == 0 {
			break
		}
		op.Data = op.Data[:len(op.Data)+n]
	}

	return nil
}
