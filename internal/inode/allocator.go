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

// Package inode allocates the 64-bit identifiers the rest of the core
// assigns to filesystem entries. Static inodes (built once by the
// structure builder) and dynamic inodes (minted per game snapshot) are
// drawn from disjoint halves of the ID space so that a dynamic
// regeneration can never collide with a static name, and so static
// inodes are safe to embed in symlink targets without a lookup.
package inode

import (
	"fmt"

	"github.com/jacobsa/fuse/fuseops"
)

// RootInodeID is the fixed inode of the filesystem root.
const RootInodeID = fuseops.RootInodeID // 1

// DefaultBlockSize is the number of dynamic inodes handed out per Block.
// The source recommends a block size of at least 2048; we default higher
// to keep block churn low for large entity lists.
const DefaultBlockSize = 4096

// dynamicBase is the first inode in the dynamic half of the address
// space. Everything below it is reserved for static, builder-allocated
// inodes; everything at or above it is minted in Blocks by Allocator.
const dynamicBase = 1 << 62

// Block is a disjoint, lazily-consumed range of dynamic inode numbers
// [start, start+size). Callers draw inodes from the front of the range
// with Next; Remaining reports what's left without consuming it.
type Block struct {
	start    uint64
	size     uint64
	consumed uint64
}

// Next returns the next unconsumed inode in the block, or false once
// the block is exhausted.
func (b *Block) Next() (fuseops.InodeID, bool) {
	if b.consumed >= b.size {
		return 0, false
	}
	id := b.start + b.consumed
	b.consumed++
	return fuseops.InodeID(id), true
}

// IterAllocated returns the inodes consumed so far, in allocation order.
func (b *Block) IterAllocated() []fuseops.InodeID {
	out := make([]fuseops.InodeID, 0, b.consumed)
	for i := uint64(0); i < b.consumed; i++ {
		out = append(out, fuseops.InodeID(b.start+i))
	}
	return out
}

// IterAll returns every inode in the block's range, whether or not it
// has been consumed yet. It does not affect Remaining/Next.
func (b *Block) IterAll() []fuseops.InodeID {
	out := make([]fuseops.InodeID, 0, b.size)
	for i := uint64(0); i < b.size; i++ {
		out = append(out, fuseops.InodeID(b.start+i))
	}
	return out
}

// Remaining reports how many inodes in the block have not yet been
// consumed via Next.
func (b *Block) Remaining() uint64 {
	return b.size - b.consumed
}

// Allocator issues static inodes monotonically from 1, and dynamic
// inodes in fixed-size Blocks drawn from a FIFO freelist before
// extending the high end of the dynamic range. External synchronization
// is required; the registry guards it with its own invariant mutex, the
// same way DirInode guards its own mutable state in the teacher.
type Allocator struct {
	blockSize uint64

	nextStatic uint64

	nextDynamic uint64
	freelist    []Block
}

// NewAllocator constructs an Allocator with the given dynamic block
// size. A blockSize of zero selects DefaultBlockSize.
func NewAllocator(blockSize uint64) *Allocator {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	return &Allocator{
		blockSize:   blockSize,
		nextStatic:  RootInodeID + 1,
		nextDynamic: dynamicBase,
	}
}

// AllocateStatic returns the next static inode, monotonically from 1
// (root itself is reserved and never returned here). Panics if the
// static half of the address space is exhausted, matching the source's
// fail-fast contract for an unrecoverable configuration error.
func (a *Allocator) AllocateStatic() fuseops.InodeID {
	if a.nextStatic >= dynamicBase {
		panic("inode: static address space exhausted")
	}
	id := a.nextStatic
	a.nextStatic++
	return fuseops.InodeID(id)
}

// Allocate returns a fresh Block of dynamic inodes, reusing a freed
// block from the FIFO freelist when one is available, else extending
// the dynamic range.
func (a *Allocator) Allocate() Block {
	if len(a.freelist) > 0 {
		b := a.freelist[0]
		a.freelist = a.freelist[1:]
		b.consumed = 0
		return b
	}

	b := Block{start: a.nextDynamic, size: a.blockSize}
	a.nextDynamic += a.blockSize
	return b
}

// Free pushes a block back onto the FIFO freelist for reuse. The block
// is reset to its full, unconsumed range.
func (a *Allocator) Free(b Block) {
	b.consumed = 0
	a.freelist = append(a.freelist, b)
}

// IsStatic reports whether id lies in the static half of the address
// space (below dynamicBase), matching invariant 3 of the registry: no
// inode is simultaneously static and dynamic.
func IsStatic(id fuseops.InodeID) bool {
	return uint64(id) < dynamicBase
}

// IsDynamic is the complement of IsStatic.
func IsDynamic(id fuseops.InodeID) bool {
	return !IsStatic(id)
}

func (b Block) String() string {
	return fmt.Sprintf("[%d, %d)", b.start, b.start+b.size)
}
