package inode_test

import (
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcfuse/mcfs/internal/inode"
)

func TestAllocateStaticIsMonotonicFromRoot(t *testing.T) {
	a := inode.NewAllocator(0)

	first := a.AllocateStatic()
	second := a.AllocateStatic()

	assert.Greater(t, uint64(first), uint64(inode.RootInodeID))
	assert.Equal(t, uint64(first)+1, uint64(second))
	assert.True(t, inode.IsStatic(first))
	assert.True(t, inode.IsStatic(second))
}

func TestDynamicBlocksAreDisjointFromStatic(t *testing.T) {
	a := inode.NewAllocator(8)

	static := a.AllocateStatic()
	block := a.Allocate()

	for _, id := range block.IterAll() {
		assert.True(t, inode.IsDynamic(id))
		assert.NotEqual(t, static, id)
	}
}

func TestBlockNextConsumesInOrder(t *testing.T) {
	a := inode.NewAllocator(4)
	block := a.Allocate()

	var got []fuseops.InodeID
	for {
		id, ok := block.Next()
		if !ok {
			break
		}
		got = append(got, id)
	}

	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, got[i-1]+1, got[i])
	}
	assert.Equal(t, uint64(0), block.Remaining())
}

func TestFreedBlockIsReusedBeforeExtending(t *testing.T) {
	a := inode.NewAllocator(4)

	first := a.Allocate()
	a.Free(first)

	second := a.Allocate()
	assert.Equal(t, first.String(), second.String())

	// After the freelist is drained, new allocations extend the range.
	third := a.Allocate()
	assert.NotEqual(t, first.String(), third.String())
}

func TestFreedBlockIsResetForReuse(t *testing.T) {
	a := inode.NewAllocator(2)

	b := a.Allocate()
	_, _ = b.Next()
	_, _ = b.Next()
	assert.Equal(t, uint64(0), b.Remaining())

	a.Free(b)
	reused := a.Allocate()
	assert.Equal(t, uint64(2), reused.Remaining())
}
