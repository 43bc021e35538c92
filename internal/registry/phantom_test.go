package registry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcfuse/mcfs/internal/registry"
	"github.com/mcfuse/mcfs/internal/state"
)

func TestParseBlockPositionAcceptsCommaAndSpaceForms(t *testing.T) {
	p, ok := registry.ParseBlockPosition("10,64,-5")
	require.True(t, ok)
	assert.Equal(t, state.BlockPos{X: 10, Y: 64, Z: -5}, p)

	p2, ok := registry.ParseBlockPosition("10 64 -5")
	require.True(t, ok)
	assert.Equal(t, p, p2)

	_, ok = registry.ParseBlockPosition("not-a-block")
	assert.False(t, ok)
}

func TestParseBlockPositionIsLeftInverseOfFormat(t *testing.T) {
	for _, p := range []state.BlockPos{
		{X: 0, Y: 0, Z: 0},
		{X: 2147483647, Y: -2147483648, Z: 123},
		{X: -1, Y: -1, Z: -1},
	} {
		name := registry.FormatBlockPosition(p)
		parsed, ok := registry.ParseBlockPosition(name)
		require.True(t, ok)
		assert.Equal(t, p, parsed)
	}
}

func TestPhantomDirectoryMaterialisesOnLookup(t *testing.T) {
	clock := newClock(t)
	b := registry.NewBuilder(clock, time.Second, 0)
	root := b.Root()

	blocksDir := b.AddDir(root, "blocks", registry.AssociatedData{})
	b.AddPhantom(
		blocksDir,
		func(name string) (registry.PhantomStateType, registry.AssociatedData, bool) {
			pos, ok := registry.ParseBlockPosition(name)
			if !ok {
				return 0, registry.AssociatedData{}, false
			}
			return registry.PhantomStateType(1), registry.AssociatedData{Kind: registry.AssocBlock, Block: pos}, true
		},
		func(registry.PhantomStateType) registry.DynamicStateType { return registry.DynBlock },
		func(snap *state.Snapshot, reg *registry.Proposals) {
			reg.Propose("type", registry.Entry{Kind: registry.KindFile, Behaviour: registry.FileBehaviour{Kind: registry.BehaviourForShow}})
		},
	)
	reg := b.Finish()

	// Before lookup, the phantom child does not exist.
	_, _, ok := reg.LookupChild(blocksDir, "10,64,-5")
	assert.False(t, ok)

	name := "10,64,-5"
	di := reg.InterestForInode(blocksDir, &name)
	require.NotNil(t, di.Phantom)
	reg.EnsureGenerated(&state.Snapshot{}, di)

	blockInode, entry, ok := reg.LookupChild(blocksDir, "10,64,-5")
	require.True(t, ok)
	assert.Equal(t, registry.KindDir, entry.Kind)

	typeInode, _, ok := reg.LookupChild(blockInode, "type")
	require.True(t, ok)
	assert.NotZero(t, typeInode)
}
