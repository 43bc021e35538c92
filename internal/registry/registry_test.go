package registry_test

import (
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcfuse/mcfs/internal/registry"
	"github.com/mcfuse/mcfs/internal/state"
)

func newClock(t *testing.T) *timeutil.SimulatedClock {
	t.Helper()
	var c timeutil.SimulatedClock
	c.SetTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return &c
}

func TestStaticLookupAndAncestorAssociatedData(t *testing.T) {
	clock := newClock(t)
	b := registry.NewBuilder(clock, time.Second, 0)

	root := b.Root()
	entityID := int32(17)
	entityDir := b.AddDir(root, "17", registry.AssociatedData{Kind: registry.AssocEntityID, EntityID: entityID})
	healthFile := b.AddFile(entityDir, "health", registry.FileBehaviour{
		Kind:      registry.BehaviourReadOnly,
		CommandID: 1,
		BodyType:  1,
	}, registry.AssociatedData{})

	reg := b.Finish()

	id, entry, ok := reg.LookupChild(entityDir, "health")
	require.True(t, ok)
	assert.Equal(t, healthFile, id)
	assert.Equal(t, registry.KindFile, entry.Kind)

	cs := reg.CommandStateForInode(healthFile)
	require.NotNil(t, cs.TargetEntity)
	assert.False(t, cs.TargetEntity.Player)
	assert.Equal(t, entityID, cs.TargetEntity.EntityID)
}

func TestLookupChildrenPreservesRegistrationOrder(t *testing.T) {
	clock := newClock(t)
	b := registry.NewBuilder(clock, time.Second, 0)
	root := b.Root()

	b.AddDir(root, "b", registry.AssociatedData{})
	b.AddDir(root, "a", registry.AssociatedData{})
	b.AddDir(root, "c", registry.AssociatedData{})

	reg := b.Finish()
	children, ok := reg.LookupChildren(root)
	require.True(t, ok)
	require.Len(t, children, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{children[0].Name, children[1].Name, children[2].Name})
}

func TestEnsureGeneratedIsIdempotentOnUnchangedSnapshot(t *testing.T) {
	clock := newClock(t)
	b := registry.NewBuilder(clock, time.Second, 0)
	root := b.Root()

	gen := func(snap *state.Snapshot, reg *registry.Proposals) {
		for _, e := range snap.Entities {
			reg.Propose(itoa(e.ID), registry.Entry{
				Kind:  registry.KindFile,
				Assoc: registry.AssociatedData{Kind: registry.AssocEntityID, EntityID: e.ID},
			})
		}
	}
	dir := b.AddDynamicDir(root, "entities", registry.DynEntitiesByID, gen, "entities-gen")
	reg := b.Finish()

	snap := &state.Snapshot{Entities: []state.EntityDescriptor{{ID: 17}, {ID: 42}}}

	di := reg.InterestForInode(dir, nil)
	reg.EnsureGenerated(snap, di)

	first, ok := reg.LookupChildren(dir)
	require.True(t, ok)
	require.Len(t, first, 2)
	firstIDs := map[string]uint64{}
	for _, c := range first {
		firstIDs[c.Name] = uint64(c.Inode)
	}

	clock.AdvanceTime(2 * time.Second)
	di2 := reg.InterestForInode(dir, nil)
	reg.EnsureGenerated(snap, di2)

	second, ok := reg.LookupChildren(dir)
	require.True(t, ok)
	require.Len(t, second, 2)
	for _, c := range second {
		assert.Equal(t, firstIDs[c.Name], uint64(c.Inode), "inode for %s should be stable across idempotent regeneration", c.Name)
	}
}

func TestRegenerationGarbageCollectsRemovedEntities(t *testing.T) {
	clock := newClock(t)
	b := registry.NewBuilder(clock, time.Second, 0)
	root := b.Root()

	gen := func(snap *state.Snapshot, reg *registry.Proposals) {
		for _, e := range snap.Entities {
			reg.Propose(itoa(e.ID), registry.Entry{
				Kind:  registry.KindFile,
				Assoc: registry.AssociatedData{Kind: registry.AssocEntityID, EntityID: e.ID},
			})
		}
	}
	dir := b.AddDynamicDir(root, "entities", registry.DynEntitiesByID, gen, "entities-gen")
	reg := b.Finish()

	snap1 := &state.Snapshot{Entities: []state.EntityDescriptor{{ID: 17}, {ID: 42}}}
	di := reg.InterestForInode(dir, nil)
	reg.EnsureGenerated(snap1, di)

	gone, _, ok := reg.LookupChild(dir, "42")
	require.True(t, ok)

	clock.AdvanceTime(2 * time.Second)
	snap2 := &state.Snapshot{Entities: []state.EntityDescriptor{{ID: 17}}}
	di2 := reg.InterestForInode(dir, nil)
	reg.EnsureGenerated(snap2, di2)

	_, _, ok = reg.LookupChild(dir, "42")
	assert.False(t, ok, "removed entity should be unregistered")

	_, stillThere := reg.LookupInode(gone)
	assert.False(t, stillThere, "stale inode must be purged from the registry entirely")

	children, ok := reg.LookupChildren(dir)
	require.True(t, ok)
	assert.Len(t, children, 1)
}

func itoa(n int32) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
