package fs

import (
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcfuse/mcfs/internal/ipc"
	"github.com/mcfuse/mcfs/internal/registry"
	"github.com/mcfuse/mcfs/internal/state"
)

// fakeChannel is a gameChannel standing in for the real IPC channel,
// grounded on the end-to-end scenarios of spec.md §8: a fixed entity
// list (17 living, 42 not), a canned player name, and one writable field
// (entity 17's health) the test can observe being overwritten by a prior
// write.
type fakeChannel struct {
	snapshot   *state.Snapshot
	stateCalls int

	readResponses map[ipc.CommandID][]byte
	writes        []fakeWrite
	entityHealth  map[int32]float64
}

type fakeWrite struct {
	cmd ipc.CommandID
	bt  ipc.BodyType
	raw []byte
	cs  state.CommandState
}

func (f *fakeChannel) SendStateRequest(interest state.Interest) (*state.Snapshot, error) {
	f.stateCalls++
	return f.snapshot, nil
}

// SendReadCommand formats an entity's health the way §4.G's read path
// does for a Float body ("debug-printed number, one line"); the fake
// doesn't go through the real channel's BodyType machinery, only
// reproduces its observable shape.
func (f *fakeChannel) SendReadCommand(cmd ipc.CommandID, bt ipc.BodyType, cs state.CommandState) ([]byte, error) {
	if cmd == cmdEntityHealth && cs.TargetEntity != nil {
		h := f.entityHealth[cs.TargetEntity.EntityID]
		return []byte(strconv.FormatFloat(h, 'g', -1, 64) + "\n"), nil
	}
	return f.readResponses[cmd], nil
}

func (f *fakeChannel) SendWriteCommand(cmd ipc.CommandID, bt ipc.BodyType, raw []byte, cs state.CommandState) (int, error) {
	f.writes = append(f.writes, fakeWrite{cmd: cmd, bt: bt, raw: append([]byte(nil), raw...), cs: cs})
	if cmd == cmdEntityHealth && cs.TargetEntity != nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			return 0, err
		}
		f.entityHealth[cs.TargetEntity.EntityID] = v
	}
	return len(raw), nil
}

const (
	cmdPlayerName   ipc.CommandID = 1
	cmdEntityHealth ipc.CommandID = 2
	cmdEntityLiving ipc.CommandID = 3
)

func newTestClock(t *testing.T) *timeutil.SimulatedClock {
	t.Helper()
	var c timeutil.SimulatedClock
	c.SetTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return &c
}

// buildTestTree constructs a minimal tree mirroring spec.md §8's
// scenarios: player/name, worlds/overworld/entities/by-id/<id>/{health,
// living}.
func buildTestTree(clock timeutil.Clock) (*registry.Registry, fuseops.InodeID, fuseops.InodeID) {
	b := registry.NewBuilder(clock, time.Second, 0)
	root := b.Root()

	player := b.AddDir(root, "player", registry.AssociatedData{Kind: registry.AssocPlayerID})
	b.AddFile(player, "name", registry.FileBehaviour{
		Kind:      registry.BehaviourReadOnly,
		CommandID: cmdPlayerName,
		BodyType:  ipc.String,
	}, registry.AssociatedData{})

	worlds := b.AddDir(root, "worlds", registry.AssociatedData{})
	overworld := b.AddDir(worlds, "overworld", registry.AssociatedData{})
	entities := b.AddDir(overworld, "entities", registry.AssociatedData{})

	gen := func(snap *state.Snapshot, reg *registry.Proposals) {
		for _, e := range snap.Entities {
			reg.Propose(itoaTest(e.ID), registry.Entry{
				Kind:  registry.KindDir,
				Assoc: registry.AssociatedData{Kind: registry.AssocEntityID, EntityID: e.ID},
				Dynamic: &registry.DynGenerator{
					Type:      registry.DynPhantomGenerated,
					Generator: entityDetailGenTest,
					IdentTag:  entityDetailTagTest,
				},
			})
		}
	}
	byID := b.AddDynamicDir(entities, "by-id", registry.DynEntitiesByID, gen, "by-id-gen")

	return b.Finish(), player, byID
}

var entityDetailTagTest = new(int)

func entityDetailGenTest(snap *state.Snapshot, reg *registry.Proposals) {
	reg.Propose("health", registry.Entry{
		Kind: registry.KindFile,
		Behaviour: registry.FileBehaviour{
			Kind:      registry.BehaviourReadWrite,
			CommandID: cmdEntityHealth,
			BodyType:  ipc.Float,
		},
	})
	reg.Propose("living", registry.Entry{
		Kind:      registry.KindFile,
		Behaviour: registry.FileBehaviour{Kind: registry.BehaviourForShow},
	})
}

func itoaTest(n int32) string {
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

func newTestServer(t *testing.T) (*fileSystem, *fakeChannel, fuseops.InodeID) {
	t.Helper()
	clock := newTestClock(t)
	reg, _, byID := buildTestTree(clock)

	fc := &fakeChannel{
		snapshot: &state.Snapshot{
			Entities: []state.EntityDescriptor{{ID: 17, Living: true}, {ID: 42, Living: false}},
		},
		readResponses: map[ipc.CommandID][]byte{
			cmdPlayerName: []byte("TestPlayer\n"),
		},
		entityHealth: map[int32]float64{17: 10},
	}

	f := &fileSystem{
		clock:   clock,
		reg:     reg,
		channel: fc,
		cache:   state.NewCache(clock, time.Second),
		handles: make(map[fuseops.HandleID]*dirHandle),
	}
	f.mu = syncutil.NewInvariantMutex(f.checkInvariants)
	return f, fc, byID
}

func TestReadFileFormatsPlayerNameAsNewlineTerminatedString(t *testing.T) {
	f, _, _ := newTestServer(t)

	lookup := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "player"}
	require.NoError(t, f.LookUpInode(lookup))
	playerInode := lookup.Entry.Child

	lookup2 := &fuseops.LookUpInodeOp{Parent: playerInode, Name: "name"}
	require.NoError(t, f.LookUpInode(lookup2))

	readOp := &fuseops.ReadFileOp{Inode: lookup2.Entry.Child, Offset: 0, Size: 256}
	require.NoError(t, f.ReadFile(readOp))
	assert.Equal(t, "TestPlayer\n", string(readOp.Data))
}

func TestLookupDynamicEntityDirectoryTriggersGeneration(t *testing.T) {
	f, fc, byID := newTestServer(t)

	lookup := &fuseops.LookUpInodeOp{Parent: byID, Name: "17"}
	require.NoError(t, f.LookUpInode(lookup))
	assert.Equal(t, 1, fc.stateCalls)

	entityInode := lookup.Entry.Child
	healthLookup := &fuseops.LookUpInodeOp{Parent: entityInode, Name: "health"}
	require.NoError(t, f.LookUpInode(healthLookup))
}

func TestWriteThenReadEntityHealthRoundTrips(t *testing.T) {
	f, _, byID := newTestServer(t)

	lookup := &fuseops.LookUpInodeOp{Parent: byID, Name: "17"}
	require.NoError(t, f.LookUpInode(lookup))
	entityInode := lookup.Entry.Child

	healthLookup := &fuseops.LookUpInodeOp{Parent: entityInode, Name: "health"}
	require.NoError(t, f.LookUpInode(healthLookup))
	healthInode := healthLookup.Entry.Child

	writeOp := &fuseops.WriteFileOp{Inode: healthInode, Data: []byte("20")}
	require.NoError(t, f.WriteFile(writeOp))

	readOp := &fuseops.ReadFileOp{Inode: healthInode, Offset: 0, Size: 256}
	require.NoError(t, f.ReadFile(readOp))
	assert.Equal(t, "20\n", string(readOp.Data))
}

func TestLivingFileIsForShowReadReturnsEOPNOTSUPPButListable(t *testing.T) {
	f, _, byID := newTestServer(t)

	lookup := &fuseops.LookUpInodeOp{Parent: byID, Name: "42"}
	require.NoError(t, f.LookUpInode(lookup))
	entityInode := lookup.Entry.Child

	livingLookup := &fuseops.LookUpInodeOp{Parent: entityInode, Name: "living"}
	require.NoError(t, f.LookUpInode(livingLookup))

	readOp := &fuseops.ReadFileOp{Inode: livingLookup.Entry.Child, Offset: 0, Size: 256}
	err := f.ReadFile(readOp)
	assert.Equal(t, fuse.EOPNOTSUPP, err)
}

func TestReadDirPastEndReturnsEmptyOk(t *testing.T) {
	f, _, byID := newTestServer(t)

	openOp := &fuseops.OpenDirOp{Inode: byID}
	require.NoError(t, f.OpenDir(openOp))

	readOp := &fuseops.ReadDirOp{Inode: byID, Handle: openOp.Handle, Offset: 9999, Size: 4096}
	err := f.ReadDir(readOp)
	require.NoError(t, err)
	assert.Empty(t, readOp.Data)
}

func TestLookupNonUTF8NameReturnsENOENTWithoutIPC(t *testing.T) {
	f, fc, _ := newTestServer(t)

	lookup := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "bad\xffname"}
	err := f.LookUpInode(lookup)
	assert.Equal(t, fuse.ENOENT, err)
	assert.Equal(t, 0, fc.stateCalls, "a non-UTF-8 name must be rejected before any IPC round trip")
}

func TestSetInodeAttributesTruncationOnFileIsNoOp(t *testing.T) {
	f, _, _ := newTestServer(t)

	lookup := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "player"}
	require.NoError(t, f.LookUpInode(lookup))
	playerInode := lookup.Entry.Child
	nameLookup := &fuseops.LookUpInodeOp{Parent: playerInode, Name: "name"}
	require.NoError(t, f.LookUpInode(nameLookup))

	zero := uint64(0)
	setOp := &fuseops.SetInodeAttributesOp{Inode: nameLookup.Entry.Child, Size: &zero}
	require.NoError(t, f.SetInodeAttributes(setOp))
}

func TestSetInodeAttributesModeIsENOSYS(t *testing.T) {
	f, _, _ := newTestServer(t)
	mode := os.FileMode(0o644)
	err := f.SetInodeAttributes(&fuseops.SetInodeAttributesOp{Inode: fuseops.RootInodeID, Mode: &mode})
	assert.Equal(t, fuse.ENOSYS, err)
}
