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

// Package fs is the FUSE adaptor: it translates kernel ops onto the
// registry, the game-state cache, and the IPC channel. Grounded on the
// teacher's fs/fs.go (ServerConfig, err-returning fuseops.*Op methods,
// syncutil.InvariantMutex-guarded fileSystem), with the GCS bucket/inode
// table/lease machinery replaced by the registry's own inode map.
package fs

import (
	"os"
	"time"
	"unicode/utf8"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"

	"github.com/mcfuse/mcfs/internal/ipc"
	"github.com/mcfuse/mcfs/internal/registry"
	"github.com/mcfuse/mcfs/internal/state"
)

// lookupEntryTTL is the kernel-side cache lifetime handed back on lookup
// and getattr, per §4.G/§5 ("the read TTL of 1s on attributes bounds the
// kernel's own caching").
const lookupEntryTTL = time.Second

// maxFileSize is the constant size reported for every readable file,
// per §4.G. Writes are whole-body and offsets are ignored, so this is a
// display size rather than a real content bound.
const maxFileSize = 256

// rootPerm is the fixed permission bits every inode reports, per §4.G
// ("constant attrs: mode 0o755").
const rootPerm = os.FileMode(0o755)

// gameChannel is the subset of *ipc.Channel the adaptor needs: the
// state.Requester round trip plus the read/write command calls. Tests
// substitute a fake satisfying this directly.
type gameChannel interface {
	state.Requester
	SendReadCommand(cmd ipc.CommandID, bt ipc.BodyType, cs state.CommandState) ([]byte, error)
	SendWriteCommand(cmd ipc.CommandID, bt ipc.BodyType, raw []byte, cs state.CommandState) (int, error)
}

// ServerConfig holds everything NewServer needs to build the adaptor.
type ServerConfig struct {
	// A clock used for cache expiration and attribute TTLs.
	Clock timeutil.Clock

	// The populated static tree (schema.Build has already run over its
	// builder) this server exposes.
	Registry *registry.Registry

	// The connection to the running game. nil is accepted for a
	// read-only smoke test of the static tree. Unless Dial is set, a read
	// or write of a command-backed file then returns EIO, and a lookup,
	// readdir or readlink that needs a snapshot fails with ipc.NoGame
	// (ENOENT).
	Channel gameChannel

	// Dial reopens the game channel when Channel is nil or has gone
	// away, e.g. because the game wasn't running yet at mount time. It
	// is called at most once per operation that needs a channel; a
	// non-nil error is surfaced as the operation's own failure (usually
	// ipc.NoGame) rather than retried in a loop. May be nil, in which
	// case a missing Channel stays missing for the life of the mount.
	// Typed concretely as *ipc.Channel (rather than the unexported
	// gameChannel interface fs tests mock) so callers outside this
	// package can set it without reaching into fs internals.
	Dial func() (*ipc.Channel, error)

	// Cache lifetime for game snapshots. Zero selects state.DefaultTTL.
	CacheTTL time.Duration

	// The uid/gid every inode reports, normally the mounting process's
	// own.
	Uid uint32
	Gid uint32
}

// NewServer wraps cfg into a fuse.Server ready to be passed to
// fuse.Mount.
func NewServer(cfg *ServerConfig) (fuse.Server, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock()
	}

	var dial func() (gameChannel, error)
	if cfg.Dial != nil {
		dial = func() (gameChannel, error) { return cfg.Dial() }
	}

	fs := &fileSystem{
		clock:   clock,
		reg:     cfg.Registry,
		channel: cfg.Channel,
		dial:    dial,
		cache:   state.NewCache(clock, cfg.CacheTTL),
		uid:     cfg.Uid,
		gid:     cfg.Gid,
		handles: make(map[fuseops.HandleID]*dirHandle),
	}
	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)

	return fuseutil.NewFileSystemServer(fs), nil
}

// fileSystem implements fuseutil.FileSystem against a registry.Registry.
//
// Lock ordering: reg's own lock is always acquired and released around a
// single registry call, never held across an IPC round trip; fs.mu,
// guarding the cache and the handle table, is independent of reg's lock
// and likewise never held during IPC. This mirrors the teacher's
// fs.mu/inode.Mu split, adapted to the fact that the registry owns its
// own invariant-checked mutex rather than delegating per-inode locks.
type fileSystem struct {
	clock   timeutil.Clock
	reg     *registry.Registry
	channel gameChannel
	dial    func() (gameChannel, error)
	uid     uint32
	gid     uint32

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	cache *state.Cache
	// GUARDED_BY(mu)
	handles map[fuseops.HandleID]*dirHandle
	// GUARDED_BY(mu)
	nextHandleID fuseops.HandleID
}

func (fs *fileSystem) checkInvariants() {
	if fs.cache == nil {
		panic("fileSystem.cache must never be nil")
	}
}

// ensureChannel dials fs.dial when the channel is currently unset,
// letting a mount started before the game process existed pick up a
// connection on the next operation that needs one, rather than staying
// wedged on ipc.NoGame for the rest of the mount's life. A failed dial
// is not fatal: it is returned to the caller, who maps it to an errno
// the same way any other channel error would be.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ensureChannel() (gameChannel, error) {
	fs.mu.Lock()
	channel := fs.channel
	dial := fs.dial
	fs.mu.Unlock()

	if channel != nil || dial == nil {
		return channel, nil
	}

	channel, err := dial()
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	if fs.channel == nil {
		fs.channel = channel
	}
	channel = fs.channel
	fs.mu.Unlock()

	return channel, nil
}

// refreshAndSnapshot implements the "refresh dynamics" step shared by
// lookup and readdir (§4.G): compute the interest the target inode's
// ancestors require, fetch (or reuse) a snapshot through the cache, and
// run ensure_generated against it. ensure_generated is idempotent, so
// this is safe to call even when nothing turns out to be stale.
func (fs *fileSystem) refreshAndSnapshot(id fuseops.InodeID, lookedUpChild *string) (*state.Snapshot, error) {
	fs.reg.Lock()
	di := fs.reg.InterestForInode(id, lookedUpChild)
	fs.reg.Unlock()

	if !di.NeedsFetch() {
		fs.mu.Lock()
		snap, ok := fs.cache.Peek()
		fs.mu.Unlock()
		if ok {
			fs.reg.Lock()
			fs.reg.EnsureGenerated(snap, di)
			fs.reg.Unlock()
			return snap, nil
		}
	}

	channel, err := fs.ensureChannel()
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, ipc.New(ipc.NoGame, "no game channel configured")
	}

	fs.mu.Lock()
	snap, err := fs.cache.Get(channel, di.Interest)
	fs.mu.Unlock()
	if err != nil {
		return nil, err
	}

	fs.reg.Lock()
	fs.reg.EnsureGenerated(snap, di)
	fs.reg.Unlock()

	return snap, nil
}

// attributesFor computes the constant attribute set of §4.G for entry:
// mode 0o755 (tagged with the kind's bit), nlink=1, configured uid/gid,
// size = maxFileSize for a readable file, else 0.
func (fs *fileSystem) attributesFor(entry registry.Entry) fuseops.InodeAttributes {
	mode := rootPerm
	var size uint64

	switch entry.Kind {
	case registry.KindDir:
		mode |= os.ModeDir
	case registry.KindLink:
		mode |= os.ModeSymlink
	case registry.KindFile:
		if entry.Behaviour.Readable() {
			size = maxFileSize
		}
	}

	now := fs.clock.Now()
	return fuseops.InodeAttributes{
		Size:  size,
		Nlink: 1,
		Mode:  mode,
		Atime: now,
		Mtime: now,
		Ctime: now,
		Uid:   fs.uid,
		Gid:   fs.gid,
	}
}

func sliceRange(data []byte, offset int64, size int) []byte {
	if offset < 0 || offset >= int64(len(data)) {
		return nil
	}
	end := offset + int64(size)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end]
}

////////////////////////////////////////////////////////////////////////
// fuseutil.FileSystem methods
////////////////////////////////////////////////////////////////////////

func (fs *fileSystem) Init(op *fuseops.InitOp) (err error) {
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) LookUpInode(op *fuseops.LookUpInodeOp) (err error) {
	if !utf8.ValidString(op.Name) {
		return fuse.ENOENT
	}

	fs.reg.Lock()
	id, entry, ok := fs.reg.LookupChild(op.Parent, op.Name)
	fs.reg.Unlock()

	if !ok {
		name := op.Name
		if _, err = fs.refreshAndSnapshot(op.Parent, &name); err != nil {
			return ipc.Errno(err)
		}

		fs.reg.Lock()
		id, entry, ok = fs.reg.LookupChild(op.Parent, op.Name)
		fs.reg.Unlock()
	}

	if !ok {
		return fuse.ENOENT
	}

	now := fs.clock.Now()
	op.Entry.Child = id
	op.Entry.Attributes = fs.attributesFor(entry)
	op.Entry.AttributesExpiration = now.Add(lookupEntryTTL)
	op.Entry.EntryExpiration = now.Add(lookupEntryTTL)

	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) (err error) {
	fs.reg.Lock()
	entry, ok := fs.reg.LookupInode(op.Inode)
	fs.reg.Unlock()
	if !ok {
		return fuse.ENOENT
	}

	op.Attributes = fs.attributesFor(entry)
	op.AttributesExpiration = fs.clock.Now().Add(lookupEntryTTL)
	return nil
}

// setattr only supports truncation of a File to size zero: writes are
// whole-body, so a truncate is a no-op other than reporting the file's
// unchanged constant attributes. Everything else is ENOSYS, per §4.G.
func (fs *fileSystem) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) (err error) {
	if op.Mode != nil || op.Atime != nil || op.Mtime != nil {
		return fuse.ENOSYS
	}

	fs.reg.Lock()
	entry, ok := fs.reg.LookupInode(op.Inode)
	fs.reg.Unlock()
	if !ok {
		return fuse.ENOENT
	}

	if op.Size != nil && (entry.Kind != registry.KindFile || *op.Size != 0) {
		return fuse.ENOSYS
	}

	op.Attributes = fs.attributesFor(entry)
	op.AttributesExpiration = fs.clock.Now().Add(lookupEntryTTL)
	return nil
}

// No per-inode lookup-count bookkeeping is kept: the registry persists
// for the life of the mount, and regeneration (not forgetting) is what
// retires an inode. Forgetting is therefore a no-op.
func (fs *fileSystem) ForgetInode(op *fuseops.ForgetInodeOp) (err error) {
	return nil
}

func (fs *fileSystem) MkDir(op *fuseops.MkDirOp) (err error) {
	return fuse.ENOSYS
}

func (fs *fileSystem) CreateFile(op *fuseops.CreateFileOp) (err error) {
	return fuse.ENOSYS
}

func (fs *fileSystem) CreateSymlink(op *fuseops.CreateSymlinkOp) (err error) {
	return fuse.ENOSYS
}

func (fs *fileSystem) RmDir(op *fuseops.RmDirOp) (err error) {
	return fuse.ENOSYS
}

func (fs *fileSystem) Unlink(op *fuseops.UnlinkOp) (err error) {
	return fuse.ENOSYS
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenDir(op *fuseops.OpenDirOp) (err error) {
	fs.reg.Lock()
	entry, ok := fs.reg.LookupInode(op.Inode)
	fs.reg.Unlock()
	if !ok || entry.Kind != registry.KindDir {
		return fuse.ENOENT
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	handleID := fs.nextHandleID
	fs.nextHandleID++
	fs.handles[handleID] = newDirHandle(fs.reg, op.Inode)
	op.Handle = handleID

	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadDir(op *fuseops.ReadDirOp) (err error) {
	fs.mu.Lock()
	dh, ok := fs.handles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		return fuse.EIO
	}

	snap, err := fs.refreshAndSnapshot(op.Inode, nil)
	if err != nil {
		return ipc.Errno(err)
	}

	dh.mu.Lock()
	defer dh.mu.Unlock()
	return dh.readDir(op, snap)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.handles, op.Handle)
	return nil
}

// OpenFile is a permission check only; reads and writes below address
// the inode directly rather than through a handle table, the way the
// teacher's own OpenFile does for its GCS-backed files.
func (fs *fileSystem) OpenFile(op *fuseops.OpenFileOp) (err error) {
	fs.reg.Lock()
	entry, ok := fs.reg.LookupInode(op.Inode)
	fs.reg.Unlock()
	if !ok || entry.Kind != registry.KindFile {
		return fuse.ENOENT
	}
	return nil
}

func (fs *fileSystem) ReadFile(op *fuseops.ReadFileOp) (err error) {
	fs.reg.Lock()
	entry, ok := fs.reg.LookupInode(op.Inode)
	fs.reg.Unlock()
	if !ok || entry.Kind != registry.KindFile {
		return fuse.ENOENT
	}
	if !entry.Behaviour.Readable() {
		return fuse.EOPNOTSUPP
	}

	var data []byte
	switch entry.Behaviour.Kind {
	case registry.BehaviourStatic:
		data = entry.Behaviour.StaticBytes

	case registry.BehaviourCommandProxy:
		data = entry.Behaviour.Readme

	default:
		channel, derr := fs.ensureChannel()
		if derr != nil {
			return ipc.Errno(derr)
		}
		if channel == nil {
			return fuse.EIO
		}
		fs.reg.Lock()
		cs := fs.reg.CommandStateForInode(op.Inode)
		fs.reg.Unlock()

		data, err = channel.SendReadCommand(entry.Behaviour.CommandID, entry.Behaviour.BodyType, cs)
		if err != nil {
			return ipc.Errno(err)
		}
	}

	op.Data = sliceRange(data, op.Offset, op.Size)
	return nil
}

func (fs *fileSystem) ReadSymlink(op *fuseops.ReadSymlinkOp) (err error) {
	fs.reg.Lock()
	entry, ok := fs.reg.LookupInode(op.Inode)
	fs.reg.Unlock()
	if !ok || entry.Kind != registry.KindLink {
		return fuse.ENOENT
	}

	snap, err := fs.refreshAndSnapshot(op.Inode, nil)
	if err != nil {
		return ipc.Errno(err)
	}

	target, ok := entry.Target(snap)
	if !ok {
		return fuse.EINVAL
	}

	op.Target = target
	return nil
}

func (fs *fileSystem) WriteFile(op *fuseops.WriteFileOp) (err error) {
	fs.reg.Lock()
	entry, ok := fs.reg.LookupInode(op.Inode)
	var cs state.CommandState
	if ok {
		cs = fs.reg.CommandStateForInode(op.Inode)
	}
	fs.reg.Unlock()

	if !ok || entry.Kind != registry.KindFile || !entry.Behaviour.Writable() {
		return fuse.EOPNOTSUPP
	}

	channel, err := fs.ensureChannel()
	if err != nil {
		return ipc.Errno(err)
	}
	if channel == nil {
		return fuse.EIO
	}

	if entry.Behaviour.Kind == registry.BehaviourCommandProxy {
		if !utf8.Valid(op.Data) {
			return fuse.EINVAL
		}
		cmd, ok := entry.Behaviour.ParseFn(string(op.Data))
		if !ok {
			return fuse.EINVAL
		}
		if _, err = channel.SendWriteCommand(entry.Behaviour.CommandID, ipc.String, []byte(cmd), cs); err != nil {
			return ipc.Errno(err)
		}
		return nil
	}

	if _, err = channel.SendWriteCommand(entry.Behaviour.CommandID, entry.Behaviour.BodyType, op.Data, cs); err != nil {
		return ipc.Errno(err)
	}
	return nil
}

// No persisted state exists to flush or sync (§6); both are no-ops.
func (fs *fileSystem) SyncFile(op *fuseops.SyncFileOp) (err error) {
	return nil
}

func (fs *fileSystem) FlushFile(op *fuseops.FlushFileOp) (err error) {
	return nil
}
