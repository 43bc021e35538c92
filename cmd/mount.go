// Copyright 2024 Google Inc. All Rights Reserved.
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

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/timeutil"

	"github.com/mcfuse/mcfs/cfg"
	"github.com/mcfuse/mcfs/fs"
	"github.com/mcfuse/mcfs/internal/ipc"
	"github.com/mcfuse/mcfs/internal/logger"
	"github.com/mcfuse/mcfs/internal/registry"
	"github.com/mcfuse/mcfs/internal/schema"
)

// mountAndJoin builds the registry, opens the game channel, constructs
// the FUSE server and mounts it, then blocks until unmount, matching
// the teacher's mountWithStorageHandle/fuse.Mount/Join lifecycle.
func mountAndJoin(ctx context.Context, mountPoint string, config *cfg.Config) error {
	uid := uint32(os.Getuid())
	gid := uint32(os.Getgid())
	if config.FileSystem.Uid >= 0 {
		uid = uint32(config.FileSystem.Uid)
	}

	clock := timeutil.RealClock()
	serverCfg := &fs.ServerConfig{
		Clock:    clock,
		CacheTTL: config.Cache.Ttl(),
		Uid:      uid,
		Gid:      gid,
	}

	// Assigned only on success: a nil *ipc.Channel stored in the
	// interface field would be a non-nil interface wrapping a nil
	// pointer, defeating fs.go's own nil check. Dial lets fs.fileSystem
	// retry the connection lazily on the next operation that needs one,
	// so a mount started before the game process exists still comes
	// alive once it does.
	serverCfg.Dial = ipc.OpenExisting
	if channel, err := ipc.OpenExisting(); err != nil {
		logger.Warn("no game connection at startup; will retry lazily", "error", err)
	} else {
		serverCfg.Channel = channel
	}

	b := registry.NewBuilder(clock, config.Cache.Ttl(), uint64(config.FileSystem.InodeBlockSize))
	schema.Build(b)
	serverCfg.Registry = b.Finish()

	server, err := fs.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("fs.NewServer: %w", err)
	}

	logger.Info("mounting filesystem", "mount_point", mountPoint)
	mfs, err := fuse.Mount(mountPoint, server, mountConfig(config))
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	if err := mfs.Join(ctx); err != nil {
		return fmt.Errorf("serving filesystem: %w", err)
	}
	return nil
}

// mountConfig builds the jacobsa/fuse mount options, matching the
// log-severity-to-FUSE-logger mapping the teacher's getFuseMountConfig
// uses, trimmed of the bucket-specific naming and directory-op flags
// this filesystem has no analogue for.
func mountConfig(config *cfg.Config) *fuse.MountConfig {
	mountCfg := &fuse.MountConfig{
		FSName:     config.AppName,
		Subtype:    "mcfs",
		VolumeName: config.AppName,
	}

	if config.Logging.Severity.Rank() <= cfg.ErrorLogSeverity.Rank() {
		mountCfg.ErrorLogger = logger.StdLogger(logger.LevelError, "fuse: ")
	}
	if config.Logging.Severity.Rank() <= cfg.TraceLogSeverity.Rank() {
		mountCfg.DebugLogger = logger.StdLogger(logger.LevelTrace, "fuse_debug: ")
	}
	return mountCfg
}
