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

package cfg

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	AppName string `yaml:"app-name"`

	Debug DebugConfig `yaml:"debug"`

	FileSystem FileSystemConfig `yaml:"file-system"`

	Ipc IpcConfig `yaml:"ipc"`

	Cache CacheConfig `yaml:"cache"`

	Logging LoggingConfig `yaml:"logging"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

type FileSystemConfig struct {
	FileMode Octal `yaml:"file-mode"`

	Uid int `yaml:"uid"`

	// InodeBlockSize is the chunk size in which dynamic inode numbers are
	// handed out. See internal/inode.Allocator.
	InodeBlockSize int `yaml:"inode-block-size"`
}

// IpcConfig controls how the filesystem reaches the running game.
type IpcConfig struct {
	// SocketPath is read from the socket-path flag or config key. The
	// mount does not consult it: ipc.OpenExisting always dials
	// ipc.SocketPath(), i.e. ${TMPDIR}/minecraft-fuse-${USER}.
	SocketPath ResolvedPath `yaml:"socket-path"`
}

// CacheConfig controls the game-state cache sitting between the
// registry and the IPC channel.
type CacheConfig struct {
	TtlSecs int `yaml:"ttl-secs"`
}

func (c CacheConfig) Ttl() time.Duration {
	return time.Duration(c.TtlSecs) * time.Second
}

type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`

	Format string `yaml:"format"`

	FilePath ResolvedPath `yaml:"file-path"`

	LogRotate LogRotateConfig `yaml:"log-rotate"`
}

type LogRotateConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "mcfuse", "The application name of this mount.")

	err = viper.BindPFlag("app-name", flagSet.Lookup("app-name"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug_invariants", "", false, "Exit when internal registry invariants are violated. Parsed but not read by the mount.")

	err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug_invariants"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug_mutex", "", false, "Print debug messages when the registry mutex is held too long. Parsed but not read by the mount.")

	err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug_mutex"))
	if err != nil {
		return err
	}

	flagSet.IntP("file-mode", "", 0755, "Permissions bits for files, in octal. Not applied: every inode reports 0755.")

	err = viper.BindPFlag("file-system.file-mode", flagSet.Lookup("file-mode"))
	if err != nil {
		return err
	}

	flagSet.IntP("uid", "", -1, "UID owner of all inodes.")

	err = viper.BindPFlag("file-system.uid", flagSet.Lookup("uid"))
	if err != nil {
		return err
	}

	flagSet.IntP("inode-block-size", "", 4096, "Number of dynamic inode numbers handed out per allocation block.")

	err = viper.BindPFlag("file-system.inode-block-size", flagSet.Lookup("inode-block-size"))
	if err != nil {
		return err
	}

	flagSet.StringP("socket-path", "", "", "Path to the game's IPC socket. Not consulted by the mount, which always uses ${TMPDIR}/minecraft-fuse-${USER}.")

	err = viper.BindPFlag("ipc.socket-path", flagSet.Lookup("socket-path"))
	if err != nil {
		return err
	}

	flagSet.IntP("cache-ttl-secs", "", 0, "Game-state cache TTL in seconds. 0 selects the built-in default.")

	err = viper.BindPFlag("cache.ttl-secs", flagSet.Lookup("cache-ttl-secs"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Log severity: TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")

	err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log output format: text or json.")

	err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to a log file. Empty means log to stderr.")

	err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file"))
	if err != nil {
		return err
	}

	flagSet.IntP("log-rotate-max-file-size-mb", "", 10, "Maximum size in MB of a log file before it's rotated.")

	err = viper.BindPFlag("logging.log-rotate.max-file-size-mb", flagSet.Lookup("log-rotate-max-file-size-mb"))
	if err != nil {
		return err
	}

	flagSet.IntP("log-rotate-backup-file-count", "", 10, "Number of rotated log files to retain. 0 means retain all.")

	err = viper.BindPFlag("logging.log-rotate.backup-file-count", flagSet.Lookup("log-rotate-backup-file-count"))
	if err != nil {
		return err
	}

	flagSet.BoolP("log-rotate-compress", "", true, "Compress rotated log files.")

	err = viper.BindPFlag("logging.log-rotate.compress", flagSet.Lookup("log-rotate-compress"))
	if err != nil {
		return err
	}

	return nil
}
