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
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUnmarshalOptionsBindsDashedNestedKeys exercises the exact path
// cmd/root.go relies on: BindFlags registers dotted, dashed viper keys
// like "file-system.inode-block-size" and "logging.severity" for a
// PascalCase, nested Config struct tagged only with `yaml:"..."`.
// Without UnmarshalOptions' TagName override, mapstructure's default
// "mapstructure" tag lookup falls back to matching the raw map key
// against the Go field name, which never matches a dashed multi-word
// key — every such field would silently stay at its zero value.
func TestUnmarshalOptionsBindsDashedNestedKeys(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))

	require.NoError(t, fs.Parse([]string{
		"--inode-block-size=8192",
		"--log-severity=TRACE",
		"--cache-ttl-secs=2",
		"--log-file=relative/log.txt",
	}))

	var c Config
	require.NoError(t, viper.Unmarshal(&c, UnmarshalOptions()...))

	assert.Equal(t, 8192, c.FileSystem.InodeBlockSize)
	assert.Equal(t, TraceLogSeverity, c.Logging.Severity)
	assert.Equal(t, 2, c.Cache.TtlSecs)
	assert.True(t, len(c.Logging.FilePath) > 0 && c.Logging.FilePath[0] == '/')
}

// TestUnmarshalOptionsWithoutTagNameWouldMismatchDashedKeys documents
// the bug UnmarshalOptions exists to avoid: unmarshalling with no
// options at all leaves every dashed, multi-word field at its zero
// value, even though viper itself resolved the flag correctly.
func TestUnmarshalOptionsWithoutTagNameWouldMismatchDashedKeys(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))
	require.NoError(t, fs.Parse([]string{"--inode-block-size=8192"}))

	var c Config
	require.NoError(t, viper.Unmarshal(&c))

	assert.NotEqual(t, 8192, c.FileSystem.InodeBlockSize)
}
