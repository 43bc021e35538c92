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

import "fmt"

func isValidLogRotateConfig(config *LogRotateConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidLogSeverity(severity LogSeverity) error {
	if severity.Rank() < 0 {
		return fmt.Errorf("unknown log severity: %s", severity)
	}
	return nil
}

func isValidInodeBlockSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("inode-block-size must be positive, got %d", size)
	}
	return nil
}

func isValidCacheTtl(ttlSecs int) error {
	if ttlSecs < 0 {
		return fmt.Errorf("cache.ttl-secs can't be negative, got %d", ttlSecs)
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	var err error

	if err = isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	if err = isValidLogSeverity(config.Logging.Severity); err != nil {
		return fmt.Errorf("error parsing logging config: %w", err)
	}

	if err = isValidInodeBlockSize(config.FileSystem.InodeBlockSize); err != nil {
		return fmt.Errorf("error parsing file-system config: %w", err)
	}

	if err = isValidCacheTtl(config.Cache.TtlSecs); err != nil {
		return fmt.Errorf("error parsing cache config: %w", err)
	}

	return nil
}
