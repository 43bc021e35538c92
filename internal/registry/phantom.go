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

package registry

import (
	"strconv"
	"strings"

	"github.com/mcfuse/mcfs/internal/state"
)

// ParseBlockPosition accepts "10,64,-5" or "10 64 -5" as a block
// coordinate, the canonical phantom-name grammar of §4.E's worked
// example. It is a left-inverse of FormatBlockPosition over the full
// int32 range, per §8 invariant 6.
func ParseBlockPosition(name string) (state.BlockPos, bool) {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 3 {
		return state.BlockPos{}, false
	}

	var coords [3]int32
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return state.BlockPos{}, false
		}
		coords[i] = int32(v)
	}
	return state.BlockPos{X: coords[0], Y: coords[1], Z: coords[2]}, true
}

// FormatBlockPosition renders the canonical "x,y,z" phantom name for a
// block position.
func FormatBlockPosition(p state.BlockPos) string {
	return p.String()
}
