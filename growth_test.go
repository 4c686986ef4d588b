// Copyright 2024 The Cockroach Authors
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
package longmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextPowerOf2(t *testing.T) {
	testCases := []struct {
		n, expected uint64
	}{
		{0, 64},
		{1, 64},
		{63, 64},
		{64, 64},
		{65, 128},
		{127, 128},
		{128, 128},
		{129, 256},
		{1 << 40, 1 << 40},
		{1<<40 + 1, 1 << 41},
		{1 << 63, 1 << 63},
		{1<<63 + 1, 1 << 63},
		{^uint64(0), 1 << 63},
	}
	for _, c := range testCases {
		require.Equal(t, c.expected, nextPowerOf2(c.n), "n=%d", c.n)
	}
}

func TestDoubling(t *testing.T) {
	for c := uint64(64); c < 1<<30; c *= 2 {
		require.Equal(t, 2*c, Doubling.NextCapacity(c))
		require.Equal(t, 2*c, nextCapacity(Doubling, c))
	}
}

func TestNextCapacityNormalizes(t *testing.T) {
	require.EqualValues(t, 128, nextCapacity(growToCapacity(0), 64))
	require.EqualValues(t, 128, nextCapacity(growToCapacity(100), 64))
	require.EqualValues(t, 1024, nextCapacity(growToCapacity(1000), 64))
	require.EqualValues(t, 4096, nextCapacity(growToCapacity(4096), 64))
	require.EqualValues(t, uint64(1)<<63, nextCapacity(growToCapacity(^uint64(0)), 64))
	require.EqualValues(t, uint64(1)<<63, nextCapacity(Doubling, 1<<63))
}
