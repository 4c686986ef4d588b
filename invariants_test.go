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
//go:build invariants

package longmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvariantsUncheckedAccessors(t *testing.T) {
	arr := NewLongArray(BlockFromInt64s(make([]int64, 2)))
	require.Panics(t, func() { arr.at(2) })
	require.Panics(t, func() { arr.put(2, 1) })
}

func TestInvariantsDetectCorruption(t *testing.T) {
	m := newMap(t, 64, WithHash(func(key int64) uint32 {
		return uint32(key)
	}))
	for i := int64(0); i < 10; i++ {
		require.NoError(t, m.Put(i, i))
	}
	m.checkInvariants()

	m.size++
	require.Panics(t, m.checkInvariants)
	m.size--

	// Overwrite a key so its slot no longer matches its probe sequence.
	pos, found := m.find(3)
	require.True(t, found)
	require.EqualValues(t, 3, pos)
	m.longArray.Set(2*pos, 1000)
	require.Panics(t, m.checkInvariants)
	m.longArray.Set(2*pos, 3)
	m.checkInvariants()
}
