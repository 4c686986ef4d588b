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

import "log/slog"

// DefaultLoadFactor is the fraction of slots that may be occupied before a
// Map grows.
const DefaultLoadFactor = 0.70

// option provide an interface to do work on Map while it is being created.
type option interface {
	apply(m *Map)
}

type hashOption struct {
	hash Hasher
}

func (op hashOption) apply(m *Map) {
	m.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Map. The
// default is Murmur3.
func WithHash(hash Hasher) option {
	return hashOption{hash}
}

type allocatorOption struct {
	allocator Allocator
}

func (op allocatorOption) apply(m *Map) {
	m.allocator = op.allocator
}

// WithAllocator is an option to specify the Allocator to use for a Map. The
// default is HeapAllocator.
func WithAllocator(allocator Allocator) option {
	return allocatorOption{allocator}
}

type loadFactorOption struct {
	loadFactor float64
}

func (op loadFactorOption) apply(m *Map) {
	m.loadFactor = op.loadFactor
}

// WithLoadFactor is an option to specify the load factor at which a Map
// grows. It must lie in the open interval (0, 1).
func WithLoadFactor(loadFactor float64) option {
	return loadFactorOption{loadFactor}
}

type growthOption struct {
	growth GrowthStrategy
}

func (op growthOption) apply(m *Map) {
	m.growth = op.growth
}

// WithGrowthStrategy is an option to specify how a Map picks its next
// capacity. Results are rounded up to a power of two no smaller than twice
// the current capacity.
func WithGrowthStrategy(growth GrowthStrategy) option {
	return growthOption{growth}
}

type loggerOption struct {
	logger *slog.Logger
}

func (op loggerOption) apply(m *Map) {
	m.logger = op.logger
}

// WithLogger is an option to specify a logger for growth events. Growth is
// logged at debug level and failed growth at warn level. By default nothing
// is logged.
func WithLogger(logger *slog.Logger) option {
	return loggerOption{logger}
}
