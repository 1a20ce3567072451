// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package ramdisk

import (
	"fmt"

	"github.com/asch/ramdisk/internal/plugin"
)

// Allocator selects where the volume memory comes from.
type Allocator string

const (
	// Regular Go slice. Memory is zeroed and committed immediately.
	HeapAllocator Allocator = "heap"

	// Anonymous private mapping. The kernel hands out zero pages lazily, so
	// large and sparsely used volumes cost only what was written.
	MmapAllocator Allocator = "mmap"
)

// ParseAllocator converts the configuration value into an Allocator. Empty
// string selects the heap.
func ParseAllocator(s string) (Allocator, error) {
	switch Allocator(s) {
	case "", HeapAllocator:
		return HeapAllocator, nil
	case MmapAllocator:
		return MmapAllocator, nil
	}

	return "", fmt.Errorf("%w: unknown allocator %q", plugin.ErrInvalidArgument, s)
}

// Returns zeroed memory of length size together with function releasing it.
func allocate(a Allocator, size int64) ([]byte, func() error, error) {
	if a == MmapAllocator && size > 0 {
		return mmapAnonymous(size)
	}

	return make([]byte, size), func() error { return nil }, nil
}
