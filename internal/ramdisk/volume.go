// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package ramdisk

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/asch/ramdisk/internal/plugin"
	"github.com/asch/ramdisk/internal/ramdisk/dirtymap"
	"github.com/asch/ramdisk/internal/ramdisk/seq"
)

const (
	// Capacity used when nobody configures the size. 100MB.
	DefaultCapacity = 100 * 1024 * 1024

	// Granularity of the dirty data tracking. 1MB.
	DefaultChunkSize = 1024 * 1024
)

// Volume is the only holder of the device memory. Capacity can be changed
// until the volume is activated, after that only the content of the memory
// changes.
//
// Reads take the lock shared, so any number of them run in parallel. Writes
// take it exclusively, hence a read never sees a half applied write and two
// writes never interleave.
type Volume struct {
	mutex sync.RWMutex

	// Size of the memory to be allocated during activation.
	capacity int64

	// Memory of the device. Nil until activation.
	data []byte

	active bool

	allocator Allocator
	chunkSize int64

	// Chunks which were written, stamped with generation from gen.
	dirty *dirtymap.DirtyMap
	gen   seq.Counter

	// Returns data to the allocator.
	release func() error
}

// Returns inactive volume with default capacity.
func NewVolume(allocator Allocator, chunkSize int64) *Volume {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Volume{
		capacity:  DefaultCapacity,
		allocator: allocator,
		chunkSize: chunkSize,
	}
}

// Sets capacity of the volume. The last call before activation wins.
func (v *Volume) SetCapacity(capacity int64) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	if v.active {
		return fmt.Errorf("%w: capacity cannot change after activation", plugin.ErrBadState)
	}

	if capacity < 0 {
		return fmt.Errorf("%w: negative capacity %d", plugin.ErrInvalidArgument, capacity)
	}

	v.capacity = capacity

	return nil
}

// Returns configured capacity.
func (v *Volume) Capacity() int64 {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	return v.capacity
}

// Allocates zeroed memory of the configured capacity. Zero capacity is valid
// and results in a volume rejecting every non-empty request. Failing
// allocation is not recoverable and panics.
func (v *Volume) Activate() error {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	if v.active {
		return fmt.Errorf("%w: volume already activated", plugin.ErrBadState)
	}

	data, release, err := allocate(v.allocator, v.capacity)
	if err != nil {
		log.Panic().Err(err).Int64("capacity", v.capacity).Msg("Cannot allocate volume")
	}

	v.data = data
	v.release = release
	v.dirty = dirtymap.New(v.capacity, v.chunkSize)
	v.active = true

	log.Info().Int64("capacity", v.capacity).Str("allocator", string(v.allocator)).Msg("Volume activated")

	return nil
}

// Returns current length of the volume memory.
func (v *Volume) Size() int64 {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	return int64(len(v.data))
}

// Checks that the range starting at offset with length length lies within
// the volume. Has to be called with the lock held.
func (v *Volume) inRange(offset uint64, length int) bool {
	end := offset + uint64(length)

	return end >= offset && end <= uint64(len(v.data))
}

// Copies the volume content starting at offset into buf. The whole buf is
// always filled or an error is returned.
func (v *Volume) ReadAt(buf []byte, offset uint64) error {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	if !v.inRange(offset, len(buf)) {
		return fmt.Errorf("%w: read of %d bytes at %d, size %d",
			plugin.ErrOutOfRange, len(buf), offset, len(v.data))
	}

	copy(buf, v.data[offset:])

	return nil
}

// Copies buf into the volume starting at offset. Either the whole buf is
// written or nothing at all.
func (v *Volume) WriteAt(buf []byte, offset uint64) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	if !v.inRange(offset, len(buf)) {
		return fmt.Errorf("%w: write of %d bytes at %d, size %d",
			plugin.ErrOutOfRange, len(buf), offset, len(v.data))
	}

	copy(v.data[offset:], buf)
	v.dirty.Update(int64(offset), int64(len(buf)), v.gen.Next())

	return nil
}

// Returns all extents written since activation.
func (v *Volume) DirtyExtents() []dirtymap.Extent {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	if v.dirty == nil {
		return nil
	}

	return v.dirty.Extents()
}

// Returns generation of the last applied write. 0 means no write yet.
func (v *Volume) Generation() int64 {
	return v.gen.Current()
}

// Returns the memory to the allocator. The volume keeps rejecting every
// non-empty request afterwards.
func (v *Volume) Release() error {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	if v.release == nil {
		return nil
	}

	err := v.release()
	v.data = nil
	v.release = nil

	return err
}
