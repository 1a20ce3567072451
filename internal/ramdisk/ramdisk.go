// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package ramdisk

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/asch/ramdisk/internal/plugin"
)

// Phases of the plugin lifecycle. Transitions go only forward.
type state int

const (
	unconfigured state = iota
	configuring
	activated
	serving
	unloaded
)

func (s state) String() string {
	return [...]string{"unconfigured", "configuring", "activated", "serving", "unloaded"}[s]
}

// Exporter receives the volume just before it is released. It can copy the
// content somewhere, but it is never used to restore it.
type Exporter interface {
	Export(v *Volume) error
}

// Options to use in New() function. Zero value is valid and means heap
// allocated volume with default chunk size and no exporter.
type Options struct {
	Allocator Allocator
	ChunkSize int64
	Exporter  Exporter
}

// Ramdisk implements plugin.Plugin. It owns the volume and hands out handles
// referencing it.
type Ramdisk struct {
	volume   *Volume
	exporter Exporter

	// Lock guarding the lifecycle state.
	mutex sync.Mutex
	state state

	// Number of currently open connections.
	connections atomic.Int64
}

// Returns unconfigured ramdisk with default capacity.
func New(o Options) *Ramdisk {
	allocator := o.Allocator
	if allocator == "" {
		allocator = HeapAllocator
	}

	return &Ramdisk{
		volume:   NewVolume(allocator, o.ChunkSize),
		exporter: o.Exporter,
	}
}

func (r *Ramdisk) Name() string {
	return "ramdisk"
}

// The only recognized key is "size".
func (r *Ramdisk) Config(key, value string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state > configuring {
		return fmt.Errorf("%w: config %s=%s in state %s", plugin.ErrBadState, key, value, r.state)
	}

	switch key {
	case "size":
		size, err := ParseSize(value)
		if err != nil {
			return err
		}

		if err := r.volume.SetCapacity(size); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", plugin.ErrUnknownParameter, key)
	}

	r.state = configuring

	return nil
}

// Allocates the volume. Has to be called exactly once.
func (r *Ramdisk) GetReady() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state > configuring {
		return fmt.Errorf("%w: get_ready in state %s", plugin.ErrBadState, r.state)
	}

	if err := r.volume.Activate(); err != nil {
		return err
	}

	r.state = activated

	return nil
}

// Returns handle for a new connection. The readonly flag is enforced, writes
// through such handle fail with plugin.ErrReadOnly.
func (r *Ramdisk) Open(readonly bool) (plugin.Handle, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state != activated && r.state != serving {
		return nil, fmt.Errorf("%w: open in state %s", plugin.ErrBadState, r.state)
	}

	r.state = serving

	h := &handle{
		id:       uuid.New(),
		readonly: readonly,
		volume:   r.volume,
		owner:    r,
	}

	open := r.connections.Add(1)
	log.Debug().Str("id", h.id.String()).Bool("readonly", readonly).Int64("open", open).Msg("connection opened")

	return h, nil
}

// All serialization is done by the volume.
func (r *Ramdisk) ThreadModel() plugin.ThreadModel {
	return plugin.Parallel
}

// Hands the volume to the exporter, if there is any, and releases its
// memory. Export failure is only logged since the device is going away
// anyway.
func (r *Ramdisk) Unload() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state == unloaded {
		return
	}

	if r.exporter != nil && r.state >= activated {
		if err := r.exporter.Export(r.volume); err != nil {
			log.Error().Err(err).Msg("Volume export failed")
		}
	}

	if err := r.volume.Release(); err != nil {
		log.Info().Err(err).Send()
	}

	r.state = unloaded
}

// Returns the volume. Meant for hosts and exporters which need more than the
// handle offers.
func (r *Ramdisk) Volume() *Volume {
	return r.volume
}

var _ plugin.Plugin = (*Ramdisk)(nil)
