// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package ramdisk

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/asch/ramdisk/internal/plugin"
)

// Per connection handle. It carries no data of its own, all requests go
// straight to the shared volume.
type handle struct {
	id       uuid.UUID
	readonly bool
	volume   *Volume
	owner    *Ramdisk
	closed   atomic.Bool
}

// Identity of the connection, used in logs.
func (h *handle) ID() uuid.UUID {
	return h.id
}

func (h *handle) GetSize() (int64, error) {
	return h.volume.Size(), nil
}

func (h *handle) ReadAt(buf []byte, offset uint64) error {
	return h.volume.ReadAt(buf, offset)
}

// Flags are accepted but ignored. Memory has no cache to flush, so FUA is
// satisfied by every write.
func (h *handle) WriteAt(buf []byte, offset uint64, flags plugin.Flags) error {
	if h.readonly {
		return fmt.Errorf("%w: connection %s", plugin.ErrReadOnly, h.id)
	}

	return h.volume.WriteAt(buf, offset)
}

// Closing already closed handle is a no-op.
func (h *handle) Close() error {
	if h.closed.Swap(true) {
		return nil
	}

	open := h.owner.connections.Add(-1)
	log.Debug().Str("id", h.id.String()).Int64("open", open).Msg("connection closed")

	return nil
}
