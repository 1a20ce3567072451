// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

// Null package does nothing but correctly.
package null

import (
	"fmt"

	"github.com/asch/ramdisk/internal/plugin"
	"github.com/asch/ramdisk/internal/ramdisk"
)

// Null implementation of plugin.Plugin. Usefull for measuring performance of
// the host and the underlying kernel module. Otherwise useless. Reads return
// zeroes, writes are acknowledged and forgotten. It accepts the same "size"
// key as the ramdisk so both can be swapped by a single configuration
// option.
type null struct {
	size int64
}

func NewNull() *null {
	return &null{size: ramdisk.DefaultCapacity}
}

func (n *null) Name() string {
	return "null"
}

func (n *null) Config(key, value string) error {
	if key != "size" {
		return fmt.Errorf("%w: %s", plugin.ErrUnknownParameter, key)
	}

	size, err := ramdisk.ParseSize(value)
	if err != nil {
		return err
	}

	n.size = size

	return nil
}

func (n *null) GetReady() error {
	return nil
}

func (n *null) Open(readonly bool) (plugin.Handle, error) {
	return &handle{size: n.size}, nil
}

func (n *null) ThreadModel() plugin.ThreadModel {
	return plugin.Parallel
}

func (n *null) Unload() {
}

type handle struct {
	size int64
}

func (h *handle) GetSize() (int64, error) {
	return h.size, nil
}

func (h *handle) ReadAt(buf []byte, offset uint64) error {
	for i := range buf {
		buf[i] = 0
	}

	return nil
}

func (h *handle) WriteAt(buf []byte, offset uint64, flags plugin.Flags) error {
	return nil
}

func (h *handle) Close() error {
	return nil
}
