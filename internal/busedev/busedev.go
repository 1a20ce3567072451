// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

// Package busedev exports any plugin.Plugin as a BUSE block device. It
// implements BuseReadWriter and translates batched BUSE requests into calls
// on a single plugin handle.
package busedev

import (
	"encoding/binary"
	"sync"

	"github.com/asch/buse/lib/go/buse"
	"github.com/rs/zerolog/log"

	"github.com/asch/ramdisk/internal/plugin"
)

const (
	// Size of the metadata for one write in the write chunk read from the
	// kernel.
	WRITE_ITEM_SIZE = 32

	// Sector is a linux constant, which is always 512, no matter how big your sectors or blocks
	// are. Please be careful since the terminology is ambiguous.
	sectorUnit = 512
)

// One write described in the metadata part of the write chunk. All values
// are in bytes.
type extent struct {
	Offset uint64
	Length uint64
	SeqNo  uint64
	Flag   uint64
}

// Options to use in New() function. Both values has to match the ones passed
// to buse.New().
type Options struct {
	BlockSize      int64
	WriteChunkSize int64
}

// Device implements BuseReadWriter on top of a plugin. BUSE sees just one
// client, hence the whole device uses one handle opened in BusePreRun.
type Device struct {
	plugin plugin.Plugin
	handle plugin.Handle

	blockSize int64

	// Size of the chunk portion which contains all writes metadata. After
	// this offset real data are stored.
	metadataSize int64

	// BUSE calls from many threads at once. Plugins which cannot take it
	// are serialized here.
	serialize bool
	mutex     sync.Mutex
}

var _ buse.BuseReadWriter = (*Device)(nil)

// Returns device serving the plugin. The plugin has to be ready, i.e.
// GetReady() was already called.
func New(p plugin.Plugin, o Options) *Device {
	return &Device{
		plugin:       p,
		blockSize:    o.BlockSize,
		metadataSize: o.WriteChunkSize / o.BlockSize * WRITE_ITEM_SIZE,
		serialize:    p.ThreadModel() != plugin.Parallel,
	}
}

func (d *Device) lock() {
	if d.serialize {
		d.mutex.Lock()
	}
}

func (d *Device) unlock() {
	if d.serialize {
		d.mutex.Unlock()
	}
}

// Opens a short lived handle just to learn the size of the device. BUSE needs
// the size before the device is created.
func ExportSize(p plugin.Plugin) (int64, error) {
	h, err := p.Open(true)
	if err != nil {
		return 0, err
	}
	defer h.Close()

	return h.GetSize()
}

// Parses write extent information from 32 bytes of raw memory. The memory is
// one write in metadata section of the chunk.
func parseExtent(b []byte) extent {
	return extent{
		Offset: binary.LittleEndian.Uint64(b[:8]) * sectorUnit,
		Length: binary.LittleEndian.Uint64(b[8:16]) * sectorUnit,
		SeqNo:  binary.LittleEndian.Uint64(b[16:24]),
		Flag:   binary.LittleEndian.Uint64(b[24:32]),
	}
}

// Handle writes comming from the buse library. writes contain number of write
// commands in this call and chunk contains memory where these commands are
// stored together with their data. First part of the chunk are metadata, until
// metadataSize and the rest are data of all writes in the same order.
//
// Writes are applied in order so the later write of overlapping range wins.
// The first failing write stops the batch and its error is returned.
func (d *Device) BuseWrite(writes int64, chunk []byte) error {
	d.lock()
	defer d.unlock()

	metadata := chunk[:d.metadataSize]
	data := chunk[d.metadataSize:]

	for i := int64(0); i < writes; i++ {
		e := parseExtent(metadata[:WRITE_ITEM_SIZE])

		err := d.handle.WriteAt(data[:e.Length], e.Offset, 0)
		if err != nil {
			log.Info().Err(err).Uint64("offset", e.Offset).Uint64("length", e.Length).Send()
			return err
		}

		metadata = metadata[WRITE_ITEM_SIZE:]
		data = data[e.Length:]
	}

	return nil
}

// Read extent starting at sector with length length to the buffer chunk.
// Both are in blocks.
func (d *Device) BuseRead(sector, length int64, chunk []byte) error {
	d.lock()
	defer d.unlock()

	size := length * d.blockSize

	err := d.handle.ReadAt(chunk[:size], uint64(sector*d.blockSize))
	if err != nil {
		log.Info().Err(err).Int64("sector", sector).Int64("length", length).Send()
	}

	return err
}

// Before buse library communicating with the kernel starts, we open the
// handle for all requests.
func (d *Device) BusePreRun() {
	var err error
	d.handle, err = d.plugin.Open(false)
	if err != nil {
		log.Panic().Err(err).Msg("Cannot open plugin handle")
	}

	log.Info().Str("plugin", d.plugin.Name()).Str("thread_model", d.plugin.ThreadModel().String()).Msg("Serving")
}

// After disconnecting from the kernel module and just before shuting the
// daemon down we close the handle and unload the plugin.
func (d *Device) BusePostRemove() {
	if d.handle != nil {
		d.handle.Close()
	}

	d.plugin.Unload()
}
