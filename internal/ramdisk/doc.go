// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

// Package ramdisk is a block device backend keeping all data in memory. It
// implements the plugin interfaces, hence any host speaking them can export
// it, e.g. BUSE through the busedev package.
//
// There is exactly one volume per Ramdisk and all connections share it. The
// volume is allocated when the host calls GetReady and lives until Unload.
// Nothing is persisted, the content is lost when the process exits.
package ramdisk
