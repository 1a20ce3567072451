// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

//go:build !unix

package ramdisk

// Anonymous mappings are not available, fall back to the heap.
func mmapAnonymous(size int64) ([]byte, func() error, error) {
	return make([]byte, size), func() error { return nil }, nil
}
