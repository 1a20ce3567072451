// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

//go:build unix

package ramdisk

import (
	"golang.org/x/sys/unix"
)

func mmapAnonymous(size int64) ([]byte, func() error, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}

	return data, func() error { return unix.Munmap(data) }, nil
}
