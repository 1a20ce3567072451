// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestParseDefaults(t *testing.T) {
	cfg := Config{ConfigPath: filepath.Join(t.TempDir(), "missing.toml")}

	require.NoError(t, parse(&cfg))

	assert.Equal(t, "", cfg.Ramdisk.Size)
	assert.Equal(t, "heap", cfg.Ramdisk.Allocator)
	assert.Equal(t, 1024*1024, cfg.Ramdisk.ChunkSize)
	assert.Equal(t, 4096, cfg.BlockSize)
	assert.Equal(t, 4*1024*1024, cfg.Write.ChunkSize)
	assert.Equal(t, 32*1024*1024, cfg.Read.BufSize)
	assert.Equal(t, 128, cfg.QueueDepth)
	assert.False(t, cfg.Snapshot.Enabled)
	assert.Equal(t, 4*1024*1024, cfg.Snapshot.PartSize)
	assert.Equal(t, 1, cfg.Log.Level)
}

func TestParseFile(t *testing.T) {
	path := writeConfig(t, `
major = 3
block_size = 512

[ramdisk]
size = "1G"
allocator = "mmap"
chunk_size = 2

[snapshot]
enabled = true
bucket = "disks"
part_size = 8
`)

	cfg := Config{ConfigPath: path}
	require.NoError(t, parse(&cfg))

	assert.Equal(t, path, cfg.ConfigPath)
	assert.Equal(t, 3, cfg.Major)
	assert.Equal(t, 512, cfg.BlockSize)
	assert.Equal(t, "1G", cfg.Ramdisk.Size)
	assert.Equal(t, "mmap", cfg.Ramdisk.Allocator)
	assert.Equal(t, 2*1024*1024, cfg.Ramdisk.ChunkSize)
	assert.True(t, cfg.Snapshot.Enabled)
	assert.Equal(t, "disks", cfg.Snapshot.Bucket)
	assert.Equal(t, 8*1024*1024, cfg.Snapshot.PartSize)
}

func TestParseEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[ramdisk]
size = "1G"
`)
	t.Setenv("RAMDISK_SIZE", "256M")
	t.Setenv("RAMDISK_THREADS", "8")

	cfg := Config{ConfigPath: path}
	require.NoError(t, parse(&cfg))

	assert.Equal(t, "256M", cfg.Ramdisk.Size)
	assert.Equal(t, 8, cfg.Threads)
}

func TestParseUnsupportedBlockSize(t *testing.T) {
	path := writeConfig(t, "block_size = 1024\n")

	cfg := Config{ConfigPath: path}
	require.NoError(t, parse(&cfg))

	assert.Equal(t, 4096, cfg.BlockSize)
}

func TestBindFlags(t *testing.T) {
	defer func() { Cfg = Config{} }()

	fs := pflag.NewFlagSet("ramdisk", pflag.ContinueOnError)
	BindFlags(fs)

	assert.Equal(t, DefaultConfig, Cfg.ConfigPath)

	require.NoError(t, fs.Parse([]string{"-c", "/tmp/other.toml"}))
	assert.Equal(t, "/tmp/other.toml", Cfg.ConfigPath)
}

func TestDescription(t *testing.T) {
	d := Description()

	assert.Contains(t, d, "RAMDISK_SIZE")
	assert.Contains(t, d, "RAMDISK_SNAPSHOT_BUCKET")
}
