// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asch/ramdisk/internal/config"
	"github.com/asch/ramdisk/internal/plugin"
	"github.com/asch/ramdisk/internal/ramdisk"
)

func TestGetPlugin(t *testing.T) {
	var cfg config.Config

	p, err := getPlugin(&cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "ramdisk", p.Name())

	cfg.Null = true
	p, err = getPlugin(&cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "null", p.Name())
}

func TestGetPluginBadAllocator(t *testing.T) {
	var cfg config.Config
	cfg.Ramdisk.Allocator = "tape"

	_, err := getPlugin(&cfg, nil)

	assert.ErrorIs(t, err, plugin.ErrInvalidArgument)
}

func TestGetExporterDisabled(t *testing.T) {
	var cfg config.Config

	e, err := getExporter(&cfg)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestConfigurePlugin(t *testing.T) {
	r := ramdisk.New(ramdisk.Options{})

	require.NoError(t, configurePlugin(r, ""))
	assert.Equal(t, int64(ramdisk.DefaultCapacity), r.Volume().Capacity())

	require.NoError(t, configurePlugin(r, "2M"))
	assert.Equal(t, int64(2<<20), r.Volume().Capacity())

	assert.ErrorIs(t, configurePlugin(r, "lots"), plugin.ErrInvalidArgument)
}

func TestDumpPlugin(t *testing.T) {
	var cfg config.Config
	cfg.Ramdisk.Size = "1G"
	cfg.Snapshot.SecretKey = "hunter2"

	var out bytes.Buffer
	require.NoError(t, dumpPlugin(&out, ramdisk.New(ramdisk.Options{}), cfg))

	s := out.String()
	assert.Contains(t, s, "name=ramdisk\n")
	assert.Contains(t, s, "thread_model=parallel\n")
	assert.Contains(t, s, "[ramdisk]")
	assert.Contains(t, s, "1G")
	assert.NotContains(t, s, "hunter2")
	assert.Equal(t, "hunter2", cfg.Snapshot.SecretKey)
}

func TestRootCommandHasDumpPlugin(t *testing.T) {
	root := newRootCommand()

	cmd, _, err := root.Find([]string{"dump-plugin"})
	require.NoError(t, err)
	assert.Equal(t, "dump-plugin", cmd.Name())
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
