// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

// Package config is a singleton and provides global access to the
// configuration values.
package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/pflag"
)

const (
	// Default config path. It does not need to exist, default values for all parameters will be
	// used instead.
	DefaultConfig = "/etc/ramdisk/config.toml"
)

var Cfg Config

// Configuration structure for the program. We use toml format for file-based
// configuration and also all configuration options can be overriden by
// environment variable specified in this structure.
type Config struct {
	ConfigPath string `toml:"-"`

	Null       bool `toml:"null" env:"RAMDISK_NULL" env-default:"false" env-description:"Use null backend, i.e. immediate acknowledge to read or write. For testing BUSE raw performance."`
	Major      int  `toml:"major" env:"RAMDISK_MAJOR" env-default:"0" env-description:"Device major. Decimal part of /dev/buse%d."`
	Threads    int  `toml:"threads" env:"RAMDISK_THREADS" env-default:"0" env-description:"Number of user-space threads for serving queues."`
	BlockSize  int  `toml:"block_size" env:"RAMDISK_BLOCKSIZE" env-default:"4096" env-description:"Block size."`
	Scheduler  bool `toml:"scheduler" env:"RAMDISK_SCHEDULER" env-default:"false" env-description:"Use block layer scheduler."`
	QueueDepth int  `toml:"queue_depth" env:"RAMDISK_QUEUEDEPTH" env-default:"128" env-description:"Device IO queue depth."`

	Ramdisk struct {
		Size      string `toml:"size" env:"RAMDISK_SIZE" env-description:"Device size, e.g. 512M or 4G. Empty means plugin default of 100M."`
		Allocator string `toml:"allocator" env:"RAMDISK_ALLOCATOR" env-default:"heap" env-description:"Volume memory, heap or mmap."`
		ChunkSize int    `toml:"chunk_size" env:"RAMDISK_CHUNKSIZE" env-default:"1" env-description:"Granularity of written data tracking in MB."`
	} `toml:"ramdisk"`

	Write struct {
		Durable       bool `toml:"durable" env:"RAMDISK_WRITE_DURABLE" env-description:"Flush semantics. True means durable, false means barrier only." env-default:"false"`
		BufSize       int  `toml:"shared_buffer_size" env:"RAMDISK_WRITE_BUFSIZE" env-description:"Write shared memory size in MB." env-default:"32"`
		ChunkSize     int  `toml:"chunk_size" env:"RAMDISK_WRITE_CHUNKSIZE" env-description:"Chunk size in MB." env-default:"4"`
		CollisionSize int  `toml:"collision_chunk_size" env:"RAMDISK_WRITE_COLSIZE" env-description:"Collision size in MB." env-default:"1"`
	} `toml:"write"`

	Read struct {
		BufSize int `toml:"shared_buffer_size" env:"RAMDISK_READ_BUFSIZE" env-description:"Read shared memory size in MB." env-default:"32"`
	} `toml:"read"`

	Snapshot struct {
		Enabled   bool   `toml:"enabled" env:"RAMDISK_SNAPSHOT_ENABLED" env-description:"Export written data to S3 when the device is removed." env-default:"false"`
		Bucket    string `toml:"bucket" env:"RAMDISK_SNAPSHOT_BUCKET" env-description:"S3 Bucket name." env-default:"ramdisk"`
		Remote    string `toml:"remote" env:"RAMDISK_SNAPSHOT_REMOTE" env-description:"S3 Remote address. Empty string for AWS S3 endpoint." env-default:""`
		Region    string `toml:"region" env:"RAMDISK_SNAPSHOT_REGION" env-description:"S3 Region." env-default:"us-east-1"`
		AccessKey string `toml:"access_key" env:"RAMDISK_SNAPSHOT_ACCESSKEY" env-description:"S3 Access Key." env-default:""`
		SecretKey string `toml:"secret_key" env:"RAMDISK_SNAPSHOT_SECRETKEY" env-description:"S3 Secret Key." env-default:""`
		Prefix    string `toml:"prefix" env:"RAMDISK_SNAPSHOT_PREFIX" env-description:"Key prefix of all snapshot objects." env-default:"ramdisk"`
		Uploaders int    `toml:"uploaders" env:"RAMDISK_SNAPSHOT_UPLOADERS" env-description:"Max number of uploader threads." env-default:"16"`
		PartSize  int    `toml:"part_size" env:"RAMDISK_SNAPSHOT_PARTSIZE" env-description:"Max size of one uploaded object in MB." env-default:"4"`
	} `toml:"snapshot"`

	Log struct {
		Level  int  `toml:"level" env:"RAMDISK_LOG_LEVEL" env-description:"Log level." env-default:"1"`
		Pretty bool `toml:"pretty" env:"RAMDISK_LOG_PRETTY" env-description:"Pretty logging." env-default:"true"`
	} `toml:"log"`

	Watch        bool `toml:"watch" env:"RAMDISK_WATCH" env-description:"Reload log level when the configuration file changes." env-default:"true"`
	Profiler     bool `toml:"profiler" env:"RAMDISK_PROFILER" env-description:"Enable golang web profiler." env-default:"false"`
	ProfilerPort int  `toml:"profiler_port" env:"RAMDISK_PROFILER_PORT" env-description:"Port to listen on." env-default:"6060"`
}

// Registers program flags into fs. Flags are parsed by the caller before
// Configure() is called.
func BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&Cfg.ConfigPath, "config", "c", DefaultConfig, "Path to configuration file")
}

// Returns description of all environment variables, used in the help text.
func Description() string {
	var c Config
	d, err := cleanenv.GetDescription(&c, nil)
	if err != nil {
		return ""
	}

	return d
}

// Configure handles the configuration. The configuration file has the lower
// priotiry and the environment variables have the highest priority. It is
// perfetcly to fine to use just one of these or to combine them.
func Configure() error {
	return parse(&Cfg)
}

// Parse the configuration file and reads the environment variable. After that
// it does some values postprocessing and fills the cfg structure. Sizes in MB
// are converted to bytes. The device size stays a string, it is parsed by the
// plugin.
func parse(cfg *Config) error {
	path := cfg.ConfigPath
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return err
		}
	}
	cfg.ConfigPath = path

	cfg.Ramdisk.ChunkSize *= 1024 * 1024
	cfg.Write.BufSize *= 1024 * 1024
	cfg.Write.ChunkSize *= 1024 * 1024
	cfg.Write.CollisionSize *= 1024 * 1024
	cfg.Read.BufSize *= 1024 * 1024
	cfg.Snapshot.PartSize *= 1024 * 1024

	if cfg.BlockSize != 512 {
		cfg.BlockSize = 4096
	}

	return nil
}
