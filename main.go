// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

// ramdisk is a userspace daemon using BUSE for creating a block device whose
// data live only in memory. The storage logic is a plugin behind a small
// interface, hence the host side (BUSE) and the backend (memory, null) can be
// swapped independently.
//
// Project structure is following:
//
// - internal/plugin contains the interfaces between the host and backends
// together with the errors backends return.
//
// - internal/ramdisk contains the memory backend. See the package description
// for more details.
//
// - internal/null contains trivial backend which does nothing but correctly.
// It can be used for benchmarking underlying buse library and kernel module.
//
// - internal/busedev exports any plugin as a BUSE device.
//
// - internal/snapshot optionally copies written data to S3 when the device is
// removed.
//
// - internal/config contains configuration package which is common for all
// backends.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/asch/buse/lib/go/buse"
	"github.com/asch/ramdisk/internal/busedev"
	"github.com/asch/ramdisk/internal/config"
	"github.com/asch/ramdisk/internal/null"
	"github.com/asch/ramdisk/internal/plugin"
	"github.com/asch/ramdisk/internal/ramdisk"
	"github.com/asch/ramdisk/internal/snapshot"
	"github.com/asch/ramdisk/internal/snapshot/s3"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ramdisk",
		Short: "Memory backed BUSE block device",
		Long: "Creates /dev/buse<major> block device keeping all data in memory. " +
			"The device runs until SIGINT or SIGTERM.\n\n" + config.Description(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Configure(); err != nil {
				return err
			}

			return serve()
		},
	}

	config.BindFlags(root.PersistentFlags())
	root.AddCommand(newDumpPluginCommand())

	return root
}

func newDumpPluginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-plugin",
		Short: "Print plugin information and effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Configure(); err != nil {
				return err
			}

			p, err := getPlugin(&config.Cfg, nil)
			if err != nil {
				return err
			}

			return dumpPlugin(cmd.OutOrStdout(), p, config.Cfg)
		},
	}
}

// Parse configuration, creates the plugin, wraps it into BUSE device and runs
// it until it is signaled by SIGINT or SIGTERM to gracefully finish.
func serve() error {
	loggerSetup(config.Cfg.Log.Pretty, config.Cfg.Log.Level)

	if config.Cfg.Profiler {
		runProfiler(config.Cfg.ProfilerPort)
	}

	exporter, err := getExporter(&config.Cfg)
	if err != nil {
		return err
	}

	p, err := getPlugin(&config.Cfg, exporter)
	if err != nil {
		return err
	}

	if err := configurePlugin(p, config.Cfg.Ramdisk.Size); err != nil {
		return err
	}

	if err := p.GetReady(); err != nil {
		return err
	}

	size, err := busedev.ExportSize(p)
	if err != nil {
		return err
	}

	device := busedev.New(p, busedev.Options{
		BlockSize:      int64(config.Cfg.BlockSize),
		WriteChunkSize: int64(config.Cfg.Write.ChunkSize),
	})

	buse, err := buse.New(device, buse.Options{
		Durable:        config.Cfg.Write.Durable,
		WriteChunkSize: int64(config.Cfg.Write.ChunkSize),
		BlockSize:      int64(config.Cfg.BlockSize),
		Threads:        int(config.Cfg.Threads),
		Major:          int64(config.Cfg.Major),
		WriteShmSize:   int64(config.Cfg.Write.BufSize),
		ReadShmSize:    int64(config.Cfg.Read.BufSize),
		Size:           size,
		CollisionArea:  int64(config.Cfg.Write.CollisionSize),
		QueueDepth:     int64(config.Cfg.QueueDepth),
		Scheduler:      config.Cfg.Scheduler,
	})

	if err != nil {
		return err
	}

	log.Info().Msgf("BUSE device %d registered!", config.Cfg.Major)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Cfg.Watch {
		go watchConfig(ctx, config.Cfg.ConfigPath)
	}

	registerSigHandlers(buse)

	buse.Run()

	log.Info().Msgf("Removing buse%d", config.Cfg.Major)
	buse.RemoveDevice()

	return nil
}

// Return null plugin if user wants it, otherwise returns ramdisk, which is
// default.
func getPlugin(cfg *config.Config, exporter ramdisk.Exporter) (plugin.Plugin, error) {
	if cfg.Null {
		return null.NewNull(), nil
	}

	allocator, err := ramdisk.ParseAllocator(cfg.Ramdisk.Allocator)
	if err != nil {
		return nil, err
	}

	return ramdisk.New(ramdisk.Options{
		Allocator: allocator,
		ChunkSize: int64(cfg.Ramdisk.ChunkSize),
		Exporter:  exporter,
	}), nil
}

// Returns S3 snapshot exporter if enabled, nil otherwise.
func getExporter(cfg *config.Config) (ramdisk.Exporter, error) {
	if !cfg.Snapshot.Enabled {
		return nil, nil
	}

	store, err := s3.New(s3.Options{
		Remote:    cfg.Snapshot.Remote,
		Region:    cfg.Snapshot.Region,
		Bucket:    cfg.Snapshot.Bucket,
		AccessKey: cfg.Snapshot.AccessKey,
		SecretKey: cfg.Snapshot.SecretKey,
	})

	if err != nil {
		return nil, err
	}

	return snapshot.New(store, snapshot.Options{
		Prefix:    cfg.Snapshot.Prefix,
		Uploaders: cfg.Snapshot.Uploaders,
		PartSize:  int64(cfg.Snapshot.PartSize),
	}), nil
}

// Passes the configured size to the plugin. Empty size keeps the plugin
// default.
func configurePlugin(p plugin.Plugin, size string) error {
	if size == "" {
		return nil
	}

	return p.Config("size", size)
}

// Prints plugin identification followed by the effective configuration in
// toml. Secrets are masked.
func dumpPlugin(w io.Writer, p plugin.Plugin, cfg config.Config) error {
	if cfg.Snapshot.SecretKey != "" {
		cfg.Snapshot.SecretKey = "***"
	}

	fmt.Fprintf(w, "name=%s\n", p.Name())
	fmt.Fprintf(w, "thread_model=%s\n\n", p.ThreadModel())

	return toml.NewEncoder(w).Encode(cfg)
}

// Register handler for graceful stop when SIGINT or SIGTERM came in.
func registerSigHandlers(buse buse.Buse) {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt)
	signal.Notify(stopChan, syscall.SIGTERM)
	go func() {
		<-stopChan
		log.Info().Msgf("Received interrupt, stopping buse%d device!", config.Cfg.Major)
		buse.StopDevice()
	}()
}

func loggerSetup(pretty bool, level int) {
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// Reapplies log level whenever the configuration file changes.
func watchConfig(ctx context.Context, path string) {
	err := config.Watch(ctx, path, func(level int) {
		zerolog.SetGlobalLevel(zerolog.Level(level))
	})

	if err != nil {
		log.Info().Err(err).Str("path", path).Msg("Configuration watcher not running")
	}
}

// Enables remote profiling support. Useful for perfomance debugging.
func runProfiler(port int) {
	go func() {
		log.Info().Err(http.ListenAndServe(fmt.Sprintf("localhost:%d", port), nil)).Send()
	}()
}
