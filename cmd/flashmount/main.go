package main

import (
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/absfs/flashfs"
	"github.com/absfs/flashfs/fusefs"
	"github.com/absfs/flashfs/hostfs"
	"github.com/absfs/flashfs/memfs"
)

//go:embed config.default.yaml
var defaultConfig []byte

// appConfig is the merged configuration of the mount utility.
type appConfig struct {
	Backend         string         `koanf:"backend"`
	Mountpoint      string         `koanf:"mountpoint"`
	HostRoot        string         `koanf:"host_root"`
	FSName          string         `koanf:"fs_name"`
	ReadOnly        bool           `koanf:"read_only"`
	AllowOther      bool           `koanf:"allow_other"`
	Debug           bool           `koanf:"debug"`
	FormatOnCorrupt bool           `koanf:"format_on_corrupt"`
	Geometry        flashfs.Config `koanf:"geometry"`
}

var configParsers = map[string]koanf.Parser{
	".json": json.Parser(),
	".yaml": yaml.Parser(),
	".yml":  yaml.Parser(),
}

// loadConfig merges the embedded defaults with the file named by
// CONFIG_PATH, when set.
func loadConfig() (*appConfig, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		parser, ok := configParsers[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil, fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg appConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// newEngine picks the storage backend.
func newEngine(cfg *appConfig) (flashfs.Engine, error) {
	switch cfg.Backend {
	case "mem":
		return memfs.New(), nil
	case "host":
		if cfg.HostRoot == "" {
			return nil, fmt.Errorf("host backend needs host_root")
		}
		if err := os.MkdirAll(cfg.HostRoot, 0755); err != nil {
			return nil, err
		}
		return hostfs.New(newHostDir(cfg.HostRoot)), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02T15:04:05",
	}).With().Timestamp().Logger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration")
	}

	if cfg.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	eng, err := newEngine(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage backend")
	}

	session := flashfs.New(eng, &flashfs.Options{
		Config: &cfg.Geometry,
		Logger: &logger,
	})

	if err := session.Mount(nil); err != nil {
		if flashfs.CodeOf(err) != flashfs.ErrCorrupt || !cfg.FormatOnCorrupt {
			logger.Fatal().Err(err).Msg("mount session")
		}
		logger.Warn().Msg("backing store unformatted or corrupt, formatting")
		if err := session.Format(); err != nil {
			logger.Fatal().Err(err).Msg("format")
		}
		if err := session.Mount(nil); err != nil {
			logger.Fatal().Err(err).Msg("mount session")
		}
	}

	opts := fusefs.DefaultMountOptions(cfg.Mountpoint)
	opts.FSName = cfg.FSName
	opts.ReadOnly = cfg.ReadOnly
	opts.AllowOther = cfg.AllowOther
	opts.Debug = cfg.Debug

	fuseFS, err := fusefs.Mount(session, opts)
	if err != nil {
		session.Unmount()
		logger.Fatal().Err(err).Msg("mount fuse")
	}

	logger.Info().
		Str("backend", cfg.Backend).
		Str("mountpoint", cfg.Mountpoint).
		Int64("capacity", cfg.Geometry.TotalBytes()).
		Msg("mounted")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("unmounting")

	if err := fuseFS.Unmount(); err != nil {
		logger.Error().Err(err).Msg("unmount fuse")
	}

	stats := session.Stats()
	logger.Info().
		Uint64("operations", stats.Operations).
		Uint64("errors", stats.Errors).
		Uint64("bytes_read", stats.BytesRead).
		Uint64("bytes_written", stats.BytesWritten).
		Msg("session statistics")

	if err := session.Unmount(); err != nil {
		logger.Error().Err(err).Msg("unmount session")
	}
}
