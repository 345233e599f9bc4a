package flashfs

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config carries the engine geometry, mirroring the littlefs
// configuration block. Sizes are in bytes.
type Config struct {
	// ReadSize is the smallest readable unit of the device.
	ReadSize uint32 `koanf:"read_size"`

	// ProgSize is the smallest programmable unit of the device.
	ProgSize uint32 `koanf:"prog_size"`

	// BlockSize is the erasable unit, a multiple of ReadSize and
	// ProgSize.
	BlockSize uint32 `koanf:"block_size"`

	// BlockCount is the number of erasable blocks on the device.
	BlockCount uint32 `koanf:"block_count"`

	// BlockCycles is the number of erase cycles before the engine
	// relocates a block for wear leveling. -1 disables wear leveling.
	BlockCycles int32 `koanf:"block_cycles"`

	// CacheSize is the per-cache buffer size. Zero means BlockSize.
	CacheSize uint32 `koanf:"cache_size"`

	// LookaheadSize is the size of the block allocator lookahead
	// buffer, a multiple of 8.
	LookaheadSize uint32 `koanf:"lookahead_size"`

	// NameMax caps the length of a single path component. Zero means
	// the engine default of 255.
	NameMax uint32 `koanf:"name_max"`

	// FileMax caps the size of a file. Zero means the engine default.
	FileMax uint32 `koanf:"file_max"`

	// Device receives the raw block operations. Engines that keep their
	// own storage may leave it nil. Not loadable from a file.
	Device BlockDevice `koanf:"-"`
}

// Validate checks the geometry invariants.
func (c *Config) Validate() error {
	if c.ReadSize == 0 {
		return fmt.Errorf("config: read_size must be positive")
	}
	if c.ProgSize == 0 {
		return fmt.Errorf("config: prog_size must be positive")
	}
	if c.BlockSize == 0 {
		return fmt.Errorf("config: block_size must be positive")
	}
	if c.BlockCount == 0 {
		return fmt.Errorf("config: block_count must be positive")
	}
	if c.BlockSize%c.ReadSize != 0 {
		return fmt.Errorf("config: block_size %d is not a multiple of read_size %d", c.BlockSize, c.ReadSize)
	}
	if c.BlockSize%c.ProgSize != 0 {
		return fmt.Errorf("config: block_size %d is not a multiple of prog_size %d", c.BlockSize, c.ProgSize)
	}
	if c.CacheSize != 0 && c.BlockSize%c.CacheSize != 0 {
		return fmt.Errorf("config: block_size %d is not a multiple of cache_size %d", c.BlockSize, c.CacheSize)
	}
	if c.LookaheadSize%8 != 0 {
		return fmt.Errorf("config: lookahead_size %d is not a multiple of 8", c.LookaheadSize)
	}
	return nil
}

// TotalBytes returns the capacity of the configured geometry.
func (c *Config) TotalBytes() int64 {
	return int64(c.BlockSize) * int64(c.BlockCount)
}

var configParsers = map[string]koanf.Parser{
	".json": json.Parser(),
	".yaml": yaml.Parser(),
	".yml":  yaml.Parser(),
}

// LoadConfig reads and validates a Config from a YAML or JSON file.
func LoadConfig(path string) (*Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	parser, ok := configParsers[ext]
	if !ok {
		return nil, fmt.Errorf("config: unsupported file extension %q", ext)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
