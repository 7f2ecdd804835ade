package n5

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-n5/internal/dtype"
)

// Option configures a Store or Dataset.
type Option func(*options)

type options struct {
	logger      logrus.FieldLogger
	parallelism int
	sync        bool
	fileMode    os.FileMode
	dirMode     os.FileMode
	dataType    dtype.DataType
}

func defaultOptions() *options {
	return &options{
		logger:      logrus.StandardLogger(),
		parallelism: runtime.GOMAXPROCS(0),
		fileMode:    0o644,
		dirMode:     0o755,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger used by the store. The default is the logrus
// standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithParallelism bounds the number of blocks processed concurrently by
// ReadNdarray and WriteNdarray. Values below 1 are ignored.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.parallelism = n
		}
	}
}

// WithSync makes every block and attribute write fsync before returning.
func WithSync(sync bool) Option {
	return func(o *options) {
		o.sync = sync
	}
}

// WithFileMode sets the permission bits of created files.
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) {
		if mode != 0 {
			o.fileMode = mode
		}
	}
}

// WithDirMode sets the permission bits of created directories.
func WithDirMode(mode os.FileMode) Option {
	return func(o *options) {
		if mode != 0 {
			o.dirMode = mode
		}
	}
}

// WithDataType overrides the stored data type when opening a dataset.
// A mismatch with the stored type is logged and the given type is used.
func WithDataType(dt DataType) Option {
	return func(o *options) {
		o.dataType = dt
	}
}

// Config is the YAML form of the store options.
//
//	parallelism: 8
//	sync: true
//	file_mode: "0640"
//	dir_mode: "0750"
//	log_level: debug
type Config struct {
	Parallelism int    `yaml:"parallelism"`
	Sync        bool   `yaml:"sync"`
	FileMode    string `yaml:"file_mode"`
	DirMode     string `yaml:"dir_mode"`
	LogLevel    string `yaml:"log_level"`
}

// ParseConfig decodes a YAML options document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// LoadConfig reads a YAML options file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// LoadOptions reads a YAML options file and converts it to options.
func LoadOptions(path string) ([]Option, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg.Options()
}

// Options converts the configuration to store options. A non-empty
// LogLevel installs a dedicated logrus logger at that level.
func (c *Config) Options() ([]Option, error) {
	var opts []Option
	if c.Parallelism > 0 {
		opts = append(opts, WithParallelism(c.Parallelism))
	}
	if c.Sync {
		opts = append(opts, WithSync(true))
	}
	if c.FileMode != "" {
		mode, err := parseMode(c.FileMode)
		if err != nil {
			return nil, fmt.Errorf("file_mode: %w", err)
		}
		opts = append(opts, WithFileMode(mode))
	}
	if c.DirMode != "" {
		mode, err := parseMode(c.DirMode)
		if err != nil {
			return nil, fmt.Errorf("dir_mode: %w", err)
		}
		opts = append(opts, WithDirMode(mode))
	}
	if c.LogLevel != "" {
		level, err := logrus.ParseLevel(c.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
		logger := logrus.New()
		logger.SetLevel(level)
		opts = append(opts, WithLogger(logger))
	}
	return opts, nil
}

func parseMode(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	if v > 0o777 {
		return 0, fmt.Errorf("mode %s out of range", s)
	}
	return os.FileMode(v), nil
}
