// Package config loads vecgroup run configuration from YAML files.
//
// The grouping parameters live at the top level of the document under the
// names used throughout the catalog tooling:
//
//	top_k_neighbors: 20
//	max_sub_group_size: 200
//	min_orphan_group_size: 100
//	min_hub_spoke_group_size: 10
//	lexical_boost_factor: 0.2
//	structural_boost_factor: 0.15
//	community_detection_seed: 42
//
//	input:
//	  kind: sqlite
//	  path: catalog.db
//	storage:
//	  kind: local
//	  path: ./out
//
// Omitted keys keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecgroup"
	"github.com/hupe1980/vecgroup/checkpoint"
	"github.com/hupe1980/vecgroup/codec"
	"github.com/hupe1980/vecgroup/resource"
)

// ErrInvalidConfig is returned when a configuration value is not recognized.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Input kinds.
const (
	InputSQLite = "sqlite"
	InputJSONL  = "jsonl"
)

// Storage kinds.
const (
	StorageLocal  = "local"
	StorageMemory = "memory"
	StorageS3     = "s3"
	StorageMinIO  = "minio"
)

// Grouping holds the grouping parameters.
type Grouping struct {
	TopKNeighbors          int     `yaml:"top_k_neighbors"`
	MaxSubGroupSize        int     `yaml:"max_sub_group_size"`
	MinOrphanGroupSize     int     `yaml:"min_orphan_group_size"`
	MinHubSpokeGroupSize   int     `yaml:"min_hub_spoke_group_size"`
	LexicalBoostFactor     float64 `yaml:"lexical_boost_factor"`
	StructuralBoostFactor  float64 `yaml:"structural_boost_factor"`
	CommunityDetectionSeed int64   `yaml:"community_detection_seed"`
	Resolution             float64 `yaml:"resolution"`
}

// Input selects the candidate loader.
type Input struct {
	// Kind is "sqlite" or "jsonl".
	Kind string `yaml:"kind"`

	// Path is the SQLite database file or the JSON-lines file.
	Path string `yaml:"path"`

	// Table overrides the SQLite catalog table.
	Table string `yaml:"table"`

	// Limit caps the number of SQLite rows read. 0 reads all rows.
	Limit int `yaml:"limit"`

	// FromStorage reads the JSON-lines file from the configured storage
	// instead of the local filesystem.
	FromStorage bool `yaml:"from_storage"`
}

// Storage selects where checkpoints and outputs are written.
type Storage struct {
	// Kind is "local", "memory", "s3" or "minio".
	Kind string `yaml:"kind"`

	// Path is the root directory of the local store.
	Path string `yaml:"path"`

	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`

	// Endpoint is the MinIO host or a custom S3 endpoint.
	Endpoint string `yaml:"endpoint"`

	// AccessKey and SecretKey are MinIO credentials. When empty, the
	// MINIO_ACCESS_KEY and MINIO_SECRET_KEY environment variables are used.
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Checkpoints configures intermediate result persistence.
type Checkpoints struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"`
}

// Output configures the written files.
type Output struct {
	Codec   string `yaml:"codec"`
	Reports bool   `yaml:"reports"`
}

// Resources bounds the resource usage of a run.
type Resources struct {
	MaxWorkers         int   `yaml:"max_workers"`
	MemoryLimitBytes   int64 `yaml:"memory_limit_bytes"`
	IOLimitBytesPerSec int64 `yaml:"io_limit_bytes_per_sec"`
}

// Logging configures the pipeline logger.
type Logging struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// Config is the top-level YAML structure.
type Config struct {
	Grouping `yaml:",inline"`

	Input       Input       `yaml:"input"`
	Storage     Storage     `yaml:"storage"`
	Checkpoints Checkpoints `yaml:"checkpoints"`
	Output      Output      `yaml:"output"`
	Resources   Resources   `yaml:"resources"`
	Logging     Logging     `yaml:"logging"`
}

// Default returns the default configuration.
func Default() Config {
	p := vecgroup.DefaultParams

	return Config{
		Grouping: Grouping{
			TopKNeighbors:          p.TopKNeighbors,
			MaxSubGroupSize:        p.MaxSubGroupSize,
			MinOrphanGroupSize:     p.MinOrphanGroupSize,
			MinHubSpokeGroupSize:   p.MinHubSpokeGroupSize,
			LexicalBoostFactor:     p.LexicalBoostFactor,
			StructuralBoostFactor:  p.StructuralBoostFactor,
			CommunityDetectionSeed: p.CommunityDetectionSeed,
			Resolution:             p.Resolution,
		},
		Input:       Input{Kind: InputSQLite},
		Storage:     Storage{Kind: StorageLocal, Path: "."},
		Checkpoints: Checkpoints{Enabled: true, Compression: checkpoint.CompressionNone.String()},
		Output:      Output{Codec: codec.Default.Name(), Reports: true},
		Logging:     Logging{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	return Decode(f)
}

// Parse decodes YAML data over the defaults.
func Parse(data []byte) (Config, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a YAML document from r over the defaults and validates it.
// Unknown keys are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the enumerated settings and the grouping parameters.
func (c Config) Validate() error {
	switch c.Input.Kind {
	case InputSQLite, InputJSONL:
	default:
		return fmt.Errorf("%w: input kind %q", ErrInvalidConfig, c.Input.Kind)
	}

	switch c.Storage.Kind {
	case StorageLocal, StorageMemory:
	case StorageS3, StorageMinIO:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("%w: storage kind %q requires a bucket", ErrInvalidConfig, c.Storage.Kind)
		}

		if c.Storage.Kind == StorageMinIO && c.Storage.Endpoint == "" {
			return fmt.Errorf("%w: storage kind %q requires an endpoint", ErrInvalidConfig, c.Storage.Kind)
		}
	default:
		return fmt.Errorf("%w: storage kind %q", ErrInvalidConfig, c.Storage.Kind)
	}

	if _, err := checkpoint.ParseCompression(c.Checkpoints.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if _, ok := codec.ByName(c.Output.Codec); !ok {
		return fmt.Errorf("%w: codec %q", ErrInvalidConfig, c.Output.Codec)
	}

	if _, err := c.Logging.level(); err != nil {
		return err
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Logging.Format)
	}

	return c.Params().Validate()
}

// Params converts the grouping section to pipeline parameters.
func (c Config) Params() vecgroup.Params {
	return vecgroup.Params{
		TopKNeighbors:          c.TopKNeighbors,
		MaxSubGroupSize:        c.MaxSubGroupSize,
		MinOrphanGroupSize:     c.MinOrphanGroupSize,
		MinHubSpokeGroupSize:   c.MinHubSpokeGroupSize,
		LexicalBoostFactor:     c.LexicalBoostFactor,
		StructuralBoostFactor:  c.StructuralBoostFactor,
		CommunityDetectionSeed: c.CommunityDetectionSeed,
		Resolution:             c.Resolution,
	}
}

// Options converts the configuration to pipeline options. The logger is
// included; loader and store are built separately.
func (c Config) Options() ([]vecgroup.Option, error) {
	compression, err := checkpoint.ParseCompression(c.Checkpoints.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cd, ok := codec.ByName(c.Output.Codec)
	if !ok {
		return nil, fmt.Errorf("%w: codec %q", ErrInvalidConfig, c.Output.Codec)
	}

	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}

	opts := []vecgroup.Option{
		vecgroup.WithParams(c.Params()),
		vecgroup.WithCheckpoints(c.Checkpoints.Enabled),
		vecgroup.WithCompression(compression),
		vecgroup.WithCodec(cd),
		vecgroup.WithReports(c.Output.Reports),
		vecgroup.WithLogger(logger),
	}

	if rc := c.Resources.controller(); rc != nil {
		opts = append(opts, vecgroup.WithResources(rc))
	}

	return opts, nil
}

// Logger builds the configured logger writing to stderr.
func (c Config) Logger() (*vecgroup.Logger, error) {
	level, err := c.Logging.level()
	if err != nil {
		return nil, err
	}

	if c.Logging.Format == "json" {
		return vecgroup.NewJSONLogger(level), nil
	}

	return vecgroup.NewTextLogger(level), nil
}

func (l Logging) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, l.Level)
	}

	return level, nil
}

func (r Resources) controller() *resource.Controller {
	if r == (Resources{}) {
		return nil
	}

	return resource.NewController(resource.Config{
		MaxWorkers:         r.MaxWorkers,
		MemoryLimitBytes:   r.MemoryLimitBytes,
		IOLimitBytesPerSec: r.IOLimitBytesPerSec,
	})
}
