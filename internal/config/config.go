// Package config loads a run's worker configuration and CLI-only
// options from a YAML file, for cmd/ringbench's convenience. The core
// worker never reads a config file itself; every field it needs is
// passed to it already parsed and validated.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ringbench/ringbench/internal/pattern"
)

// File is the on-disk YAML shape. Field names are lower_snake_case to
// match the source tool's config file convention.
type File struct {
	Device            string  `yaml:"device"`
	Pattern           string  `yaml:"pattern"`
	QueueDepth        int     `yaml:"queue_depth"`
	BlockSize         int     `yaml:"block_size"`
	DurationSeconds   float64 `yaml:"duration_seconds"`
	Workers           int     `yaml:"workers"`
	ReadRatio         float64 `yaml:"read_ratio"`
	Seed              int64   `yaml:"seed"`
	LatencySampleRate float64 `yaml:"latency_sample_rate"`

	Optimize bool   `yaml:"optimize"`
	Monitor  bool   `yaml:"monitor"`
	Report   string `yaml:"report"`
}

// RunConfig is the parsed, validated result of loading a File: the
// worker-facing fields already converted to the types worker.Config
// expects, plus CLI-only fields kept separate since the core never
// sees them.
type RunConfig struct {
	Device            string
	Pattern           pattern.Kind
	QueueDepth        int
	BlockSize         int
	Duration          time.Duration
	Workers           int
	ReadRatio         float64
	Seed              int64
	LatencySampleRate float64

	Optimize bool
	Monitor  bool
	Report   string
}

// Load reads and parses path. device, queue_depth and block_size are
// required; pattern, workers and duration_seconds default to the same
// values as cmd/ringbench's flags (sequential-read, one worker, 10s)
// when left zero in the file.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return f.toRunConfig()
}

func (f File) toRunConfig() (*RunConfig, error) {
	if f.Device == "" {
		return nil, fmt.Errorf("config: device is required")
	}
	if f.QueueDepth <= 0 {
		return nil, fmt.Errorf("config: queue_depth must be > 0, got %d", f.QueueDepth)
	}
	if f.BlockSize <= 0 {
		return nil, fmt.Errorf("config: block_size must be > 0, got %d", f.BlockSize)
	}

	kindName := f.Pattern
	if kindName == "" {
		kindName = "sequential-read"
	}
	kind, err := pattern.ParseKind(kindName)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	workers := f.Workers
	if workers <= 0 {
		workers = 1
	}

	durationSecs := f.DurationSeconds
	if durationSecs <= 0 {
		durationSecs = 10
	}

	return &RunConfig{
		Device:            f.Device,
		Pattern:           kind,
		QueueDepth:        f.QueueDepth,
		BlockSize:         f.BlockSize,
		Duration:          time.Duration(durationSecs * float64(time.Second)),
		Workers:           workers,
		ReadRatio:         f.ReadRatio,
		Seed:              f.Seed,
		LatencySampleRate: f.LatencySampleRate,
		Optimize:          f.Optimize,
		Monitor:           f.Monitor,
		Report:            f.Report,
	}, nil
}
