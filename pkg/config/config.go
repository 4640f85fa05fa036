// Package config loads the TOML configuration file for the wireframe
// binaries (cmd/wireframe). Values come from the file, then environment
// overrides; a commented default file is written on first run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// TOMLConfig is the on-disk shape of the config file.
type TOMLConfig struct {
	Envelope    EnvelopeSection    `toml:"envelope"`
	Compression CompressionSection `toml:"compression"`
	Gateway     GatewaySection     `toml:"gateway"`
	Archive     ArchiveSection     `toml:"archive"`
}

// EnvelopeSection controls pkg/envelope.Config's dispatch behavior.
type EnvelopeSection struct {
	Serializers        []string `toml:"serializers"`
	AllowedSerializers []string `toml:"allowed_serializers"`
	OnError            string   `toml:"on_error"`
	SplitThresholdMB   int      `toml:"split_threshold_mb"`
}

// CompressionSection controls pkg/compression.Policy.
type CompressionSection struct {
	MinCompressSizeKB int     `toml:"min_compress_size_kb"`
	RatioThreshold    float64 `toml:"ratio_threshold"`
	DefaultCodec      string  `toml:"default_codec"`
}

// GatewaySection controls pkg/gateway's listener.
type GatewaySection struct {
	ListenAddr string `toml:"listen_addr"`
	HTTPPort   int    `toml:"http_port"`
}

// ArchiveSection controls pkg/archive's SQLite-backed recorder.
type ArchiveSection struct {
	DatabasePath string `toml:"database_path"`
}

// Default returns the built-in defaults.
func Default() TOMLConfig {
	return TOMLConfig{
		Envelope: EnvelopeSection{
			Serializers:      []string{"raw", "gob"},
			OnError:          "raise",
			SplitThresholdMB: 64,
		},
		Compression: CompressionSection{
			MinCompressSizeKB: 10,
			RatioThreshold:    0.10,
			DefaultCodec:      "zstd",
		},
		Gateway: GatewaySection{
			ListenAddr: ":7475",
			HTTPPort:   7476,
		},
		Archive: ArchiveSection{
			DatabasePath: "~/.distcore/archive.db",
		},
	}
}

// Load reads path, writing a commented default file first if it doesn't
// exist, then applies DISTCORE_* environment overrides.
func Load(path string) (TOMLConfig, error) {
	path = expandHome(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if werr := writeDefault(path); werr != nil {
			return applyEnvOverrides(cfg), nil
		}
		return applyEnvOverrides(cfg), nil
	}

	var cfg TOMLConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return TOMLConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return applyEnvOverrides(cfg), nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// applyEnvOverrides applies DISTCORE_SECTION_KEY environment overrides for
// envelope on_error and split_threshold_mb, compression default_codec and
// min_compress_size_kb, gateway listen_addr and archive database_path. The
// other settings have no environment override.
func applyEnvOverrides(cfg TOMLConfig) TOMLConfig {
	if v := os.Getenv("DISTCORE_ENVELOPE_ON_ERROR"); v != "" {
		cfg.Envelope.OnError = v
	}
	if v := os.Getenv("DISTCORE_ENVELOPE_SPLIT_THRESHOLD_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Envelope.SplitThresholdMB = n
		}
	}
	if v := os.Getenv("DISTCORE_COMPRESSION_DEFAULT_CODEC"); v != "" {
		cfg.Compression.DefaultCodec = v
	}
	if v := os.Getenv("DISTCORE_COMPRESSION_MIN_COMPRESS_SIZE_KB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Compression.MinCompressSizeKB = n
		}
	}
	if v := os.Getenv("DISTCORE_GATEWAY_LISTEN_ADDR"); v != "" {
		cfg.Gateway.ListenAddr = v
	}
	if v := os.Getenv("DISTCORE_ARCHIVE_DATABASE_PATH"); v != "" {
		cfg.Archive.DatabasePath = v
	}
	return cfg
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()

	const content = `# distcore configuration
# Auto-generated with default values. Restart after editing.
# Environment variables can override some of these settings:
# DISTCORE_SECTION_KEY (e.g. DISTCORE_GATEWAY_LISTEN_ADDR=:7475)

[envelope]
serializers = ["raw", "gob"]
# allowed_serializers restricts which families loads() will materialize;
# leave empty to accept whatever the sender named.
# allowed_serializers = ["raw", "gob"]
on_error = "raise"
split_threshold_mb = 64

[compression]
min_compress_size_kb = 10
ratio_threshold = 0.10
default_codec = "zstd"

[gateway]
listen_addr = ":7475"
http_port = 7476

[archive]
database_path = "~/.distcore/archive.db"
`
	_, err = f.WriteString(content)
	return err
}

// SplitThresholdBytes converts the configured MB value to bytes.
func (c EnvelopeSection) SplitThresholdBytes() int {
	if c.SplitThresholdMB <= 0 {
		return 0
	}
	return c.SplitThresholdMB * 1024 * 1024
}

// MinCompressSizeBytes converts the configured KB value to bytes.
func (c CompressionSection) MinCompressSizeBytes() int {
	if c.MinCompressSizeKB <= 0 {
		return 0
	}
	return c.MinCompressSizeKB * 1024
}

// DatabasePathExpanded returns the archive database path with ~ expanded.
func (c ArchiveSection) DatabasePathExpanded() string {
	return expandHome(c.DatabasePath)
}
