// Package config handles loading and managing tabview configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/wesm/tabview/internal/egest"
	"github.com/wesm/tabview/internal/ingest"
	"github.com/wesm/tabview/internal/source"
	"github.com/wesm/tabview/internal/view"
)

// Config represents the tabview configuration.
type Config struct {
	Ingest IngestConfig `toml:"ingest"`
	Egest  EgestConfig  `toml:"egest"`
	View   ViewConfig   `toml:"view"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// IngestConfig holds reader and memory budget settings.
type IngestConfig struct {
	MemPct        float64 `toml:"mem_pct"`        // Percent of system memory for streamed sources
	MemoryLimit   int64   `toml:"memory_limit"`   // Absolute byte budget; overrides mem_pct when > 0
	BootstrapRows int     `toml:"bootstrap_rows"` // Rows parsed synchronously for schema inference
	ChunkRows     int     `toml:"chunk_rows"`     // Rows per background chunk
	Raw           bool    `toml:"raw"`            // Disable type promotion
}

// EgestConfig holds Parquet conversion settings.
type EgestConfig struct {
	RowsPerFile int64  `toml:"rows_per_file"` // 0 writes a single file
	Compression string `toml:"compression"`
}

// ViewConfig holds interactive view settings.
type ViewConfig struct {
	RenderPad           int   `toml:"render_pad"`
	BackgroundThreshold int   `toml:"background_threshold"` // Resident rows above which profile runs in the background
	CSVResidentMaxBytes int64 `toml:"csv_resident_max_bytes"`
	FloatDecimals       int   `toml:"float_decimals"`
}

// DefaultHome returns the default tabview home directory.
// Respects TABVIEW_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("TABVIEW_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tabview"
	}
	return filepath.Join(home, ".tabview")
}

// Default returns the built-in configuration rooted at homeDir.
func Default(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Ingest: IngestConfig{
			MemPct:        10,
			BootstrapRows: ingest.DefaultBootstrapRows,
			ChunkRows:     ingest.DefaultChunkRows,
		},
		Egest: EgestConfig{
			Compression: "snappy",
		},
		View: ViewConfig{
			RenderPad:           view.DefaultPad,
			BackgroundThreshold: 10_000,
			CSVResidentMaxBytes: source.DefaultCSVResidentMaxBytes,
			FloatDecimals:       3,
		},
	}
}

// Load reads the configuration from the specified file.
// If path is empty, uses <home>/config.toml. If homeDir is empty, uses
// DefaultHome.
func Load(path, homeDir string) (*Config, error) {
	if homeDir == "" {
		homeDir = DefaultHome()
	}
	homeDir = expandPath(homeDir)
	explicit := path != ""
	if !explicit {
		path = filepath.Join(homeDir, "config.toml")
	}
	path = expandPath(path)

	cfg := Default(homeDir)

	// The default config file is optional; an explicit one is not.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Ingest.MemPct <= 0 || c.Ingest.MemPct > 100 {
		return fmt.Errorf("ingest.mem_pct must be in (0, 100], got %v", c.Ingest.MemPct)
	}
	if c.Ingest.BootstrapRows <= 0 || c.Ingest.ChunkRows <= 0 {
		return fmt.Errorf("ingest.bootstrap_rows and ingest.chunk_rows must be positive")
	}
	if c.Egest.RowsPerFile < 0 {
		return fmt.Errorf("egest.rows_per_file must not be negative")
	}
	if _, err := egest.Codec(c.Egest.Compression); err != nil {
		return err
	}
	return nil
}

// LogPath returns the file the interactive view logs to.
func (c *Config) LogPath() string {
	return filepath.Join(c.HomeDir, "tabview.log")
}

// Budget is the memory budget resolved once at session start.
type Budget struct {
	Total int64 // System memory in bytes, 0 if unknown
	Limit int64 // Soft budget for streamed sources, 0 disables the check
}

// MemoryBudget resolves the soft memory budget: memory_limit when set,
// otherwise mem_pct of total system memory.
func (c *Config) MemoryBudget() Budget {
	if c.Ingest.MemoryLimit > 0 {
		return Budget{Limit: c.Ingest.MemoryLimit}
	}
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Total == 0 {
		return Budget{}
	}
	total := int64(vm.Total)
	return Budget{Total: total, Limit: int64(float64(total) * c.Ingest.MemPct / 100)}
}

// IngestOptions returns reader options under budget b.
func (c *Config) IngestOptions(b Budget) ingest.Options {
	return ingest.Options{
		BootstrapRows: c.Ingest.BootstrapRows,
		ChunkRows:     c.Ingest.ChunkRows,
		MemLimit:      b.Limit,
		Raw:           c.Ingest.Raw,
	}
}

// OpenOptions returns source opening options under budget b.
func (c *Config) OpenOptions(b Budget) source.OpenOptions {
	return source.OpenOptions{
		Ingest:              c.IngestOptions(b),
		CSVResidentMaxBytes: c.View.CSVResidentMaxBytes,
	}
}

// EgestOptions returns conversion options.
func (c *Config) EgestOptions() egest.Options {
	return egest.Options{
		ChunkRows:   c.Ingest.ChunkRows,
		RowsPerFile: c.Egest.RowsPerFile,
		Compression: c.Egest.Compression,
		Raw:         c.Ingest.Raw,
	}
}

// expandPath expands a leading ~ or ~/ to the user's home directory.
// ~user forms are left alone.
func expandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
