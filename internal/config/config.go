package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvMappingsDir overrides MappingsDir when set.
const EnvMappingsDir = "KNIT_MAPPINGS_DIR"

// Config holds application configuration.
type Config struct {
	// MappingsDir is the directory holding the .mapping files.
	// Relative paths resolve against the repo root (the directory holding
	// .knit) for the repo config, and against the base dir otherwise.
	// Empty means mappings are disabled.
	MappingsDir string `json:"mappings_dir,omitempty"`

	// ClassPrefixes, MethodPrefixes and FieldPrefixes mark names that still
	// look obfuscated. They only affect display.
	// Unlike the other lists these are not merged: a non-empty overlay replaces the base.
	ClassPrefixes  []string `json:"class_prefixes,omitempty"`
	MethodPrefixes []string `json:"method_prefixes,omitempty"`
	FieldPrefixes  []string `json:"field_prefixes,omitempty"`

	// HistoryLimit is the default page size for rename history.
	HistoryLimit int `json:"history_limit"`

	// AllowedPaths is an allowlist of directories for export.
	// Paths outside ~/.knit/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export.
	// When true, any directory is allowed (symlink and traversal checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open journal connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle journal connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ClassPrefixes:  []string{"class"},
		MethodPrefixes: []string{"method", "func"},
		FieldPrefixes:  []string{"field"},
		HistoryLimit:   20,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.knit.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.knit) and repo (.knit) directories.
// Repo config is found by walking upward from startDir to find the nearest .knit/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing. KNIT_MAPPINGS_DIR wins over both.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}
	global.MappingsDir = resolveDir(globalDir, global.MappingsDir)

	// Walk upward from startDir to find repo config
	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}
	if repoConfigPath != "" {
		// .knit/config.json -> repo root
		repo.MappingsDir = resolveDir(filepath.Dir(filepath.Dir(repoConfigPath)), repo.MappingsDir)
	}

	// Apply defaults, then global, then repo
	cfg := Merge(Merge(DefaultConfig(), global), repo)
	if dir := os.Getenv(EnvMappingsDir); dir != "" {
		cfg.MappingsDir = resolveDir(startDir, dir)
	}
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .knit/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".knit", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
}

func resolveDir(base, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist, return zero config
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	cfg.MappingsDir = resolveDir(filepath.Dir(configPath), cfg.MappingsDir)
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.MappingsDir = overlay.MappingsDir
	if result.MappingsDir == "" {
		result.MappingsDir = base.MappingsDir
	}

	result.HistoryLimit = overlay.HistoryLimit
	if result.HistoryLimit == 0 {
		result.HistoryLimit = base.HistoryLimit
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Prefix lists: overlay replaces base
	result.ClassPrefixes = replaceStringSlice(base.ClassPrefixes, overlay.ClassPrefixes)
	result.MethodPrefixes = replaceStringSlice(base.MethodPrefixes, overlay.MethodPrefixes)
	result.FieldPrefixes = replaceStringSlice(base.FieldPrefixes, overlay.FieldPrefixes)

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func replaceStringSlice(base, overlay []string) []string {
	if s := mergeStringSlice(nil, overlay); s != nil {
		return s
	}
	return mergeStringSlice(nil, base)
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
