package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file. An empty configPath
// triggers discovery; if nothing is discovered, built-in defaults apply.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		discovered, err := DiscoverConfigPath()
		if err != nil {
			// No config anywhere is fine for a task runner: defaults apply.
			return Defaults(), nil
		}
		configPath = discovered
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "verigate.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but verigate.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Apply environment variable interpolation before parsing
	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.SourcePath = absPath

	applyDefaults(&cfg)

	// Verify the config file against .checksums when a manifest is present
	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Resolve finalizes the effective configuration for a dispatch: a
// caller-supplied BASE_URL environment variable wins over the configured
// value, which wins over the built-in default.
func (c *Config) Resolve() {
	if env := os.Getenv("BASE_URL"); env != "" {
		c.BaseURL = env
	}
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $VERIGATE_CONFIG, ./verigate.yaml, ~/.config/verigate/verigate.yaml
func DiscoverConfigPath() (string, error) {
	if path := os.Getenv("VERIGATE_CONFIG"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	localPath := "./verigate.yaml"
	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".config", "verigate", "verigate.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath, nil
		}
	}

	return "", fmt.Errorf("no config found (checked: $VERIGATE_CONFIG, ./verigate.yaml, ~/.config/verigate/verigate.yaml)")
}

// applyDefaults merges default values into config where not explicitly set.
func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = defaults.ScriptsDir
	}
	if cfg.Interpreter == "" {
		cfg.Interpreter = defaults.Interpreter
	}
}

// verifyConfigHash checks the config file against a .checksums manifest in
// the same directory. A missing manifest skips verification.
func verifyConfigHash(path string) error {
	dir := filepath.Dir(path)
	checksums, err := LoadChecksums(dir)
	if err != nil {
		return nil
	}

	basename := filepath.Base(path)
	expectedHash, ok := checksums.Hashes[basename]
	if !ok {
		return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
			"Run: verigate config lock", basename, dir)
	}

	if err := VerifyFileHash(path, expectedHash); err != nil {
		return fmt.Errorf("config verification failed for %s: %w\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: verigate config lock", path, err)
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if cfg.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if cfg.ScriptsDir == "" {
		return fmt.Errorf("scripts_dir is required")
	}
	if cfg.Interpreter == "" {
		return fmt.Errorf("interpreter is required")
	}

	// Unresolved ${VAR} placeholders mean a required secret was not exported
	if envVarPattern.MatchString(cfg.IDToken) {
		matches := envVarPattern.FindStringSubmatch(cfg.IDToken)
		if len(matches) > 1 {
			return fmt.Errorf("id_token: environment variable ${%s} is not set", matches[1])
		}
		return fmt.Errorf("id_token: unresolved environment variable")
	}
	if envVarPattern.MatchString(cfg.BaseURL) {
		matches := envVarPattern.FindStringSubmatch(cfg.BaseURL)
		if len(matches) > 1 {
			return fmt.Errorf("base_url: environment variable ${%s} is not set", matches[1])
		}
		return fmt.Errorf("base_url: unresolved environment variable")
	}

	return nil
}
