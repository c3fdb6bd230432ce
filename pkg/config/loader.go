package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, LLMROUTER_CONFIG env, ./config.yaml, /etc/llmrouter/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. LLMROUTER_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/llmrouter/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("LLMROUTER_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/llmrouter/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	if cfg.Hosts == nil {
		cfg.Hosts = map[string]HostConfig{}
	}
	return nil
}

// HostKeyEnv returns the environment variable holding the API key of host,
// e.g. OPENROUTER_API_KEY.
func HostKeyEnv(host string) string {
	name := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(host))
	return name + "_API_KEY"
}

// applyEnvOverrides maps environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLMROUTER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LLMROUTER_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}

	// LLMROUTER_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("LLMROUTER_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	// <HOST>_API_KEY for every known host and every host named in the file.
	for _, host := range hostNames(cfg) {
		if v := os.Getenv(HostKeyEnv(host)); v != "" {
			h := cfg.Hosts[host]
			h.APIKey = v
			cfg.Hosts[host] = h
		}
	}
}

// hostNames returns the known hosts plus any configured extra hosts, sorted.
func hostNames(cfg *Config) []string {
	seen := make(map[string]bool, len(KnownHosts)+len(cfg.Hosts))
	var names []string
	for _, h := range KnownHosts {
		seen[h] = true
		names = append(names, h)
	}
	for h := range cfg.Hosts {
		if !seen[h] {
			names = append(names, h)
		}
	}
	sort.Strings(names)
	return names
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// hosts.<name>.api_key_file -> hosts.<name>.api_key
	for _, name := range hostNames(cfg) {
		h, ok := cfg.Hosts[name]
		if !ok || h.APIKeyFile == "" || h.APIKey != "" {
			continue
		}
		val, err := readSecretFile(h.APIKeyFile)
		if err != nil {
			return fmt.Errorf("hosts.%s.api_key_file: %w", name, err)
		}
		h.APIKey = val
		cfg.Hosts[name] = h
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	// auth.jwt.secret_file -> auth.jwt.secret
	if cfg.Auth.JWT.SecretFile != "" && cfg.Auth.JWT.Secret == "" {
		val, err := readSecretFile(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		cfg.Auth.JWT.Secret = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
