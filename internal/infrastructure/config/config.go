// Package config provides configuration loading for the gitparse application.
// It handles git invocation settings, output and logging preferences, and the
// optional ClickHouse export target, from environment variables and HashiCorp Vault.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	ch "github.com/MyCarrier-DevOps/goLibMyCarrier/clickhouse"
	"github.com/MyCarrier-DevOps/goLibMyCarrier/vault"
)

// Environment variable names.
const (
	// EnvGitBinary is the git executable to run.
	EnvGitBinary = "GIT_BINARY"

	// EnvLogLevel is the log level (debug, info, error).
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogAppName is the application name for log context.
	EnvLogAppName = "LOG_APP_NAME"

	// EnvOutputFormat selects json, yaml or text rendering.
	EnvOutputFormat = "GITPARSE_OUTPUT"

	// EnvBlameConcurrency bounds parallel commit-body fetches during blame.
	EnvBlameConcurrency = "GITPARSE_BLAME_CONCURRENCY"

	// EnvClickHouseHostname enables export when set. The remaining CLICKHOUSE_*
	// variables (USERNAME, PASSWORD, DATABASE, PORT, SKIP_VERIFY) are read by
	// goLibMyCarrier/clickhouse.
	EnvClickHouseHostname = "CLICKHOUSE_HOSTNAME"

	// EnvClickHouseDatabase is the database holding the exported tables.
	EnvClickHouseDatabase = "CLICKHOUSE_DATABASE"

	// EnvClickHousePassword is overridden from Vault when VAULT_CLICKHOUSE_PATH is set.
	EnvClickHousePassword = "CLICKHOUSE_PASSWORD"

	// EnvVaultClickHousePath is the Vault KV path of the ClickHouse password,
	// optionally suffixed with #key.
	EnvVaultClickHousePath = "VAULT_CLICKHOUSE_PATH"

	// EnvVaultClickHouseMount is the Vault KV mount point (defaults to "secret").
	EnvVaultClickHouseMount = "VAULT_CLICKHOUSE_MOUNT"
)

// Default values.
const (
	DefaultGitBinary        = "git"
	DefaultLogLevel         = "info"
	DefaultLogAppName       = "gitparse"
	DefaultOutputFormat     = "text"
	DefaultBlameConcurrency = 1
	DefaultDatabase         = "git"
	DefaultVaultMount       = "secret"
	DefaultSecretKey        = "password"
)

// Configuration errors.
var (
	// ErrInvalidOutputFormat indicates GITPARSE_OUTPUT is not json, yaml or text.
	ErrInvalidOutputFormat = errors.New("invalid output format: expected json, yaml or text")

	// ErrInvalidConcurrency indicates GITPARSE_BLAME_CONCURRENCY is not a positive integer.
	ErrInvalidConcurrency = errors.New("blame concurrency must be a positive integer")

	// ErrVaultClientFailed indicates failure to create or authenticate with Vault.
	ErrVaultClientFailed = errors.New("failed to create Vault client")

	// ErrVaultSecretNotFound indicates the secret was not found in Vault.
	ErrVaultSecretNotFound = errors.New("clickhouse credentials not found in Vault")

	// ErrVaultKeyNotFound indicates the secret exists but lacks the requested key.
	ErrVaultKeyNotFound = errors.New("clickhouse password key not found in Vault secret")
)

var outputFormats = map[string]bool{"json": true, "yaml": true, "text": true}

// VaultClient defines the interface for Vault operations.
// This interface allows for dependency injection and testing.
type VaultClient interface {
	// GetKVSecret retrieves a secret from Vault's KV v2 secrets engine.
	GetKVSecret(ctx context.Context, path, mount string) (map[string]interface{}, error)
}

// VaultClientFactory creates a VaultClient using AppRole authentication.
// This is the default factory used in production.
type VaultClientFactory func(ctx context.Context) (VaultClient, error)

// DefaultVaultClientFactory creates a VaultClient using goLibMyCarrier/vault with AppRole auth.
func DefaultVaultClientFactory(ctx context.Context) (VaultClient, error) {
	// Uses: VAULT_ADDRESS, VAULT_ROLE_ID, VAULT_SECRET_ID
	vaultConfig, err := vault.VaultLoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	client, err := vault.CreateVaultClient(ctx, vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	return client, nil
}

// Config holds all application configuration.
type Config struct {
	// GitBinary is the git executable name or path.
	GitBinary string

	// OutputFormat is json, yaml or text.
	OutputFormat string

	// BlameConcurrency bounds parallel commit-body fetches; 1 fetches sequentially.
	BlameConcurrency int

	// ClickHouse is the export target; nil when CLICKHOUSE_HOSTNAME is unset.
	ClickHouse *ch.ClickhouseConfig

	// LogLevel is the logging level (debug, info, error).
	LogLevel string

	// LogAppName is the application name for log context.
	LogAppName string
}

// ExportEnabled reports whether a ClickHouse export target is configured.
func (c *Config) ExportEnabled() bool {
	return c.ClickHouse != nil
}

// Validate checks values that Load reads verbatim.
func (c *Config) Validate() error {
	if !outputFormats[strings.ToLower(c.OutputFormat)] {
		return fmt.Errorf("%w: %q", ErrInvalidOutputFormat, c.OutputFormat)
	}
	if c.BlameConcurrency < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, c.BlameConcurrency)
	}
	return nil
}

// Load loads the application configuration from environment variables.
// The ClickHouse password is read from Vault when VAULT_CLICKHOUSE_PATH is set,
// which additionally requires VAULT_ADDRESS, VAULT_ROLE_ID and VAULT_SECRET_ID.
func Load() (*Config, error) {
	return LoadWithVaultClient(context.Background(), nil)
}

// LoadWithVaultClient loads configuration using the provided VaultClient factory.
// If vaultClientFactory is nil, DefaultVaultClientFactory is used.
// This function enables dependency injection for testing.
func LoadWithVaultClient(ctx context.Context, vaultClientFactory VaultClientFactory) (*Config, error) {
	concurrency := DefaultBlameConcurrency
	if raw := os.Getenv(EnvBlameConcurrency); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidConcurrency, raw)
		}
		concurrency = n
	}

	cfg := &Config{
		GitBinary:        getEnv(EnvGitBinary, DefaultGitBinary),
		OutputFormat:     getEnv(EnvOutputFormat, DefaultOutputFormat),
		BlameConcurrency: concurrency,
		LogLevel:         getEnv(EnvLogLevel, DefaultLogLevel),
		LogAppName:       getEnv(EnvLogAppName, DefaultLogAppName),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if os.Getenv(EnvClickHouseHostname) != "" {
		chConfig, err := loadClickHouseConfig(ctx, vaultClientFactory)
		if err != nil {
			return nil, err
		}
		cfg.ClickHouse = chConfig
	}
	return cfg, nil
}

// loadClickHouseConfig loads the export target with ch.ClickhouseLoadConfig.
// The database defaults to DefaultDatabase and the password comes from Vault
// when VAULT_CLICKHOUSE_PATH is set; both are applied as environment overrides
// for the duration of the load only.
func loadClickHouseConfig(ctx context.Context, vaultClientFactory VaultClientFactory) (*ch.ClickhouseConfig, error) {
	overrides := map[string]string{}
	if os.Getenv(EnvClickHouseDatabase) == "" {
		overrides[EnvClickHouseDatabase] = DefaultDatabase
	}
	if vaultPath := os.Getenv(EnvVaultClickHousePath); vaultPath != "" {
		password, err := loadPasswordFromVault(ctx, vaultClientFactory, vaultPath)
		if err != nil {
			return nil, err
		}
		overrides[EnvClickHousePassword] = password
	}

	var chConfig *ch.ClickhouseConfig
	err := withEnv(overrides, func() error {
		var loadErr error
		chConfig, loadErr = ch.ClickhouseLoadConfig()
		return loadErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ClickHouse config: %w", err)
	}
	return chConfig, nil
}

// withEnv sets overrides while fn runs and restores the previous values afterwards.
func withEnv(overrides map[string]string, fn func() error) error {
	restore := make(map[string]*string, len(overrides))
	for name, value := range overrides {
		if prev, ok := os.LookupEnv(name); ok {
			restore[name] = &prev
		} else {
			restore[name] = nil
		}
		if err := os.Setenv(name, value); err != nil {
			return err
		}
	}
	defer func() {
		for name, prev := range restore {
			if prev == nil {
				_ = os.Unsetenv(name)
				continue
			}
			_ = os.Setenv(name, *prev)
		}
	}()
	return fn()
}

// loadPasswordFromVault reads the ClickHouse password from Vault KV v2.
func loadPasswordFromVault(
	ctx context.Context,
	vaultClientFactory VaultClientFactory,
	fullPath string,
) (string, error) {
	if vaultClientFactory == nil {
		vaultClientFactory = DefaultVaultClientFactory
	}

	client, err := vaultClientFactory(ctx)
	if err != nil {
		return "", err
	}

	path, key := parseVaultPath(fullPath)
	mount := getEnv(EnvVaultClickHouseMount, DefaultVaultMount)

	secretData, err := client.GetKVSecret(ctx, path, mount)
	if err != nil {
		return "", fmt.Errorf("%w at path %s: %w", ErrVaultSecretNotFound, path, err)
	}

	password, ok := secretData[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s#%s", ErrVaultKeyNotFound, path, key)
	}
	return password, nil
}

// parseVaultPath splits "path#key" on the last '#'. A path without '#'
// uses DefaultSecretKey.
func parseVaultPath(fullPath string) (path, key string) {
	idx := strings.LastIndex(fullPath, "#")
	if idx < 0 {
		return fullPath, DefaultSecretKey
	}
	return fullPath[:idx], fullPath[idx+1:]
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
