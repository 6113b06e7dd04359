package config

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockVaultClient implements VaultClient interface for testing.
type mockVaultClient struct {
	secrets   map[string]map[string]interface{}
	err       error
	lastMount string
}

func (m *mockVaultClient) GetKVSecret(_ context.Context, path, mount string) (map[string]interface{}, error) {
	m.lastMount = mount
	if m.err != nil {
		return nil, m.err
	}
	if secret, ok := m.secrets[path]; ok {
		return secret, nil
	}
	return nil, errors.New("secret not found")
}

// mockVaultClientFactory creates a factory that returns the provided mock client.
func mockVaultClientFactory(client VaultClient, err error) VaultClientFactory {
	return func(_ context.Context) (VaultClient, error) {
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// clearEnv unsets every variable Load reads so host settings cannot leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvGitBinary, EnvLogLevel, EnvLogAppName, EnvOutputFormat, EnvBlameConcurrency,
		EnvClickHouseHostname, EnvClickHouseDatabase, EnvClickHousePassword,
		"CLICKHOUSE_USERNAME", "CLICKHOUSE_PORT", "CLICKHOUSE_SKIP_VERIFY",
		EnvVaultClickHousePath, EnvVaultClickHouseMount,
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultGitBinary, cfg.GitBinary)
	assert.Equal(t, DefaultOutputFormat, cfg.OutputFormat)
	assert.Equal(t, DefaultBlameConcurrency, cfg.BlameConcurrency)
	assert.Nil(t, cfg.ClickHouse)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultLogAppName, cfg.LogAppName)
	assert.False(t, cfg.ExportEnabled())
}

func TestLoad_CustomSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvGitBinary, "/usr/local/bin/git")
	t.Setenv(EnvOutputFormat, "yaml")
	t.Setenv(EnvBlameConcurrency, "8")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogAppName, "custom-app")
	setClickHouseEnvVars(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/git", cfg.GitBinary)
	assert.Equal(t, "yaml", cfg.OutputFormat)
	assert.Equal(t, 8, cfg.BlameConcurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "custom-app", cfg.LogAppName)
	require.NotNil(t, cfg.ClickHouse)
	assert.Equal(t, "localhost", cfg.ClickHouse.ChHostname)
	assert.Equal(t, "history", cfg.ClickHouse.ChDatabase)
	assert.Equal(t, "default", cfg.ClickHouse.ChUsername)
	assert.Equal(t, "testpassword", cfg.ClickHouse.ChPassword)
	assert.Equal(t, "9440", cfg.ClickHouse.ChPort)
	assert.Equal(t, "false", cfg.ClickHouse.ChSkipVerify)
	assert.True(t, cfg.ExportEnabled())
}

func TestLoad_ClickHouseDefaultDatabase(t *testing.T) {
	clearEnv(t)
	setClickHouseEnvVars(t)
	os.Unsetenv(EnvClickHouseDatabase)

	cfg, err := Load()

	require.NoError(t, err)
	require.NotNil(t, cfg.ClickHouse)
	assert.Equal(t, DefaultDatabase, cfg.ClickHouse.ChDatabase)
	_, set := os.LookupEnv(EnvClickHouseDatabase)
	assert.False(t, set, "default database must not leak into the environment")
}

func TestLoad_ClickHouseIncomplete(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvClickHouseHostname, "localhost")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load ClickHouse config")
}

func TestLoad_InvalidOutputFormat(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvOutputFormat, "xml")

	_, err := Load()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOutputFormat)
}

func TestLoad_InvalidConcurrency(t *testing.T) {
	for _, value := range []string{"many", "0", "-2"} {
		t.Run(value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvBlameConcurrency, value)

			_, err := Load()

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConcurrency)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "valid", cfg: Config{OutputFormat: "json", BlameConcurrency: 1}},
		{name: "upper case format", cfg: Config{OutputFormat: "TEXT", BlameConcurrency: 2}},
		{name: "empty format", cfg: Config{BlameConcurrency: 1}, wantErr: ErrInvalidOutputFormat},
		{name: "zero concurrency", cfg: Config{OutputFormat: "text"}, wantErr: ErrInvalidConcurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// Vault integration tests

func TestLoadWithVaultClient_PasswordFromVault(t *testing.T) {
	clearEnv(t)
	setClickHouseEnvVars(t)
	t.Setenv(EnvVaultClickHousePath, "ci/gitparse/clickhouse")

	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/gitparse/clickhouse": {"password": "from-vault"},
		},
	}

	cfg, err := LoadWithVaultClient(context.Background(), mockVaultClientFactory(mockClient, nil))

	require.NoError(t, err)
	assert.Equal(t, "from-vault", cfg.ClickHouse.ChPassword)
	assert.Equal(t, DefaultVaultMount, mockClient.lastMount)
	assert.Equal(t, "testpassword", os.Getenv(EnvClickHousePassword), "environment is restored after loading")
}

func TestLoadWithVaultClient_CustomKeyAndMount(t *testing.T) {
	clearEnv(t)
	setClickHouseEnvVars(t)
	t.Setenv(EnvVaultClickHousePath, "ci/gitparse/clickhouse#ch_pass")
	t.Setenv(EnvVaultClickHouseMount, "custom-kv")

	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/gitparse/clickhouse": {"ch_pass": "custom"},
		},
	}

	cfg, err := LoadWithVaultClient(context.Background(), mockVaultClientFactory(mockClient, nil))

	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.ClickHouse.ChPassword)
	assert.Equal(t, "custom-kv", mockClient.lastMount)
}

func TestLoadWithVaultClient_VaultClientError(t *testing.T) {
	clearEnv(t)
	setClickHouseEnvVars(t)
	t.Setenv(EnvVaultClickHousePath, "ci/gitparse/clickhouse")

	factory := mockVaultClientFactory(nil, errors.New("vault connection failed"))

	_, err := LoadWithVaultClient(context.Background(), factory)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault connection failed")
}

func TestLoadWithVaultClient_VaultSecretNotFound(t *testing.T) {
	clearEnv(t)
	setClickHouseEnvVars(t)
	t.Setenv(EnvVaultClickHousePath, "nonexistent/path")

	mockClient := &mockVaultClient{secrets: map[string]map[string]interface{}{}}

	_, err := LoadWithVaultClient(context.Background(), mockVaultClientFactory(mockClient, nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVaultSecretNotFound)
}

func TestLoadWithVaultClient_KeyMissingOrNotString(t *testing.T) {
	tests := []struct {
		name   string
		secret map[string]interface{}
	}{
		{name: "missing key", secret: map[string]interface{}{"user": "default"}},
		{name: "non-string value", secret: map[string]interface{}{"password": 1234}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setClickHouseEnvVars(t)
			t.Setenv(EnvVaultClickHousePath, "ci/gitparse/clickhouse")
			mockClient := &mockVaultClient{
				secrets: map[string]map[string]interface{}{"ci/gitparse/clickhouse": tt.secret},
			}

			_, err := LoadWithVaultClient(context.Background(), mockVaultClientFactory(mockClient, nil))

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrVaultKeyNotFound)
		})
	}
}

func TestLoadWithVaultClient_PasswordOnlyFromVault(t *testing.T) {
	clearEnv(t)
	setClickHouseEnvVars(t)
	os.Unsetenv(EnvClickHousePassword)
	t.Setenv(EnvVaultClickHousePath, "ci/gitparse/clickhouse")

	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/gitparse/clickhouse": {"password": "from-vault"},
		},
	}

	cfg, err := LoadWithVaultClient(context.Background(), mockVaultClientFactory(mockClient, nil))

	require.NoError(t, err)
	assert.Equal(t, "from-vault", cfg.ClickHouse.ChPassword)
	_, set := os.LookupEnv(EnvClickHousePassword)
	assert.False(t, set, "vault password must not remain in the environment")
}

func TestLoadWithVaultClient_NotConsultedWithoutHostname(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvVaultClickHousePath, "ci/gitparse/clickhouse")

	factory := func(_ context.Context) (VaultClient, error) {
		t.Fatal("vault factory must not be called")
		return nil, nil
	}

	cfg, err := LoadWithVaultClient(context.Background(), factory)

	require.NoError(t, err)
	assert.False(t, cfg.ExportEnabled())
}

func TestLoadWithVaultClient_NotConsultedWithoutPath(t *testing.T) {
	clearEnv(t)
	setClickHouseEnvVars(t)

	factory := func(_ context.Context) (VaultClient, error) {
		t.Fatal("vault factory must not be called")
		return nil, nil
	}

	cfg, err := LoadWithVaultClient(context.Background(), factory)

	require.NoError(t, err)
	assert.Equal(t, "testpassword", cfg.ClickHouse.ChPassword)
}

// setClickHouseEnvVars sets the ClickHouse export environment variables for testing.
func setClickHouseEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv(EnvClickHouseHostname, "localhost")
	t.Setenv(EnvClickHouseDatabase, "history")
	t.Setenv("CLICKHOUSE_USERNAME", "default")
	t.Setenv(EnvClickHousePassword, "testpassword")
}

func TestParseVaultPath(t *testing.T) {
	tests := []struct {
		name     string
		fullPath string
		wantPath string
		wantKey  string
	}{
		{
			name:     "path without key uses default",
			fullPath: "ci/gitparse/clickhouse",
			wantPath: "ci/gitparse/clickhouse",
			wantKey:  DefaultSecretKey,
		},
		{
			name:     "path with explicit key",
			fullPath: "DevOps/gitparse/config#ch_pass",
			wantPath: "DevOps/gitparse/config",
			wantKey:  "ch_pass",
		},
		{
			name:     "path with multiple hash symbols uses last one",
			fullPath: "path/with#hash/in/name#actualkey",
			wantPath: "path/with#hash/in/name",
			wantKey:  "actualkey",
		},
		{
			name:     "path ending with hash only returns empty key",
			fullPath: "ci/gitparse/clickhouse#",
			wantPath: "ci/gitparse/clickhouse",
			wantKey:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPath, gotKey := parseVaultPath(tt.fullPath)
			assert.Equal(t, tt.wantPath, gotPath, "path mismatch")
			assert.Equal(t, tt.wantKey, gotKey, "key mismatch")
		})
	}
}
