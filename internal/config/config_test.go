package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdnscloud/zdhcp-sub001/internal/config"
)

func writeConfig(t *testing.T, v any) string {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func validConfig() *config.Config {
	return &config.Config{
		InterfacesConfig: config.InterfacesConfig{Interfaces: []string{"*"}},
		Subnet4: []config.Subnet4{
			{ID: 1, Subnet: "192.0.2.0/24", Pools: []config.Pool{{PoolRange: "192.0.2.10-192.0.2.20"}}},
		},
		RPCServer: config.RPCServerConfig{Host: "127.0.0.1", Port: 9000, Connections: 4},
	}
}

func TestLoadValidConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, validConfig())

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Subnet4, 1)
}

func TestLoadRejectsEmptySubnets(t *testing.T) {
	t.Parallel()

	bad := validConfig()
	bad.Subnet4 = nil

	path := writeConfig(t, bad)

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingInterfaces(t *testing.T) {
	t.Parallel()

	bad := validConfig()
	bad.InterfacesConfig.Interfaces = nil

	path := writeConfig(t, bad)

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
