package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const programId = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"nodes": [
			{"rpc": "http://a", "ws": "ws://a", "usable": false},
			{"rpc": "http://b", "ws": "ws://b", "usable": true}
		],
		"program_id": "`+programId+`",
		"send_retries": 5,
		"ding-url": "http://ding"
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	nodes := cfg.UsableNodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "http://b", nodes[0].Rpc)
	assert.Equal(t, 5, cfg.SendRetries)
	assert.Equal(t, "http://ding", cfg.DingUrl)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, rpc.CommitmentFinalized, cfg.CommitmentType())
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
nodes:
  - rpc: http://a
    ws: ws://a
    usable: true
program_id: `+programId+`
commitment: confirmed
log_path: /var/log/swap
balance_accounts:
  - `+programId+`
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, rpc.CommitmentConfirmed, cfg.CommitmentType())
	assert.Equal(t, "/var/log/swap/", cfg.LogPath)
	keys, err := cfg.BalanceKeys()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, programId, keys[0].String())
}

func TestLoad_Invalid(t *testing.T) {
	noNodes := writeConfig(t, "a.json", `{"program_id": "`+programId+`"}`)
	_, err := Load(noNodes)
	assert.Error(t, err)

	noProgram := writeConfig(t, "b.json", `{"nodes": [{"rpc": "http://a", "usable": true}]}`)
	_, err = Load(noProgram)
	assert.ErrorContains(t, err, "program_id")

	badAccount := writeConfig(t, "c.json", `{"nodes": [{"rpc": "http://a", "usable": true}],
		"program_id": "`+programId+`", "balance_accounts": ["nope"]}`)
	_, err = Load(badAccount)
	assert.ErrorContains(t, err, "balance account")

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
