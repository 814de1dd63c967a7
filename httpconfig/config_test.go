package httpconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "httpcore.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	path := writeTempConfig(t, `
upstreams:
  - name: origin
    hosts: ["example.com"]
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, defaultMaxRequests, cfg.Dispatcher.MaxRequests)
	assert.Equal(t, defaultMaxRequestsPerHost, cfg.Dispatcher.MaxRequestsPerHost)
}

func TestLoadFile_RejectsInvalidLimit(t *testing.T) {
	path := writeTempConfig(t, `
dispatcher:
  max_requests: 0
upstreams:
  - name: origin
    hosts: ["example.com"]
`)
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_RejectsDuplicateUpstream(t *testing.T) {
	path := writeTempConfig(t, `
upstreams:
  - name: origin
    hosts: ["a.example.com"]
  - name: origin
    hosts: ["b.example.com"]
`)
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_RedisModeRequiresAddresses(t *testing.T) {
	path := writeTempConfig(t, `
upstreams:
  - name: origin
    hosts: ["example.com"]
cache:
  mode: redis
`)
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestConfig_Clone(t *testing.T) {
	cfg := &Config{Upstreams: []Upstream{{Name: "a", Hosts: []string{"h"}}}}
	clone := cfg.Clone()
	clone.Upstreams[0].Name = "changed"
	assert.Equal(t, "a", cfg.Upstreams[0].Name)
}
