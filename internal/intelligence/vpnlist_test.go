package intelligence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(pterm.LogLevelError)
}

func writeList(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestVPNList_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpn.txt")
	writeList(t, path, `
# commercial exits
203.0.113.10
198.51.100.0/24   # whole block
2001:db8::/32
not an address
`)

	list, err := NewVPNList(path, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 3, list.Len())
	assert.True(t, list.Contains("203.0.113.10"))
	assert.True(t, list.Contains("198.51.100.77"))
	assert.True(t, list.Contains("2001:db8::1"))
	assert.True(t, list.Contains("::ffff:203.0.113.10"))
	assert.False(t, list.Contains("203.0.113.11"))
	assert.False(t, list.Contains("garbage"))
}

func TestVPNList_NilIsEmpty(t *testing.T) {
	var list *VPNList
	assert.False(t, list.Contains("203.0.113.10"))
}

func TestVPNList_MissingFile(t *testing.T) {
	_, err := NewVPNList(filepath.Join(t.TempDir(), "missing.txt"), testLogger())
	assert.Error(t, err)
}

func TestVPNList_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpn.txt")
	writeList(t, path, "203.0.113.10\n")

	list, err := NewVPNList(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, list.Watch())
	defer list.Close()

	assert.False(t, list.Contains("192.0.2.55"))
	writeList(t, path, "203.0.113.10\n192.0.2.0/24\n")

	assert.Eventually(t, func() bool {
		return list.Contains("192.0.2.55")
	}, 5*time.Second, 20*time.Millisecond)
}
