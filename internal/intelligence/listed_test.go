package intelligence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestList(t *testing.T, content string) (*VPNList, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vpn.txt")
	writeList(t, path, content)
	list, err := NewVPNList(path, testLogger())
	require.NoError(t, err)
	return list, path
}

func TestListedProvider(t *testing.T) {
	list, _ := newTestList(t, "203.0.113.10\n")
	ctx := context.Background()

	t.Run("marks a located result", func(t *testing.T) {
		next := &countingProvider{result: &Result{HasLocation: true, Latitude: 1, Longitude: 2, Source: "test"}}
		result, err := NewListedProvider(next, list, testLogger()).Analyze(ctx, "203.0.113.10")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.IsVPN)
		assert.True(t, result.HasLocation)
		assert.Equal(t, "test", result.Source)
	})

	t.Run("unknown to the provider", func(t *testing.T) {
		result, err := NewListedProvider(&countingProvider{}, list, testLogger()).Analyze(ctx, "203.0.113.10")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.IsVPN)
		assert.False(t, result.HasLocation)
		assert.Equal(t, SourceVPNList, result.Source)
	})

	t.Run("provider outage", func(t *testing.T) {
		next := &countingProvider{err: ErrUnavailable}
		result, err := NewListedProvider(next, list, testLogger()).Analyze(ctx, "203.0.113.10")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.IsVPN)
	})

	t.Run("unlisted address passes through", func(t *testing.T) {
		next := &countingProvider{err: ErrUnavailable}
		_, err := NewListedProvider(next, list, testLogger()).Analyze(ctx, "203.0.113.11")
		assert.True(t, errors.Is(err, ErrUnavailable))
	})

	t.Run("no intelligence provider", func(t *testing.T) {
		result, err := NewListedProvider(nil, list, testLogger()).Analyze(ctx, "203.0.113.10")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.IsVPN)
	})
}

func TestListedProvider_ReloadBypassesCache(t *testing.T) {
	list, path := newTestList(t, "203.0.113.10\n")
	next := &countingProvider{result: &Result{HasLocation: true, Latitude: 1, Longitude: 2, Source: "test"}}
	cache := NewCachedProvider(next, nil, time.Hour, 10, testLogger())
	provider := NewListedProvider(cache, list, testLogger())
	ctx := context.Background()

	result, err := provider.Analyze(ctx, "192.0.2.55")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsVPN)

	writeList(t, path, "203.0.113.10\n192.0.2.0/24\n")
	require.NoError(t, list.Reload())

	result, err = provider.Analyze(ctx, "192.0.2.55")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsVPN)
	assert.Equal(t, int32(1), next.calls.Load())
}
