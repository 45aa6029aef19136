package intelligence

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPAPIProvider_Analyze(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch {
		case strings.HasSuffix(r.URL.Path, "/203.0.113.9"):
			w.Write([]byte(`{"status":"success","country":"United States","city":"Ashburn","lat":39.03,"lon":-77.5,"as":"AS16509 Amazon.com, Inc.","proxy":false,"hosting":true}`))
		case strings.HasSuffix(r.URL.Path, "/198.51.100.3"):
			w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
		case strings.HasSuffix(r.URL.Path, "/198.51.100.4"):
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Write([]byte(`{"status":"success","lat":51.5,"lon":-0.12,"proxy":true,"hosting":false}`))
		}
		assert.Equal(t, ipAPIFields, r.URL.Query().Get("fields"))
	}))
	defer server.Close()

	provider := NewIPAPIProvider(server.URL, 6000, time.Second, testLogger())
	ctx := context.Background()

	t.Run("hosting network", func(t *testing.T) {
		result, err := provider.Analyze(ctx, "203.0.113.9")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.HasLocation)
		assert.InDelta(t, 39.03, result.Latitude, 1e-9)
		assert.True(t, result.IsDataCenter)
		assert.False(t, result.IsVPN)
		assert.Equal(t, uint(16509), result.ASN)
		assert.Equal(t, SourceIPAPI, result.Source)
	})

	t.Run("proxy flag", func(t *testing.T) {
		result, err := provider.Analyze(ctx, "192.0.2.200")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.IsVPN)
	})

	t.Run("service has no answer", func(t *testing.T) {
		result, err := provider.Analyze(ctx, "198.51.100.3")
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("http error is unavailable", func(t *testing.T) {
		_, err := provider.Analyze(ctx, "198.51.100.4")
		assert.True(t, errors.Is(err, ErrUnavailable))
	})

	t.Run("private address skips the network", func(t *testing.T) {
		before := requests.Load()
		result, err := provider.Analyze(ctx, "10.0.0.8")
		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, before, requests.Load())
	})
}

func TestIPAPIProvider_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	provider := NewIPAPIProvider(server.URL, 6000, 50*time.Millisecond, testLogger())
	start := time.Now()
	_, err := provider.Analyze(context.Background(), "203.0.113.9")

	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Less(t, time.Since(start), time.Second)
}
