package intelligence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuarded_OpensAfterConsecutiveFailures(t *testing.T) {
	failing := &countingProvider{err: errors.New("connection refused")}
	guarded := NewGuarded("test-open", failing, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Hour}, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := guarded.Analyze(ctx, "203.0.113.1")
		assert.True(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, "open", guarded.State())

	_, err := guarded.Analyze(ctx, "203.0.113.1")
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, int32(2), failing.calls.Load())
}

func TestGuarded_RecoversAfterTimeout(t *testing.T) {
	provider := &countingProvider{err: ErrUnavailable}
	guarded := NewGuarded("test-recover", provider, BreakerSettings{MaxFailures: 1, OpenTimeout: 50 * time.Millisecond}, testLogger())
	ctx := context.Background()

	_, err := guarded.Analyze(ctx, "203.0.113.1")
	require.Error(t, err)
	require.Equal(t, "open", guarded.State())

	provider.err = nil
	provider.result = &Result{HasLocation: true, Latitude: 10, Longitude: 20}

	assert.Eventually(t, func() bool {
		result, err := guarded.Analyze(ctx, "203.0.113.1")
		return err == nil && result != nil
	}, time.Second, 20*time.Millisecond)
}

func TestGuarded_UnknownIsNotAFailure(t *testing.T) {
	unknown := &countingProvider{}
	guarded := NewGuarded("test-unknown", unknown, BreakerSettings{MaxFailures: 1}, testLogger())

	for i := 0; i < 3; i++ {
		result, err := guarded.Analyze(context.Background(), "203.0.113.1")
		require.NoError(t, err)
		assert.Nil(t, result)
	}
	assert.Equal(t, "closed", guarded.State())
}

func TestGuarded_CallerCancellationIsNotAFailure(t *testing.T) {
	canceled := &countingProvider{err: fmt.Errorf("%w: %w", ErrUnavailable, context.Canceled)}
	guarded := NewGuarded("test-canceled", canceled, BreakerSettings{MaxFailures: 1}, testLogger())

	for i := 0; i < 3; i++ {
		_, err := guarded.Analyze(context.Background(), "203.0.113.1")
		assert.True(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, "closed", guarded.State())
	assert.Equal(t, int32(3), canceled.calls.Load())
}

func TestGuarded_RateLimitedBurstKeepsCircuitClosed(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{"status":"success","lat":51.5,"lon":-0.12}`))
	}))
	defer server.Close()

	// One request per minute: everything after the first waits far past the deadline
	provider := NewIPAPIProvider(server.URL, 1, time.Second, testLogger())
	guarded := NewGuarded("test-rate-limited", provider, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Hour}, testLogger())

	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		result, err := guarded.Analyze(ctx, "203.0.113.9")
		cancel()

		if i == 0 {
			require.NoError(t, err)
			require.NotNil(t, result)
			continue
		}
		assert.True(t, errors.Is(err, ErrUnavailable))
		assert.True(t, errors.Is(err, errRateLimited))
	}

	assert.Equal(t, "closed", guarded.State())
	assert.Equal(t, int32(1), requests.Load())
}

func TestGuarded_CacheAnswersWhileCircuitOpen(t *testing.T) {
	var down atomic.Bool
	upstream := ProviderFunc(func(_ context.Context, ip string) (*Result, error) {
		if down.Load() {
			return nil, errors.New("connection refused")
		}
		return &Result{HasLocation: true, Latitude: 52.37, Longitude: 4.9, IsVPN: true, Source: "test"}, nil
	})

	guarded := NewGuarded("test-cache-first", upstream, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Hour}, testLogger())
	cache := NewCachedProvider(guarded, nil, time.Hour, 10, testLogger())
	ctx := context.Background()

	_, err := cache.Analyze(ctx, "203.0.113.50")
	require.NoError(t, err)

	down.Store(true)
	for i := 0; i < 2; i++ {
		_, err := cache.Analyze(ctx, "203.0.113.60")
		assert.True(t, errors.Is(err, ErrUnavailable))
	}
	require.Equal(t, "open", guarded.State())

	result, err := cache.Analyze(ctx, "203.0.113.50")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsVPN)
}
