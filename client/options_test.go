package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsRejectInvalidValues(t *testing.T) {
	cases := map[string]Option{
		"timeout":        WithHTTPTimeout(0),
		"http client":    WithHTTPClient(nil),
		"store":          WithStore(nil),
		"store path":     WithStorePath(""),
		"store capacity": WithStoreCapacity(0),
		"page size":      WithPageSize(101),
		"cache ttl":      WithCacheTTL(-time.Second),
		"cache item":     WithCacheMaxItemBytes(0),
		"interval":       WithSnapshotInterval(0),
		"max age":        WithSnapshotMaxAge(0),
		"generator":      WithGenerator(nil),
		"attempts":       WithBackgroundAttempts(0),
	}
	for name, opt := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New("http://localhost:3000/api", opt)
			require.Error(t, err)
		})
	}
}

func TestWithHTTPTimeout(t *testing.T) {
	c, err := New("http://localhost:3000/api", WithHTTPTimeout(3*time.Second), WithSnapshotInterval(time.Hour))
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, 3*time.Second, c.http.Timeout)
}

func TestWithHTTPClientKeepsJarAndWrapsTransport(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	c, err := New("http://localhost:3000/api", WithHTTPClient(hc), WithSnapshotInterval(time.Hour))
	require.NoError(t, err)
	defer c.Close()

	assert.Same(t, hc, c.http)
	assert.NotNil(t, hc.Jar)
	_, ok := hc.Transport.(*tokenTransport)
	assert.True(t, ok)
}

func TestDebugLoggingInstallsTransport(t *testing.T) {
	c, err := New("http://localhost:3000/api", WithDebugLogging(true), WithSnapshotInterval(time.Hour))
	require.NoError(t, err)
	defer c.Close()

	tt, ok := c.http.Transport.(*tokenTransport)
	require.True(t, ok)
	_, ok = tt.base.(*debugTransport)
	assert.True(t, ok)
}

func TestDebugLoggingRequested(t *testing.T) {
	t.Setenv("IMAGESYNC_DEBUG", "")
	t.Setenv("DEBUG", "")
	assert.False(t, debugLoggingRequested())

	t.Setenv("IMAGESYNC_DEBUG", "true")
	assert.True(t, debugLoggingRequested())

	t.Setenv("IMAGESYNC_DEBUG", "")
	t.Setenv("DEBUG", "true")
	assert.True(t, debugLoggingRequested())
}
