package httpclient

import (
	"net/http"
	"testing"
	"time"

	"api-chain/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseTransport(t *testing.T, client *http.Client) *http.Transport {
	t.Helper()
	require.NotNil(t, client)
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok, "expected *http.Transport, got %T", client.Transport)
	return transport
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name            string
		cfg             *config.HTTPConfig
		expectTimeout   time.Duration
		expectSkip      bool
		expectForceHTTP bool
	}{
		{name: "Nil Config", cfg: nil},
		{name: "Zero Timeout Means None", cfg: &config.HTTPConfig{}},
		{name: "Timeout Set", cfg: &config.HTTPConfig{TimeoutSeconds: 15}, expectTimeout: 15 * time.Second},
		{name: "TLS Skip Verify", cfg: &config.HTTPConfig{TlsSkipVerify: true}, expectSkip: true},
		{name: "Force HTTP1", cfg: &config.HTTPConfig{ForceHTTP1: true}, expectForceHTTP: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.cfg)
			assert.Equal(t, tt.expectTimeout, client.Timeout)
			assert.Nil(t, client.Jar)

			transport := baseTransport(t, client)
			require.NotNil(t, transport.TLSClientConfig)
			assert.Equal(t, tt.expectSkip, transport.TLSClientConfig.InsecureSkipVerify)
			if tt.expectForceHTTP {
				assert.False(t, transport.ForceAttemptHTTP2)
				assert.NotNil(t, transport.TLSNextProto)
				assert.Empty(t, transport.TLSNextProto)
			} else {
				assert.True(t, transport.ForceAttemptHTTP2)
				assert.Nil(t, transport.TLSNextProto)
			}
		})
	}
}
