package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"api-chain/internal/config"
	"api-chain/internal/logging"
)

// NewClient creates the *http.Client used for step requests.
// Handles TLS verification skipping, forcing HTTP/1.1 and the overall request timeout.
// A nil cfg or a zero timeout leaves requests without a deadline.
func NewClient(cfg *config.HTTPConfig) *http.Client {
	if cfg == nil {
		cfg = &config.HTTPConfig{}
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TlsSkipVerify,
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if cfg.ForceHTTP1 {
		logging.Logf(logging.Info, "Forcing HTTP/1.1 for step requests")
		// Disable HTTP/2 negotiation via ALPN
		transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
		transport.ForceAttemptHTTP2 = false
	}
	if cfg.TlsSkipVerify {
		logging.Logf(logging.Info, "TLS certificate verification is DISABLED for step requests")
	}

	client := &http.Client{Transport: transport}
	if cfg.TimeoutSeconds > 0 {
		client.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return client
}
