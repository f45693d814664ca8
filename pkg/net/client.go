package net

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	maxIdleConns     = 10
	timeoutInSeconds = 60
	bearerTokenType  = "Bearer"
)

// ClientAgent is sent as User-Agent on every request.
var ClientAgent = "benchbase/v0.0.1"

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          maxIdleConns,
		IdleConnTimeout:       timeoutInSeconds * time.Second,
		DisableKeepAlives:     false,
		ResponseHeaderTimeout: time.Duration(timeoutInSeconds) * time.Second,
	}
}

type agentTransport struct {
	base http.RoundTripper
}

func (t *agentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", ClientAgent)
	return t.base.RoundTrip(r)
}

// GetOAuthClient returns an HTTP client that sends token as a bearer
// credential. A zero timeout uses the package default.
func GetOAuthClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = timeoutInSeconds * time.Second
	}

	base := &http.Client{
		Timeout:   timeout,
		Transport: &agentTransport{base: newTransport()},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{
			TokenType:   bearerTokenType,
			AccessToken: token,
		},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = timeout

	return tc
}
