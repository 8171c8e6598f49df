package api

import (
	"fmt"
	"net"
	"net/http"
	stdhttputil "net/http/httputil"
	"net/url"
	"time"

	"github.com/platinummonkey/barbell/pkg/httputil"
	"github.com/platinummonkey/barbell/pkg/observability"
)

// NewProviderProxy forwards requests to the authentication provider at baseURL.
// The request path is kept, so /api/auth/sign-in/email reaches the same path
// on the provider.
func NewProviderProxy(baseURL string, timeout time.Duration) (http.Handler, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse provider URL: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("provider URL must be absolute: %q", baseURL)
	}

	proxy := stdhttputil.NewSingleHostReverseProxy(target)
	proxy.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConnsPerHost:   16,
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		observability.FromContext(r.Context()).WithError(err).WithField("path", r.URL.Path).
			Error("authentication provider unreachable")
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "authentication provider unavailable")
	}

	return proxy, nil
}
