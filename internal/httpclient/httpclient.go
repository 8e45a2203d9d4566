// Package httpclient builds the outbound HTTP client used for provider
// calls, honouring the standard proxy environment variables.
package httpclient

import (
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// proxyEnvVars in order of preference, following the convention shared by
// curl and wget.
var proxyEnvVars = []string{
	"HTTPS_PROXY",
	"https_proxy",
	"HTTP_PROXY",
	"http_proxy",
}

// New returns an HTTP client for provider calls. When a proxy environment
// variable is set its URL is applied to the transport; credentials are
// redacted before logging. A zero timeout leaves deadline control to the
// caller's context.
func New(timeout time.Duration, logger *logrus.Logger) *http.Client {
	client := &http.Client{Timeout: timeout}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	if raw := proxyFromEnv(); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil {
			if logger != nil {
				logger.WithError(err).Warn("Ignoring unparseable proxy URL, using direct connection")
			}
		} else {
			transport.Proxy = http.ProxyURL(parsed)
			if logger != nil {
				logger.WithField("proxy_url", redactCredentials(parsed)).Debug("Outbound HTTP configured with proxy")
			}
		}
	}

	client.Transport = transport
	return client
}

// proxyFromEnv returns the first non-placeholder proxy URL from the
// environment, or empty when none is configured.
func proxyFromEnv() string {
	for _, envVar := range proxyEnvVars {
		value := os.Getenv(envVar)
		if value == "" || value == "$HTTPS_PROXY" || value == "$HTTP_PROXY" {
			continue
		}
		return value
	}
	return ""
}

func redactCredentials(u *url.URL) string {
	if u.User == nil {
		return u.String()
	}
	clone := *u
	clone.User = url.UserPassword("***", "***")
	return clone.String()
}
