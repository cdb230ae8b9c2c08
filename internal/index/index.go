// Package index fetches release manifests from a package index.
//
// Two wire protocols are supported behind the same Client interface: the
// JSON API (GET {index}/{name}/json) and the older XML-RPC API
// (package_releases / release_urls). Callers never depend on which one is
// in use.
package index

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ippclub/pipstat/internal/model"
	"github.com/ippclub/pipstat/pkg/retry"
)

// DefaultIndexURL is the index queried when an identifier names none.
const DefaultIndexURL = "https://pypi.org/pypi"

// Supported wire protocols.
const (
	ProtocolJSON   = "json"
	ProtocolXMLRPC = "xmlrpc"
)

// Client resolves a package name to its release manifest. A name the index
// does not know yields an error wrapping model.ErrPackageNotFound.
type Client interface {
	FetchManifest(ctx context.Context, name string) (*model.ReleaseManifest, error)
}

// Options configures index clients.
type Options struct {
	// Timeout for individual requests.
	Timeout time.Duration

	// RPS and Burst pace requests sent by one client. RPS <= 0 disables pacing.
	RPS   float64
	Burst int

	// Retry is the backoff policy for transport and server errors.
	Retry retry.Config

	// UserAgent is sent with every request.
	UserAgent string

	// Transport overrides the HTTP transport. Mostly for tests.
	Transport http.RoundTripper
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:   30 * time.Second,
		RPS:       5,
		Burst:     1,
		Retry:     retry.DefaultConfig(),
		UserAgent: "pipstat",
	}
}

func (o Options) limiter() *rate.Limiter {
	if o.RPS <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := o.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(o.RPS), burst)
}

// Factory creates a client for one index URL.
type Factory func(indexURL string) (Client, error)

// NewFactory returns a Factory for the named protocol.
func NewFactory(protocol string, opts Options, logger *zap.Logger) (Factory, error) {
	switch protocol {
	case ProtocolJSON, "":
		return func(indexURL string) (Client, error) {
			return NewJSONClient(indexURL, opts, logger), nil
		}, nil
	case ProtocolXMLRPC:
		return func(indexURL string) (Client, error) {
			return NewXMLRPCClient(indexURL, opts, logger)
		}, nil
	default:
		return nil, fmt.Errorf("unknown index protocol %q", protocol)
	}
}

func notFound(name string) error {
	return fmt.Errorf("%w: %q", model.ErrPackageNotFound, name)
}
