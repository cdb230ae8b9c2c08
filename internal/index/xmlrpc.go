package index

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/rpc"
	"time"

	"github.com/kolo/xmlrpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ippclub/pipstat/internal/model"
	"github.com/ippclub/pipstat/pkg/retry"
)

// caller is the part of *xmlrpc.Client the index client needs.
type caller interface {
	Call(serviceMethod string, args interface{}, reply interface{}) error
	Close() error
}

// XMLRPCClient talks to the legacy XML-RPC API of an index. That API does
// not report recent-period counters, so manifests carry no Intervals.
type XMLRPCClient struct {
	endpoint string
	dial     func() (caller, error)
	rpc      caller
	limiter  *rate.Limiter
	opts     Options
	logger   *zap.Logger
}

type xmlrpcFile struct {
	Filename   string    `xmlrpc:"filename"`
	Downloads  int64     `xmlrpc:"downloads"`
	UploadTime time.Time `xmlrpc:"upload_time"`
}

// NewXMLRPCClient creates a client for the XML-RPC endpoint, which on PyPI
// is the index URL itself.
func NewXMLRPCClient(endpoint string, opts Options, logger *zap.Logger) (*XMLRPCClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: opts.Timeout,
		}
	}

	c := &XMLRPCClient{
		endpoint: endpoint,
		dial: func() (caller, error) {
			return xmlrpc.NewClient(endpoint, transport)
		},
		limiter: opts.limiter(),
		opts:    opts,
		logger:  logger,
	}
	// Dial once up front so a malformed endpoint fails at construction.
	if _, err := c.conn(); err != nil {
		return nil, err
	}
	return c, nil
}

// conn returns the current connection, dialing a new one when needed. An
// xmlrpc client is unusable after a transport error, so failed calls drop it.
func (c *XMLRPCClient) conn() (caller, error) {
	if c.rpc != nil {
		return c.rpc, nil
	}
	cl, err := c.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to create xmlrpc client: %w", err)
	}
	c.rpc = cl
	return cl, nil
}

// Close releases the underlying connection.
func (c *XMLRPCClient) Close() error {
	if c.rpc == nil {
		return nil
	}
	err := c.rpc.Close()
	c.rpc = nil
	return err
}

// FetchManifest lists every release of name, hidden ones included, and then
// the files of each release.
func (c *XMLRPCClient) FetchManifest(ctx context.Context, name string) (*model.ReleaseManifest, error) {
	var versions []string
	if err := c.call(ctx, "package_releases", []interface{}{name, true}, &versions); err != nil {
		return nil, fmt.Errorf("failed to list releases of %q: %w", name, err)
	}
	if len(versions) == 0 {
		return nil, notFound(name)
	}

	m := &model.ReleaseManifest{
		Name:     name,
		Releases: make([]model.Release, 0, len(versions)),
	}
	for _, version := range versions {
		var urls []xmlrpcFile
		if err := c.call(ctx, "release_urls", []interface{}{name, version}, &urls); err != nil {
			return nil, fmt.Errorf("failed to list files of %s %s: %w", name, version, err)
		}

		files := make([]model.File, 0, len(urls))
		for _, u := range urls {
			files = append(files, model.File{
				Filename:   u.Filename,
				Downloads:  nonNegative(u.Downloads),
				UploadTime: u.UploadTime.UTC(),
			})
		}
		m.Releases = append(m.Releases, model.Release{Version: version, Files: files})
	}

	c.logger.Debug("fetched manifest",
		zap.String("package", name),
		zap.Int("releases", len(m.Releases)),
	)
	return m, nil
}

func (c *XMLRPCClient) call(ctx context.Context, method string, args []interface{}, reply interface{}) error {
	_, err := retry.Do(ctx, c.opts.Retry, func() (struct{}, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return struct{}{}, retry.Permanent(err)
		}
		conn, err := c.conn()
		if err != nil {
			return struct{}{}, retry.Permanent(err)
		}
		if err := conn.Call(method, args, reply); err != nil {
			var fault rpc.ServerError
			if errors.As(err, &fault) {
				return struct{}{}, retry.Permanent(err)
			}
			c.Close()
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, func(err error, next time.Duration) {
		c.logger.Warn("index call failed, retrying",
			zap.String("endpoint", c.endpoint),
			zap.String("method", method),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	})
	return err
}
