package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ippclub/pipstat/internal/model"
	"github.com/ippclub/pipstat/pkg/retry"
)

// ErrServerError is returned when the index keeps answering with 5xx.
var ErrServerError = errors.New("index: server error")

// ErrThrottled is returned when the index keeps answering with 429.
var ErrThrottled = errors.New("index: too many requests")

// JSONClient talks to the JSON API of an index.
type JSONClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
	logger  *zap.Logger
}

// NewJSONClient creates a client for the index at baseURL, for example
// "https://pypi.org/pypi".
func NewJSONClient(baseURL string, opts Options, logger *zap.Logger) *JSONClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			MaxIdleConns:    4,
			IdleConnTimeout: 90 * time.Second,
		}
	}

	return &JSONClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		limiter: opts.limiter(),
		opts:    opts,
		logger:  logger,
	}
}

// FetchManifest downloads {baseURL}/{name}/json. Server errors and
// transport failures are retried; 404 maps to model.ErrPackageNotFound.
func (c *JSONClient) FetchManifest(ctx context.Context, name string) (*model.ReleaseManifest, error) {
	endpoint := fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(name))

	pkg, err := retry.Do(ctx, c.opts.Retry, func() (*jsonPackage, error) {
		return c.get(ctx, endpoint, name)
	}, func(err error, next time.Duration) {
		c.logger.Warn("index request failed, retrying",
			zap.String("url", endpoint),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched manifest",
		zap.String("package", name),
		zap.Int("releases", len(pkg.Releases)),
	)
	return pkg.manifest(name), nil
}

func (c *JSONClient) get(ctx context.Context, endpoint, name string) (*jsonPackage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, retry.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, retry.Permanent(notFound(name))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ErrThrottled, resp.Status)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s", ErrServerError, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, retry.Permanent(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var pkg jsonPackage
	if err := json.Unmarshal(body, &pkg); err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to decode manifest for %q: %w", name, err))
	}
	return &pkg, nil
}

type jsonPackage struct {
	Info struct {
		Name      string         `json:"name"`
		Downloads *jsonDownloads `json:"downloads"`
	} `json:"info"`
	Releases jsonReleases `json:"releases"`
}

type jsonDownloads struct {
	LastDay   int64 `json:"last_day"`
	LastWeek  int64 `json:"last_week"`
	LastMonth int64 `json:"last_month"`
}

type jsonFile struct {
	Filename      string `json:"filename"`
	Downloads     int64  `json:"downloads"`
	UploadTime    string `json:"upload_time"`
	UploadTimeISO string `json:"upload_time_iso_8601"`
}

type jsonRelease struct {
	version string
	files   []jsonFile
}

// jsonReleases keeps the key order of the "releases" object, which the
// aggregator uses to break ties.
type jsonReleases []jsonRelease

func (r *jsonReleases) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("releases: expected object, got %v", tok)
	}

	var out jsonReleases
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		version, ok := tok.(string)
		if !ok {
			return fmt.Errorf("releases: expected version key, got %v", tok)
		}
		var files []jsonFile
		if err := dec.Decode(&files); err != nil {
			return fmt.Errorf("releases[%s]: %w", version, err)
		}
		out = append(out, jsonRelease{version: version, files: files})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = out
	return nil
}

func (p *jsonPackage) manifest(name string) *model.ReleaseManifest {
	m := &model.ReleaseManifest{
		Name:     name,
		Releases: make([]model.Release, 0, len(p.Releases)),
	}
	if p.Info.Name != "" {
		m.Name = p.Info.Name
	}

	for _, rel := range p.Releases {
		files := make([]model.File, 0, len(rel.files))
		for _, f := range rel.files {
			raw := f.UploadTimeISO
			if raw == "" {
				raw = f.UploadTime
			}
			uploaded, _ := parseUploadTime(raw)
			files = append(files, model.File{
				Filename:   f.Filename,
				Downloads:  nonNegative(f.Downloads),
				UploadTime: uploaded,
			})
		}
		m.Releases = append(m.Releases, model.Release{Version: rel.version, Files: files})
	}

	// Indexes that no longer count downloads report -1 for every period.
	if d := p.Info.Downloads; d != nil && d.LastDay >= 0 && d.LastWeek >= 0 && d.LastMonth >= 0 {
		m.Intervals = &model.Intervals{
			LastDay:   d.LastDay,
			LastWeek:  d.LastWeek,
			LastMonth: d.LastMonth,
		}
	}
	return m
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
