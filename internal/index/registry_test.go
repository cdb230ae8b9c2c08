package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ippclub/pipstat/internal/model"
)

type stubClient struct {
	indexURL string
}

func (s *stubClient) FetchManifest(context.Context, string) (*model.ReleaseManifest, error) {
	return &model.ReleaseManifest{}, nil
}

func TestRegistry_ReusesClientPerIndex(t *testing.T) {
	created := 0
	r := NewRegistry(func(indexURL string) (Client, error) {
		created++
		return &stubClient{indexURL: indexURL}, nil
	})

	a, err := r.Get("https://pypi.org/pypi")
	require.NoError(t, err)
	b, err := r.Get("https://pypi.org/pypi/")
	require.NoError(t, err)
	c, err := r.Get("http://mirror.local/pypi")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "http://mirror.local/pypi", c.(*stubClient).indexURL)
}

func TestRegistry_FactoryError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry(func(string) (Client, error) { return nil, boom })

	_, err := r.Get("https://pypi.org/pypi")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Len())
}

func TestNewFactory(t *testing.T) {
	opts := DefaultOptions()

	f, err := NewFactory(ProtocolJSON, opts, zap.NewNop())
	require.NoError(t, err)
	c, err := f("https://pypi.org/pypi")
	require.NoError(t, err)
	assert.IsType(t, &JSONClient{}, c)

	f, err = NewFactory(ProtocolXMLRPC, opts, zap.NewNop())
	require.NoError(t, err)
	c, err = f("https://pypi.org/pypi")
	require.NoError(t, err)
	assert.IsType(t, &XMLRPCClient{}, c)

	_, err = NewFactory("soap", opts, zap.NewNop())
	assert.Error(t, err)
}

type closingClient struct {
	stubClient
	closed int
}

func (c *closingClient) Close() error {
	c.closed++
	return nil
}

func TestRegistry_Close(t *testing.T) {
	closer := &closingClient{}
	r := NewRegistry(func(indexURL string) (Client, error) {
		if indexURL == "http://mirror.local/pypi" {
			return closer, nil
		}
		return &stubClient{indexURL: indexURL}, nil
	})

	_, err := r.Get("https://pypi.org/pypi")
	require.NoError(t, err)
	_, err = r.Get("http://mirror.local/pypi")
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.Equal(t, 1, closer.closed)
	assert.Equal(t, 0, r.Len())
}
