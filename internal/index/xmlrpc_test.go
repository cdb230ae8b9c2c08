package index

import (
	"context"
	"net/rpc"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ippclub/pipstat/internal/indextest"
	"github.com/ippclub/pipstat/internal/model"
)

func TestXMLRPCClient_FetchManifest(t *testing.T) {
	srv := indextest.NewServer()
	defer srv.Close()
	srv.Add(cheesetest())

	c, err := NewXMLRPCClient(srv.IndexURL(), testOptions(), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	m, err := c.FetchManifest(context.Background(), "cheesetest")
	require.NoError(t, err)

	require.Len(t, m.Releases, 3)
	assert.Equal(t, "0.2.0", m.Releases[0].Version)
	assert.Equal(t, "0.1", m.Releases[1].Version)
	assert.Empty(t, m.Releases[2].Files)

	require.Len(t, m.Releases[1].Files, 2)
	assert.Equal(t, int64(5), m.Releases[1].Files[1].Downloads)
	assert.True(t, indextest.Day(2).Equal(m.Releases[1].Files[1].UploadTime))
	assert.Equal(t, "cheesetest-0.1-py2.py3-none-any.whl", m.Releases[1].Files[1].Filename)

	// The XML-RPC protocol has no recent-period counters.
	assert.Nil(t, m.Intervals)
}

func TestXMLRPCClient_NotFound(t *testing.T) {
	srv := indextest.NewServer()
	defer srv.Close()

	c, err := NewXMLRPCClient(srv.IndexURL(), testOptions(), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.FetchManifest(context.Background(), "notfound")
	assert.ErrorIs(t, err, model.ErrPackageNotFound)
}

func TestXMLRPCClient_RetriesAfterTransportError(t *testing.T) {
	srv := indextest.NewServer()
	defer srv.Close()
	srv.Add(cheesetest())
	srv.FailNext(1)

	c, err := NewXMLRPCClient(srv.IndexURL(), testOptions(), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	m, err := c.FetchManifest(context.Background(), "cheesetest")
	require.NoError(t, err)
	assert.Len(t, m.Releases, 3)
}

type faultingCaller struct {
	calls int
}

func (f *faultingCaller) Call(string, interface{}, interface{}) error {
	f.calls++
	return errFault
}

func (f *faultingCaller) Close() error { return nil }

var errFault error = rpc.ServerError("method not supported")

func TestXMLRPCClient_FaultIsPermanent(t *testing.T) {
	fc := &faultingCaller{}
	c := &XMLRPCClient{
		endpoint: "http://example.invalid/pypi",
		dial:     func() (caller, error) { return fc, nil },
		limiter:  testOptions().limiter(),
		opts:     testOptions(),
		logger:   zap.NewNop(),
	}

	_, err := c.FetchManifest(context.Background(), "cheesetest")
	require.Error(t, err)
	assert.Equal(t, 1, fc.calls)
}
