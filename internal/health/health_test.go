package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeHTTPHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	port, err := portFromServerURL(srv.URL)
	require.NoError(t, err)

	p := NewProber(port, "/healthz")
	result := p.Probe(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
}

func TestProbeHTTPFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	port, err := portFromServerURL(srv.URL)
	require.NoError(t, err)

	p := NewProber(port, "/healthz")
	result := p.Probe(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
}

func TestProbeTCPConnectRefused(t *testing.T) {
	p := NewProber(1, "")
	result := p.Probe(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
}

func TestProbeTCPSucceedsAgainstListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	p := NewProber(port, "")
	result := p.Probe(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
}

func TestStartStopUpdatesLast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	port, err := portFromServerURL(srv.URL)
	require.NoError(t, err)

	p := NewProber(port, "/")
	p.Start(20 * time.Millisecond)
	defer p.Stop()

	assert.Eventually(t, func() bool {
		return p.Last().Status == StatusHealthy
	}, time.Second, 10*time.Millisecond)
}

func portFromServerURL(url string) (int, error) {
	_, portStr, err := net.SplitHostPort(url[len("http://"):])
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}