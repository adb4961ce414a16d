package connpool_test

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailverify/internal/connpool"
	"github.com/optimode/mailverify/internal/smtpclient"
)

func fakeServer(server net.Conn, banner string, responses map[string]string) {
	defer server.Close()
	fmt.Fprintf(server, "%s\r\n", banner)
	buf := make([]byte, 4096)
	for {
		n, err := server.Read(buf)
		if err != nil {
			return
		}
		cmd := string(buf[:n])
		for prefix, resp := range responses {
			if len(cmd) >= len(prefix) && cmd[:len(prefix)] == prefix {
				fmt.Fprintf(server, "%s\r\n", resp)
				break
			}
		}
		if len(cmd) >= 4 && cmd[:4] == "QUIT" {
			fmt.Fprintf(server, "221 Bye\r\n")
			return
		}
	}
}

func testDial() func(string, string, time.Duration) (net.Conn, error) {
	return func(network, address string, timeout time.Duration) (net.Conn, error) {
		client, server := net.Pipe()
		go fakeServer(server, "220 mx.example.com ESMTP", map[string]string{
			"EHLO": "250 mx.example.com", "RSET": "250 OK", "NOOP": "250 OK",
			"MAIL FROM": "250 OK", "RCPT TO": "250 OK",
		})
		return client, nil
	}
}

func newTestPool(maxPerKey int) *connpool.Pool {
	cfg := connpool.DefaultConfig()
	cfg.MaxPerKey = maxPerKey
	cfg.ClientConfig.STARTTLS = smtpclient.STARTTLSOff
	cfg.ClientConfig.Dial = testDial()
	cfg.ReapInterval = time.Hour // don't let the reaper interfere with assertions
	return connpool.New(cfg)
}

func TestPool_AcquireNewConnectsAndReleasesForReuse(t *testing.T) {
	p := newTestPool(3)
	defer p.Close()

	s, err := p.Acquire("mx.example.com", "25")
	require.NoError(t, err)
	assert.True(t, s.IsNew())
	require.NoError(t, s.Client.Connect("mx.example.com:25", "verifier.example.com"))

	p.Release(s)

	s2, err := p.Acquire("mx.example.com", "25")
	require.NoError(t, err)
	assert.False(t, s2.IsNew(), "a freshly released session should be reused")
}

func TestPool_OverflowBeyondCapIsNonPoolable(t *testing.T) {
	p := newTestPool(1)
	defer p.Close()

	s1, err := p.Acquire("mx.example.com", "25")
	require.NoError(t, err)
	require.NoError(t, s1.Client.Connect("mx.example.com:25", "verifier.example.com"))

	s2, err := p.Acquire("mx.example.com", "25")
	require.NoError(t, err)
	assert.False(t, s2.Poolable)
}

func TestPool_ReleaseNonPoolableClosesImmediately(t *testing.T) {
	p := newTestPool(1)
	defer p.Close()

	s1, _ := p.Acquire("mx.example.com", "25")
	s1.Client.Connect("mx.example.com:25", "verifier.example.com")

	s2, _ := p.Acquire("mx.example.com", "25")
	s2.Client.Connect("mx.example.com:25", "verifier.example.com")
	p.Release(s2) // non-poolable; should just close

	p.Release(s1)
	s3, err := p.Acquire("mx.example.com", "25")
	require.NoError(t, err)
	assert.False(t, s3.IsNew())
}

func TestPool_DisabledPoolingNeverReusesConnections(t *testing.T) {
	cfg := connpool.DefaultConfig()
	cfg.EnablePooling = false
	cfg.ClientConfig.STARTTLS = smtpclient.STARTTLSOff
	cfg.ClientConfig.Dial = testDial()
	cfg.ReapInterval = time.Hour
	p := connpool.New(cfg)
	defer p.Close()

	s1, err := p.Acquire("mx.example.com", "25")
	require.NoError(t, err)
	assert.False(t, s1.Poolable)
	require.NoError(t, s1.Client.Connect("mx.example.com:25", "verifier.example.com"))
	p.Release(s1)

	s2, err := p.Acquire("mx.example.com", "25")
	require.NoError(t, err)
	assert.False(t, s2.Poolable)
	assert.True(t, s2.IsNew())

	assert.Equal(t, 0, p.Stats().TotalConnections)
}

func TestPool_DifferentKeysAreIndependent(t *testing.T) {
	p := newTestPool(1)
	defer p.Close()

	s1, err := p.Acquire("mx1.example.com", "25")
	require.NoError(t, err)
	assert.True(t, s1.Poolable)

	s2, err := p.Acquire("mx2.example.com", "25")
	require.NoError(t, err)
	assert.True(t, s2.Poolable)
}

func TestPool_CloseRejectsFurtherAcquire(t *testing.T) {
	p := newTestPool(3)
	p.Close()

	_, err := p.Acquire("mx.example.com", "25")
	assert.Error(t, err)
}
