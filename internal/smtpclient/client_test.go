package smtpclient_test

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailverify/internal/smtpclient"
)

// fakeServer simulates an SMTP server on one end of a net.Pipe, matching
// fixed command prefixes to canned responses.
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

func dialPipe(banner string, responses map[string]string) func(string, string, time.Duration) (net.Conn, error) {
	return func(network, address string, timeout time.Duration) (net.Conn, error) {
		client, server := net.Pipe()
		go fakeServer(server, banner, responses)
		return client, nil
	}
}

func TestClient_FullConversationNoSTARTTLS(t *testing.T) {
	cfg := smtpclient.DefaultConfig()
	cfg.STARTTLS = smtpclient.STARTTLSOff
	cfg.Dial = dialPipe("220 mx.example.com ESMTP", map[string]string{
		"EHLO":      "250-mx.example.com\r\n250 PIPELINING",
		"MAIL FROM": "250 OK",
		"RCPT TO":   "250 Recipient OK",
		"RSET":      "250 OK",
	})

	c := smtpclient.New(cfg, "mx.example.com")
	require.NoError(t, c.Connect("mx.example.com:25", "verifier.example.com"))
	assert.Equal(t, smtpclient.Ready, c.State())

	resp, err := c.MailFrom("probe@verifier.example.com")
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code)

	resp, err = c.RcptTo("target@example.com")
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code)
	assert.Equal(t, smtpclient.Classified, c.State())

	require.NoError(t, c.Reset())
	assert.Equal(t, smtpclient.Ready, c.State())
	c.Quit()
}

func TestClient_RcptRejected(t *testing.T) {
	cfg := smtpclient.DefaultConfig()
	cfg.STARTTLS = smtpclient.STARTTLSOff
	cfg.Dial = dialPipe("220 mx.example.com ESMTP", map[string]string{
		"EHLO":      "250 mx.example.com",
		"MAIL FROM": "250 OK",
		"RCPT TO":   "550 No such user here",
	})

	c := smtpclient.New(cfg, "mx.example.com")
	require.NoError(t, c.Connect("mx.example.com:25", "verifier.example.com"))

	_, err := c.MailFrom("probe@verifier.example.com")
	require.NoError(t, err)

	resp, err := c.RcptTo("nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, 550, resp.Code)
	assert.Contains(t, resp.Message, "No such user")
}

func TestClient_BannerRejectionClosesSession(t *testing.T) {
	cfg := smtpclient.DefaultConfig()
	cfg.Dial = dialPipe("554 Go away", nil)

	c := smtpclient.New(cfg, "mx.example.com")
	err := c.Connect("mx.example.com:25", "verifier.example.com")
	assert.Error(t, err)
	assert.Equal(t, smtpclient.Closed, c.State())
}

func TestClient_MultilineResponseUsesFinalLineCode(t *testing.T) {
	cfg := smtpclient.DefaultConfig()
	cfg.STARTTLS = smtpclient.STARTTLSOff
	cfg.Dial = dialPipe("220 mx.example.com ESMTP", map[string]string{
		"EHLO":      "250-mx.example.com Hello\r\n250-PIPELINING\r\n250 8BITMIME",
		"MAIL FROM": "250 OK",
	})

	c := smtpclient.New(cfg, "mx.example.com")
	require.NoError(t, c.Connect("mx.example.com:25", "verifier.example.com"))
	assert.Equal(t, smtpclient.Ready, c.State())
}
