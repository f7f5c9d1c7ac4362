package smtp

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coupon-service/internal/config"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

// startPlainSMTPServer поднимает SMTP-сервер, который не объявляет STARTTLS.
func startPlainSMTPServer(t *testing.T) (host, port string) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		_, _ = conn.Write([]byte("220 localhost ESMTP test\r\n"))
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch {
			case strings.HasPrefix(line, "EHLO"):
				_, _ = conn.Write([]byte("250-localhost\r\n250 8BITMIME\r\n"))
			case strings.HasPrefix(line, "QUIT"):
				_, _ = conn.Write([]byte("221 bye\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("250 ok\r\n"))
			}
		}
	}()

	host, port, err = net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return host, port
}

func TestTransport_ConnectRequiresSTARTTLS(t *testing.T) {
	host, port := startPlainSMTPServer(t)
	transport := NewTransport(config.SMTP{SMTPHost: host, SMTPPort: port, SMTPUser: "noreply@example.com"}, newNoopLogger())

	client, err := transport.Connect()
	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STARTTLS")
}

func TestTransport_ConnectDialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	transport := NewTransport(config.SMTP{SMTPHost: host, SMTPPort: port}, newNoopLogger())
	client, err := transport.Connect()
	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to dial SMTP server")
}

func TestTransport_GetSMTPUser(t *testing.T) {
	transport := NewTransport(config.SMTP{SMTPUser: "noreply@example.com"}, newNoopLogger())
	assert.Equal(t, "noreply@example.com", transport.GetSMTPUser())
}
