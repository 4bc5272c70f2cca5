package sshexec

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

const sshPort = "22"

// Client dials droplets as root with a private key loaded once at
// construction time.
type Client struct {
	user        string
	signer      ssh.Signer
	dialTimeout time.Duration
}

func NewClient(user, privateKeyPath string) (*Client, error) {
	keyBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH private key %s: %w", privateKeyPath, err)
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH private key: %w", err)
	}

	return &Client{
		user:        user,
		signer:      signer,
		dialTimeout: 10 * time.Second,
	}, nil
}

// Connect opens an authenticated session to the given IP. Host keys are
// not checked: droplets are ephemeral and freshly imaged, so there is
// nothing to pin against.
func (c *Client) Connect(ctx context.Context, ip string) (*Session, error) {
	addr := net.JoinHostPort(ip, sshPort)

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	config := &ssh.ClientConfig{
		User:            c.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.dialTimeout,
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake with %s failed: %w", addr, err)
	}

	return &Session{client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

// Session is one SSH connection; each Run executes over a fresh channel.
type Session struct {
	client *ssh.Client
}

// Run executes a command and returns its trimmed standard output. A
// non-zero exit status is not an error: callers inspect the output the
// same way the configuration scripts do. Transport failures are errors.
func (s *Session) Run(ctx context.Context, cmd string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open SSH channel: %w", err)
	}
	defer session.Close()

	var stdout bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stdout

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	case err = <-done:
	}

	if err != nil {
		if _, ok := err.(*ssh.ExitError); !ok {
			return "", fmt.Errorf("failed to run %q: %w", cmd, err)
		}
	}

	return strings.TrimSpace(stdout.String()), nil
}

func (s *Session) Close() error {
	return s.client.Close()
}
