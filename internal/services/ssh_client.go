package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"domainpanel/internal/apperr"
)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateReady
)

const defaultConnectTimeout = 30 * time.Second

// RemoteClient wraps a single persistent SSH connection. Lifecycle is
// Disconnected -> Connecting -> Ready -> Disconnected; a transport error at
// any point collapses the state back to Disconnected. Every operation except
// Connect fails immediately when the client is not Ready.
type RemoteClient struct {
	mu     sync.Mutex
	state  connState
	client *ssh.Client
}

func NewRemoteClient() *RemoteClient {
	return &RemoteClient{}
}

// DialSSH connects a new RemoteClient and returns it as a RemoteSession.
// This is the production Dialer handed to the orchestrators.
func DialSSH(t Target) (RemoteSession, error) {
	c := NewRemoteClient()
	if err := c.Connect(t); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RemoteClient) Connect(t Target) error {
	c.mu.Lock()
	if c.state != stateDisconnected {
		c.mu.Unlock()
		return apperr.Connection("already connected", nil)
	}
	c.state = stateConnecting
	c.mu.Unlock()

	cfg, err := clientConfig(t)
	if err != nil {
		c.setState(stateDisconnected)
		return err
	}

	addr := net.JoinHostPort(t.Host, fmt.Sprintf("%d", port(t)))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		c.setState(stateDisconnected)
		return apperr.Connection(fmt.Sprintf("failed to connect to %s", addr), err)
	}

	c.mu.Lock()
	c.client = client
	c.state = stateReady
	c.mu.Unlock()

	// Collapse to Disconnected when the transport dies underneath us.
	go func() {
		client.Wait()
		c.mu.Lock()
		if c.client == client {
			c.state = stateDisconnected
			c.client = nil
		}
		c.mu.Unlock()
	}()

	slog.Info("SSH connection established", "host", addr, "user", t.Username)
	return nil
}

func clientConfig(t Target) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	switch t.AuthType {
	case "key":
		var signer ssh.Signer
		var err error
		if t.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(t.PrivateKey), []byte(t.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(t.PrivateKey))
		}
		if err != nil {
			return nil, apperr.Connection("failed to parse private key", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	default: // password
		password := t.Password
		auth = append(auth,
			ssh.Password(password),
			// Some servers only offer challenge/response; answer every
			// prompt with the password.
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	timeout := t.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	return &ssh.ClientConfig{
		User:            t.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}, nil
}

func port(t Target) int {
	if t.Port <= 0 {
		return 22
	}
	return t.Port
}

func (c *RemoteClient) ready() (*ssh.Client, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateReady || c.client == nil {
		return nil, false
	}
	return c.client, true
}

func (c *RemoteClient) setState(s connState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes one command in a fresh channel over the existing session.
// Output is accumulated without truncation; multi-megabyte logs are fine.
func (c *RemoteClient) Run(command string, timeout time.Duration) (*CommandResult, error) {
	client, ok := c.ready()
	if !ok {
		return nil, apperr.NotConnected("run")
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, apperr.Command("failed to open ssh channel", err)
	}
	defer session.Close()

	var stdout, stderr safeBuffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start(command); err != nil {
		return nil, apperr.Command(fmt.Sprintf("failed to start command %q", command), err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case err = <-done:
	case <-timer:
		session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, apperr.Command(fmt.Sprintf("command timed out after %s", timeout), nil)
	}

	res := &CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			// Non-zero exit is a normal result.
			res.ExitCode = exitErr.ExitStatus()
			res.Signal = exitErr.Signal()
			return res, nil
		}
		return nil, apperr.Command(fmt.Sprintf("command %q failed in transport", command), err)
	}
	return res, nil
}

// Upload streams a local file to remotePath over sftp.
func (c *RemoteClient) Upload(localPath, remotePath string) error {
	client, ok := c.ready()
	if !ok {
		return apperr.NotConnected("upload")
	}

	local, err := os.Open(localPath)
	if err != nil {
		return apperr.Transfer(fmt.Sprintf("cannot open local file %s", localPath), err)
	}
	defer local.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return apperr.Transfer("failed to open sftp channel", err)
	}
	defer sftpClient.Close()

	remote, err := sftpClient.Create(remotePath)
	if err != nil {
		return apperr.Transfer(fmt.Sprintf("cannot create remote file %s", remotePath), err)
	}
	defer remote.Close()

	if _, err := io.Copy(remote, local); err != nil {
		return apperr.Transfer(fmt.Sprintf("upload %s -> %s failed", localPath, remotePath), err)
	}
	return nil
}

// Download streams a remote file to localPath over sftp.
func (c *RemoteClient) Download(remotePath, localPath string) error {
	client, ok := c.ready()
	if !ok {
		return apperr.NotConnected("download")
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return apperr.Transfer("failed to open sftp channel", err)
	}
	defer sftpClient.Close()

	remote, err := sftpClient.Open(remotePath)
	if err != nil {
		return apperr.Transfer(fmt.Sprintf("cannot open remote file %s", remotePath), err)
	}
	defer remote.Close()

	local, err := os.Create(localPath)
	if err != nil {
		return apperr.Transfer(fmt.Sprintf("cannot create local file %s", localPath), err)
	}
	defer local.Close()

	if _, err := io.Copy(local, remote); err != nil {
		return apperr.Transfer(fmt.Sprintf("download %s -> %s failed", remotePath, localPath), err)
	}
	return nil
}

// Close is idempotent and safe on a never-connected client.
func (c *RemoteClient) Close() error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.state = stateDisconnected
	c.mu.Unlock()

	if client != nil {
		return client.Close()
	}
	return nil
}

// TestConnection dials without keeping the connection, runs a probe command
// and returns the server's host key fingerprint.
func TestConnection(t Target) (string, error) {
	cfg, err := clientConfig(t)
	if err != nil {
		return "", err
	}

	var fingerprint string
	cfg.HostKeyCallback = func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		fingerprint = ssh.FingerprintSHA256(key)
		return nil
	}

	addr := net.JoinHostPort(t.Host, fmt.Sprintf("%d", port(t)))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return "", apperr.Connection(fmt.Sprintf("failed to connect to %s", addr), err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fingerprint, apperr.Command("failed to open ssh channel", err)
	}
	defer session.Close()

	if _, err := session.Output("echo ok"); err != nil {
		return fingerprint, apperr.Command("probe command failed", err)
	}
	return fingerprint, nil
}

// safeBuffer guards concurrent writes from the stdout/stderr copiers.
type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
