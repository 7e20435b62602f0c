package services

import "time"

// CommandResult holds the output of one remote command. A non-zero exit code
// is a normal result, not an error; errors are reserved for transport
// failures.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Signal   string
}

// RemoteSession is one established connection to a target server. All
// orchestrators depend on this interface rather than on the SSH client so
// tests can substitute a fake.
type RemoteSession interface {
	// Run executes one command in a fresh channel over the session.
	// A zero timeout means no deadline.
	Run(command string, timeout time.Duration) (*CommandResult, error)

	// Upload streams a local file to the remote path.
	Upload(localPath, remotePath string) error

	// Download streams a remote file to the local path.
	Download(remotePath, localPath string) error

	// Close tears the connection down. Idempotent.
	Close() error
}

// Target describes how to reach and authenticate against a server.
type Target struct {
	Host           string
	Port           int
	Username       string
	AuthType       string // password or key
	Password       string
	PrivateKey     string
	Passphrase     string
	ConnectTimeout time.Duration
}

// Dialer opens a ready-to-use session against a target.
type Dialer func(Target) (RemoteSession, error)
