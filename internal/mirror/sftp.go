// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

// Package mirror uploads database backup archives to a remote host over
// SFTP, so an off-site copy of the fleet state survives the loss of the
// operator machine.
package mirror

import (
	"fmt"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/repofleet/repofleet/internal/db"
	"golang.org/x/crypto/ssh"
)

// Deployer handles the connection and upload to a remote mirror host.
type Deployer struct {
	client *ssh.Client
	sftp   *sftp.Client
}

// hostKeyCallback verifies the remote host key against the trusted keys
// stored in the database.
func hostKeyCallback(hostname string, remote net.Addr, key ssh.PublicKey) error {
	// The hostname passed to the callback can include the port. Strip it so
	// the database lookup matches what trust-host stored.
	host, _, err := net.SplitHostPort(hostname)
	if err != nil {
		host = hostname
	}

	presentedKey := string(ssh.MarshalAuthorizedKey(key))

	knownKey, err := db.GetKnownHostKey(host)
	if err != nil {
		return fmt.Errorf("failed to query known_hosts database: %w", err)
	}
	if knownKey == "" {
		return fmt.Errorf("unknown host key for %s. run 'repofleet trust-host' to add it", host)
	}
	if knownKey != presentedKey {
		return fmt.Errorf("!!! HOST KEY MISMATCH FOR %s !!!\nRemote key presented: %s\nThis could be a man-in-the-middle attack", host, presentedKey)
	}
	return nil
}

// NewDeployer creates a new SSH connection and returns a Deployer. When
// privateKeyPath names a key file it is tried first; an SSH agent serves as
// fallback. An encrypted key is unlocked with the given passphrase.
func NewDeployer(host, user, privateKeyPath string, passphrase []byte) (*Deployer, error) {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "22")
	}

	var finalErr error

	if privateKeyPath != "" {
		keyData, err := os.ReadFile(privateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read private key %s: %w", privateKeyPath, err)
		}
		var signer ssh.Signer
		if len(passphrase) > 0 {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, passphrase)
		} else {
			signer, err = ssh.ParsePrivateKey(keyData)
		}
		if err != nil {
			return nil, fmt.Errorf("unable to parse private key: %w", err)
		}

		config := &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         10 * time.Second,
		}

		client, err := ssh.Dial("tcp", addr, config)
		if err == nil {
			sftpClient, sftpErr := sftp.NewClient(client)
			if sftpErr != nil {
				_ = client.Close()
				return nil, fmt.Errorf("failed to create sftp client: %w", sftpErr)
			}
			return &Deployer{client: client, sftp: sftpClient}, nil
		}

		// Fail fast on anything that is not an auth failure.
		if !strings.Contains(err.Error(), "unable to authenticate") {
			return nil, fmt.Errorf("connection with mirror key failed: %w", err)
		}
		finalErr = err
	}

	agentClient := getSSHAgent()
	if agentClient == nil {
		if finalErr != nil {
			return nil, fmt.Errorf("mirror key authentication failed, and no SSH agent available for fallback: %w", finalErr)
		}
		return nil, fmt.Errorf("no authentication method available (no mirror key configured and no ssh agent found)")
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(agentClient.Signers)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("connection with ssh agent failed: %w", err)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}
	return &Deployer{client: client, sftp: sftpClient}, nil
}

// Upload writes content to remotePath, uploading to a temporary file first
// and renaming it into place so a half-written archive never replaces a
// good one.
func (d *Deployer) Upload(content []byte, remotePath string) error {
	dir := path.Dir(remotePath)
	if dir != "." && dir != "/" {
		_ = d.sftp.MkdirAll(dir)
	}

	tmpPath := remotePath + fmt.Sprintf(".repofleet.%d", time.Now().UnixNano())
	f, err := d.sftp.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file on remote: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = d.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to write to temporary file on remote: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = d.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to finalize temporary file on remote: %w", err)
	}

	if err := d.sftp.Chmod(tmpPath, 0o600); err != nil {
		_ = d.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temporary file: %w", err)
	}

	if err := d.sftp.Rename(tmpPath, remotePath); err != nil {
		_ = d.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to atomically rename mirror archive: %w", err)
	}
	return nil
}

// Close closes the underlying SSH and SFTP clients.
func (d *Deployer) Close() {
	if d.sftp != nil {
		_ = d.sftp.Close()
	}
	if d.client != nil {
		_ = d.client.Close()
	}
}

// GetRemoteHostKey connects to a host just to retrieve its public key.
func GetRemoteHostKey(host string) (ssh.PublicKey, error) {
	keyChan := make(chan ssh.PublicKey, 1)

	config := &ssh.ClientConfig{
		// No authentication needed, just start the handshake.
		User: "repofleet-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyChan <- key
			// Return a specific error to gracefully stop the handshake.
			return fmt.Errorf("repofleet: successfully retrieved host key")
		},
		Timeout: 5 * time.Second,
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "22")
	}

	// ssh.Dial is expected to fail with our specific error.
	_, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		if strings.Contains(err.Error(), "repofleet: successfully retrieved host key") {
			return <-keyChan, nil
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", host, err)
	}

	return nil, fmt.Errorf("ssh.Dial succeeded unexpectedly, could not retrieve key")
}

// ParseTarget splits a user@host:path mirror target into its parts.
func ParseTarget(target string) (user, host, remotePath string, err error) {
	at := strings.Index(target, "@")
	if at <= 0 {
		return "", "", "", fmt.Errorf("mirror target must be user@host:path, got %q", target)
	}
	user = target[:at]
	rest := target[at+1:]
	colon := strings.Index(rest, ":")
	if colon <= 0 || colon == len(rest)-1 {
		return "", "", "", fmt.Errorf("mirror target must be user@host:path, got %q", target)
	}
	return user, rest[:colon], rest[colon+1:], nil
}
