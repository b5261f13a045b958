package mirror

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/repofleet/repofleet/internal/db"
	"golang.org/x/crypto/ssh"
)

func TestParseTarget(t *testing.T) {
	cases := []struct {
		target  string
		user    string
		host    string
		path    string
		wantErr bool
	}{
		{"backup@mirror.example.com:/srv/backups/fleet.json.zst", "backup", "mirror.example.com", "/srv/backups/fleet.json.zst", false},
		{"backup@mirror.example.com:backups/fleet.json.zst", "backup", "mirror.example.com", "backups/fleet.json.zst", false},
		{"no-at-sign", "", "", "", true},
		{"user@host-without-path", "", "", "", true},
		{"@host:path", "", "", "", true},
		{"user@host:", "", "", "", true},
	}
	for _, tc := range cases {
		user, host, path, err := ParseTarget(tc.target)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTarget(%q) expected error", tc.target)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTarget(%q) failed: %v", tc.target, err)
			continue
		}
		if user != tc.user || host != tc.host || path != tc.path {
			t.Errorf("ParseTarget(%q) = (%q, %q, %q)", tc.target, user, host, path)
		}
	}
}

func testPublicKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("failed to wrap test key: %v", err)
	}
	return sshPub
}

func TestHostKeyCallback(t *testing.T) {
	if err := db.InitDB("sqlite", "file:test_"+t.Name()+"?mode=memory&cache=shared"); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	key := testPublicKey(t)

	// Unknown host should point the operator at trust-host.
	err := hostKeyCallback("mirror.example.com:22", nil, key)
	if err == nil || !strings.Contains(err.Error(), "trust-host") {
		t.Fatalf("expected trust-host hint for unknown host, got %v", err)
	}

	// Trusted host with matching key passes.
	if err := db.AddKnownHostKey("mirror.example.com", string(ssh.MarshalAuthorizedKey(key))); err != nil {
		t.Fatalf("AddKnownHostKey failed: %v", err)
	}
	if err := hostKeyCallback("mirror.example.com:22", nil, key); err != nil {
		t.Fatalf("expected trusted host to pass, got %v", err)
	}

	// A different key must hard-fail.
	other := testPublicKey(t)
	err = hostKeyCallback("mirror.example.com:22", nil, other)
	if err == nil || !strings.Contains(err.Error(), "MISMATCH") {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}
