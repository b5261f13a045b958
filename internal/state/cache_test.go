// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

package state

import (
	"bytes"
	"testing"
)

func TestPassphraseCacheRoundTrip(t *testing.T) {
	defer PassphraseCache.Clear()

	PassphraseCache.Set([]byte("hunter2"))
	got := PassphraseCache.Get()
	if !bytes.Equal(got, []byte("hunter2")) {
		t.Errorf("unexpected cached passphrase: %q", got)
	}

	// Mutating the returned copy must not affect the cache.
	got[0] = 'X'
	again := PassphraseCache.Get()
	if !bytes.Equal(again, []byte("hunter2")) {
		t.Errorf("cache was mutated through returned copy: %q", again)
	}
}

func TestPassphraseCacheSetCopies(t *testing.T) {
	defer PassphraseCache.Clear()

	src := []byte("secret")
	PassphraseCache.Set(src)
	src[0] = 'X'
	if got := PassphraseCache.Get(); !bytes.Equal(got, []byte("secret")) {
		t.Errorf("cache holds caller's slice instead of a copy: %q", got)
	}
}

func TestPassphraseCacheClear(t *testing.T) {
	PassphraseCache.Set([]byte("secret"))
	PassphraseCache.Clear()
	if got := PassphraseCache.Get(); got != nil {
		t.Errorf("expected nil after Clear, got %q", got)
	}
}
