// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
)

// keypair generates a fresh keypair or fails the test.
func keypair(t *testing.T) Keypair {
	t.Helper()
	pair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return pair
}

// identities parses pair's private key.
func identities(t *testing.T, pair Keypair) []age.Identity {
	t.Helper()
	parsed, err := ParseIdentities(strings.NewReader(pair.PrivateKey + "\n"))
	if err != nil {
		t.Fatalf("ParseIdentities: %v", err)
	}
	return parsed
}

// writeIdentityFile writes pair's private key to an identity file in
// the format age-keygen produces.
func writeIdentityFile(t *testing.T, pair Keypair) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.key")
	content := "# created: 2026-01-01T00:00:00Z\n# public key: " + pair.PublicKey + "\n" + pair.PrivateKey + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing identity file: %v", err)
	}
	return path
}

func TestGenerateKeypair(t *testing.T) {
	t.Parallel()

	pair := keypair(t)
	if !strings.HasPrefix(pair.PrivateKey, "AGE-SECRET-KEY-1") {
		t.Errorf("private key %q lacks the age prefix", pair.PrivateKey[:16])
	}
	if !strings.HasPrefix(pair.PublicKey, "age1") {
		t.Errorf("public key %q lacks the age prefix", pair.PublicKey)
	}
	if other := keypair(t); other.PublicKey == pair.PublicKey {
		t.Error("two generated keypairs share a public key")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	t.Parallel()

	pair := keypair(t)
	for _, plaintext := range [][]byte{
		[]byte("s3cret"),
		{},
		bytes.Repeat([]byte("p"), 100_000),
	} {
		ciphertext, err := Encrypt(plaintext, []string{pair.PublicKey})
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		decrypted, err := Decrypt(ciphertext, identities(t, pair))
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Errorf("decrypted %d bytes, want %d", len(decrypted), len(plaintext))
		}
	}
}

func TestEncryptMultipleRecipients(t *testing.T) {
	t.Parallel()

	relay, escrow := keypair(t), keypair(t)
	ciphertext, err := Encrypt([]byte("shared"), []string{relay.PublicKey, escrow.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	for _, pair := range []Keypair{relay, escrow} {
		decrypted, err := Decrypt(ciphertext, identities(t, pair))
		if err != nil {
			t.Fatalf("Decrypt with %s: %v", pair.PublicKey, err)
		}
		if string(decrypted) != "shared" {
			t.Errorf("decrypted %q", decrypted)
		}
	}
}

func TestEncryptErrors(t *testing.T) {
	t.Parallel()

	if _, err := Encrypt([]byte("x"), nil); err == nil {
		t.Error("Encrypt with no recipients succeeded")
	}
	if _, err := Encrypt([]byte("x"), []string{"not-a-key"}); err == nil {
		t.Error("Encrypt with an invalid recipient succeeded")
	}
}

func TestDecryptErrors(t *testing.T) {
	t.Parallel()

	pair, stranger := keypair(t), keypair(t)
	ciphertext, err := Encrypt([]byte("s3cret"), []string{pair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := Decrypt(ciphertext, identities(t, stranger)); err == nil {
		t.Error("Decrypt with the wrong identity succeeded")
	}
	if _, err := Decrypt("%%%not base64%%%", identities(t, pair)); err == nil {
		t.Error("Decrypt of invalid base64 succeeded")
	}
	if _, err := Decrypt("YWdlIGlzIG5vdCBoZXJl", identities(t, pair)); err == nil {
		t.Error("Decrypt of non-age data succeeded")
	}
}

func TestParseIdentitiesRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := ParseIdentities(strings.NewReader("not a key\n")); err == nil {
		t.Error("ParseIdentities accepted garbage")
	}
	if _, err := ParseIdentities(strings.NewReader("# only a comment\n")); err == nil {
		t.Error("ParseIdentities accepted a file with no identities")
	}
}

func TestOpenPassword(t *testing.T) {
	t.Parallel()

	pair := keypair(t)
	identityFile := writeIdentityFile(t, pair)

	tests := []struct {
		name      string
		plaintext string
		want      string
	}{
		{"bare", "hunter2", "hunter2"},
		{"echo newline", "hunter2\n", "hunter2"},
		{"crlf", "hunter2\r\n", "hunter2"},
		{"inner whitespace kept", " pass word ", " pass word "},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			ciphertext, err := Encrypt([]byte(test.plaintext), []string{pair.PublicKey})
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			// Config values often pick up a trailing newline from
			// YAML block scalars.
			password, err := OpenPassword(ciphertext+"\n", identityFile)
			if err != nil {
				t.Fatalf("OpenPassword: %v", err)
			}
			if password != test.want {
				t.Errorf("password = %q, want %q", password, test.want)
			}
		})
	}
}

func TestOpenPasswordMissingIdentityFile(t *testing.T) {
	t.Parallel()

	pair := keypair(t)
	ciphertext, err := Encrypt([]byte("x"), []string{pair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := OpenPassword(ciphertext, filepath.Join(t.TempDir(), "missing.key")); err == nil {
		t.Fatal("OpenPassword with a missing identity file succeeded")
	}
}
