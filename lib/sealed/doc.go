// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed opens age-encrypted secrets for the relay. It wraps
// filippo.io/age for the few operations the relay needs: decrypt a
// sealed destination password with an identity file, and (for
// operators and tests) generate keypairs and seal a value.
//
// Ciphertext is base64-encoded so it can sit in a YAML or JSON
// configuration value. [Encrypt] takes plaintext and returns base64;
// [Decrypt] takes base64 and returns plaintext.
//
// Key exports:
//
//   - [OpenPassword] -- decrypt destination.password_sealed
//   - [LoadIdentities] -- read an age identity file
//   - [Encrypt] / [Decrypt] -- base64 age ciphertext
//   - [GenerateKeypair] -- new age x25519 keypair
package sealed
