// Copyright 2021 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package ageseal

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"filippo.io/age"
)

// PluginRecipient identifies a YubiKey-PIV-backed holder. It does not
// implement age.Recipient directly: the plugin's stanza-wrapping
// protocol is not exposed as a pure in-process library call, so sealing
// to it goes through SealForHolder's subprocess path instead, which
// treats the plugin as an opaque pipe.
type PluginRecipient struct {
	Identifier string // "YubiKey serial <N> slot <M>"
}

// NewPluginRecipient builds a recipient for a "YubiKey serial N slot M"
// identifier.
func NewPluginRecipient(identifier string) *PluginRecipient {
	return &PluginRecipient{Identifier: identifier}
}

// SealForHolder encrypts plaintext to a holder's public key, dispatching
// to the in-process X25519 path for raw age public keys and to the
// `age` subprocess for YubiKey identifiers.
func SealForHolder(plaintext []byte, publicKey string) ([]byte, error) {
	if IsYubiKeyIdentifier(publicKey) {
		return sealViaSubprocess(plaintext, publicKey)
	}
	recipient, err := age.ParseX25519Recipient(publicKey)
	if err != nil {
		return nil, fmt.Errorf("ageseal: %w", err)
	}
	return Encrypt(plaintext, recipient)
}

func sealViaSubprocess(plaintext []byte, identifier string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command("age", "-r", identifier, "-a")
	cmd.Stdin = bytes.NewReader(plaintext)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ageseal: age -r %q: %w: %s", identifier, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// PluginIdentity wraps a plugin identity string returned by
// ListYubiKeyIdentities, used to decrypt a share sealed to the matching
// hardware token.
type PluginIdentity struct {
	IdentityString string
}

// NewPluginIdentity wraps a plugin identity string.
func NewPluginIdentity(identityString string) *PluginIdentity {
	return &PluginIdentity{IdentityString: identityString}
}

// OpenViaSubprocess decrypts ciphertext by piping it through the age CLI
// configured with this plugin identity, which in turn invokes
// age-plugin-yubikey and may prompt for a PIN/touch on the token.
func (p *PluginIdentity) OpenViaSubprocess(ciphertext []byte) ([]byte, error) {
	tmp, err := writeTempIdentity(p.IdentityString)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command("age", "-d", "-i", tmp)
	cmd.Stdin = bytes.NewReader(ciphertext)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ageseal: age -d -i: %w: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func writeTempIdentity(identityString string) (string, error) {
	f, err := os.CreateTemp("", "alter-yubikey-identity-*.txt")
	if err != nil {
		return "", fmt.Errorf("ageseal: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(identityString + "\n"); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("ageseal: %w", err)
	}
	if err := os.Chmod(f.Name(), 0o600); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("ageseal: %w", err)
	}
	return f.Name(), nil
}
