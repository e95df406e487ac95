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

// Package ageseal wraps filippo.io/age as an opaque encryption pipe:
// encrypt(public_key, plaintext) -> ciphertext and its dual, plus
// identity-file and YubiKey-plugin variants for decrypt. Every
// recovery bundle entry and every secret share mnemonic is sealed
// through this package.
package ageseal

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"filippo.io/age"
)

// Identity is a holder's age identity: either a raw X25519 keypair half
// or a YubiKey-PIV-backed identity recognizable by the
// "YubiKey serial <N> slot <M>" prefix.
type Identity struct {
	age.Identity
	PublicKey string
}

// GenerateX25519Identity creates a fresh X25519 keypair, the object
// decryption key's own asymmetric keypair.
func GenerateX25519Identity() (*age.X25519Identity, error) {
	return age.GenerateX25519Identity()
}

// Recipient parses a public-key text into an age.Recipient. Raw
// X25519 public keys start with "age1". "YubiKey serial <N> slot <M>"
// identifiers are not resolvable to an in-process age.Recipient at all
// — the plugin protocol only speaks through the age CLI — so callers
// sealing to those must use SealForHolder instead, which dispatches
// YubiKey identifiers to the subprocess path.
func Recipient(publicKey string) (age.Recipient, error) {
	if strings.HasPrefix(publicKey, "age1") {
		return age.ParseX25519Recipient(publicKey)
	}
	if IsYubiKeyIdentifier(publicKey) {
		return nil, fmt.Errorf("ageseal: %q is a YubiKey identifier, use SealForHolder", publicKey)
	}
	return nil, fmt.Errorf("ageseal: unrecognized public key %q", publicKey)
}

// IsYubiKeyIdentifier reports whether identifier names a hardware-backed
// identity, per the "YubiKey serial <N> slot <M>" convention.
func IsYubiKeyIdentifier(identifier string) bool {
	return strings.HasPrefix(identifier, "YubiKey serial ")
}

// ParseYubiKeyIdentifier extracts the serial and slot from a
// "YubiKey serial <N> slot <M>" identifier.
func ParseYubiKeyIdentifier(identifier string) (serial, slot int, ok bool) {
	var s, m int
	n, err := fmt.Sscanf(identifier, "YubiKey serial %d slot %d", &s, &m)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	return s, m, true
}

// Encrypt seals plaintext to every recipient, returning the age-format
// ciphertext.
func Encrypt(plaintext []byte, recipients ...age.Recipient) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipients...)
	if err != nil {
		return nil, fmt.Errorf("ageseal: encrypt: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("ageseal: encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("ageseal: encrypt: %w", err)
	}
	return buf.Bytes(), nil
}

// Decrypt opens an age-format ciphertext with any of the given
// identities.
func Decrypt(ciphertext []byte, identities ...age.Identity) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identities...)
	if err != nil {
		return nil, fmt.Errorf("ageseal: decrypt: %w", err)
	}
	return io.ReadAll(r)
}

// ListYubiKeyIdentities shells out to age-plugin-yubikey --list-all to
// enumerate (identifier, plugin-identity-string) pairs for every
// attached hardware token. Besides this, the package runs a subprocess
// only for sealing to and opening with YubiKey identities, through the
// age CLI (plugin.go).
func ListYubiKeyIdentities() ([]YubiKeyIdentity, error) {
	cmd := exec.Command("age-plugin-yubikey", "--list-all")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ageseal: age-plugin-yubikey --list-all: %w", err)
	}
	return parseYubiKeyList(out)
}

// YubiKeyIdentity is one entry of ListYubiKeyIdentities' output.
type YubiKeyIdentity struct {
	Serial   int
	Slot     int
	Identity string // the plugin identity string, e.g. "AGE-PLUGIN-YUBIKEY-..."
}

func (y YubiKeyIdentity) Label() string {
	return fmt.Sprintf("YubiKey serial %d slot %d", y.Serial, y.Slot)
}

func parseYubiKeyList(out []byte) ([]YubiKeyIdentity, error) {
	var result []YubiKeyIdentity
	var pendingSerial, pendingSlot int
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "#") && strings.Contains(line, "Serial:"):
			fields := strings.Fields(line)
			for i, field := range fields {
				n, err := strconv.Atoi(strings.TrimSuffix(field, ","))
				if err != nil {
					continue
				}
				if i > 0 && strings.Contains(fields[i-1], "Serial") {
					pendingSerial = n
				} else if i > 0 && strings.Contains(fields[i-1], "Slot") {
					pendingSlot = n
				}
			}
		case strings.HasPrefix(line, "AGE-PLUGIN-YUBIKEY-"):
			result = append(result, YubiKeyIdentity{Serial: pendingSerial, Slot: pendingSlot, Identity: line})
		}
	}
	return result, nil
}
