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
	"fmt"
	"strings"

	"filippo.io/age"
)

// Opener decrypts age ciphertext sealed to a single holder's identity,
// regardless of whether that identity lives in a secret key string or a
// YubiKey hardware token reached through the plugin subprocess.
type Opener interface {
	Open(ciphertext []byte) ([]byte, error)
}

type x25519Opener struct {
	identity *age.X25519Identity
}

func (o *x25519Opener) Open(ciphertext []byte) ([]byte, error) {
	return Decrypt(ciphertext, o.identity)
}

type pluginOpener struct {
	identity *PluginIdentity
}

func (o *pluginOpener) Open(ciphertext []byte) ([]byte, error) {
	return o.identity.OpenViaSubprocess(ciphertext)
}

// ParseX25519OrPluginIdentity recognizes either a raw AGE-SECRET-KEY-1...
// identity or an AGE-PLUGIN-YUBIKEY-... plugin identity string and
// returns the matching Opener.
func ParseX25519OrPluginIdentity(secretKey string) (Opener, error) {
	secretKey = strings.TrimSpace(secretKey)
	if strings.HasPrefix(secretKey, "AGE-PLUGIN-YUBIKEY-") {
		return &pluginOpener{identity: NewPluginIdentity(secretKey)}, nil
	}
	identity, err := age.ParseX25519Identity(secretKey)
	if err != nil {
		return nil, fmt.Errorf("ageseal: %w", err)
	}
	return &x25519Opener{identity: identity}, nil
}
