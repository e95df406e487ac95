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

// Package recoverybundle implements the encrypted, versioned, zip-structured
// archive a removal seals its deleted objects into: a writer
// (RecoveryBundleCreator), a reader (Bundle, returned by Open), and Rollover, which
// re-splits an existing bundle's object decryption key under a new
// holder configuration without ever writing it to disk in cleartext.
package recoverybundle

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the manifest schema version this writer produces.
// Version 2 adds extids/ and raw_extrinsic_metadata/ entries over
// version 1; both remain readable.
const CurrentVersion = 2

// Manifest is a recovery bundle's plaintext, last-written zip entry.
type Manifest struct {
	Version             int               `yaml:"version"`
	RemovalIdentifier    string            `yaml:"removal_identifier"`
	Created              time.Time         `yaml:"created"`
	SWHIDs                []string          `yaml:"swhids"`
	DecryptionKeyShares  map[string]string `yaml:"decryption_key_shares"`
	Reason               string            `yaml:"reason,omitempty"`
	Expire               *time.Time        `yaml:"expire,omitempty"`
}

// Dump renders the manifest as the plain UTF-8 YAML stored at
// manifest.yml, 2-space indented like the rest of the domain's
// canonical serialization.
func (m *Manifest) Dump() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("recoverybundle: dumping manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("recoverybundle: dumping manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadManifest parses manifest.yml's contents.
func LoadManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("recoverybundle: parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest invariants every bundle must satisfy: a
// known version, a removal identifier, at least one SWHID, and at
// least one decryption key share.
func (m *Manifest) Validate() error {
	if m.Version != 1 && m.Version != 2 {
		return &ValidationError{Msg: fmt.Sprintf("manifest version must be 1 or 2, got %d", m.Version)}
	}
	if m.RemovalIdentifier == "" {
		return &ValidationError{Msg: "manifest removal_identifier must not be empty"}
	}
	if len(m.SWHIDs) == 0 {
		return &ValidationError{Msg: "manifest swhids must not be empty"}
	}
	if len(m.DecryptionKeyShares) == 0 {
		return &ValidationError{Msg: "manifest decryption_key_shares must not be empty"}
	}
	if m.Expire != nil && m.Expire.Before(time.Now()) {
		return &ValidationError{Msg: "manifest expire must not be in the past"}
	}
	return nil
}

// ShareIDs returns every share identifier carried in the manifest, sorted.
func (m *Manifest) ShareIDs() []string {
	ids := make([]string, 0, len(m.DecryptionKeyShares))
	for id := range m.DecryptionKeyShares {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
