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

// Package secretsharing splits a recovery bundle's object decryption key
// across a two-level group of holders, so that reconstructing it needs a
// threshold number of groups, each itself reached by a threshold number
// of members within that group — the SLIP-0039 shape, built here from
// the two primitives the rest of the ecosystem actually ships: Shamir's
// secret sharing (hashicorp/vault/shamir) and BIP-39 mnemonic encoding
// (tyler-smith/go-bip39). Every member mnemonic is self-describing: its
// payload carries the group index and both threshold values it was split
// under, so recovering the key needs only the shares themselves, not a
// copy of the SecretSharing configuration that produced them.
package secretsharing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/vault/shamir"
	"github.com/tyler-smith/go-bip39"

	"github.com/dagarchive/alter/ageseal"
	"github.com/dagarchive/alter/config"
)

// ObjectDecryptionKeySize is the size in bytes of a recovery bundle's
// object decryption key: the private half of the freshly generated
// X25519 keypair every entry is sealed to.
const ObjectDecryptionKeySize = 32

// shareHeaderSize is the length of the self-describing prefix stored in
// every member mnemonic's payload, ahead of the raw Shamir share bytes:
// one byte each for the group index, that group's threshold, and the
// number of groups required overall.
const shareHeaderSize = 3

// Group is one named group of holders within a SecretSharing scheme.
type Group struct {
	Name                  string
	MinimumRequiredShares int
	RecipientKeys         map[string]string // identifier -> age public key or YubiKey identifier
}

// SecretSharing is a parsed two-level secret-sharing configuration.
// Groups is kept in a stable, sorted-by-name order so a group's position
// in the slice is a stable "group index" across generate and recover.
type SecretSharing struct {
	MinimumRequiredGroups int
	Groups                []Group
}

// FromConfig builds a SecretSharing from its YAML-loaded configuration,
// rejecting identifiers or public keys reused across groups.
func FromConfig(cfg config.SecretSharingConfig) (*SecretSharing, error) {
	names := make([]string, 0, len(cfg.Groups))
	for name := range cfg.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	ss := &SecretSharing{MinimumRequiredGroups: cfg.MinimumRequiredGroups}
	seenIdentifiers := make(map[string]bool)
	seenKeys := make(map[string]bool)
	for _, name := range names {
		gc := cfg.Groups[name]
		group := Group{Name: name, MinimumRequiredShares: gc.MinimumRequiredShares, RecipientKeys: gc.RecipientKeys}
		for id, key := range gc.RecipientKeys {
			if seenIdentifiers[id] {
				return nil, fmt.Errorf("secretsharing: duplicate share identifier %q", id)
			}
			seenIdentifiers[id] = true
			if seenKeys[key] {
				return nil, fmt.Errorf("secretsharing: duplicate recipient public key %q", key)
			}
			seenKeys[key] = true
		}
		ss.Groups = append(ss.Groups, group)
	}
	if len(ss.Groups) == 0 {
		return nil, fmt.Errorf("secretsharing: no groups configured")
	}
	if ss.MinimumRequiredGroups < 1 || ss.MinimumRequiredGroups > len(ss.Groups) {
		return nil, fmt.Errorf("secretsharing: minimum_required_groups %d out of range for %d groups", ss.MinimumRequiredGroups, len(ss.Groups))
	}
	for _, g := range ss.Groups {
		if g.MinimumRequiredShares < 1 || g.MinimumRequiredShares > len(g.RecipientKeys) {
			return nil, fmt.Errorf("secretsharing: group %q minimum_required_shares %d out of range for %d members", g.Name, g.MinimumRequiredShares, len(g.RecipientKeys))
		}
	}
	return ss, nil
}

// ShareIDs returns every holder identifier across all groups.
func (s *SecretSharing) ShareIDs() []string {
	var ids []string
	for _, g := range s.Groups {
		for id := range g.RecipientKeys {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// GenerateEncryptedShares splits objectDecryptionKey into a mnemonic
// share for every holder, each age-encrypted to that holder's public key:
// binary age format for X25519 keys, ASCII-armored for YubiKey
// identifiers (sealed through the age CLI). The X25519 ciphertext is
// stored as is, not armored. bundleLabel is folded into errors only, for operator
// diagnostics.
func (s *SecretSharing) GenerateEncryptedShares(bundleLabel string, objectDecryptionKey []byte) (map[string]string, error) {
	if len(objectDecryptionKey) != ObjectDecryptionKeySize {
		return nil, fmt.Errorf("secretsharing: object decryption key must be %d bytes, got %d", ObjectDecryptionKeySize, len(objectDecryptionKey))
	}
	if s.MinimumRequiredGroups > 255 || len(s.Groups) > 255 {
		return nil, fmt.Errorf("secretsharing: too many groups to encode")
	}
	groupShares, err := splitThreshold(objectDecryptionKey, len(s.Groups), s.MinimumRequiredGroups)
	if err != nil {
		return nil, fmt.Errorf("secretsharing: splitting %q across groups: %w", bundleLabel, err)
	}

	result := make(map[string]string)
	for gi, group := range s.Groups {
		if group.MinimumRequiredShares > 255 {
			return nil, fmt.Errorf("secretsharing: group %q threshold too large to encode", group.Name)
		}
		ids := make([]string, 0, len(group.RecipientKeys))
		for id := range group.RecipientKeys {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		memberShares, err := splitThreshold(groupShares[gi], len(ids), group.MinimumRequiredShares)
		if err != nil {
			return nil, fmt.Errorf("secretsharing: splitting group %q of %q: %w", group.Name, bundleLabel, err)
		}

		for mi, id := range ids {
			payload := encodeSharePayload(gi, group.MinimumRequiredShares, s.MinimumRequiredGroups, memberShares[mi])
			mnemonic, err := payloadToMnemonic(payload)
			if err != nil {
				return nil, fmt.Errorf("secretsharing: encoding mnemonic for %q: %w", id, err)
			}
			sealed, err := ageseal.SealForHolder([]byte(mnemonic), group.RecipientKeys[id])
			if err != nil {
				return nil, fmt.Errorf("secretsharing: sealing share for %q: %w", id, err)
			}
			result[id] = string(sealed)
		}
	}
	return result, nil
}

// HolderKey is a holder's identifier paired with the age secret key that
// decrypts their recovery share.
type HolderKey struct {
	Identifier string
	SecretKey  string
}

// SecretRecoveryError reports that too few shares were available to
// reconstruct the object decryption key.
type SecretRecoveryError struct {
	Recovered int
	Required  int
}

func (e *SecretRecoveryError) Error() string {
	return fmt.Sprintf("secretsharing: recovered shares from only %d group(s), need %d", e.Recovered, e.Required)
}

// groupShareSet accumulates the raw Shamir shares seen so far for one
// group, along with the thresholds every member's payload claims —
// every member of a properly generated group agrees on both, so the
// first payload seen for a group settles them.
type groupShareSet struct {
	threshold      int
	groupsRequired int
	shares         [][]byte
}

// RecoverObjectDecryptionKey reconstructs the object decryption key from
// a map of identifier -> age-encrypted mnemonic, given holder keys able
// to decrypt some of them plus any mnemonics already known in plaintext
// (e.g. read back from an operator over the phone). No SecretSharing
// configuration is needed: each share's mnemonic carries its own group
// index and threshold values.
func RecoverObjectDecryptionKey(encryptedShares map[string]string, holderKeys []HolderKey, knownMnemonics []string) ([]byte, error) {
	mnemonics := append([]string(nil), knownMnemonics...)
	for _, hk := range holderKeys {
		ciphertext, ok := encryptedShares[hk.Identifier]
		if !ok {
			continue
		}
		mnemonic, err := openShare(ciphertext, hk.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("secretsharing: decrypting share for %q: %w", hk.Identifier, err)
		}
		mnemonics = append(mnemonics, mnemonic)
	}

	groups := make(map[int]*groupShareSet)
	for _, mnemonic := range mnemonics {
		payload, err := mnemonicToPayload(mnemonic)
		if err != nil {
			return nil, fmt.Errorf("secretsharing: decoding mnemonic: %w", err)
		}
		gi, gThreshold, groupsRequired, share := decodeSharePayload(payload)
		gs, ok := groups[gi]
		if !ok {
			gs = &groupShareSet{threshold: gThreshold, groupsRequired: groupsRequired}
			groups[gi] = gs
		}
		gs.shares = append(gs.shares, share)
	}

	var groupsRequired int
	var recoveredGroupShares [][]byte
	for _, gs := range groups {
		groupsRequired = gs.groupsRequired
		if len(gs.shares) < gs.threshold {
			continue
		}
		groupSecret, err := combineThreshold(gs.shares[:gs.threshold], gs.threshold)
		if err != nil {
			return nil, fmt.Errorf("secretsharing: combining group shares: %w", err)
		}
		recoveredGroupShares = append(recoveredGroupShares, groupSecret)
	}

	if groupsRequired == 0 || len(recoveredGroupShares) < groupsRequired {
		return nil, &SecretRecoveryError{Recovered: len(recoveredGroupShares), Required: groupsRequired}
	}

	key, err := combineThreshold(recoveredGroupShares[:groupsRequired], groupsRequired)
	if err != nil {
		return nil, fmt.Errorf("secretsharing: combining group shares: %w", err)
	}
	return key, nil
}

// splitThreshold splits secret into parts shares needing threshold of
// them to reconstruct. hashicorp/vault/shamir refuses threshold < 2 (an
// (n-1)-degree polynomial needs at least two points to be meaningful), so
// a threshold of 1 — "any single holder suffices" — is handled directly:
// every share is the secret itself tagged with a synthetic index so its
// framing still matches the threshold >= 2 case.
func splitThreshold(secret []byte, parts, threshold int) ([][]byte, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("secretsharing: threshold must be at least 1")
	}
	if threshold == 1 {
		shares := make([][]byte, parts)
		for i := 0; i < parts; i++ {
			share := make([]byte, len(secret)+1)
			copy(share, secret)
			share[len(secret)] = byte(i + 1)
			shares[i] = share
		}
		return shares, nil
	}
	return shamir.Split(secret, parts, threshold)
}

// combineThreshold is splitThreshold's inverse.
func combineThreshold(shares [][]byte, threshold int) ([]byte, error) {
	if threshold == 1 {
		if len(shares) == 0 {
			return nil, fmt.Errorf("secretsharing: no shares to combine")
		}
		share := shares[0]
		if len(share) < 1 {
			return nil, fmt.Errorf("secretsharing: malformed share")
		}
		return share[:len(share)-1], nil
	}
	return shamir.Combine(shares)
}

func openShare(armoredCiphertext, secretKeyString string) (string, error) {
	identity, err := ageseal.ParseX25519OrPluginIdentity(secretKeyString)
	if err != nil {
		return "", err
	}
	plaintext, err := identity.Open([]byte(armoredCiphertext))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// encodeSharePayload prepends the group index and both threshold values
// to a raw Shamir share.
func encodeSharePayload(groupIndex, groupThreshold, groupsRequired int, share []byte) []byte {
	header := []byte{byte(groupIndex), byte(groupThreshold), byte(groupsRequired)}
	return append(header, share...)
}

func decodeSharePayload(payload []byte) (groupIndex, groupThreshold, groupsRequired int, share []byte) {
	groupIndex = int(payload[0])
	groupThreshold = int(payload[1])
	groupsRequired = int(payload[2])
	share = payload[shareHeaderSize:]
	return
}

// bip39EntropySizes are the only entropy lengths (in bytes) the BIP-39
// wordlist encoding accepts.
var bip39EntropySizes = []int{16, 20, 24, 28, 32}

// maxBip39ChunkPayload is the largest chunk (ahead of its own one-byte
// length prefix) that still fits the biggest standard BIP-39 entropy
// size, so a 32-byte object decryption key split twice over (group,
// then member) still encodes cleanly.
const maxBip39ChunkPayload = 31

// payloadToMnemonic splits payload into chunks small enough to each fit
// a single BIP-39 phrase (framed by a one-byte length prefix and padded
// to the smallest valid entropy size), then joins the phrases with
// newlines. A two-level Shamir share of a 32-byte key needs two phrases;
// smaller shares fit in one.
func payloadToMnemonic(payload []byte) (string, error) {
	var phrases []string
	for len(payload) > 0 {
		n := len(payload)
		if n > maxBip39ChunkPayload {
			n = maxBip39ChunkPayload
		}
		chunk := payload[:n]
		payload = payload[n:]

		framed := append([]byte{byte(len(chunk))}, chunk...)
		size, err := smallestBip39Size(len(framed))
		if err != nil {
			return "", err
		}
		padded := make([]byte, size)
		copy(padded, framed)
		phrase, err := bip39.NewMnemonic(padded)
		if err != nil {
			return "", err
		}
		phrases = append(phrases, phrase)
	}
	return strings.Join(phrases, "\n"), nil
}

func mnemonicToPayload(mnemonic string) ([]byte, error) {
	var out []byte
	for _, phrase := range strings.Split(strings.TrimSpace(mnemonic), "\n") {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		entropy, err := bip39.EntropyFromMnemonic(phrase)
		if err != nil {
			return nil, err
		}
		if len(entropy) == 0 {
			return nil, fmt.Errorf("secretsharing: empty mnemonic entropy")
		}
		length := int(entropy[0])
		if length+1 > len(entropy) {
			return nil, fmt.Errorf("secretsharing: corrupt mnemonic framing")
		}
		out = append(out, entropy[1:1+length]...)
	}
	return out, nil
}

func smallestBip39Size(n int) (int, error) {
	for _, size := range bip39EntropySizes {
		if n <= size {
			return size, nil
		}
	}
	return 0, fmt.Errorf("secretsharing: payload of %d bytes too large for BIP-39 encoding", n)
}
