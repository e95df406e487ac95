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

// RawIdentityKeySize is the width of an X25519 identity's raw scalar,
// the "object decryption key" secretsharing splits across holders.
const RawIdentityKeySize = 32

const identityHRP = "age-secret-key-"

// IdentityRawBytes extracts the 32 raw scalar bytes backing id, by
// bech32-decoding its textual "AGE-SECRET-KEY-1..." form. filippo.io/age
// does not expose the scalar through its own API, only the
// identity/recipient textual encodings, so this package speaks bech32
// directly at exactly the one seam secretsharing needs: splitting and
// later reassembling the same 32 bytes without ever persisting them.
func IdentityRawBytes(id *age.X25519Identity) ([]byte, error) {
	return bech32Decode(identityHRP, id.String())
}

// IdentityFromRawBytes is IdentityRawBytes' inverse: it re-encodes raw
// bytes (typically the output of secretsharing.RecoverObjectDecryptionKey)
// into an age identity string and parses it back into an
// *age.X25519Identity.
func IdentityFromRawBytes(raw []byte) (*age.X25519Identity, error) {
	if len(raw) != RawIdentityKeySize {
		return nil, fmt.Errorf("ageseal: object decryption key must be %d bytes, got %d", RawIdentityKeySize, len(raw))
	}
	encoded, err := bech32Encode(identityHRP, raw)
	if err != nil {
		return nil, err
	}
	return age.ParseX25519Identity(strings.ToUpper(encoded))
}

// --- bech32 (BIP-173), used only for the identity-string <-> raw-bytes
// round trip above; age's recipient/identity encodings are bech32, not
// bech32m. ---

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var bech32CharsetRev = func() map[byte]int {
	m := make(map[byte]int, len(bech32Charset))
	for i := 0; i < len(bech32Charset); i++ {
		m[bech32Charset[i]] = i
	}
	return m
}()

func bech32Polymod(values []int) int {
	gen := []int{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := 1
	for _, v := range values {
		b := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ v
		for i := 0; i < 5; i++ {
			if (b>>uint(i))&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func bech32HRPExpand(hrp string) []int {
	out := make([]int, 0, len(hrp)*2+1)
	for i := 0; i < len(hrp); i++ {
		out = append(out, int(hrp[i])>>5)
	}
	out = append(out, 0)
	for i := 0; i < len(hrp); i++ {
		out = append(out, int(hrp[i])&31)
	}
	return out
}

func bech32CreateChecksum(hrp string, data []int) []int {
	values := append(bech32HRPExpand(hrp), data...)
	values = append(values, []int{0, 0, 0, 0, 0, 0}...)
	mod := bech32Polymod(values) ^ 1
	checksum := make([]int, 6)
	for i := 0; i < 6; i++ {
		checksum[i] = (mod >> uint(5*(5-i))) & 31
	}
	return checksum
}

func bech32VerifyChecksum(hrp string, data []int) bool {
	return bech32Polymod(append(bech32HRPExpand(hrp), data...)) == 1
}

// convertBits repacks a slice of fromBits-wide groups into toBits-wide
// groups, padding the tail when pad is set.
func convertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	acc := 0
	bits := uint(0)
	var out []byte
	maxv := (1 << toBits) - 1
	for _, b := range data {
		v := int(b)
		if v>>fromBits != 0 {
			return nil, fmt.Errorf("ageseal: invalid bech32 data byte")
		}
		acc = (acc << fromBits) | v
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			out = append(out, byte((acc>>bits)&maxv))
		}
	}
	if pad {
		if bits > 0 {
			out = append(out, byte((acc<<(toBits-bits))&maxv))
		}
	} else if bits >= fromBits || (acc<<(toBits-bits))&maxv != 0 {
		return nil, fmt.Errorf("ageseal: invalid bech32 padding")
	}
	return out, nil
}

func bech32Encode(hrp string, data []byte) (string, error) {
	values, err := convertBits(data, 8, 5, true)
	if err != nil {
		return "", err
	}
	ints := make([]int, len(values))
	for i, v := range values {
		ints[i] = int(v)
	}
	checksum := bech32CreateChecksum(hrp, ints)
	ints = append(ints, checksum...)

	var sb strings.Builder
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, v := range ints {
		sb.WriteByte(bech32Charset[v])
	}
	return sb.String(), nil
}

func bech32Decode(hrp, s string) ([]byte, error) {
	lower := strings.ToLower(s)
	if strings.ToUpper(s) == s {
		lower = strings.ToLower(s)
	} else if strings.ToLower(s) != s {
		return nil, fmt.Errorf("ageseal: mixed-case bech32 string")
	}
	sep := strings.LastIndexByte(lower, '1')
	if sep < 1 || sep+7 > len(lower) {
		return nil, fmt.Errorf("ageseal: malformed bech32 string")
	}
	gotHRP := lower[:sep]
	if gotHRP != hrp {
		return nil, fmt.Errorf("ageseal: unexpected bech32 prefix %q, want %q", gotHRP, hrp)
	}
	data := make([]int, 0, len(lower)-sep-1)
	for i := sep + 1; i < len(lower); i++ {
		v, ok := bech32CharsetRev[lower[i]]
		if !ok {
			return nil, fmt.Errorf("ageseal: invalid bech32 character %q", lower[i])
		}
		data = append(data, v)
	}
	if !bech32VerifyChecksum(gotHRP, data) {
		return nil, fmt.Errorf("ageseal: bad bech32 checksum")
	}
	payload := data[:len(data)-6]
	bytesPayload := make([]byte, len(payload))
	for i, v := range payload {
		bytesPayload[i] = byte(v)
	}
	return convertBits(bytesPayload, 5, 8, false)
}
