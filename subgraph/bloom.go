// Copyright 2020 The go-ethereum Authors
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

package subgraph

import (
	"encoding/binary"

	"github.com/dagarchive/alter/swhid"
	"github.com/steakknife/bloomfilter"
)

// swhidHasher adapts a SWHID's object id into the 64-bit hash the bloom
// library wants, mirroring the state-pruner's stateBloomHasher.
type swhidHasher []byte

func (f swhidHasher) Write(p []byte) (int, error) { panic("not implemented") }
func (f swhidHasher) Sum(b []byte) []byte         { panic("not implemented") }
func (f swhidHasher) Reset()                      {}
func (f swhidHasher) BlockSize() int               { return 0 }
func (f swhidHasher) Size() int                    { return 8 }
func (f swhidHasher) Sum64() uint64                { return binary.BigEndian.Uint64(f) }

// BloomIndex accelerates repeated "is this SWHID already a candidate"
// membership tests during removability analysis on large subgraphs.
// False positives are tolerated — they only cost one extra authoritative
// map lookup; false negatives are impossible by construction.
type BloomIndex struct {
	bloom *bloomfilter.Filter
}

// NewBloomIndex sizes a filter for the given expected vertex count.
func NewBloomIndex(expectedEntries uint64) (*BloomIndex, error) {
	if expectedEntries == 0 {
		expectedEntries = 1
	}
	bloom, err := bloomfilter.NewOptimal(expectedEntries, 0.001)
	if err != nil {
		return nil, err
	}
	return &BloomIndex{bloom: bloom}, nil
}

// Add records id as a member.
func (b *BloomIndex) Add(id swhid.SWHID) {
	oid := id.ObjectID
	b.bloom.Add(swhidHasher(oid[:]))
}

// MaybeContains reports whether id may be a member. false means
// definitely not a member; true means it is a member or a false positive.
func (b *BloomIndex) MaybeContains(id swhid.SWHID) bool {
	oid := id.ObjectID
	return b.bloom.Contains(swhidHasher(oid[:]))
}

// BuildBloomIndex populates a BloomIndex from every vertex currently in g.
func BuildBloomIndex(g *Subgraph) (*BloomIndex, error) {
	idx, err := NewBloomIndex(uint64(g.Len()))
	if err != nil {
		return nil, err
	}
	for id := range g.vertices {
		idx.Add(id)
	}
	return idx, nil
}
