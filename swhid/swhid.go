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

// Package swhid implements the extended Software Heritage identifier: a
// tagged, content-addressed reference to an archived object.
package swhid

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ObjectType tags the kind of archived object an SWHID refers to.
type ObjectType int

const (
	Content ObjectType = iota
	Directory
	Revision
	Release
	Snapshot
	Origin
	RawExtrinsicMetadata
	ExtID
)

var typeTags = map[ObjectType]string{
	Content:              "cnt",
	Directory:            "dir",
	Revision:             "rev",
	Release:              "rel",
	Snapshot:             "snp",
	Origin:               "ori",
	RawExtrinsicMetadata: "emd",
	ExtID:                "ext",
}

var tagTypes = func() map[string]ObjectType {
	m := make(map[string]ObjectType, len(typeTags))
	for t, tag := range typeTags {
		m[tag] = t
	}
	return m
}()

func (t ObjectType) String() string {
	if tag, ok := typeTags[t]; ok {
		return tag
	}
	return "unknown"
}

// ParseObjectType is String's inverse, accepting either the three-letter
// SWHID tag ("cnt", "dir", ...) or the original spec's full object-kind
// name used in release/branch target_type fields ("content", "revision", ...).
func ParseObjectType(s string) (ObjectType, bool) {
	if t, ok := tagTypes[s]; ok {
		return t, true
	}
	switch s {
	case "content":
		return Content, true
	case "directory":
		return Directory, true
	case "revision":
		return Revision, true
	case "release":
		return Release, true
	case "snapshot":
		return Snapshot, true
	case "origin":
		return Origin, true
	case "raw_extrinsic_metadata":
		return RawExtrinsicMetadata, true
	case "extid":
		return ExtID, true
	default:
		return 0, false
	}
}

// orderRank implements the Origin, Snapshot, Release, Revision, Directory,
// Content, ExtID, RawExtrinsicMetadata traversal order used by
// Subgraph.SelectOrdered.
var orderRank = map[ObjectType]int{
	Origin:               0,
	Snapshot:             1,
	Release:              2,
	Revision:             3,
	Directory:            4,
	Content:              5,
	ExtID:                6,
	RawExtrinsicMetadata: 7,
}

// OrderRank returns this object type's position in the canonical top-down
// traversal order. Lower values come first.
func (t ObjectType) OrderRank() int {
	if r, ok := orderRank[t]; ok {
		return r
	}
	return len(orderRank)
}

// ValidationError reports a malformed SWHID.
type ValidationError struct {
	Input string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("swhid: invalid %q: %s", e.Input, e.Msg)
}

// ObjectID is the 20-byte cryptographic object identifier. For every
// object type except Origin it is recomputable from the object's
// canonical serialization; for Origin it is SHA1(url).
type ObjectID [20]byte

func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// SWHID is an extended Software Heritage identifier.
type SWHID struct {
	ObjectType ObjectType
	ObjectID   ObjectID
}

// New builds an SWHID from its components.
func New(t ObjectType, id ObjectID) SWHID {
	return SWHID{ObjectType: t, ObjectID: id}
}

// String renders the text form swh:1:<type>:<40-hex>.
func (s SWHID) String() string {
	return fmt.Sprintf("swh:1:%s:%s", s.ObjectType, s.ObjectID)
}

// Parse decodes the text form swh:1:<type>:<40-hex> into an SWHID.
func Parse(text string) (SWHID, error) {
	parts := strings.Split(text, ":")
	if len(parts) != 4 || parts[0] != "swh" || parts[1] != "1" {
		return SWHID{}, &ValidationError{Input: text, Msg: "expected swh:1:<type>:<hex>"}
	}
	t, ok := tagTypes[parts[2]]
	if !ok {
		return SWHID{}, &ValidationError{Input: text, Msg: "unknown object type " + parts[2]}
	}
	raw, err := hex.DecodeString(parts[3])
	if err != nil || len(raw) != 20 {
		return SWHID{}, &ValidationError{Input: text, Msg: "object id must be 40 hex characters"}
	}
	var id ObjectID
	copy(id[:], raw)
	return SWHID{ObjectType: t, ObjectID: id}, nil
}

// MustParse is like Parse but panics on error; intended for literals in
// tests and fixtures.
func MustParse(text string) SWHID {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

// MarshalText implements encoding.TextMarshaler so SWHID round-trips
// through YAML/JSON as its text form.
func (s SWHID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SWHID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FilenameSegment substitutes ':' for '_', matching the recovery bundle's
// file-naming convention (e.g. swh_1_cnt_<hex>).
func (s SWHID) FilenameSegment() string {
	return strings.ReplaceAll(s.String(), ":", "_")
}

// SortByOrder sorts a slice of SWHIDs in the canonical object-type order.
// Within a type, objects are ordered by their hex object id for
// reproducibility.
func SortByOrder(swhids []SWHID) {
	sort.Slice(swhids, func(i, j int) bool {
		ri, rj := swhids[i].ObjectType.OrderRank(), swhids[j].ObjectType.OrderRank()
		if ri != rj {
			return ri < rj
		}
		return swhids[i].ObjectID.String() < swhids[j].ObjectID.String()
	})
}
