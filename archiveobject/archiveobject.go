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

// Package archiveobject defines the tagged union of archived object
// variants that flow through the inventory, removability, and recovery
// bundle packages, along with their canonical serialization and SWHID
// derivation.
package archiveobject

import (
	"crypto/sha1"
	"fmt"
	"sort"
	"time"

	"github.com/dagarchive/alter/swhid"
)

// ValidationError reports a malformed archived object.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "archiveobject: " + e.Msg }

// Status describes the availability of a content blob.
type Status int

const (
	Visible Status = iota
	Absent
	Hidden
)

// DirEntryType tags a directory entry's target kind.
type DirEntryType int

const (
	EntryFile DirEntryType = iota
	EntryDir
	EntryRev
)

// Content is a content blob's identity, optionally carrying the raw bytes.
type Content struct {
	SHA1      [20]byte
	SHA1Git   [20]byte
	SHA256    [32]byte
	Length    int64
	Status    Status
	Data      []byte // nil unless fetched with data
	HasData   bool
}

func (c *Content) SWHID() swhid.SWHID {
	return swhid.New(swhid.Content, swhid.ObjectID(c.SHA1Git))
}

func (c *Content) UniqueKey() string { return c.SWHID().String() }

// SkippedContent is a content identity without a retrievable blob.
type SkippedContent struct {
	SHA1Git  [20]byte
	Length   int64
	Reason   string
	HasHashes bool
}

func (s *SkippedContent) SWHID() swhid.SWHID {
	return swhid.New(swhid.Content, swhid.ObjectID(s.SHA1Git))
}

func (s *SkippedContent) UniqueKey() string {
	return fmt.Sprintf("%s_%d", s.SWHID(), s.Length)
}

// DirEntry is one (name, perms, type, target) entry of a Directory.
type DirEntry struct {
	Name   []byte
	Perms  int
	Type   DirEntryType
	Target swhid.SWHID
}

// Directory is an ordered set of named entries, each pointing at a
// content, sub-directory, or revision (submodule).
type Directory struct {
	ID          [20]byte
	Entries     []DirEntry
	RawManifest []byte // non-nil for non-canonical git trees
}

func (d *Directory) SWHID() swhid.SWHID {
	return swhid.New(swhid.Directory, swhid.ObjectID(d.ID))
}

func (d *Directory) UniqueKey() string { return d.SWHID().String() }

// Person is an author or committer identity.
type Person struct {
	Fullname []byte
	Name     []byte
	Email    []byte
}

// Revision is a commit: root directory, parents, and commit metadata.
type Revision struct {
	ID        [20]byte
	Directory swhid.SWHID
	Parents   []swhid.SWHID
	Author    Person
	Committer Person
	Date      *time.Time
	Committed *time.Time
	Message   []byte
}

func (r *Revision) SWHID() swhid.SWHID {
	return swhid.New(swhid.Revision, swhid.ObjectID(r.ID))
}

func (r *Revision) UniqueKey() string { return r.SWHID().String() }

// Release is a named, optionally signed pointer to another object.
type Release struct {
	ID         [20]byte
	Name       []byte
	Target     swhid.SWHID
	TargetType swhid.ObjectType
	Tagger     *Person
	Date       *time.Time
	Message    []byte
}

func (r *Release) SWHID() swhid.SWHID {
	return swhid.New(swhid.Release, swhid.ObjectID(r.ID))
}

func (r *Release) UniqueKey() string { return r.SWHID().String() }

// Branch is one target of a Snapshot, possibly an alias to another branch.
type Branch struct {
	TargetType string // "content", "directory", "revision", "release", "alias", "snapshot"
	Target     []byte // SWHID object_id bytes, or the aliased branch name
}

// Snapshot pins the full set of branches an origin exposed at a visit.
type Snapshot struct {
	ID       [20]byte
	Branches map[string]*Branch // nil Branch value means a dangling branch
}

func (s *Snapshot) SWHID() swhid.SWHID {
	return swhid.New(swhid.Snapshot, swhid.ObjectID(s.ID))
}

func (s *Snapshot) UniqueKey() string { return s.SWHID().String() }

// Origin is a crawled software location; its SWHID is derived from its URL.
type Origin struct {
	URL string
}

func (o *Origin) ID() [20]byte {
	return sha1.Sum([]byte(o.URL))
}

func (o *Origin) SWHID() swhid.SWHID {
	return swhid.New(swhid.Origin, swhid.ObjectID(o.ID()))
}

func (o *Origin) UniqueKey() string { return o.SWHID().String() }

// OriginVisit records a single crawl attempt of an origin.
type OriginVisit struct {
	OriginURL string
	Visit     int64
	Date      time.Time
	Type      string
}

func (v *OriginVisit) UniqueKey() string {
	return fmt.Sprintf("%s_%d", v.OriginURL, v.Visit)
}

// OriginVisitStatus is a point-in-time observation of an OriginVisit.
type OriginVisitStatus struct {
	OriginURL string
	Visit     int64
	Date      time.Time
	Status    string
	Snapshot  *[20]byte // nil if none recorded yet
}

func (s *OriginVisitStatus) UniqueKey() string {
	return fmt.Sprintf("%s_%d_%s", s.OriginURL, s.Visit, s.Date.UTC().Format(time.RFC3339Nano))
}

// MetadataContext locates where a RawExtrinsicMetadata record was found.
type MetadataContext struct {
	Origin   string
	Visit    *int64
	Snapshot *swhid.SWHID
	Release  *swhid.SWHID
	Revision *swhid.SWHID
	Path     []byte
}

// RawExtrinsicMetadata is opaque metadata discovered about a target object.
type RawExtrinsicMetadata struct {
	ID            [20]byte
	Target        swhid.SWHID
	Authority     string
	Fetcher       string
	DiscoveryDate time.Time
	Format        string
	Metadata      []byte
	Context       *MetadataContext
}

func (m *RawExtrinsicMetadata) SWHID() swhid.SWHID {
	return swhid.New(swhid.RawExtrinsicMetadata, swhid.ObjectID(m.ID))
}

func (m *RawExtrinsicMetadata) UniqueKey() string { return m.SWHID().String() }

// ExtID binds an external identifier namespace to a target SWHID.
type ExtID struct {
	ExtIDType string
	ExtIDBody []byte
	Target    swhid.SWHID
	Version   int
}

// ID derives ExtID's self-identifying hash from its canonical fields.
func (e *ExtID) ID() [20]byte {
	h := sha1.New()
	fmt.Fprintf(h, "extid %s %d %s %d", e.ExtIDType, e.Version, e.Target, len(e.ExtIDBody))
	h.Write(e.ExtIDBody)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (e *ExtID) SWHID() swhid.SWHID {
	return swhid.New(swhid.ExtID, swhid.ObjectID(e.ID()))
}

func (e *ExtID) UniqueKey() string { return e.SWHID().String() }

// Object is any archived object that can be placed in a Subgraph vertex
// and serialized into a recovery bundle entry. Every variant above
// implements it except the non-SWHID-addressed OriginVisit and
// OriginVisitStatus, which are keyed by UniqueKey alone and are never
// placed in the subgraph: the bundle writer fetches them from storage
// for each Origin it backs up.
type Object interface {
	SWHID() swhid.SWHID
	UniqueKey() string
}

var (
	_ Object = (*Content)(nil)
	_ Object = (*SkippedContent)(nil)
	_ Object = (*Directory)(nil)
	_ Object = (*Revision)(nil)
	_ Object = (*Release)(nil)
	_ Object = (*Snapshot)(nil)
	_ Object = (*Origin)(nil)
	_ Object = (*RawExtrinsicMetadata)(nil)
	_ Object = (*ExtID)(nil)
)

// OutboundTargets returns the SWHIDs an object directly references, in
// the order the inventory builder and bundle writer should visit them.
func OutboundTargets(o Object) []swhid.SWHID {
	switch v := o.(type) {
	case *Directory:
		out := make([]swhid.SWHID, 0, len(v.Entries))
		for _, e := range v.Entries {
			out = append(out, e.Target)
		}
		return out
	case *Revision:
		out := make([]swhid.SWHID, 0, 1+len(v.Parents))
		out = append(out, v.Directory)
		out = append(out, v.Parents...)
		return out
	case *Release:
		return []swhid.SWHID{v.Target}
	case *Snapshot:
		names := make([]string, 0, len(v.Branches))
		for name := range v.Branches {
			names = append(names, name)
		}
		sort.Strings(names)
		var out []swhid.SWHID
		for _, name := range names {
			b := v.Branches[name]
			if b == nil || b.TargetType == "alias" {
				continue
			}
			var id swhid.ObjectID
			copy(id[:], b.Target)
			t, ok := branchObjectType(b.TargetType)
			if !ok {
				continue
			}
			out = append(out, swhid.New(t, id))
		}
		return out
	case *RawExtrinsicMetadata:
		return []swhid.SWHID{v.Target}
	case *ExtID:
		return []swhid.SWHID{v.Target}
	default:
		return nil
	}
}

func branchObjectType(targetType string) (swhid.ObjectType, bool) {
	switch targetType {
	case "content":
		return swhid.Content, true
	case "directory":
		return swhid.Directory, true
	case "revision":
		return swhid.Revision, true
	case "release":
		return swhid.Release, true
	case "snapshot":
		return swhid.Snapshot, true
	default:
		return 0, false
	}
}
