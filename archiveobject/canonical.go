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

package archiveobject

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dagarchive/alter/swhid"
)

// ToDict renders an object into the key/value form the recovery bundle
// writer serializes. The result is a map, so MarshalCanonical emits its
// keys in sorted order, not in field-declaration order. It accepts any of
// the variant types,
// including OriginVisit and OriginVisitStatus, which are keyed by
// UniqueKey rather than a SWHID and so do not implement Object.
func ToDict(o interface{}) (map[string]interface{}, error) {
	switch v := o.(type) {
	case *Content:
		d := map[string]interface{}{
			"sha1":     v.SHA1[:],
			"sha1_git": v.SHA1Git[:],
			"sha256":   v.SHA256[:],
			"length":   v.Length,
			"status":   statusString(v.Status),
		}
		if v.HasData {
			d["data"] = v.Data
		}
		return d, nil
	case *SkippedContent:
		d := map[string]interface{}{
			"sha1_git": v.SHA1Git[:],
			"length":   v.Length,
			"reason":   v.Reason,
		}
		return d, nil
	case *Directory:
		entries := make([]map[string]interface{}, 0, len(v.Entries))
		for _, e := range v.Entries {
			entries = append(entries, map[string]interface{}{
				"name":   e.Name,
				"perms":  e.Perms,
				"type":   entryTypeString(e.Type),
				"target": e.Target.String(),
			})
		}
		d := map[string]interface{}{
			"id":      v.ID[:],
			"entries": entries,
		}
		if v.RawManifest != nil {
			d["raw_manifest"] = v.RawManifest
		}
		return d, nil
	case *Revision:
		parents := make([]string, 0, len(v.Parents))
		for _, p := range v.Parents {
			parents = append(parents, p.String())
		}
		return map[string]interface{}{
			"id":        v.ID[:],
			"directory": v.Directory.String(),
			"parents":   parents,
			"author":    personDict(v.Author),
			"committer": personDict(v.Committer),
			"date":      timeOrNil(v.Date),
			"committer_date": timeOrNil(v.Committed),
			"message":   v.Message,
		}, nil
	case *Release:
		d := map[string]interface{}{
			"id":          v.ID[:],
			"name":        v.Name,
			"target":      v.Target.String(),
			"target_type": v.TargetType.String(),
			"message":     v.Message,
		}
		if v.Tagger != nil {
			d["author"] = personDict(*v.Tagger)
		}
		d["date"] = timeOrNil(v.Date)
		return d, nil
	case *Snapshot:
		branches := make(map[string]interface{}, len(v.Branches))
		for name, b := range v.Branches {
			if b == nil {
				branches[name] = nil
				continue
			}
			branches[name] = map[string]interface{}{
				"target_type": b.TargetType,
				"target":      b.Target,
			}
		}
		return map[string]interface{}{
			"id":       v.ID[:],
			"branches": branches,
		}, nil
	case *Origin:
		return map[string]interface{}{"url": v.URL}, nil
	case *OriginVisit:
		return map[string]interface{}{
			"origin": v.OriginURL,
			"visit":  v.Visit,
			"date":   v.Date,
			"type":   v.Type,
		}, nil
	case *OriginVisitStatus:
		d := map[string]interface{}{
			"origin": v.OriginURL,
			"visit":  v.Visit,
			"date":   v.Date,
			"status": v.Status,
		}
		if v.Snapshot != nil {
			d["snapshot"] = v.Snapshot[:]
		}
		return d, nil
	case *RawExtrinsicMetadata:
		d := map[string]interface{}{
			"id":             v.ID[:],
			"target":         v.Target.String(),
			"authority":      v.Authority,
			"fetcher":        v.Fetcher,
			"discovery_date": v.DiscoveryDate,
			"format":         v.Format,
			"metadata":       v.Metadata,
		}
		if v.Context != nil {
			d["origin"] = v.Context.Origin
			d["visit"] = v.Context.Visit
			if v.Context.Path != nil {
				d["path"] = v.Context.Path
			}
		}
		return d, nil
	case *ExtID:
		return map[string]interface{}{
			"extid_type": v.ExtIDType,
			"extid":      v.ExtIDBody,
			"target":     v.Target.String(),
			"version":    v.Version,
		}, nil
	default:
		return nil, fmt.Errorf("archiveobject: unsupported object type %T", o)
	}
}

func personDict(p Person) map[string]interface{} {
	return map[string]interface{}{
		"fullname": p.Fullname,
		"name":     p.Name,
		"email":    p.Email,
	}
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func statusString(s Status) string {
	switch s {
	case Visible:
		return "visible"
	case Absent:
		return "absent"
	case Hidden:
		return "hidden"
	default:
		return "visible"
	}
}

func entryTypeString(t DirEntryType) string {
	switch t {
	case EntryFile:
		return "file"
	case EntryDir:
		return "dir"
	case EntryRev:
		return "rev"
	default:
		return "file"
	}
}

// The Unmarshal* functions below are ToDict's inverse: each decodes one
// bundle entry's canonical YAML back into its typed domain object, for
// the recovery bundle reader and restore(). They decode into a private
// "wire" struct carrying the exact field names ToDict produces, rather
// than round-tripping through map[string]interface{}, so a mistyped
// field is a compile error instead of a silent zero value.

func parseStatus(s string) Status {
	switch s {
	case "absent":
		return Absent
	case "hidden":
		return Hidden
	default:
		return Visible
	}
}

func parseEntryType(s string) DirEntryType {
	switch s {
	case "dir":
		return EntryDir
	case "rev":
		return EntryRev
	default:
		return EntryFile
	}
}

func parseSWHID(s string) (swhid.SWHID, error) {
	return swhid.Parse(s)
}

type contentWire struct {
	SHA1    []byte `yaml:"sha1"`
	SHA1Git []byte `yaml:"sha1_git"`
	SHA256  []byte `yaml:"sha256"`
	Length  int64  `yaml:"length"`
	Status  string `yaml:"status"`
	Data    []byte `yaml:"data"`
}

// UnmarshalContent decodes a contents/ bundle entry.
func UnmarshalContent(data []byte) (*Content, error) {
	var w contentWire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("archiveobject: unmarshaling content: %w", err)
	}
	c := &Content{Length: w.Length, Status: parseStatus(w.Status)}
	copy(c.SHA1[:], w.SHA1)
	copy(c.SHA1Git[:], w.SHA1Git)
	copy(c.SHA256[:], w.SHA256)
	if w.Data != nil {
		c.Data = w.Data
		c.HasData = true
	}
	return c, nil
}

type skippedContentWire struct {
	SHA1Git []byte `yaml:"sha1_git"`
	Length  int64  `yaml:"length"`
	Reason  string `yaml:"reason"`
}

// UnmarshalSkippedContent decodes a skipped_contents/ bundle entry.
func UnmarshalSkippedContent(data []byte) (*SkippedContent, error) {
	var w skippedContentWire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("archiveobject: unmarshaling skipped content: %w", err)
	}
	s := &SkippedContent{Length: w.Length, Reason: w.Reason, HasHashes: w.SHA1Git != nil}
	copy(s.SHA1Git[:], w.SHA1Git)
	return s, nil
}

type dirEntryWire struct {
	Name   []byte `yaml:"name"`
	Perms  int    `yaml:"perms"`
	Type   string `yaml:"type"`
	Target string `yaml:"target"`
}

type directoryWire struct {
	ID          []byte         `yaml:"id"`
	Entries     []dirEntryWire `yaml:"entries"`
	RawManifest []byte         `yaml:"raw_manifest"`
}

// UnmarshalDirectory decodes a directories/ bundle entry.
func UnmarshalDirectory(data []byte) (*Directory, error) {
	var w directoryWire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("archiveobject: unmarshaling directory: %w", err)
	}
	d := &Directory{RawManifest: w.RawManifest}
	copy(d.ID[:], w.ID)
	for _, e := range w.Entries {
		target, err := parseSWHID(e.Target)
		if err != nil {
			return nil, fmt.Errorf("archiveobject: directory entry target: %w", err)
		}
		d.Entries = append(d.Entries, DirEntry{Name: e.Name, Perms: e.Perms, Type: parseEntryType(e.Type), Target: target})
	}
	return d, nil
}

type personWire struct {
	Fullname []byte `yaml:"fullname"`
	Name     []byte `yaml:"name"`
	Email    []byte `yaml:"email"`
}

func (p personWire) toPerson() Person {
	return Person{Fullname: p.Fullname, Name: p.Name, Email: p.Email}
}

type revisionWire struct {
	ID            []byte     `yaml:"id"`
	Directory     string     `yaml:"directory"`
	Parents       []string   `yaml:"parents"`
	Author        personWire `yaml:"author"`
	Committer     personWire `yaml:"committer"`
	Date          *time.Time `yaml:"date"`
	CommitterDate *time.Time `yaml:"committer_date"`
	Message       []byte     `yaml:"message"`
}

// UnmarshalRevision decodes a revisions/ bundle entry.
func UnmarshalRevision(data []byte) (*Revision, error) {
	var w revisionWire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("archiveobject: unmarshaling revision: %w", err)
	}
	directory, err := parseSWHID(w.Directory)
	if err != nil {
		return nil, fmt.Errorf("archiveobject: revision directory: %w", err)
	}
	r := &Revision{
		Directory: directory,
		Author:    w.Author.toPerson(),
		Committer: w.Committer.toPerson(),
		Date:      w.Date,
		Committed: w.CommitterDate,
		Message:   w.Message,
	}
	copy(r.ID[:], w.ID)
	for _, p := range w.Parents {
		parsed, err := parseSWHID(p)
		if err != nil {
			return nil, fmt.Errorf("archiveobject: revision parent: %w", err)
		}
		r.Parents = append(r.Parents, parsed)
	}
	return r, nil
}

type releaseWire struct {
	ID         []byte      `yaml:"id"`
	Name       []byte      `yaml:"name"`
	Target     string      `yaml:"target"`
	TargetType string      `yaml:"target_type"`
	Author     *personWire `yaml:"author"`
	Date       *time.Time  `yaml:"date"`
	Message    []byte      `yaml:"message"`
}

// UnmarshalRelease decodes a releases/ bundle entry.
func UnmarshalRelease(data []byte) (*Release, error) {
	var w releaseWire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("archiveobject: unmarshaling release: %w", err)
	}
	target, err := parseSWHID(w.Target)
	if err != nil {
		return nil, fmt.Errorf("archiveobject: release target: %w", err)
	}
	targetType, ok := swhid.ParseObjectType(w.TargetType)
	if !ok {
		return nil, fmt.Errorf("archiveobject: release target_type %q unrecognized", w.TargetType)
	}
	r := &Release{Name: w.Name, Target: target, TargetType: targetType, Date: w.Date, Message: w.Message}
	copy(r.ID[:], w.ID)
	if w.Author != nil {
		p := w.Author.toPerson()
		r.Tagger = &p
	}
	return r, nil
}

type branchWire struct {
	TargetType string `yaml:"target_type"`
	Target     []byte `yaml:"target"`
}

type snapshotWire struct {
	ID       []byte                 `yaml:"id"`
	Branches map[string]*branchWire `yaml:"branches"`
}

// UnmarshalSnapshot decodes a snapshots/ bundle entry.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var w snapshotWire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("archiveobject: unmarshaling snapshot: %w", err)
	}
	s := &Snapshot{Branches: make(map[string]*Branch, len(w.Branches))}
	copy(s.ID[:], w.ID)
	for name, b := range w.Branches {
		if b == nil {
			s.Branches[name] = nil
			continue
		}
		s.Branches[name] = &Branch{TargetType: b.TargetType, Target: b.Target}
	}
	return s, nil
}

type originWire struct {
	URL string `yaml:"url"`
}

// UnmarshalOrigin decodes an origins/ bundle entry.
func UnmarshalOrigin(data []byte) (*Origin, error) {
	var w originWire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("archiveobject: unmarshaling origin: %w", err)
	}
	return &Origin{URL: w.URL}, nil
}

type originVisitWire struct {
	Origin string    `yaml:"origin"`
	Visit  int64     `yaml:"visit"`
	Date   time.Time `yaml:"date"`
	Type   string    `yaml:"type"`
}

// UnmarshalOriginVisit decodes an origin_visits/ bundle entry.
func UnmarshalOriginVisit(data []byte) (*OriginVisit, error) {
	var w originVisitWire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("archiveobject: unmarshaling origin visit: %w", err)
	}
	return &OriginVisit{OriginURL: w.Origin, Visit: w.Visit, Date: w.Date, Type: w.Type}, nil
}

type originVisitStatusWire struct {
	Origin   string    `yaml:"origin"`
	Visit    int64     `yaml:"visit"`
	Date     time.Time `yaml:"date"`
	Status   string    `yaml:"status"`
	Snapshot []byte    `yaml:"snapshot"`
}

// UnmarshalOriginVisitStatus decodes an origin_visit_statuses/ bundle entry.
func UnmarshalOriginVisitStatus(data []byte) (*OriginVisitStatus, error) {
	var w originVisitStatusWire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("archiveobject: unmarshaling origin visit status: %w", err)
	}
	s := &OriginVisitStatus{OriginURL: w.Origin, Visit: w.Visit, Date: w.Date, Status: w.Status}
	if w.Snapshot != nil {
		var id [20]byte
		copy(id[:], w.Snapshot)
		s.Snapshot = &id
	}
	return s, nil
}

type rawExtrinsicMetadataWire struct {
	ID            []byte    `yaml:"id"`
	Target        string    `yaml:"target"`
	Authority     string    `yaml:"authority"`
	Fetcher       string    `yaml:"fetcher"`
	DiscoveryDate time.Time `yaml:"discovery_date"`
	Format        string    `yaml:"format"`
	Metadata      []byte    `yaml:"metadata"`
	Origin        string    `yaml:"origin"`
	Visit         *int64    `yaml:"visit"`
	Path          []byte    `yaml:"path"`
}

// UnmarshalRawExtrinsicMetadata decodes a raw_extrinsic_metadata/ bundle entry.
func UnmarshalRawExtrinsicMetadata(data []byte) (*RawExtrinsicMetadata, error) {
	var w rawExtrinsicMetadataWire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("archiveobject: unmarshaling raw extrinsic metadata: %w", err)
	}
	target, err := parseSWHID(w.Target)
	if err != nil {
		return nil, fmt.Errorf("archiveobject: raw extrinsic metadata target: %w", err)
	}
	m := &RawExtrinsicMetadata{
		Target:        target,
		Authority:     w.Authority,
		Fetcher:       w.Fetcher,
		DiscoveryDate: w.DiscoveryDate,
		Format:        w.Format,
		Metadata:      w.Metadata,
	}
	copy(m.ID[:], w.ID)
	if w.Origin != "" {
		m.Context = &MetadataContext{Origin: w.Origin, Visit: w.Visit, Path: w.Path}
	}
	return m, nil
}

type extidWire struct {
	ExtIDType string `yaml:"extid_type"`
	ExtID     []byte `yaml:"extid"`
	Target    string `yaml:"target"`
	Version   int    `yaml:"version"`
}

// UnmarshalExtID decodes an extids/ bundle entry.
func UnmarshalExtID(data []byte) (*ExtID, error) {
	var w extidWire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("archiveobject: unmarshaling extid: %w", err)
	}
	target, err := parseSWHID(w.Target)
	if err != nil {
		return nil, fmt.Errorf("archiveobject: extid target: %w", err)
	}
	return &ExtID{ExtIDType: w.ExtIDType, ExtIDBody: w.ExtID, Target: target, Version: w.Version}, nil
}

// MarshalCanonical renders the object's dict form as deterministic YAML,
// the unit that gets age-encrypted into one bundle entry.
func MarshalCanonical(o interface{}) ([]byte, error) {
	d, err := ToDict(o)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
