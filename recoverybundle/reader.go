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

package recoverybundle

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dagarchive/alter/ageseal"
	"github.com/dagarchive/alter/archiveobject"
	"github.com/dagarchive/alter/storagebackend"
	"github.com/dagarchive/alter/swhid"
)

// DecryptionKeyProvider supplies the object decryption key for a bundle,
// given its manifest. It is invoked at most once per Bundle and its
// result is cached, since recovering the key may involve prompting an
// operator or touching a hardware token.
type DecryptionKeyProvider func(m *Manifest) ([]byte, error)

// Bundle is an opened recovery bundle: the manifest is parsed eagerly,
// but object contents are only decrypted once a DecryptionKeyProvider is
// supplied and an iterator or GetDict is used.
type Bundle struct {
	path     string
	zr       *zip.ReadCloser
	manifest *Manifest
	entries  map[string]*zip.File

	provider    DecryptionKeyProvider
	decryptKey  []byte
	keyResolved bool
}

// Open reads manifest.yml eagerly and indexes every other entry by name.
// provider may be nil if the caller only needs manifest metadata
// (DumpManifest, EncryptedSecret, ShareIDs).
func Open(path string, provider DecryptionKeyProvider) (*Bundle, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("recoverybundle: opening %s: %w", path, err)
	}
	b := &Bundle{path: path, zr: zr, entries: make(map[string]*zip.File), provider: provider}
	var manifestFile *zip.File
	for _, f := range zr.File {
		if f.Name == "manifest.yml" {
			manifestFile = f
			continue
		}
		b.entries[f.Name] = f
	}
	if manifestFile == nil {
		zr.Close()
		return nil, &ValidationError{Msg: "missing manifest.yml, bundle is partially written"}
	}
	data, err := readZipFile(manifestFile)
	if err != nil {
		zr.Close()
		return nil, err
	}
	m, err := LoadManifest(data)
	if err != nil {
		zr.Close()
		return nil, err
	}
	b.manifest = m
	return b, nil
}

// Close releases the underlying zip file.
func (b *Bundle) Close() error { return b.zr.Close() }

// Manifest returns the bundle's parsed manifest.
func (b *Bundle) Manifest() *Manifest { return b.manifest }

// Version returns the manifest schema version.
func (b *Bundle) Version() int { return b.manifest.Version }

// RemovalIdentifier returns the removal this bundle was created for.
func (b *Bundle) RemovalIdentifier() string { return b.manifest.RemovalIdentifier }

// Created returns when the bundle was sealed.
func (b *Bundle) Created() time.Time { return b.manifest.Created }

// Expire returns the bundle's expiry, if one was set.
func (b *Bundle) Expire() *time.Time { return b.manifest.Expire }

// Reason returns the operator-supplied free-text removal reason, if any.
func (b *Bundle) Reason() string { return b.manifest.Reason }

// SWHIDs returns every SWHID text form the manifest lists.
func (b *Bundle) SWHIDs() []string { return b.manifest.SWHIDs }

// ShareIDs returns every share identifier the manifest carries, sorted.
func (b *Bundle) ShareIDs() []string { return b.manifest.ShareIDs() }

// EncryptedSecret returns the age ciphertext stored for one share id:
// binary age format for X25519 holders, ASCII-armored for YubiKey holders.
func (b *Bundle) EncryptedSecret(shareID string) (string, bool) {
	s, ok := b.manifest.DecryptionKeyShares[shareID]
	return s, ok
}

// DumpManifest renders the manifest back to YAML text.
func (b *Bundle) DumpManifest() (string, error) {
	data, err := b.manifest.Dump()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decryptionKey resolves and memoizes the object decryption key via the
// configured provider, called at most once.
func (b *Bundle) decryptionKey() ([]byte, error) {
	if b.keyResolved {
		return b.decryptKey, nil
	}
	if b.provider == nil {
		return nil, fmt.Errorf("recoverybundle: no decryption key provider configured")
	}
	key, err := b.provider(b.manifest)
	if err != nil {
		return nil, err
	}
	b.decryptKey = key
	b.keyResolved = true
	return key, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("recoverybundle: opening entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("recoverybundle: reading entry %s: %w", f.Name, err)
	}
	return data, nil
}

// decryptEntry opens and age-decrypts a single named entry against the
// bundle's object decryption key. A failure to decrypt is surfaced as
// ErrWrongDecryptionKey so callers can re-prompt.
func (b *Bundle) decryptEntry(name string) ([]byte, error) {
	f, ok := b.entries[name]
	if !ok {
		return nil, fmt.Errorf("recoverybundle: no such entry %s", name)
	}
	ciphertext, err := readZipFile(f)
	if err != nil {
		return nil, err
	}
	key, err := b.decryptionKey()
	if err != nil {
		return nil, err
	}
	plaintext, err := decryptWithObjectKey(ciphertext, key)
	if err != nil {
		return nil, fmt.Errorf("recoverybundle: decrypting %s: %w%s", name, ErrWrongDecryptionKey, wrapMsg(err))
	}
	return plaintext, nil
}

func wrapMsg(err error) string {
	if err == nil {
		return ""
	}
	return ": " + err.Error()
}

// decryptWithObjectKey opens age ciphertext sealed to the bundle's
// object public key, given the raw 32-byte object decryption key
// recovered via secretsharing.
func decryptWithObjectKey(ciphertext, key []byte) ([]byte, error) {
	identity, err := ageseal.IdentityFromRawBytes(key)
	if err != nil {
		return nil, err
	}
	return ageseal.Decrypt(ciphertext, identity)
}

func yamlUnmarshalDict(data []byte, out *map[string]interface{}) error {
	return yaml.Unmarshal(data, out)
}

// entriesUnder returns every entry name under prefix, sorted.
func (b *Bundle) entriesUnder(prefix string) []string {
	var names []string
	for name := range b.entries {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Contents iterates every content entry in the bundle.
func (b *Bundle) Contents() ([]*archiveobject.Content, error) {
	var out []*archiveobject.Content
	for _, name := range b.entriesUnder("contents/") {
		data, err := b.decryptEntry(name)
		if err != nil {
			return nil, err
		}
		c, err := archiveobject.UnmarshalContent(data)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SkippedContents iterates every skipped-content entry.
func (b *Bundle) SkippedContents() ([]*archiveobject.SkippedContent, error) {
	var out []*archiveobject.SkippedContent
	for _, name := range b.entriesUnder("skipped_contents/") {
		data, err := b.decryptEntry(name)
		if err != nil {
			return nil, err
		}
		s, err := archiveobject.UnmarshalSkippedContent(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Directories iterates every directory entry.
func (b *Bundle) Directories() ([]*archiveobject.Directory, error) {
	var out []*archiveobject.Directory
	for _, name := range b.entriesUnder("directories/") {
		data, err := b.decryptEntry(name)
		if err != nil {
			return nil, err
		}
		d, err := archiveobject.UnmarshalDirectory(data)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Revisions iterates every revision entry.
func (b *Bundle) Revisions() ([]*archiveobject.Revision, error) {
	var out []*archiveobject.Revision
	for _, name := range b.entriesUnder("revisions/") {
		data, err := b.decryptEntry(name)
		if err != nil {
			return nil, err
		}
		r, err := archiveobject.UnmarshalRevision(data)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Releases iterates every release entry.
func (b *Bundle) Releases() ([]*archiveobject.Release, error) {
	var out []*archiveobject.Release
	for _, name := range b.entriesUnder("releases/") {
		data, err := b.decryptEntry(name)
		if err != nil {
			return nil, err
		}
		r, err := archiveobject.UnmarshalRelease(data)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Snapshots iterates every snapshot entry.
func (b *Bundle) Snapshots() ([]*archiveobject.Snapshot, error) {
	var out []*archiveobject.Snapshot
	for _, name := range b.entriesUnder("snapshots/") {
		data, err := b.decryptEntry(name)
		if err != nil {
			return nil, err
		}
		s, err := archiveobject.UnmarshalSnapshot(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Origins iterates every origin entry.
func (b *Bundle) Origins() ([]*archiveobject.Origin, error) {
	var out []*archiveobject.Origin
	for _, name := range b.entriesUnder("origins/") {
		data, err := b.decryptEntry(name)
		if err != nil {
			return nil, err
		}
		o, err := archiveobject.UnmarshalOrigin(data)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// OriginVisits iterates the visits recorded for one origin's SWHID
// filename segment.
func (b *Bundle) OriginVisits(origin *archiveobject.Origin) ([]*archiveobject.OriginVisit, error) {
	prefix := "origin_visits/" + origin.SWHID().FilenameSegment() + "_"
	var out []*archiveobject.OriginVisit
	for _, name := range b.entriesUnder(prefix) {
		data, err := b.decryptEntry(name)
		if err != nil {
			return nil, err
		}
		v, err := archiveobject.UnmarshalOriginVisit(data)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// OriginVisitStatuses iterates the visit-statuses recorded for one
// origin's SWHID filename segment.
func (b *Bundle) OriginVisitStatuses(origin *archiveobject.Origin) ([]*archiveobject.OriginVisitStatus, error) {
	prefix := "origin_visit_statuses/" + origin.SWHID().FilenameSegment() + "_"
	var out []*archiveobject.OriginVisitStatus
	for _, name := range b.entriesUnder(prefix) {
		data, err := b.decryptEntry(name)
		if err != nil {
			return nil, err
		}
		s, err := archiveobject.UnmarshalOriginVisitStatus(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// rawExtrinsicMetadataOrdinal extracts the leading ordinal prefix a
// raw_extrinsic_metadata/ entry name carries, so insertion order is
// preserved as authoritative even across differently-sorted directory
// listings.
func rawExtrinsicMetadataOrdinal(name string) int {
	base := strings.TrimPrefix(name, "raw_extrinsic_metadata/")
	idx := strings.IndexByte(base, '_')
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[:idx])
	if err != nil {
		return 0
	}
	return n
}

// RawExtrinsicMetadata iterates every raw extrinsic metadata entry in
// discovery order (the ordinal prefix each filename carries), since a
// metadata object may itself target another metadata object and must be
// restored in the order it was written.
func (b *Bundle) RawExtrinsicMetadata() ([]*archiveobject.RawExtrinsicMetadata, error) {
	names := b.entriesUnder("raw_extrinsic_metadata/")
	sort.Slice(names, func(i, j int) bool {
		return rawExtrinsicMetadataOrdinal(names[i]) < rawExtrinsicMetadataOrdinal(names[j])
	})
	var out []*archiveobject.RawExtrinsicMetadata
	for _, name := range names {
		data, err := b.decryptEntry(name)
		if err != nil {
			return nil, err
		}
		m, err := archiveobject.UnmarshalRawExtrinsicMetadata(data)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ExtIDs iterates every extid entry. Entries are version-1-absent:
// version 1 bundles never wrote this directory, so an empty result is
// normal for them.
func (b *Bundle) ExtIDs() ([]*archiveobject.ExtID, error) {
	var out []*archiveobject.ExtID
	for _, name := range b.entriesUnder("extids/") {
		data, err := b.decryptEntry(name)
		if err != nil {
			return nil, err
		}
		e, err := archiveobject.UnmarshalExtID(data)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// GetDict decrypts and returns the raw key/value form of the entry
// matching id's text SWHID, regardless of kind.
func (b *Bundle) GetDict(id swhid.SWHID) (map[string]interface{}, error) {
	name, ok := b.findEntryFor(id)
	if !ok {
		return nil, fmt.Errorf("recoverybundle: no entry for %s", id)
	}
	data, err := b.decryptEntry(name)
	if err != nil {
		return nil, err
	}
	var d map[string]interface{}
	if err := yamlUnmarshalDict(data, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func (b *Bundle) findEntryFor(id swhid.SWHID) (string, bool) {
	if id.ObjectType == swhid.ExtID {
		name := "extids/" + id.ObjectID.String() + ".age"
		if _, ok := b.entries[name]; ok {
			return name, true
		}
		return "", false
	}
	seg := id.FilenameSegment()
	for name := range b.entries {
		if strings.HasPrefix(name, "origin_visit") {
			// origin_visits/ and origin_visit_statuses/ entries embed their
			// origin's segment but are not the origin's own entry.
			continue
		}
		if strings.HasSuffix(name, seg+".age") || strings.Contains(name, seg+"_") {
			return name, true
		}
	}
	return "", false
}

// WriteContentData writes a single content blob's raw bytes to sink. The
// whole entry is decrypted and decoded in memory before the write.
func (b *Bundle) WriteContentData(id swhid.SWHID, sink io.Writer) error {
	name := "contents/" + id.FilenameSegment() + ".age"
	data, err := b.decryptEntry(name)
	if err != nil {
		return err
	}
	c, err := archiveobject.UnmarshalContent(data)
	if err != nil {
		return err
	}
	_, err = sink.Write(c.Data)
	return err
}

// RestoreCounters tallies how many objects of each kind Restore inserted.
type RestoreCounters map[string]int

func (c RestoreCounters) add(kind string, n int) { c[kind] += n }

// Restore replays every object in the bundle back into storage, in the
// same order the writer used (Subgraph.SelectOrdered's top-down order),
// so that foreign-key-like references inside storage resolve as each
// object is inserted.
func (b *Bundle) Restore(ctx context.Context, storage storagebackend.Interface) (RestoreCounters, error) {
	counters := make(RestoreCounters)

	origins, err := b.Origins()
	if err != nil {
		return nil, err
	}
	for _, o := range origins {
		if err := storage.InsertObject(ctx, o); err != nil {
			return nil, fmt.Errorf("recoverybundle: restoring %s: %w", o.SWHID(), err)
		}
		counters.add("origin:add", 1)
		visits, err := b.OriginVisits(o)
		if err != nil {
			return nil, err
		}
		for _, v := range visits {
			if err := storage.InsertOriginVisit(ctx, v); err != nil {
				return nil, fmt.Errorf("recoverybundle: restoring visit %s/%d: %w", o.URL, v.Visit, err)
			}
			counters.add("origin_visit:add", 1)
		}
		statuses, err := b.OriginVisitStatuses(o)
		if err != nil {
			return nil, err
		}
		for _, s := range statuses {
			if err := storage.InsertOriginVisitStatus(ctx, s); err != nil {
				return nil, fmt.Errorf("recoverybundle: restoring visit status %s/%d: %w", o.URL, s.Visit, err)
			}
			counters.add("origin_visit_status:add", 1)
		}
	}

	snapshots, err := b.Snapshots()
	if err != nil {
		return nil, err
	}
	if err := restoreAll(ctx, storage, snapshots, "snapshot:add", counters); err != nil {
		return nil, err
	}

	releases, err := b.Releases()
	if err != nil {
		return nil, err
	}
	if err := restoreAll(ctx, storage, releases, "release:add", counters); err != nil {
		return nil, err
	}

	revisions, err := b.Revisions()
	if err != nil {
		return nil, err
	}
	if err := restoreAll(ctx, storage, revisions, "revision:add", counters); err != nil {
		return nil, err
	}

	directories, err := b.Directories()
	if err != nil {
		return nil, err
	}
	if err := restoreAll(ctx, storage, directories, "directory:add", counters); err != nil {
		return nil, err
	}

	contents, err := b.Contents()
	if err != nil {
		return nil, err
	}
	for _, c := range contents {
		if err := storage.InsertObject(ctx, c); err != nil {
			return nil, fmt.Errorf("recoverybundle: restoring %s: %w", c.SWHID(), err)
		}
		counters.add("content:add", 1)
		counters.add("content:add:bytes", int(c.Length))
	}

	skipped, err := b.SkippedContents()
	if err != nil {
		return nil, err
	}
	if err := restoreAll(ctx, storage, skipped, "skipped_content:add", counters); err != nil {
		return nil, err
	}

	extids, err := b.ExtIDs()
	if err != nil {
		return nil, err
	}
	if err := restoreAll(ctx, storage, extids, "extid:add", counters); err != nil {
		return nil, err
	}

	metadata, err := b.RawExtrinsicMetadata()
	if err != nil {
		return nil, err
	}
	if err := restoreAll(ctx, storage, metadata, "raw_extrinsic_metadata:add", counters); err != nil {
		return nil, err
	}

	return counters, nil
}

// restoreAll is a small generic helper inserting every object of one
// archiveobject.Object-implementing slice and bumping its counter.
func restoreAll[T archiveobject.Object](ctx context.Context, storage storagebackend.Interface, objs []T, counterKey string, counters RestoreCounters) error {
	for _, o := range objs {
		if err := storage.InsertObject(ctx, o); err != nil {
			return fmt.Errorf("recoverybundle: restoring %s: %w", o.SWHID(), err)
		}
		counters.add(counterKey, 1)
	}
	return nil
}
