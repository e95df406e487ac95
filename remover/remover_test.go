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

package remover

import (
	"context"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dagarchive/alter/ageseal"
	"github.com/dagarchive/alter/archiveobject"
	"github.com/dagarchive/alter/graphclient/httpclient"
	"github.com/dagarchive/alter/graphclient/testserver"
	"github.com/dagarchive/alter/journalbackend/memory"
	"github.com/dagarchive/alter/objstorebackend"
	objmemory "github.com/dagarchive/alter/objstorebackend/memory"
	"github.com/dagarchive/alter/recoverybundle"
	searchmemory "github.com/dagarchive/alter/searchbackend/memory"
	"github.com/dagarchive/alter/secretsharing"
	storagememory "github.com/dagarchive/alter/storagebackend/memory"
	"github.com/dagarchive/alter/subgraph"
	"github.com/dagarchive/alter/swhid"
)

// buildDanglingOriginGraph is scenario S1: a single origin whose entire
// reachable chain (snapshot, revision, directory, content) has no other
// referrer.
func buildDanglingOriginGraph(t *testing.T) (*subgraph.Subgraph, *storagememory.Database, swhid.SWHID, [20]byte) {
	t.Helper()
	g := subgraph.New()
	store := storagememory.New()

	cnt := &archiveobject.Content{SHA1Git: [20]byte{0x01}, Length: 3}
	store.Add(cnt)
	g.AddSWHID(cnt.SWHID())

	dir := &archiveobject.Directory{ID: [20]byte{0x02}, Entries: []archiveobject.DirEntry{{Name: []byte("f"), Target: cnt.SWHID()}}}
	store.Add(dir)
	g.AddSWHID(dir.SWHID())
	g.AddEdge(dir.SWHID(), cnt.SWHID(), false)

	rev := &archiveobject.Revision{ID: [20]byte{0x03}, Directory: dir.SWHID()}
	store.Add(rev)
	g.AddSWHID(rev.SWHID())
	g.AddEdge(rev.SWHID(), dir.SWHID(), false)

	snp := &archiveobject.Snapshot{ID: [20]byte{0x04}, Branches: map[string]*archiveobject.Branch{"HEAD": {TargetType: "revision", Target: rev.ID[:]}}}
	store.Add(snp)
	g.AddSWHID(snp.SWHID())
	g.AddEdge(snp.SWHID(), rev.SWHID(), false)

	ori := &archiveobject.Origin{URL: "https://example.org/dangling"}
	store.Add(ori)
	g.AddSWHID(ori.SWHID())
	g.AddEdge(ori.SWHID(), snp.SWHID(), false)

	return g, store, ori.SWHID(), cnt.SHA1Git
}

// oneHolderSharing builds a trivial one-group, one-member SecretSharing
// scheme, returning it alongside the holder key able to decrypt its own
// share.
func oneHolderSharing(t *testing.T) (*secretsharing.SecretSharing, secretsharing.HolderKey) {
	t.Helper()
	identity, err := ageseal.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	sharing := &secretsharing.SecretSharing{
		MinimumRequiredGroups: 1,
		Groups: []secretsharing.Group{
			{
				Name:                  "operators",
				MinimumRequiredShares: 1,
				RecipientKeys:         map[string]string{"alice": identity.Recipient().String()},
			},
		},
	}
	return sharing, secretsharing.HolderKey{Identifier: "alice", SecretKey: identity.String()}
}

func newTestRemover(graphSrvURL string, store *storagememory.Database, restoration *storagememory.Database, knownBlobs ...objstorebackend.CompositeObjID) (*Remover, *searchmemory.Index, *memory.Writer, *objmemory.Store) {
	client := httpclient.New(graphSrvURL, nil)
	r := New(client, store, restoration, nil)

	search := searchmemory.New()
	journal := memory.New()
	objstore := objmemory.New(knownBlobs...)

	r.Searches["search1"] = search
	r.Storages["storage1"] = store
	r.Journals["journal1"] = journal
	r.Objstorages["objstore1"] = objstore
	return r, search, journal, objstore
}

// TestRemoveDanglingOrigin is scenario S1: removing the only reference
// to a chain deletes every object in it from every backend.
func TestRemoveDanglingOrigin(t *testing.T) {
	g, store, origin, contentHash := buildDanglingOriginGraph(t)
	srv := testserver.New(g)
	defer srv.Close()

	contentBlob := objstorebackend.CompositeObjID(hex.EncodeToString(contentHash[:]))
	r, search, journal, objstore := newTestRemover(srv.URL, store, nil, contentBlob)

	removableGraph, err := r.GetRemovable(context.Background(), []swhid.SWHID{origin})
	if err != nil {
		t.Fatalf("GetRemovable: %v", err)
	}
	if got := len(removableGraph.RemovableSWHIDs()); got != 5 {
		t.Fatalf("expected 5 removable objects (origin, snapshot, revision, directory, content): got %d", got)
	}

	sharing, holder := oneHolderSharing(t)
	bundlePath := filepath.Join(t.TempDir(), "bundle.zip")
	if err := r.CreateRecoveryBundle(context.Background(), bundlePath, removableGraph, "removal-1", sharing, "spam", nil); err != nil {
		t.Fatalf("CreateRecoveryBundle: %v", err)
	}

	provider := func(m *recoverybundle.Manifest) ([]byte, error) {
		return secretsharing.RecoverObjectDecryptionKey(m.DecryptionKeyShares, []secretsharing.HolderKey{holder}, nil)
	}

	counters, err := r.Remove(context.Background(), bundlePath, provider)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if counters.Search != 1 {
		t.Errorf("expected 1 origin deleted from search, got %d", counters.Search)
	}
	if counters.Objstore != 1 {
		t.Errorf("expected 1 blob deleted from objstore, got %d", counters.Objstore)
	}
	if search.Flushed != 1 {
		t.Errorf("expected search flushed once, got %d", search.Flushed)
	}
	if journal.Flushed != 1 {
		t.Errorf("expected journal flushed once, got %d", journal.Flushed)
	}
	if len(objstore.Deleted) != 1 {
		t.Errorf("expected 1 objstore deletion, got %d", len(objstore.Deleted))
	}

	if o, _ := store.GetObject(context.Background(), origin); o != nil {
		t.Errorf("origin should have been deleted from storage")
	}
}

// TestSharedContentSurvivesRemoval is scenario S2: removing one of two
// origins sharing a content object must not delete that content, nor
// the directory reachable only from the other origin.
func TestSharedContentSurvivesRemoval(t *testing.T) {
	g := subgraph.New()
	store := storagememory.New()

	cnt := &archiveobject.Content{SHA1Git: [20]byte{0x11}, Length: 3}
	store.Add(cnt)
	g.AddSWHID(cnt.SWHID())

	dir1 := &archiveobject.Directory{ID: [20]byte{0x12}, Entries: []archiveobject.DirEntry{{Name: []byte("f"), Target: cnt.SWHID()}}}
	store.Add(dir1)
	g.AddSWHID(dir1.SWHID())
	g.AddEdge(dir1.SWHID(), cnt.SWHID(), false)

	dir2 := &archiveobject.Directory{ID: [20]byte{0x13}, Entries: []archiveobject.DirEntry{{Name: []byte("f"), Target: cnt.SWHID()}}}
	store.Add(dir2)
	g.AddSWHID(dir2.SWHID())
	g.AddEdge(dir2.SWHID(), cnt.SWHID(), true)

	rev1 := &archiveobject.Revision{ID: [20]byte{0x14}, Directory: dir1.SWHID()}
	store.Add(rev1)
	g.AddSWHID(rev1.SWHID())
	g.AddEdge(rev1.SWHID(), dir1.SWHID(), false)

	rev2 := &archiveobject.Revision{ID: [20]byte{0x24}, Directory: dir2.SWHID()}
	store.Add(rev2)
	g.AddSWHID(rev2.SWHID())
	g.AddEdge(rev2.SWHID(), dir2.SWHID(), false)

	snp1 := &archiveobject.Snapshot{ID: [20]byte{0x15}, Branches: map[string]*archiveobject.Branch{"HEAD": {TargetType: "revision", Target: rev1.ID[:]}}}
	store.Add(snp1)
	g.AddSWHID(snp1.SWHID())
	g.AddEdge(snp1.SWHID(), rev1.SWHID(), false)

	snp2 := &archiveobject.Snapshot{ID: [20]byte{0x25}, Branches: map[string]*archiveobject.Branch{"HEAD": {TargetType: "revision", Target: rev2.ID[:]}}}
	store.Add(snp2)
	g.AddSWHID(snp2.SWHID())
	g.AddEdge(snp2.SWHID(), rev2.SWHID(), false)

	ori1 := &archiveobject.Origin{URL: "https://example.org/one"}
	store.Add(ori1)
	g.AddSWHID(ori1.SWHID())
	g.AddEdge(ori1.SWHID(), snp1.SWHID(), false)

	ori2 := &archiveobject.Origin{URL: "https://example.org/two"}
	store.Add(ori2)
	g.AddSWHID(ori2.SWHID())
	g.AddEdge(ori2.SWHID(), snp2.SWHID(), false)

	srv := testserver.New(g)
	defer srv.Close()

	r, _, _, _ := newTestRemover(srv.URL, store, nil)
	removableGraph, err := r.GetRemovable(context.Background(), []swhid.SWHID{ori1.SWHID()})
	if err != nil {
		t.Fatalf("GetRemovable: %v", err)
	}
	for _, id := range removableGraph.RemovableSWHIDs() {
		if id == cnt.SWHID() {
			t.Fatalf("shared content must not be marked removable")
		}
	}

	sharing, holder := oneHolderSharing(t)
	bundlePath := filepath.Join(t.TempDir(), "bundle.zip")
	if err := r.CreateRecoveryBundle(context.Background(), bundlePath, removableGraph, "removal-2", sharing, "", nil); err != nil {
		t.Fatalf("CreateRecoveryBundle: %v", err)
	}
	provider := func(m *recoverybundle.Manifest) ([]byte, error) {
		return secretsharing.RecoverObjectDecryptionKey(m.DecryptionKeyShares, []secretsharing.HolderKey{holder}, nil)
	}
	if _, err := r.Remove(context.Background(), bundlePath, provider); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if o, _ := store.GetObject(context.Background(), cnt.SWHID()); o == nil {
		t.Errorf("shared content must survive removal of one origin")
	}
	if o, _ := store.GetObject(context.Background(), dir2.SWHID()); o == nil {
		t.Errorf("directory reachable only from the surviving origin must survive")
	}
}

// TestPostDeletionCheckCatchesNewReferrer is scenario S3: a reference
// added to the surviving object set between planning and deletion must
// surface as a remover.Error from Remove, and the bundle must be
// replayed into the restoration storage.
func TestPostDeletionCheckCatchesNewReferrer(t *testing.T) {
	g, store, origin, _ := buildDanglingOriginGraph(t)
	srv := testserver.New(g)
	defer srv.Close()

	restoration := storagememory.New()
	r, _, _, _ := newTestRemover(srv.URL, store, restoration)

	removableGraph, err := r.GetRemovable(context.Background(), []swhid.SWHID{origin})
	if err != nil {
		t.Fatalf("GetRemovable: %v", err)
	}

	// A new revision is pointed at the directory after planning
	// completed, the way a concurrent loader write would.
	var dirID swhid.SWHID
	for _, id := range removableGraph.RemovableSWHIDs() {
		if id.ObjectType == swhid.Directory {
			dirID = id
		}
	}
	intruder := &archiveobject.Revision{ID: [20]byte{0x99}, Directory: dirID}
	store.Add(intruder)

	sharing, holder := oneHolderSharing(t)
	bundlePath := filepath.Join(t.TempDir(), "bundle.zip")
	if err := r.CreateRecoveryBundle(context.Background(), bundlePath, removableGraph, "removal-3", sharing, "", nil); err != nil {
		t.Fatalf("CreateRecoveryBundle: %v", err)
	}
	provider := func(m *recoverybundle.Manifest) ([]byte, error) {
		return secretsharing.RecoverObjectDecryptionKey(m.DecryptionKeyShares, []secretsharing.HolderKey{holder}, nil)
	}

	_, err = r.Remove(context.Background(), bundlePath, provider)
	if err == nil {
		t.Fatalf("expected Remove to fail once a new referrer appears")
	}
	var removerErr *Error
	if !errors.As(err, &removerErr) {
		t.Fatalf("expected a remover.Error, got %v", err)
	}

	if o, _ := restoration.GetObject(context.Background(), origin); o == nil {
		t.Errorf("failed removal should have replayed the bundle into the restoration storage")
	}
}
