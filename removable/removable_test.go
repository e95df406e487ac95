package removable

import (
	"context"
	"testing"

	"github.com/dagarchive/alter/archiveobject"
	"github.com/dagarchive/alter/graphclient/httpclient"
	"github.com/dagarchive/alter/graphclient/testserver"
	"github.com/dagarchive/alter/inventory"
	"github.com/dagarchive/alter/storagebackend/memory"
	"github.com/dagarchive/alter/subgraph"
	"github.com/dagarchive/alter/swhid"
)

func buildSharedContentGraph(t *testing.T) (*subgraph.Subgraph, *memory.Database, swhid.SWHID, swhid.SWHID, swhid.SWHID) {
	t.Helper()
	g := subgraph.New()
	store := memory.New()

	cnt := &archiveobject.Content{SHA1Git: [20]byte{0x16}, Length: 3}
	store.Add(cnt)
	g.AddSWHID(cnt.SWHID())

	dir1 := &archiveobject.Directory{ID: [20]byte{0x17}, Entries: []archiveobject.DirEntry{{Name: []byte("f"), Target: cnt.SWHID()}}}
	store.Add(dir1)
	g.AddSWHID(dir1.SWHID())
	g.AddEdge(dir1.SWHID(), cnt.SWHID(), false)

	dir2 := &archiveobject.Directory{ID: [20]byte{0x27}, Entries: []archiveobject.DirEntry{{Name: []byte("f"), Target: cnt.SWHID()}}}
	store.Add(dir2)
	g.AddSWHID(dir2.SWHID())
	g.AddEdge(dir2.SWHID(), cnt.SWHID(), true)

	rev1 := &archiveobject.Revision{ID: [20]byte{0x18}, Directory: dir1.SWHID()}
	store.Add(rev1)
	g.AddSWHID(rev1.SWHID())
	g.AddEdge(rev1.SWHID(), dir1.SWHID(), false)

	rev2 := &archiveobject.Revision{ID: [20]byte{0x28}, Directory: dir2.SWHID()}
	store.Add(rev2)
	g.AddSWHID(rev2.SWHID())
	g.AddEdge(rev2.SWHID(), dir2.SWHID(), false)

	snp1 := &archiveobject.Snapshot{ID: [20]byte{0x22}, Branches: map[string]*archiveobject.Branch{"HEAD": {TargetType: "revision", Target: rev1.ID[:]}}}
	store.Add(snp1)
	g.AddSWHID(snp1.SWHID())
	g.AddEdge(snp1.SWHID(), rev1.SWHID(), false)

	snp2 := &archiveobject.Snapshot{ID: [20]byte{0x32}, Branches: map[string]*archiveobject.Branch{"HEAD": {TargetType: "revision", Target: rev2.ID[:]}}}
	store.Add(snp2)
	g.AddSWHID(snp2.SWHID())
	g.AddEdge(snp2.SWHID(), rev2.SWHID(), false)

	ori1 := &archiveobject.Origin{URL: "https://example.org/repo1"}
	store.Add(ori1)
	g.AddSWHID(ori1.SWHID())
	g.AddEdge(ori1.SWHID(), snp1.SWHID(), false)

	ori2 := &archiveobject.Origin{URL: "https://example.org/repo2"}
	store.Add(ori2)
	g.AddSWHID(ori2.SWHID())
	g.AddEdge(ori2.SWHID(), snp2.SWHID(), false)

	return g, store, ori1.SWHID(), ori2.SWHID(), cnt.SWHID()
}

// TestSharedContentNotRemovable is scenario S2: two origins share
// content C; get_removable([O1]) must not return C.
func TestSharedContentNotRemovable(t *testing.T) {
	g, store, ori1, _, cnt := buildSharedContentGraph(t)
	srv := testserver.New(g)
	defer srv.Close()
	client := httpclient.New(srv.URL, nil)

	inv, err := inventory.New(client, store, nil).Build(context.Background(), []swhid.SWHID{ori1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	result, err := New(client, store, nil).Analyze(context.Background(), inv)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Has(cnt) {
		t.Fatalf("shared content must not be removable")
	}
	if !result.Has(ori1) {
		t.Fatalf("origin itself should be removable")
	}
}

// TestDanglingChainFullyRemovable is scenario S1: a single dangling
// origin chain is entirely removable.
func TestDanglingChainFullyRemovable(t *testing.T) {
	g := subgraph.New()
	store := memory.New()

	cnt := &archiveobject.Content{SHA1Git: [20]byte{0x16}, Length: 3}
	store.Add(cnt)
	g.AddSWHID(cnt.SWHID())
	dir := &archiveobject.Directory{ID: [20]byte{0x17}, Entries: []archiveobject.DirEntry{{Name: []byte("f"), Target: cnt.SWHID()}}}
	store.Add(dir)
	g.AddSWHID(dir.SWHID())
	g.AddEdge(dir.SWHID(), cnt.SWHID(), false)
	rev := &archiveobject.Revision{ID: [20]byte{0x18}, Directory: dir.SWHID()}
	store.Add(rev)
	g.AddSWHID(rev.SWHID())
	g.AddEdge(rev.SWHID(), dir.SWHID(), false)
	snp := &archiveobject.Snapshot{ID: [20]byte{0x22}, Branches: map[string]*archiveobject.Branch{"HEAD": {TargetType: "revision", Target: rev.ID[:]}}}
	store.Add(snp)
	g.AddSWHID(snp.SWHID())
	g.AddEdge(snp.SWHID(), rev.SWHID(), false)
	ori := &archiveobject.Origin{URL: "https://example.org/solo"}
	store.Add(ori)
	g.AddSWHID(ori.SWHID())
	g.AddEdge(ori.SWHID(), snp.SWHID(), false)

	srv := testserver.New(g)
	defer srv.Close()
	client := httpclient.New(srv.URL, nil)

	inv, err := inventory.New(client, store, nil).Build(context.Background(), []swhid.SWHID{ori.SWHID()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	result, err := New(client, store, nil).Analyze(context.Background(), inv)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Len() != 5 {
		t.Fatalf("expected all 5 objects removable, got %d: %v", result.Len(), result.SelectOrdered())
	}
}
