package inventory

import (
	"context"
	"testing"

	"github.com/dagarchive/alter/archiveobject"
	"github.com/dagarchive/alter/graphclient/testserver"
	"github.com/dagarchive/alter/graphclient/httpclient"
	"github.com/dagarchive/alter/storagebackend/memory"
	"github.com/dagarchive/alter/subgraph"
	"github.com/dagarchive/alter/swhid"
)

// buildChain builds origin -> snapshot -> revision -> directory -> content,
// registered both in a graph-service fixture subgraph and in storage.
func buildChain(t *testing.T) (*subgraph.Subgraph, *memory.Database, swhid.SWHID) {
	t.Helper()
	g := subgraph.New()
	store := memory.New()

	cnt := &archiveobject.Content{SHA1Git: [20]byte{0x16}, Length: 3}
	store.Add(cnt)
	g.AddSWHID(cnt.SWHID())

	dir := &archiveobject.Directory{ID: [20]byte{0x17}, Entries: []archiveobject.DirEntry{
		{Name: []byte("f"), Target: cnt.SWHID()},
	}}
	store.Add(dir)
	g.AddSWHID(dir.SWHID())
	g.AddEdge(dir.SWHID(), cnt.SWHID(), false)

	rev := &archiveobject.Revision{ID: [20]byte{0x18}, Directory: dir.SWHID()}
	store.Add(rev)
	g.AddSWHID(rev.SWHID())
	g.AddEdge(rev.SWHID(), dir.SWHID(), false)

	snp := &archiveobject.Snapshot{ID: [20]byte{0x22}, Branches: map[string]*archiveobject.Branch{
		"HEAD": {TargetType: "revision", Target: rev.ID[:]},
	}}
	store.Add(snp)
	g.AddSWHID(snp.SWHID())
	g.AddEdge(snp.SWHID(), rev.SWHID(), false)

	ori := &archiveobject.Origin{URL: "https://example.org/repo"}
	store.Add(ori)
	g.AddSWHID(ori.SWHID())
	g.AddEdge(ori.SWHID(), snp.SWHID(), false)

	return g, store, ori.SWHID()
}

func TestBuildReachesFullChain(t *testing.T) {
	g, store, seed := buildChain(t)
	srv := testserver.New(g)
	defer srv.Close()
	client := httpclient.New(srv.URL, nil)

	builder := New(client, store, nil)
	inv, err := builder.Build(context.Background(), []swhid.SWHID{seed})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if inv.Len() != 5 {
		t.Fatalf("expected 5 vertices, got %d: %v", inv.Len(), inv.SelectOrdered())
	}
}
