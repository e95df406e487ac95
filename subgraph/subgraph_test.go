package subgraph

import (
	"bytes"
	"testing"

	"github.com/dagarchive/alter/swhid"
)

func id(tag string) swhid.SWHID {
	return swhid.MustParse("swh:1:" + tag + ":0000000000000000000000000000000000000001")
}

func TestAddSWHIDIdempotent(t *testing.T) {
	g := New()
	v1 := g.AddSWHID(id("cnt"))
	v1.Complete = true
	v2 := g.AddSWHID(id("cnt"))
	if v1 != v2 {
		t.Fatalf("expected same vertex pointer")
	}
	if !v2.Complete {
		t.Fatalf("complete should remain true across merge")
	}
	if g.Len() != 1 {
		t.Fatalf("expected single vertex, got %d", g.Len())
	}
}

func TestAddEdgeDuplicateRejected(t *testing.T) {
	g := New()
	a, b := id("dir"), id("cnt")
	g.AddSWHID(a)
	g.AddSWHID(b)
	if err := g.AddEdge(a, b, false); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := g.AddEdge(a, b, false); err == nil {
		t.Fatalf("expected duplicate edge error")
	}
	if err := g.AddEdge(a, b, true); err != nil {
		t.Fatalf("skip duplicates should not error: %v", err)
	}
}

func TestAddEdgeRequiresExistingEndpoints(t *testing.T) {
	g := New()
	a := id("dir")
	g.AddSWHID(a)
	if err := g.AddEdge(a, id("cnt"), false); err == nil {
		t.Fatalf("expected error for missing target vertex")
	}
}

func TestSelectOrderedObjectTypeOrder(t *testing.T) {
	g := New()
	ori := swhid.MustParse("swh:1:ori:8f50d3f60eae370ddbf85c86219c55108a350165")
	snp := id("snp")
	rel := id("rel")
	rev := id("rev")
	dir := id("dir")
	cnt := id("cnt")
	for _, v := range []swhid.SWHID{cnt, dir, rev, rel, snp, ori} {
		g.AddSWHID(v)
	}
	order := g.SelectOrdered()
	var types []string
	for _, v := range order {
		types = append(types, v.ObjectType.String())
	}
	want := []string{"ori", "snp", "rel", "rev", "dir", "cnt"}
	for i, w := range want {
		if types[i] != w {
			t.Fatalf("position %d: got %s want %s (full: %v)", i, types[i], w, types)
		}
	}
}

func TestWriteDotProducesOutput(t *testing.T) {
	g := New()
	a, b := id("dir"), id("cnt")
	g.AddSWHID(a)
	g.AddSWHID(b)
	if err := g.AddEdge(a, b, false); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	var buf bytes.Buffer
	if err := g.WriteDot(&buf); err != nil {
		t.Fatalf("WriteDot: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected dot output")
	}
}

func TestRemovableSubgraphPrune(t *testing.T) {
	g := New()
	keep, drop := id("dir"), id("cnt")
	g.AddSWHID(keep).Removable = Removable
	g.AddSWHID(drop).Removable = Unremovable
	r := NewRemovableSubgraph(g)
	r.DeleteUnremovable()
	if r.Has(drop) {
		t.Fatalf("unremovable vertex should have been pruned")
	}
	if !r.Has(keep) {
		t.Fatalf("removable vertex should survive")
	}
}
