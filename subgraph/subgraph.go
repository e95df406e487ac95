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

// Package subgraph implements the typed directed graph of SWHIDs that
// the inventory and removability passes build and annotate. Vertices
// are kept in a flat node table indexed by SWHID, with two adjacency
// hash indices (out-neighbors, in-neighbors) — the same hand-rolled,
// no-third-party-library approach the trie and snapshot packages use
// for their own node tables, rather than reaching for a generic graph
// library.
package subgraph

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/dagarchive/alter/archiveobject"
	"github.com/dagarchive/alter/swhid"
)

// Tristate is a three-valued removability marker.
type Tristate int

const (
	Unknown Tristate = iota
	Removable
	Unremovable
)

func (t Tristate) String() string {
	switch t {
	case Removable:
		return "removable"
	case Unremovable:
		return "unremovable"
	default:
		return "unknown"
	}
}

// Vertex holds a SWHID's attributes and, once fetched, its object.
type Vertex struct {
	SWHID    swhid.SWHID
	Complete bool // all outbound edges are known
	Filled   bool // object fully fetched from storage
	Object   archiveobject.Object

	Removable       Tristate
	RemovableReason string
}

func newVertex(id swhid.SWHID) *Vertex {
	return &Vertex{SWHID: id}
}

// Subgraph is a directed graph keyed by SWHID.
type Subgraph struct {
	vertices map[swhid.SWHID]*Vertex
	out      map[swhid.SWHID]map[swhid.SWHID]struct{}
	in       map[swhid.SWHID]map[swhid.SWHID]struct{}
}

// New returns an empty subgraph.
func New() *Subgraph {
	return &Subgraph{
		vertices: make(map[swhid.SWHID]*Vertex),
		out:      make(map[swhid.SWHID]map[swhid.SWHID]struct{}),
		in:       make(map[swhid.SWHID]map[swhid.SWHID]struct{}),
	}
}

// Len reports the number of vertices.
func (g *Subgraph) Len() int { return len(g.vertices) }

// Vertex returns the vertex for id, or nil if absent.
func (g *Subgraph) Vertex(id swhid.SWHID) *Vertex {
	return g.vertices[id]
}

// Has reports whether id has a vertex in the graph.
func (g *Subgraph) Has(id swhid.SWHID) bool {
	_, ok := g.vertices[id]
	return ok
}

// AddSWHID inserts (or merges into) a vertex for id. Monotone attributes
// (Complete, Filled) only ever flip false→true: once set they are never
// cleared by a later call that omits them.
func (g *Subgraph) AddSWHID(id swhid.SWHID) *Vertex {
	v, ok := g.vertices[id]
	if !ok {
		v = newVertex(id)
		g.vertices[id] = v
		g.out[id] = make(map[swhid.SWHID]struct{})
		g.in[id] = make(map[swhid.SWHID]struct{})
	}
	return v
}

// AddObject inserts a vertex from a fully fetched archived object,
// marking it Filled, and returns the vertex.
func (g *Subgraph) AddObject(o archiveobject.Object) *Vertex {
	v := g.AddSWHID(o.SWHID())
	v.Object = o
	v.Filled = true
	return v
}

// AddEdge records a reference from src to tgt. Both endpoints must
// already exist. Duplicate edges are rejected unless skipDuplicates.
func (g *Subgraph) AddEdge(src, tgt swhid.SWHID, skipDuplicates bool) error {
	if _, ok := g.vertices[src]; !ok {
		return fmt.Errorf("subgraph: source vertex %s does not exist", src)
	}
	if _, ok := g.vertices[tgt]; !ok {
		return fmt.Errorf("subgraph: target vertex %s does not exist", tgt)
	}
	if src == tgt {
		return fmt.Errorf("subgraph: self-loop on %s", src)
	}
	if _, exists := g.out[src][tgt]; exists {
		if skipDuplicates {
			return nil
		}
		return errors.New("subgraph: duplicate edge")
	}
	g.out[src][tgt] = struct{}{}
	g.in[tgt][src] = struct{}{}
	return nil
}

// AddEdges is a convenience wrapper calling AddEdge with skipDuplicates
// for each (src, tgt) pair.
func (g *Subgraph) AddEdges(src swhid.SWHID, targets []swhid.SWHID, skipDuplicates bool) error {
	for _, t := range targets {
		if err := g.AddEdge(src, t, skipDuplicates); err != nil {
			return err
		}
	}
	return nil
}

// OutNeighbors returns the SWHIDs src points at.
func (g *Subgraph) OutNeighbors(src swhid.SWHID) []swhid.SWHID {
	return setKeys(g.out[src])
}

// InNeighbors returns the SWHIDs that point at tgt.
func (g *Subgraph) InNeighbors(tgt swhid.SWHID) []swhid.SWHID {
	return setKeys(g.in[tgt])
}

func setKeys(m map[swhid.SWHID]struct{}) []swhid.SWHID {
	out := make([]swhid.SWHID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// DeleteVertex removes a vertex and all edges touching it.
func (g *Subgraph) DeleteVertex(id swhid.SWHID) {
	for tgt := range g.out[id] {
		delete(g.in[tgt], id)
	}
	for src := range g.in[id] {
		delete(g.out[src], id)
	}
	delete(g.out, id)
	delete(g.in, id)
	delete(g.vertices, id)
}

// SelectOrdered iterates vertices in the fixed object-type order Origin
// → Snapshot → Release → Revision → Directory → Content → ExtID →
// RawExtrinsicMetadata, the natural top-down traversal of the DAG. Used
// by the bundle writer to make bundles reproducibly ordered.
func (g *Subgraph) SelectOrdered() []swhid.SWHID {
	ids := make([]swhid.SWHID, 0, len(g.vertices))
	for id := range g.vertices {
		ids = append(ids, id)
	}
	swhid.SortByOrder(ids)
	return ids
}

// All returns every vertex in the graph, in no particular order.
func (g *Subgraph) All() []*Vertex {
	out := make([]*Vertex, 0, len(g.vertices))
	for _, v := range g.vertices {
		out = append(out, v)
	}
	return out
}

// WriteDot emits a textual GraphViz rendering of the subgraph for
// debugging.
func (g *Subgraph) WriteDot(out io.Writer) error {
	if _, err := fmt.Fprintln(out, "digraph Subgraph {"); err != nil {
		return err
	}
	ids := g.SelectOrdered()
	for _, id := range ids {
		v := g.vertices[id]
		if _, err := fmt.Fprintf(out, "  %q [type=%q complete=%t filled=%t removable=%q];\n",
			id.String(), id.ObjectType.String(), v.Complete, v.Filled, v.Removable); err != nil {
			return err
		}
	}
	srcs := make([]swhid.SWHID, 0, len(g.out))
	for src := range g.out {
		srcs = append(srcs, src)
	}
	sort.Slice(srcs, func(i, j int) bool { return srcs[i].String() < srcs[j].String() })
	for _, src := range srcs {
		tgts := setKeys(g.out[src])
		sort.Slice(tgts, func(i, j int) bool { return tgts[i].String() < tgts[j].String() })
		for _, tgt := range tgts {
			if _, err := fmt.Fprintf(out, "  %q -> %q;\n", src.String(), tgt.String()); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(out, "}")
	return err
}

// Copy returns a deep-enough copy of g: a new graph with the same
// vertex attributes and edges, safe to mutate independently.
func (g *Subgraph) Copy() *Subgraph {
	n := New()
	for id, v := range g.vertices {
		nv := n.AddSWHID(id)
		*nv = *v
	}
	for src, tgts := range g.out {
		for tgt := range tgts {
			n.out[src][tgt] = struct{}{}
			n.in[tgt][src] = struct{}{}
		}
	}
	return n
}
