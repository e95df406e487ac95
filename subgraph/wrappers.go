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

package subgraph

import "github.com/dagarchive/alter/swhid"

// InventorySubgraph is the subgraph built by the inventory builder: every
// object transitively reachable from a set of seeds, not yet annotated
// with removability.
type InventorySubgraph struct {
	*Subgraph
}

// NewInventorySubgraph returns an empty inventory subgraph.
func NewInventorySubgraph() *InventorySubgraph {
	return &InventorySubgraph{Subgraph: New()}
}

// RemovableSubgraph is an InventorySubgraph annotated (and eventually
// pruned) by the removability analysis: every surviving vertex has
// Removable == Removable.
type RemovableSubgraph struct {
	*Subgraph
}

// NewRemovableSubgraph wraps an existing subgraph (typically the
// inventory subgraph once annotation is complete) as a removable
// subgraph view.
func NewRemovableSubgraph(g *Subgraph) *RemovableSubgraph {
	return &RemovableSubgraph{Subgraph: g}
}

// DeleteUnremovable drops every vertex not marked Removable, leaving
// exactly the set of objects safe to delete.
func (r *RemovableSubgraph) DeleteUnremovable() {
	var toDelete []swhid.SWHID
	for id, v := range r.vertices {
		if v.Removable != Removable {
			toDelete = append(toDelete, id)
		}
	}
	for _, id := range toDelete {
		r.DeleteVertex(id)
	}
}

// RemovableSWHIDs returns every SWHID currently marked Removable.
func (r *RemovableSubgraph) RemovableSWHIDs() []swhid.SWHID {
	var out []swhid.SWHID
	for id, v := range r.vertices {
		if v.Removable == Removable {
			out = append(out, id)
		}
	}
	return out
}
