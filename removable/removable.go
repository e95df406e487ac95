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

// Package removable marks which vertices of an inventory subgraph have
// no outside references and prunes the rest, producing a
// RemovableSubgraph: the exact set of objects safe to delete.
package removable

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dagarchive/alter/graphclient"
	"github.com/dagarchive/alter/progress"
	"github.com/dagarchive/alter/storagebackend"
	"github.com/dagarchive/alter/subgraph"
	"github.com/dagarchive/alter/swhid"
)

// referrerLimit bounds how many recent referrers are fetched per vertex;
// a single positive hit outside the candidate set is enough to mark a
// vertex unremovable, so a small bound keeps this cheap.
const referrerLimit = 10

// Analyzer runs the removability fixed-point over an inventory subgraph.
type Analyzer struct {
	Graph    graphclient.Client
	Storage  storagebackend.DeletionInterface
	Progress progress.Factory
}

// New constructs an Analyzer. progressFactory may be progress.Noop.
func New(graph graphclient.Client, storage storagebackend.DeletionInterface, progressFactory progress.Factory) *Analyzer {
	if progressFactory == nil {
		progressFactory = progress.Noop
	}
	return &Analyzer{Graph: graph, Storage: storage, Progress: progressFactory}
}

// Analyze marks every vertex of inv as Removable or Unremovable and
// returns a RemovableSubgraph with the unremovable vertices already
// pruned.
func (a *Analyzer) Analyze(ctx context.Context, inv *subgraph.InventorySubgraph) (*subgraph.RemovableSubgraph, error) {
	// leaves-first order: reverse of the top-down SelectOrdered order.
	order := inv.SelectOrdered()
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}

	referrers := make(map[swhid.SWHID]mapset.Set[swhid.SWHID], len(order))

	candidates, err := subgraph.BuildBloomIndex(inv.Subgraph)
	if err != nil {
		return nil, fmt.Errorf("removable: building candidate index: %w", err)
	}

	bar := a.Progress.New("removability")
	bar.SetTotal(len(order))
	defer bar.Close()

	for _, id := range order {
		v := inv.Vertex(id)
		v.Removable = subgraph.Unknown

		if id.ObjectType == swhid.Origin {
			// Origins are never "referenced" in the graph sense.
			referrers[id] = mapset.NewSet[swhid.SWHID]()
			continue
		}

		set, err := a.collectReferrers(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("removable: referrers of %s: %w", id, err)
		}
		referrers[id] = set
		bar.Add(1)
	}

	// Fixed point: repeatedly recompute removability from the current
	// candidate membership until nothing changes. A vertex is removable
	// iff every one of its known referrers is itself in the removable
	// set (or it has none at all).
	for changed := true; changed; {
		changed = false
		for _, id := range order {
			v := inv.Vertex(id)
			refs := referrers[id]
			removable := true
			refs.Each(func(r swhid.SWHID) bool {
				if !candidates.MaybeContains(r) {
					// Definitely not a vertex of this subgraph: skip the
					// map lookup, it is outside the removable set.
					removable = false
					return true
				}
				rv := inv.Vertex(r)
				if rv == nil || rv.Removable != subgraph.Removable {
					removable = false
					return true
				}
				return false
			})
			next := subgraph.Unremovable
			reason := "has a referrer outside the removable set"
			if removable {
				next = subgraph.Removable
				reason = ""
			}
			if v.Removable != next {
				v.Removable = next
				v.RemovableReason = reason
				changed = true
			}
		}
	}

	result := subgraph.NewRemovableSubgraph(inv.Subgraph)
	result.DeleteUnremovable()
	return result, nil
}

// collectReferrers unions the graph service's and the archive storage's
// answers for "who references this SWHID" — both are consulted because
// the graph may lag storage.
func (a *Analyzer) collectReferrers(ctx context.Context, id swhid.SWHID) (mapset.Set[swhid.SWHID], error) {
	set := mapset.NewSet[swhid.SWHID]()

	graphRefs, err := a.retryNeighbors(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, r := range graphRefs {
		set.Add(r)
	}

	storageRefs, err := a.Storage.ObjectFindRecentReferences(ctx, id, referrerLimit)
	if err != nil {
		return nil, err
	}
	for _, r := range storageRefs {
		set.Add(r)
	}

	return set, nil
}

// retryNeighbors retries the graph service's back-reference query once
// before giving up, since the graph service may lag behind storage.
func (a *Analyzer) retryNeighbors(ctx context.Context, id swhid.SWHID) ([]swhid.SWHID, error) {
	refs, err := a.Graph.Neighbors(ctx, id, referrerLimit)
	if err != nil {
		refs, err = a.Graph.Neighbors(ctx, id, referrerLimit)
	}
	return refs, err
}
