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

// Package storagebackend defines the archive storage collaborator
// interface: authoritative per-object fetch, recent-referrer lookup,
// deletion, and restore/insert, plus the concrete backends that satisfy
// it.
package storagebackend

import (
	"context"

	"github.com/dagarchive/alter/archiveobject"
	"github.com/dagarchive/alter/swhid"
)

// DeleteCounters tallies how many objects of each kind a deletion call
// actually removed.
type DeleteCounters map[string]int

// Add merges another counters map into c.
func (c DeleteCounters) Add(other DeleteCounters) {
	for k, v := range other {
		c[k] += v
	}
}

// Interface is the archive storage collaborator: fetch by SWHID per
// object kind, recent back-reference lookup, batched deletion, and the
// insert APIs used on restore.
type Interface interface {
	DeletionInterface

	// GetObject fetches a single object by SWHID, regardless of kind.
	// Returns (nil, nil) if the SWHID does not exist.
	GetObject(ctx context.Context, id swhid.SWHID) (archiveobject.Object, error)

	// GetOriginVisits lists every visit recorded for an origin.
	GetOriginVisits(ctx context.Context, originURL string) ([]*archiveobject.OriginVisit, error)
	// GetOriginVisitStatuses lists every visit-status for a given visit.
	GetOriginVisitStatuses(ctx context.Context, originURL string, visit int64) ([]*archiveobject.OriginVisitStatus, error)

	// InsertObject restores a single object during bundle restoration.
	InsertObject(ctx context.Context, o archiveobject.Object) error
	InsertOriginVisit(ctx context.Context, v *archiveobject.OriginVisit) error
	InsertOriginVisitStatus(ctx context.Context, s *archiveobject.OriginVisitStatus) error
}

// DeletionInterface is the narrower surface the remover's deletion phase
// actually needs.
type DeletionInterface interface {
	// ObjectFindRecentReferences returns up to limit SWHIDs that
	// reference id, observed within the storage's retained recent
	// window. Both the graph service and storage are consulted because
	// the graph service may lag.
	ObjectFindRecentReferences(ctx context.Context, id swhid.SWHID, limit int) ([]swhid.SWHID, error)

	// ObjectDelete removes the given SWHIDs and returns per-kind
	// counters of how many were actually deleted.
	ObjectDelete(ctx context.Context, ids []swhid.SWHID) (DeleteCounters, error)
}

// BatchSize is the number of SWHIDs sent per ObjectDelete call.
const BatchSize = 200
