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

// Package graphclient defines the high-throughput graph service
// collaborator consumed by the inventory builder and removability
// analysis: forward reachability from a seed, and bounded neighbor
// lookups. Both operations may lag the authoritative archive storage.
package graphclient

import (
	"context"

	"github.com/dagarchive/alter/swhid"
)

// Client is the graph service collaborator.
type Client interface {
	// VisitNodesFrom enumerates every SWHID reachable from seed,
	// forward direction, as the graph service currently knows it.
	VisitNodesFrom(ctx context.Context, seed swhid.SWHID) ([]swhid.SWHID, error)
	// Neighbors returns up to limit SWHIDs that reference target
	// (reverse direction), as the graph service currently knows it.
	Neighbors(ctx context.Context, target swhid.SWHID, limit int) ([]swhid.SWHID, error)
}
