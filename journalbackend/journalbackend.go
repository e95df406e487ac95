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

// Package journalbackend defines the journal (event log) collaborator:
// per-object-kind tombstone emission plus flush, with Kafka-compatible
// semantics assumed.
package journalbackend

import "context"

// Interface is the journal writer collaborator.
type Interface interface {
	// Delete emits a tombstone for each key, tagged with objectType.
	Delete(ctx context.Context, objectType string, keys [][]byte) error
	// Flush blocks until every previously emitted tombstone has been
	// acknowledged by the broker.
	Flush(ctx context.Context) error
}
