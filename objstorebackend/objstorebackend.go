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

// Package objstorebackend defines the object-store blob collaborator:
// delete-by-composite-id, plus the concrete backends that satisfy it.
package objstorebackend

import (
	"context"
	"errors"
)

// CompositeObjID identifies a blob within an object store, independent
// of the SWHID scheme (some deployments shard blobs by a hash prefix or
// bucket key rather than the raw object id).
type CompositeObjID string

// ErrNotFound is returned by Delete when the composite id is unknown;
// callers log it rather than treat it as fatal.
var ErrNotFound = errors.New("objstorebackend: not found")

// Interface is the object-store blob collaborator.
type Interface interface {
	Delete(ctx context.Context, id CompositeObjID) error
}
