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

// Package memory implements journalbackend.Interface as an in-process
// fake, recording tombstones for test assertions.
package memory

import (
	"context"
	"sync"

	"github.com/dagarchive/alter/journalbackend"
)

// Writer records every tombstone emitted, keyed by object type.
type Writer struct {
	lock       sync.Mutex
	Tombstones map[string][][]byte
	Flushed    int
}

// New returns an empty fake.
func New() *Writer {
	return &Writer{Tombstones: make(map[string][][]byte)}
}

func (w *Writer) Delete(_ context.Context, objectType string, keys [][]byte) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.Tombstones[objectType] = append(w.Tombstones[objectType], keys...)
	return nil
}

func (w *Writer) Flush(_ context.Context) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.Flushed++
	return nil
}

var _ journalbackend.Interface = (*Writer)(nil)
