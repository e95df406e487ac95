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

// Package memory implements objstorebackend.Interface as an in-process fake.
package memory

import (
	"context"
	"sync"

	"github.com/dagarchive/alter/objstorebackend"
)

// Store is an in-memory object store fake.
type Store struct {
	lock    sync.Mutex
	Deleted map[objstorebackend.CompositeObjID]bool
	present map[objstorebackend.CompositeObjID]bool
}

// New returns an empty fake, optionally pre-populated with ids.
func New(ids ...objstorebackend.CompositeObjID) *Store {
	s := &Store{
		Deleted: make(map[objstorebackend.CompositeObjID]bool),
		present: make(map[objstorebackend.CompositeObjID]bool),
	}
	for _, id := range ids {
		s.present[id] = true
	}
	return s
}

func (s *Store) Add(id objstorebackend.CompositeObjID) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.present[id] = true
}

func (s *Store) Delete(_ context.Context, id objstorebackend.CompositeObjID) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.present[id] {
		return objstorebackend.ErrNotFound
	}
	delete(s.present, id)
	s.Deleted[id] = true
	return nil
}

var _ objstorebackend.Interface = (*Store)(nil)
