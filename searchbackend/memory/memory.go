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

// Package memory implements searchbackend.Interface as an in-process fake.
package memory

import (
	"context"
	"sync"

	"github.com/dagarchive/alter/searchbackend"
)

// Index is an in-memory search fake tracking which origin URLs remain.
type Index struct {
	lock    sync.Mutex
	origins map[string]bool
	Flushed int
}

// New returns a fake pre-populated with the given origin URLs.
func New(urls ...string) *Index {
	idx := &Index{origins: make(map[string]bool)}
	for _, u := range urls {
		idx.origins[u] = true
	}
	return idx
}

func (idx *Index) OriginDelete(_ context.Context, url string) (bool, error) {
	idx.lock.Lock()
	defer idx.lock.Unlock()
	existed := idx.origins[url]
	delete(idx.origins, url)
	return existed, nil
}

func (idx *Index) Flush(_ context.Context) error {
	idx.lock.Lock()
	defer idx.lock.Unlock()
	idx.Flushed++
	return nil
}

func (idx *Index) Check(_ context.Context) error { return nil }

var _ searchbackend.Interface = (*Index)(nil)
