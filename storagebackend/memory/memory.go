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

// Package memory implements storagebackend.Interface with an in-process
// map-backed fake, used by every test and by list-candidates/dry-run
// flows against small datasets.
package memory

import (
	"context"
	"sync"

	"github.com/dagarchive/alter/archiveobject"
	"github.com/dagarchive/alter/storagebackend"
	"github.com/dagarchive/alter/swhid"
)

// Database is an ephemeral archive storage backed by in-memory maps.
// Apart from basic object storage it also tracks inbound references so
// ObjectFindRecentReferences can answer authoritatively.
type Database struct {
	lock sync.RWMutex

	objects map[swhid.SWHID]archiveobject.Object
	// referrers[target] = set of SWHIDs that point at target.
	referrers map[swhid.SWHID]map[swhid.SWHID]struct{}

	visits   map[string][]*archiveobject.OriginVisit
	statuses map[string][]*archiveobject.OriginVisitStatus
}

// New returns an empty in-memory storage.
func New() *Database {
	return &Database{
		objects:   make(map[swhid.SWHID]archiveobject.Object),
		referrers: make(map[swhid.SWHID]map[swhid.SWHID]struct{}),
		visits:    make(map[string][]*archiveobject.OriginVisit),
		statuses:  make(map[string][]*archiveobject.OriginVisitStatus),
	}
}

// Add inserts an object and indexes its outbound references.
func (db *Database) Add(o archiveobject.Object) {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.addLocked(o)
}

func (db *Database) addLocked(o archiveobject.Object) {
	id := o.SWHID()
	db.objects[id] = o
	for _, target := range archiveobject.OutboundTargets(o) {
		if db.referrers[target] == nil {
			db.referrers[target] = make(map[swhid.SWHID]struct{})
		}
		db.referrers[target][id] = struct{}{}
	}
}

// AddVisit records an origin visit (and, via AddVisitStatus, its statuses).
func (db *Database) AddVisit(v *archiveobject.OriginVisit) {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.visits[v.OriginURL] = append(db.visits[v.OriginURL], v)
}

// AddVisitStatus records an origin visit status.
func (db *Database) AddVisitStatus(s *archiveobject.OriginVisitStatus) {
	db.lock.Lock()
	defer db.lock.Unlock()
	key := s.OriginURL
	db.statuses[key] = append(db.statuses[key], s)
}

func (db *Database) GetObject(_ context.Context, id swhid.SWHID) (archiveobject.Object, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return db.objects[id], nil
}

func (db *Database) GetOriginVisits(_ context.Context, originURL string) ([]*archiveobject.OriginVisit, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return db.visits[originURL], nil
}

func (db *Database) GetOriginVisitStatuses(_ context.Context, originURL string, visit int64) ([]*archiveobject.OriginVisitStatus, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	var out []*archiveobject.OriginVisitStatus
	for _, s := range db.statuses[originURL] {
		if s.Visit == visit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (db *Database) InsertObject(_ context.Context, o archiveobject.Object) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.addLocked(o)
	return nil
}

func (db *Database) InsertOriginVisit(_ context.Context, v *archiveobject.OriginVisit) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.visits[v.OriginURL] = append(db.visits[v.OriginURL], v)
	return nil
}

func (db *Database) InsertOriginVisitStatus(_ context.Context, s *archiveobject.OriginVisitStatus) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.statuses[s.OriginURL] = append(db.statuses[s.OriginURL], s)
	return nil
}

func (db *Database) ObjectFindRecentReferences(_ context.Context, id swhid.SWHID, limit int) ([]swhid.SWHID, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	referrers := db.referrers[id]
	out := make([]swhid.SWHID, 0, len(referrers))
	for r := range referrers {
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (db *Database) ObjectDelete(_ context.Context, ids []swhid.SWHID) (storagebackend.DeleteCounters, error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	counters := make(storagebackend.DeleteCounters)
	for _, id := range ids {
		o, ok := db.objects[id]
		if !ok {
			continue
		}
		for _, target := range archiveobject.OutboundTargets(o) {
			delete(db.referrers[target], id)
		}
		delete(db.objects, id)
		delete(db.referrers, id)
		counters[id.ObjectType.String()+":delete"]++
	}
	return counters, nil
}

var _ storagebackend.Interface = (*Database)(nil)
