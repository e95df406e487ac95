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

// Package testserver is an github.com/julienschmidt/httprouter-based
// in-memory HTTP fixture implementing the graph service's two endpoints
// over a subgraph.Subgraph, used by integration tests to exercise
// graphclient/httpclient end-to-end without a real graph service.
package testserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/dagarchive/alter/subgraph"
	"github.com/dagarchive/alter/swhid"
	"github.com/julienschmidt/httprouter"
)

// Server serves the graph service's HTTP surface over an in-memory
// subgraph, reachable at Server.URL as soon as New returns.
type Server struct {
	*httptest.Server
	graph *subgraph.Subgraph
}

// New builds and starts a fixture over g; callers Close it when done.
func New(g *subgraph.Subgraph) *Server {
	router := httprouter.New()
	s := &Server{graph: g}
	router.GET("/graph/visit/nodes/:swhid", s.handleVisitNodes)
	router.GET("/graph/neighbors/:swhid", s.handleNeighbors)
	s.Server = httptest.NewServer(router)
	return s
}

type swhidsResponse struct {
	SWHIDs []string `json:"swhids"`
}

func writeSWHIDs(w http.ResponseWriter, ids []swhid.SWHID) {
	texts := make([]string, len(ids))
	for i, id := range ids {
		texts[i] = id.String()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(swhidsResponse{SWHIDs: texts})
}

func (s *Server) handleVisitNodes(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	seed, err := swhid.Parse(ps.ByName("swhid"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	seen := map[swhid.SWHID]bool{seed: true}
	queue := []swhid.SWHID{seed}
	var reachable []swhid.SWHID
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range s.graph.OutNeighbors(cur) {
			if seen[next] {
				continue
			}
			seen[next] = true
			reachable = append(reachable, next)
			queue = append(queue, next)
		}
	}
	writeSWHIDs(w, reachable)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	target, err := swhid.Parse(ps.ByName("swhid"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	referrers := s.graph.InNeighbors(target)
	if limit > 0 && len(referrers) > limit {
		referrers = referrers[:limit]
	}
	writeSWHIDs(w, referrers)
}
