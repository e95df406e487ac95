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

// Package httpclient implements graphclient.Client as a small REST
// client, encoding/json over net/http, against a /graph/visit/nodes/{swhid}
// and /graph/neighbors/{swhid} pair of endpoints.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dagarchive/alter/swhid"
)

// Client is a REST-backed graph service client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client against baseURL (e.g. "https://graph.example.org").
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type swhidsResponse struct {
	SWHIDs []string `json:"swhids"`
}

func (c *Client) getSWHIDs(ctx context.Context, path string) ([]swhid.SWHID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graphclient/httpclient: %s: unexpected status %d", path, resp.StatusCode)
	}
	var payload swhidsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	out := make([]swhid.SWHID, 0, len(payload.SWHIDs))
	for _, text := range payload.SWHIDs {
		s, err := swhid.Parse(text)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) VisitNodesFrom(ctx context.Context, seed swhid.SWHID) ([]swhid.SWHID, error) {
	return c.getSWHIDs(ctx, "/graph/visit/nodes/"+url.PathEscape(seed.String()))
}

func (c *Client) Neighbors(ctx context.Context, target swhid.SWHID, limit int) ([]swhid.SWHID, error) {
	path := "/graph/neighbors/" + url.PathEscape(target.String())
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	return c.getSWHIDs(ctx, path)
}
