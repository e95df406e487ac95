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

// Package backendfactory turns a config.BackendConfig's `cls` tag and
// options dictionary into a concrete collaborator, the way cmd/alter
// wires whatever storage/graph/search/journal/objstore the operator's
// YAML names into the Remover it constructs.
package backendfactory

import (
	"fmt"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/Shopify/sarama"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/dagarchive/alter/config"
	"github.com/dagarchive/alter/graphclient"
	"github.com/dagarchive/alter/graphclient/httpclient"
	"github.com/dagarchive/alter/journalbackend"
	journalkafka "github.com/dagarchive/alter/journalbackend/kafka"
	journalmemory "github.com/dagarchive/alter/journalbackend/memory"
	"github.com/dagarchive/alter/objstorebackend"
	"github.com/dagarchive/alter/objstorebackend/azureblob"
	objstorememory "github.com/dagarchive/alter/objstorebackend/memory"
	"github.com/dagarchive/alter/objstorebackend/s3"
	"github.com/dagarchive/alter/searchbackend"
	searchmemory "github.com/dagarchive/alter/searchbackend/memory"
	"github.com/dagarchive/alter/storagebackend"
	"github.com/dagarchive/alter/storagebackend/leveldb"
	storagememory "github.com/dagarchive/alter/storagebackend/memory"
)

func optString(opts map[string]interface{}, key string) (string, bool) {
	v, ok := opts[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func optFloat(opts map[string]interface{}, key string, def float64) float64 {
	v, ok := opts[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return def
}

func optInt(opts map[string]interface{}, key string, def int) int {
	return int(optFloat(opts, key, float64(def)))
}

func optStringSlice(opts map[string]interface{}, key string) ([]string, bool) {
	v, ok := opts[key]
	if !ok {
		return nil, false
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Storage builds the archive storage collaborator named by cfg.Cls.
func Storage(cfg config.BackendConfig) (storagebackend.Interface, error) {
	switch cfg.Cls {
	case "", "memory":
		return storagememory.New(), nil
	case "leveldb":
		path, ok := optString(cfg.Options, "path")
		if !ok {
			return nil, fmt.Errorf("backendfactory: leveldb storage requires a path option")
		}
		return leveldb.Open(path)
	default:
		return nil, fmt.Errorf("backendfactory: unknown storage cls %q", cfg.Cls)
	}
}

// Graph builds the graph service client named by cfg.Cls, wrapping it in
// the rate-limited cache when rate_limit_per_second or cache_bytes is
// set.
func Graph(cfg config.BackendConfig) (graphclient.Client, error) {
	url, ok := optString(cfg.Options, "url")
	if !ok {
		return nil, fmt.Errorf("backendfactory: graph service requires a url option")
	}
	var client graphclient.Client = httpclient.New(url, nil)

	rate := optFloat(cfg.Options, "rate_limit_per_second", 0)
	cacheBytes := optInt(cfg.Options, "cache_bytes", 0)
	if rate > 0 || cacheBytes > 0 {
		if rate <= 0 {
			rate = 10
		}
		if cacheBytes <= 0 {
			cacheBytes = 64 << 20
		}
		client = graphclient.NewRateLimitedCache(client, rate, cacheBytes)
	}
	return client, nil
}

// Search builds every named search collaborator.
func Search(cfgs map[string]config.BackendConfig) (map[string]searchbackend.Interface, error) {
	out := make(map[string]searchbackend.Interface, len(cfgs))
	for name, cfg := range cfgs {
		switch cfg.Cls {
		case "", "memory":
			out[name] = searchmemory.New()
		default:
			return nil, fmt.Errorf("backendfactory: search %q: unknown cls %q", name, cfg.Cls)
		}
	}
	return out, nil
}

// Storages builds every named deletion-time storage collaborator.
func Storages(cfgs map[string]config.BackendConfig) (map[string]storagebackend.DeletionInterface, error) {
	out := make(map[string]storagebackend.DeletionInterface, len(cfgs))
	for name, cfg := range cfgs {
		s, err := Storage(cfg)
		if err != nil {
			return nil, fmt.Errorf("backendfactory: storage %q: %w", name, err)
		}
		out[name] = s
	}
	return out, nil
}

// Objstorages builds every named object-store collaborator.
func Objstorages(cfgs map[string]config.BackendConfig) (map[string]objstorebackend.Interface, error) {
	out := make(map[string]objstorebackend.Interface, len(cfgs))
	for name, cfg := range cfgs {
		switch cfg.Cls {
		case "", "memory":
			out[name] = objstorememory.New()
		case "s3":
			bucket, ok := optString(cfg.Options, "bucket")
			if !ok {
				return nil, fmt.Errorf("backendfactory: objstore %q: s3 requires a bucket option", name)
			}
			prefix, _ := optString(cfg.Options, "prefix")
			region, _ := optString(cfg.Options, "region")
			sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
			if err != nil {
				return nil, fmt.Errorf("backendfactory: objstore %q: %w", name, err)
			}
			out[name] = s3.New(sess, bucket, prefix)
		case "azureblob":
			containerURL, ok := optString(cfg.Options, "container_url")
			if !ok {
				return nil, fmt.Errorf("backendfactory: objstore %q: azureblob requires a container_url option", name)
			}
			u, err := url.Parse(containerURL)
			if err != nil {
				return nil, fmt.Errorf("backendfactory: objstore %q: %w", name, err)
			}
			pipeline := azblob.NewPipeline(azblob.NewAnonymousCredential(), azblob.PipelineOptions{})
			out[name] = azureblob.New(azblob.NewContainerURL(*u, pipeline))
		default:
			return nil, fmt.Errorf("backendfactory: objstore %q: unknown cls %q", name, cfg.Cls)
		}
	}
	return out, nil
}

// Journals builds every named journal collaborator.
func Journals(cfgs map[string]config.BackendConfig) (map[string]journalbackend.Interface, error) {
	out := make(map[string]journalbackend.Interface, len(cfgs))
	for name, cfg := range cfgs {
		switch cfg.Cls {
		case "", "memory":
			out[name] = journalmemory.New()
		case "kafka":
			brokers, ok := optStringSlice(cfg.Options, "brokers")
			if !ok || len(brokers) == 0 {
				return nil, fmt.Errorf("backendfactory: journal %q: kafka requires a brokers option", name)
			}
			topicPrefix, ok := optString(cfg.Options, "topic_prefix")
			if !ok {
				return nil, fmt.Errorf("backendfactory: journal %q: kafka requires a topic_prefix option", name)
			}
			saramaCfg := sarama.NewConfig()
			saramaCfg.Producer.Return.Successes = true
			saramaCfg.Producer.Return.Errors = true
			producer, err := sarama.NewAsyncProducer(brokers, saramaCfg)
			if err != nil {
				return nil, fmt.Errorf("backendfactory: journal %q: %w", name, err)
			}
			out[name] = journalkafka.New(producer, topicPrefix)
		default:
			return nil, fmt.Errorf("backendfactory: journal %q: unknown cls %q", name, cfg.Cls)
		}
	}
	return out, nil
}
