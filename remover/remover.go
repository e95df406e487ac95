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

// Package remover orchestrates the full removal pipeline —
// get_removable → create_recovery_bundle → remove — owning the
// freshly generated object-secret-key between bundle creation and
// deletion, the per-backend deletion registers built while the bundle
// is written, and the failure-rollback path that replays a bundle back
// into a restoration storage if deletion fails before the post-deletion
// reference check succeeds.
package remover

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/dagarchive/alter/ageseal"
	"github.com/dagarchive/alter/archiveobject"
	"github.com/dagarchive/alter/graphclient"
	"github.com/dagarchive/alter/inventory"
	"github.com/dagarchive/alter/journalbackend"
	"github.com/dagarchive/alter/objstorebackend"
	"github.com/dagarchive/alter/progress"
	"github.com/dagarchive/alter/recoverybundle"
	"github.com/dagarchive/alter/removable"
	"github.com/dagarchive/alter/searchbackend"
	"github.com/dagarchive/alter/secretsharing"
	"github.com/dagarchive/alter/storagebackend"
	"github.com/dagarchive/alter/subgraph"
	"github.com/dagarchive/alter/swhid"
)

// postDeletionReferrerLimit bounds the back-reference query the
// post-deletion check issues for each deleted SWHID. It mirrors
// removable.referrerLimit: large enough to catch a stray new referrer
// without pulling an unbounded reverse fan-in.
const postDeletionReferrerLimit = 10

// Remover owns the named collaborator maps (removal_searches,
// removal_storages, removal_objstorages, removal_journals) plus the
// storage and graph service used for planning, and the restoration
// storage rollback replays a bundle into
// on failure.
type Remover struct {
	Graph              graphclient.Client
	Storage            storagebackend.Interface
	RestorationStorage storagebackend.Interface

	Searches    map[string]searchbackend.Interface
	Storages    map[string]storagebackend.DeletionInterface
	Objstorages map[string]objstorebackend.Interface
	Journals    map[string]journalbackend.Interface

	Progress progress.Factory

	// objectSecretKey is kept only here, in memory, between bundle
	// creation and the deletion phase; it is never written to disk.
	objectSecretKey []byte

	swhids      []swhid.SWHID
	originURLs  []string
	journalKeys map[string][][]byte
	objstoreIDs []objstorebackend.CompositeObjID
}

// New constructs a Remover. progressFactory may be nil (progress.Noop).
func New(graph graphclient.Client, storage, restorationStorage storagebackend.Interface, progressFactory progress.Factory) *Remover {
	if progressFactory == nil {
		progressFactory = progress.Noop
	}
	return &Remover{
		Graph:              graph,
		Storage:            storage,
		RestorationStorage: restorationStorage,
		Searches:           make(map[string]searchbackend.Interface),
		Storages:           make(map[string]storagebackend.DeletionInterface),
		Objstorages:        make(map[string]objstorebackend.Interface),
		Journals:           make(map[string]journalbackend.Interface),
		Progress:           progressFactory,
		journalKeys:        make(map[string][][]byte),
	}
}

// GetRemovable runs the full planning pipeline: expand seeds into an
// inventory subgraph, then mark and prune it down to exactly the
// objects safe to delete.
func (r *Remover) GetRemovable(ctx context.Context, seeds []swhid.SWHID) (*subgraph.RemovableSubgraph, error) {
	builder := inventory.New(r.Graph, r.Storage, r.Progress)
	inv, err := builder.Build(ctx, seeds)
	if err != nil {
		return nil, fmt.Errorf("remover: building inventory: %w", err)
	}
	analyzer := removable.New(r.Graph, r.Storage, r.Progress)
	removableGraph, err := analyzer.Analyze(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("remover: analyzing removability: %w", err)
	}
	return removableGraph, nil
}

// CreateRecoveryBundle generates a fresh object keypair, splits its
// private half under sharing, and streams every object in removableGraph
// into an encrypted bundle at path, registering each one into this
// Remover's in-memory deletion registers as it goes. The object secret
// key never touches disk: only its encrypted shares do.
func (r *Remover) CreateRecoveryBundle(ctx context.Context, path string, removableGraph *subgraph.RemovableSubgraph, removalIdentifier string, sharing *secretsharing.SecretSharing, reason string, expire *time.Time) (err error) {
	identity, err := ageseal.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("remover: generating object keypair: %w", err)
	}
	rawKey, err := ageseal.IdentityRawBytes(identity)
	if err != nil {
		return fmt.Errorf("remover: %w", err)
	}

	shares, err := sharing.GenerateEncryptedShares(removalIdentifier, rawKey)
	if err != nil {
		return fmt.Errorf("remover: generating encrypted shares: %w", err)
	}

	creator, err := recoverybundle.CreateRecoveryBundle(path, r.Storage, removalIdentifier, identity.Recipient().String(), shares, r.register)
	if err != nil {
		return fmt.Errorf("remover: creating recovery bundle: %w", err)
	}
	defer creator.Close(&err)

	if reason != "" {
		creator.SetReason(reason)
	}
	if expire != nil {
		if err := creator.SetExpire(*expire); err != nil {
			return &Error{Msg: fmt.Sprintf("unable to set expiration date: %v", err)}
		}
	}

	ids := removableGraph.SelectOrdered()
	n, err := creator.BackupSWHIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("remover: backing up objects: %w", err)
	}
	if n == 0 {
		return &Error{Msg: "no objects were removable, nothing to back up"}
	}

	r.objectSecretKey = rawKey
	return nil
}

// register is the recoverybundle.RegistrationFunc invoked once per
// object written to the bundle, populating this Remover's per-backend
// deletion batches without a second pass over the subgraph.
func (r *Remover) register(o archiveobject.Object) {
	id := o.SWHID()
	r.swhids = append(r.swhids, id)
	r.journalKeys[id.ObjectType.String()] = append(r.journalKeys[id.ObjectType.String()], id.ObjectID[:])

	switch v := o.(type) {
	case *archiveobject.Origin:
		r.originURLs = append(r.originURLs, v.URL)
	case *archiveobject.Content:
		r.objstoreIDs = append(r.objstoreIDs, objstorebackend.CompositeObjID(hex.EncodeToString(v.SHA1Git[:])))
	}
}

// Counters tallies how many objects each backend reported deleted.
type Counters struct {
	Storage  storagebackend.DeleteCounters
	Search   int
	Journal  int
	Objstore int
}

// Remove re-checks for references gained since planning, then performs
// the deletion phase — search, then storage, then journal, then object
// store, each independently across every configured backend of that
// kind. The reference check runs immediately before the irreversible
// deletion, against the still-intact storage, rather than after: by the
// time an object is gone its own referrer records are gone with it, so
// this is the last point where a referrer gained during bundle creation
// can still be seen. If either step fails, the bundle at bundlePath is
// replayed into RestorationStorage and the original error is returned.
func (r *Remover) Remove(ctx context.Context, bundlePath string, provider recoverybundle.DecryptionKeyProvider) (Counters, error) {
	if err := r.postDeletionCheck(ctx); err != nil {
		return Counters{}, r.rollback(ctx, bundlePath, provider, err)
	}
	counters, err := r.deleteAll(ctx)
	if err != nil {
		return counters, r.rollback(ctx, bundlePath, provider, err)
	}
	return counters, nil
}

func (r *Remover) deleteAll(ctx context.Context) (Counters, error) {
	var counters Counters

	for name, s := range r.Searches {
		for _, url := range r.originURLs {
			if _, err := s.OriginDelete(ctx, url); err != nil {
				return counters, fmt.Errorf("remover: search %q: deleting origin %s: %w", name, url, err)
			}
			counters.Search++
		}
		if err := s.Flush(ctx); err != nil {
			return counters, fmt.Errorf("remover: search %q: flush: %w", name, err)
		}
	}

	counters.Storage = make(storagebackend.DeleteCounters)
	for name, s := range r.Storages {
		for start := 0; start < len(r.swhids); start += storagebackend.BatchSize {
			end := start + storagebackend.BatchSize
			if end > len(r.swhids) {
				end = len(r.swhids)
			}
			batch, err := s.ObjectDelete(ctx, r.swhids[start:end])
			if err != nil {
				return counters, fmt.Errorf("remover: storage %q: deleting batch: %w", name, err)
			}
			counters.Storage.Add(batch)
		}
	}

	for name, j := range r.Journals {
		for kind, keys := range r.journalKeys {
			if err := j.Delete(ctx, kind, keys); err != nil {
				return counters, fmt.Errorf("remover: journal %q: deleting %s tombstones: %w", name, kind, err)
			}
			counters.Journal += len(keys)
		}
		if err := j.Flush(ctx); err != nil {
			return counters, fmt.Errorf("remover: journal %q: flush: %w", name, err)
		}
	}

	for name, o := range r.Objstorages {
		for _, id := range r.objstoreIDs {
			if err := o.Delete(ctx, id); err != nil {
				if err == objstorebackend.ErrNotFound {
					log.Printf("remover: objstore %q: %s not found, skipping", name, id)
					continue
				}
				return counters, fmt.Errorf("remover: objstore %q: deleting %s: %w", name, id, err)
			}
			counters.Objstore++
		}
	}

	return counters, nil
}

// postDeletionCheck guards against references inserted into the archive
// between planning and deletion: for every deleted SWHID except origins,
// it queries storage for recent back-references, failing if any
// referrer lies outside the deleted set.
func (r *Remover) postDeletionCheck(ctx context.Context) error {
	deleted := make(map[swhid.SWHID]bool, len(r.swhids))
	for _, id := range r.swhids {
		deleted[id] = true
	}
	for _, id := range r.swhids {
		if id.ObjectType == swhid.Origin {
			continue
		}
		refs, err := r.Storage.ObjectFindRecentReferences(ctx, id, postDeletionReferrerLimit)
		if err != nil {
			return fmt.Errorf("remover: post-deletion check of %s: %w", id, err)
		}
		for _, ref := range refs {
			if !deleted[ref] {
				return &Error{Msg: fmt.Sprintf("%s gained a referrer (%s) outside the removed set after planning", id, ref)}
			}
		}
	}
	return nil
}

// rollback restores the bundle into RestorationStorage and returns
// cause wrapped so callers can see what triggered the rollback.
func (r *Remover) rollback(ctx context.Context, bundlePath string, provider recoverybundle.DecryptionKeyProvider, cause error) error {
	if r.RestorationStorage == nil {
		return fmt.Errorf("remover: %w (no restoration storage configured, bundle at %s was not replayed)", cause, bundlePath)
	}
	bundle, err := recoverybundle.Open(bundlePath, provider)
	if err != nil {
		return fmt.Errorf("remover: %w (rollback also failed: opening bundle: %v)", cause, err)
	}
	defer bundle.Close()
	if _, err := bundle.Restore(ctx, r.RestorationStorage); err != nil {
		return fmt.Errorf("remover: %w (rollback also failed: restoring bundle: %v)", cause, err)
	}
	return fmt.Errorf("remover: %w (bundle replayed into restoration storage)", cause)
}

// ResumeFromBundle re-populates the deletion registers by iterating
// every object in an already-created bundle, so a crashed or
// interrupted removal can proceed straight to the deletion phase
// without rebuilding the inventory.
func (r *Remover) ResumeFromBundle(ctx context.Context, bundlePath string, provider recoverybundle.DecryptionKeyProvider) error {
	bundle, err := recoverybundle.Open(bundlePath, provider)
	if err != nil {
		return fmt.Errorf("remover: resuming from %s: %w", bundlePath, err)
	}
	defer bundle.Close()

	for _, kind := range []func() ([]archiveobject.Object, error){
		wrapSlice(bundle.Origins),
		wrapSlice(bundle.Snapshots),
		wrapSlice(bundle.Releases),
		wrapSlice(bundle.Revisions),
		wrapSlice(bundle.Directories),
		wrapSlice(bundle.Contents),
		wrapSlice(bundle.SkippedContents),
		wrapSlice(bundle.ExtIDs),
		wrapSlice(bundle.RawExtrinsicMetadata),
	} {
		objs, err := kind()
		if err != nil {
			return fmt.Errorf("remover: resuming from %s: %w", bundlePath, err)
		}
		for _, o := range objs {
			r.register(o)
		}
	}
	return nil
}

// wrapSlice adapts one of Bundle's typed iterators (each returning a
// concrete *T slice) into the archiveobject.Object-slice shape
// ResumeFromBundle iterates over generically.
func wrapSlice[T archiveobject.Object](f func() ([]T, error)) func() ([]archiveobject.Object, error) {
	return func() ([]archiveobject.Object, error) {
		typed, err := f()
		if err != nil {
			return nil, err
		}
		out := make([]archiveobject.Object, len(typed))
		for i, t := range typed {
			out[i] = t
		}
		return out, nil
	}
}
