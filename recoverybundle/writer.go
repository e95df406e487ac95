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

package recoverybundle

import (
	"archive/zip"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"filippo.io/age"

	"github.com/dagarchive/alter/ageseal"
	"github.com/dagarchive/alter/archiveobject"
	"github.com/dagarchive/alter/storagebackend"
	"github.com/dagarchive/alter/swhid"
)

// RegistrationFunc is invoked once per object written to the bundle, so
// the remover orchestrator can build its per-backend deletion batches
// without a second pass over the subgraph.
type RegistrationFunc func(o archiveobject.Object)

// RecoveryBundleCreator streams removable objects into an encrypted,
// versioned, zip-structured bundle. Construction is a Create/Close pair:
// Go has no context managers, so callers are expected to
// `defer creator.Close(&err)` the way go-ethereum's freezerTable
// finalizes its index file on Close, leaving the partial file removed on
// any error path and the manifest written last on success.
type RecoveryBundleCreator struct {
	path    string
	f       *os.File
	zw      *zip.Writer
	storage storagebackend.Interface

	recipient age.Recipient
	onRegister RegistrationFunc

	removalIdentifier string
	shares            map[string]string
	reason            string
	expire            *time.Time

	swhids          []string
	metadataOrdinal int
	closed          bool
}

// CreateRecoveryBundle opens path for writing and prepares a bundle
// sealed to objectPublicKey, whose private half has already been split
// into shares by the secretsharing package. storage supplies the object
// bodies BackupSWHIDs streams in; onRegister may be nil.
func CreateRecoveryBundle(path string, storage storagebackend.Interface, removalIdentifier, objectPublicKey string, shares map[string]string, onRegister RegistrationFunc) (*RecoveryBundleCreator, error) {
	if removalIdentifier == "" {
		return nil, &ValidationError{Msg: "removal identifier must not be empty"}
	}
	recipient, err := ageseal.Recipient(objectPublicKey)
	if err != nil {
		return nil, fmt.Errorf("recoverybundle: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recoverybundle: creating %s: %w", path, err)
	}
	return &RecoveryBundleCreator{
		path:              path,
		f:                 f,
		zw:                zip.NewWriter(f),
		storage:           storage,
		recipient:         recipient,
		onRegister:        onRegister,
		removalIdentifier: removalIdentifier,
		shares:            shares,
	}, nil
}

// SetReason records the operator-supplied free-text removal reason.
func (c *RecoveryBundleCreator) SetReason(reason string) { c.reason = reason }

// SetExpire records the bundle's expiry, rejecting dates in the past.
func (c *RecoveryBundleCreator) SetExpire(t time.Time) error {
	if t.Before(time.Now()) {
		return &ValidationError{Msg: "expire must not be in the past"}
	}
	c.expire = &t
	return nil
}

// BackupSWHIDs fetches each object from storage in the given order
// (normally Subgraph.SelectOrdered's output), serializes, encrypts, and
// writes it, invoking the registration callback for each. For origins it
// also emits their visits and visit-statuses; raw extrinsic metadata
// entries are numbered in the order they're written, preserving
// discovery order since metadata may itself target other metadata.
// Returns the number of objects actually written.
func (c *RecoveryBundleCreator) BackupSWHIDs(ctx context.Context, ids []swhid.SWHID) (int, error) {
	written := 0
	for _, id := range ids {
		o, err := c.storage.GetObject(ctx, id)
		if err != nil {
			return written, fmt.Errorf("recoverybundle: fetching %s: %w", id, err)
		}
		if o == nil {
			continue
		}
		if err := c.writeObjectEntry(o); err != nil {
			return written, err
		}
		c.swhids = append(c.swhids, id.String())
		written++
		if c.onRegister != nil {
			c.onRegister(o)
		}

		if origin, ok := o.(*archiveobject.Origin); ok {
			if err := c.backupOriginVisits(ctx, origin); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (c *RecoveryBundleCreator) backupOriginVisits(ctx context.Context, origin *archiveobject.Origin) error {
	visits, err := c.storage.GetOriginVisits(ctx, origin.URL)
	if err != nil {
		return fmt.Errorf("recoverybundle: listing visits for %s: %w", origin.URL, err)
	}
	for _, v := range visits {
		if err := c.writeOriginVisitEntry(origin, v); err != nil {
			return err
		}
		statuses, err := c.storage.GetOriginVisitStatuses(ctx, origin.URL, v.Visit)
		if err != nil {
			return fmt.Errorf("recoverybundle: listing visit statuses for %s/%d: %w", origin.URL, v.Visit, err)
		}
		for _, s := range statuses {
			if err := c.writeOriginVisitStatusEntry(origin, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *RecoveryBundleCreator) writeObjectEntry(o archiveobject.Object) error {
	seg := o.SWHID().FilenameSegment()
	var name string
	switch v := o.(type) {
	case *archiveobject.Content:
		name = "contents/" + seg + ".age"
	case *archiveobject.SkippedContent:
		name = fmt.Sprintf("skipped_contents/%s_%d.age", seg, v.Length)
	case *archiveobject.Directory:
		name = "directories/" + seg + ".age"
	case *archiveobject.Revision:
		name = "revisions/" + seg + ".age"
	case *archiveobject.Release:
		name = "releases/" + seg + ".age"
	case *archiveobject.Snapshot:
		name = "snapshots/" + seg + ".age"
	case *archiveobject.Origin:
		name = "origins/" + seg + ".age"
	case *archiveobject.ExtID:
		id := v.ID()
		name = fmt.Sprintf("extids/%s.age", hex.EncodeToString(id[:]))
	case *archiveobject.RawExtrinsicMetadata:
		c.metadataOrdinal++
		name = fmt.Sprintf("raw_extrinsic_metadata/%d_%s.age", c.metadataOrdinal, seg)
	default:
		return fmt.Errorf("recoverybundle: unsupported object type %T", o)
	}
	return c.writeEncryptedEntry(name, o)
}

func (c *RecoveryBundleCreator) writeOriginVisitEntry(origin *archiveobject.Origin, v *archiveobject.OriginVisit) error {
	name := fmt.Sprintf("origin_visits/%s_%d.age", origin.SWHID().FilenameSegment(), v.Visit)
	return c.writeEncryptedEntry(name, v)
}

func (c *RecoveryBundleCreator) writeOriginVisitStatusEntry(origin *archiveobject.Origin, s *archiveobject.OriginVisitStatus) error {
	name := fmt.Sprintf("origin_visit_statuses/%s_%d_%s.age", origin.SWHID().FilenameSegment(), s.Visit, s.Date.UTC().Format(time.RFC3339Nano))
	return c.writeEncryptedEntry(name, s)
}

func (c *RecoveryBundleCreator) writeEncryptedEntry(name string, o interface{}) error {
	plaintext, err := archiveobject.MarshalCanonical(o)
	if err != nil {
		return fmt.Errorf("recoverybundle: serializing %s: %w", name, err)
	}
	ciphertext, err := ageseal.Encrypt(plaintext, c.recipient)
	if err != nil {
		return fmt.Errorf("recoverybundle: sealing %s: %w", name, err)
	}
	w, err := c.zw.Create(name)
	if err != nil {
		return fmt.Errorf("recoverybundle: creating entry %s: %w", name, err)
	}
	if _, err := w.Write(ciphertext); err != nil {
		return fmt.Errorf("recoverybundle: writing entry %s: %w", name, err)
	}
	return nil
}

// Close finalizes the bundle. Callers invoke it as
// `defer creator.Close(&err)`: if *errp already holds an error, the
// partial file is discarded; otherwise the manifest is written last and
// any finalization failure is stored back into *errp.
func (c *RecoveryBundleCreator) Close(errp *error) {
	if c.closed {
		return
	}
	c.closed = true

	if *errp != nil {
		c.zw.Close()
		c.f.Close()
		os.Remove(c.path)
		return
	}

	if err := c.finalize(); err != nil {
		*errp = err
		c.zw.Close()
		c.f.Close()
		os.Remove(c.path)
		return
	}
}

func (c *RecoveryBundleCreator) finalize() error {
	if len(c.swhids) == 0 {
		return &ValidationError{Msg: "no objects were added to the bundle"}
	}
	if len(c.shares) == 0 {
		return &ValidationError{Msg: "no decryption key shares were supplied"}
	}
	m := &Manifest{
		Version:             CurrentVersion,
		RemovalIdentifier:   c.removalIdentifier,
		Created:             time.Now().UTC(),
		SWHIDs:              c.swhids,
		DecryptionKeyShares: c.shares,
		Reason:              c.reason,
		Expire:              c.expire,
	}
	data, err := m.Dump()
	if err != nil {
		return err
	}
	w, err := c.zw.Create("manifest.yml")
	if err != nil {
		return fmt.Errorf("recoverybundle: creating manifest entry: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("recoverybundle: writing manifest entry: %w", err)
	}
	if err := c.zw.Close(); err != nil {
		return fmt.Errorf("recoverybundle: closing zip writer: %w", err)
	}
	if err := c.f.Close(); err != nil {
		return fmt.Errorf("recoverybundle: closing %s: %w", c.path, err)
	}
	return nil
}
