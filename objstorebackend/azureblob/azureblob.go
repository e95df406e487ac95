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

// Package azureblob implements objstorebackend.Interface over
// github.com/Azure/azure-storage-blob-go, an alternate cloud object
// store backend alongside objstorebackend/s3.
package azureblob

import (
	"context"

	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/dagarchive/alter/objstorebackend"
)

// Store deletes blobs from a single Azure container, keyed directly by
// the composite object id.
type Store struct {
	container azblob.ContainerURL
}

// New wraps an already-authenticated container URL.
func New(container azblob.ContainerURL) *Store {
	return &Store{container: container}
}

func (s *Store) Delete(ctx context.Context, id objstorebackend.CompositeObjID) error {
	blob := s.container.NewBlockBlobURL(string(id))
	_, err := blob.Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	if err != nil {
		if stgErr, ok := err.(azblob.StorageError); ok && stgErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return objstorebackend.ErrNotFound
		}
		return err
	}
	return nil
}

var _ objstorebackend.Interface = (*Store)(nil)
