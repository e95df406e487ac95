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

// Package s3 implements objstorebackend.Interface over
// github.com/aws/aws-sdk-go, mapping a composite object id onto an S3
// object key within a configured bucket.
package s3

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/dagarchive/alter/objstorebackend"
)

// Store deletes blobs from a single S3 bucket, keyed by the composite
// object id with the configured prefix in front of it.
type Store struct {
	client *s3.S3
	bucket string
	prefix string
}

// New builds a Store from an AWS session, a target bucket, and an
// optional key prefix.
func New(sess *session.Session, bucket, prefix string) *Store {
	return &Store{client: s3.New(sess), bucket: bucket, prefix: prefix}
}

func (s *Store) key(id objstorebackend.CompositeObjID) string {
	return s.prefix + string(id)
}

func (s *Store) Delete(ctx context.Context, id objstorebackend.CompositeObjID) error {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return objstorebackend.ErrNotFound
		}
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	return err
}

var _ objstorebackend.Interface = (*Store)(nil)
