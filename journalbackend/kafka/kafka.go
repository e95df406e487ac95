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

// Package kafka implements journalbackend.Interface over
// github.com/Shopify/sarama, emitting a null-value tombstone message per
// key per object kind and waiting on the producer's Successes channel on
// Flush.
package kafka

import (
	"context"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/dagarchive/alter/journalbackend"
)

// Writer is a sarama-backed journal writer. Topics are named
// "<topicPrefix>.<objectType>".
type Writer struct {
	producer    sarama.AsyncProducer
	topicPrefix string
	pending     int
}

// New wraps an already-configured synchronous-ack async producer.
// Config must set Producer.Return.Successes and Producer.Return.Errors.
func New(producer sarama.AsyncProducer, topicPrefix string) *Writer {
	return &Writer{producer: producer, topicPrefix: topicPrefix}
}

func (w *Writer) topic(objectType string) string {
	return fmt.Sprintf("%s.%s", w.topicPrefix, objectType)
}

func (w *Writer) Delete(ctx context.Context, objectType string, keys [][]byte) error {
	topic := w.topic(objectType)
	for _, key := range keys {
		msg := &sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.ByteEncoder(key),
			Value: nil, // tombstone
		}
		select {
		case w.producer.Input() <- msg:
			w.pending++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (w *Writer) Flush(ctx context.Context) error {
	for w.pending > 0 {
		select {
		case <-w.producer.Successes():
			w.pending--
		case err := <-w.producer.Errors():
			w.pending--
			return err.Err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

var _ journalbackend.Interface = (*Writer)(nil)
