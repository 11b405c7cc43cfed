// Copyright 2021 The Q-Logic Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package firestore

import (
	"context"
	"io"
	"strings"

	"github.com/q-logic/firestore/internal/fserr"

	pb "google.golang.org/genproto/googleapis/firestore/v1"
)

// Get runs the query and returns all matching documents.
//
// For a LimitToLast query the materialized results are reversed before
// being returned, so they appear in the query's requested order; the wire
// request was sent with reversed orderings (see LimitToLast).
func (q Query) Get(ctx context.Context) (_ []*DocumentSnapshot, err error) {
	if q.c == nil {
		return nil, fserr.Newf(fserr.InvalidArgument, nil, "firestore: query has no client")
	}
	ctx = q.c.tracer.Start(ctx, "Query.Get")
	defer func() { q.c.tracer.End(ctx, err) }()

	it := newDocumentIterator(ctx, q)
	defer it.Stop()
	var snaps []*DocumentSnapshot
	for {
		snap, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if q.limitToLast {
		for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
			snaps[i], snaps[j] = snaps[j], snaps[i]
		}
	}
	return snaps, nil
}

// Documents runs the query and returns an iterator over the matching
// documents, in the order they arrive from the service.
//
// The iterator is single-pass: once exhausted or stopped it cannot be
// rewound; call Documents again to re-run the query. Always call Stop when
// done, so the underlying stream is released even if the iterator was not
// drained.
//
// LimitToLast queries cannot be streamed, because their results can only
// be put in the requested order after the full result set has arrived; the
// returned iterator fails with an InvalidArgument error before any RPC is
// issued. Use Get instead.
func (q Query) Documents(ctx context.Context) *DocumentIterator {
	it := newDocumentIterator(ctx, q)
	if it.err == nil && q.limitToLast {
		it.err = fserr.Newf(fserr.InvalidArgument, nil,
			"firestore: cannot stream a LimitToLast query; use Query.Get")
	}
	return it
}

// A DocumentIterator produces the snapshots of a single query execution.
//
// The iterator drives the RunQuery response stream: responses that carry
// no document (skipped-result counts and progress markers) are consumed
// without producing a snapshot, and the stream's end surfaces as io.EOF.
type DocumentIterator struct {
	ctx context.Context
	q   *Query

	// The stream is opened on the first call to Next, so that a query
	// whose configuration is invalid never costs an RPC.
	streamClient pb.Firestore_RunQueryClient

	// We call cancel to make sure the stream client doesn't leak
	// resources. We don't need to call it if Recv() returns a non-nil
	// error. See https://godoc.org/google.golang.org/grpc#ClientConn.NewStream.
	cancel func()
	err    error
}

func newDocumentIterator(ctx context.Context, q Query) *DocumentIterator {
	it := &DocumentIterator{ctx: ctx, q: &q}
	if q.err != nil {
		it.err = q.err
	} else if q.c == nil {
		it.err = fserr.Newf(fserr.InvalidArgument, nil, "firestore: query has no client")
	}
	return it
}

// Next returns the next matching document. It returns io.EOF when there
// are no more results. Once Next returns a non-nil error, it will always
// return the same error.
func (it *DocumentIterator) Next() (*DocumentSnapshot, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.streamClient == nil {
		if err := it.open(); err != nil {
			it.err = err
			return nil, err
		}
	}
	snap, err := it.nextSnapshot()
	if err != nil {
		it.err = err
		return nil, err
	}
	return snap, nil
}

func (it *DocumentIterator) open() error {
	req, err := it.q.runQueryRequest()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(withResourceHeader(it.ctx, it.q.c.path()))
	sc, err := it.q.c.c.RunQuery(ctx, req)
	if err != nil {
		cancel()
		return err
	}
	it.streamClient = sc
	it.cancel = cancel
	return nil
}

func (it *DocumentIterator) nextSnapshot() (*DocumentSnapshot, error) {
	for {
		res, err := it.streamClient.Recv()
		if err != nil {
			// Includes io.EOF at the end of the stream; transport errors
			// are surfaced to the caller as is.
			return nil, err
		}
		// No document => the response only reports progress or a
		// skipped-results count; keep receiving.
		if res.Document == nil {
			continue
		}
		return it.q.newSnapshotFromResponse(res)
	}
}

// Stop stops the iterator, releasing the underlying stream if one was
// opened. Calling Next on a stopped iterator returns io.EOF, or the error
// that Next previously returned. Stop may be called multiple times.
func (it *DocumentIterator) Stop() {
	if it.cancel != nil {
		it.cancel()
		it.cancel = nil
	}
	if it.err == nil {
		it.err = io.EOF
	}
}

// docRefForName resolves a document resource name from a query response.
// A single-collection query resolves names against its own collection
// path; a collection-group query derives the owning collection from the
// returned document's name, which can lie anywhere in the database.
func (q *Query) docRefForName(name string) (*DocumentRef, error) {
	if q.allDescendants {
		return docRefFromName(q.c, name)
	}
	prefix := q.path + "/"
	if !strings.HasPrefix(name, prefix) {
		return nil, fserr.Newf(fserr.Internal, nil,
			"firestore: document %q is not in collection %q", name, q.path)
	}
	id := strings.TrimPrefix(name, prefix)
	if id == "" || strings.Contains(id, "/") {
		return nil, fserr.Newf(fserr.Internal, nil,
			"firestore: %q is not a direct document of collection %q", name, q.path)
	}
	rel := strings.TrimPrefix(q.path, q.c.documentsRoot()+"/")
	coll := q.c.Collection(rel)
	if coll.err != nil {
		return nil, coll.err
	}
	return coll.Doc(id), nil
}
