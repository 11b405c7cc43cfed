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

	"github.com/q-logic/firestore/internal/fserr"
	"golang.org/x/sync/errgroup"

	pb "google.golang.org/genproto/googleapis/firestore/v1"
)

// GetPartitionedQueries splits the collection group into sub-queries over
// disjoint, contiguous document ranges that together cover the whole
// group. It asks the service for up to partitionCount split points and
// returns one more query than the number of points returned, each bounded
// by its neighbors' cursors. The sub-queries are ordered by document name
// and can be run independently, including on different machines.
//
// Only a plain collection group can be partitioned: a query that has
// filters, a projection, a limit or an offset fails with an
// InvalidArgument error before any RPC is issued.
func (cg *CollectionGroup) GetPartitionedQueries(ctx context.Context, partitionCount int) (_ []Query, err error) {
	c := cg.c
	ctx = c.tracer.Start(ctx, "CollectionGroup.GetPartitionedQueries")
	defer func() { c.tracer.End(ctx, err) }()

	cursors, err := cg.getPartitionCursors(ctx, partitionCount)
	if err != nil {
		return nil, err
	}
	// Sub-queries carry the same synthetic name ordering that the
	// partition cursors were computed under.
	base := cg.Query.OrderBy(DocumentID, Asc)
	queries := make([]Query, 0, len(cursors)+1)
	for i := 0; i <= len(cursors); i++ {
		q := base
		// Query i covers [cursor i-1, cursor i); the first query has no
		// lower bound and the last no upper bound.
		if i > 0 {
			q = q.StartAt(cursorValues(cursors[i-1])...)
		}
		if i < len(cursors) {
			q = q.EndBefore(cursorValues(cursors[i])...)
		}
		queries = append(queries, q)
	}
	return queries, nil
}

// RunPartitionedQueries partitions the collection group and runs f once
// per sub-query, each on its own goroutine. It returns the first error
// returned by f or by partitioning; a failure cancels the context passed
// to the remaining calls.
func (cg *CollectionGroup) RunPartitionedQueries(ctx context.Context, partitionCount int, f func(context.Context, Query) error) error {
	queries, err := cg.GetPartitionedQueries(ctx, partitionCount)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		q := q
		g.Go(func() error { return f(ctx, q) })
	}
	return g.Wait()
}

func (cg *CollectionGroup) getPartitionCursors(ctx context.Context, partitionCount int) ([]*pb.Cursor, error) {
	q := cg.Query
	if q.err != nil {
		return nil, q.err
	}
	if len(q.filters) > 0 || len(q.selection) > 0 || q.limit != nil || q.offset > 0 {
		return nil, fserr.Newf(fserr.InvalidArgument, nil,
			"firestore: a query with filters, projections, limits or offsets cannot be partitioned")
	}
	if partitionCount < 1 {
		return nil, fserr.Newf(fserr.InvalidArgument, nil, "firestore: partition count %d must be positive", partitionCount)
	}
	// The split points must come from a total, stable order over the
	// group's documents; ordering by name provides one.
	sq, err := q.OrderBy(DocumentID, Asc).toProto()
	if err != nil {
		return nil, err
	}
	req := &pb.PartitionQueryRequest{
		Parent:         q.parentPath,
		QueryType:      &pb.PartitionQueryRequest_StructuredQuery{StructuredQuery: sq},
		PartitionCount: int64(partitionCount),
	}
	ctx = withResourceHeader(ctx, q.c.path())
	var cursors []*pb.Cursor
	for {
		res, err := q.c.c.PartitionQuery(ctx, req)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, res.Partitions...)
		if res.NextPageToken == "" {
			return cursors, nil
		}
		req.PageToken = res.NextPageToken
	}
}

// cursorValues exposes a partition cursor's values in the form the query
// builder accepts; already-encoded protos pass through rendering as is.
func cursorValues(cur *pb.Cursor) []interface{} {
	vals := make([]interface{}, len(cur.Values))
	for i, v := range cur.Values {
		vals[i] = v
	}
	return vals
}
