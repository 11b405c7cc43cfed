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
	"sync/atomic"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/google/go-cmp/cmp"
	"github.com/q-logic/firestore/internal/fserr"

	pb "google.golang.org/genproto/googleapis/firestore/v1"
)

func partitionCursor(names ...string) *pb.Cursor {
	cur := &pb.Cursor{Before: true}
	for _, n := range names {
		cur.Values = append(cur.Values, refval(n))
	}
	return cur
}

func TestGetPartitionedQueries(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{}
	c := newTestClient(ft)
	root := c.documentsRoot()
	cur1 := partitionCursor(root + "/G/g")
	cur2 := partitionCursor(root + "/G/q")
	ft.partitionPages = [][]*pb.Cursor{{cur1, cur2}}

	queries, err := c.CollectionGroup("G").GetPartitionedQueries(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	// Two split points make three ranges.
	if len(queries) != 3 {
		t.Fatalf("got %d queries, want 3", len(queries))
	}

	// Each range carries the synthetic name ordering and is half-open:
	// inclusive of its start cursor, exclusive of its end cursor.
	nameOrder := []*pb.StructuredQuery_Order{{
		Field:     &pb.StructuredQuery_FieldReference{FieldPath: "__name__"},
		Direction: pb.StructuredQuery_ASCENDING,
	}}
	wantQueries := []*pb.StructuredQuery{
		{EndAt: cur1},
		{StartAt: cur1, EndAt: cur2},
		{StartAt: cur2},
	}
	for i, want := range wantQueries {
		want.From = []*pb.StructuredQuery_CollectionSelector{{CollectionId: "G", AllDescendants: true}}
		want.OrderBy = nameOrder
		got, err := queries[i].toProto()
		if err != nil {
			t.Fatal(err)
		}
		if !proto.Equal(got, want) {
			t.Errorf("query %d:\ngot  %+v\nwant %+v", i, got, want)
		}
	}

	// The request asks for the split under the same name ordering.
	wantReq := &pb.PartitionQueryRequest{
		Parent: root,
		QueryType: &pb.PartitionQueryRequest_StructuredQuery{StructuredQuery: &pb.StructuredQuery{
			From:    []*pb.StructuredQuery_CollectionSelector{{CollectionId: "G", AllDescendants: true}},
			OrderBy: nameOrder,
		}},
		PartitionCount: 2,
	}
	if len(ft.partitionRequests) != 1 {
		t.Fatalf("got %d PartitionQuery calls, want 1", len(ft.partitionRequests))
	}
	if diff := cmp.Diff(wantReq, ft.partitionRequests[0], cmp.Comparer(proto.Equal)); diff != "" {
		t.Errorf("request: diff (-want +got):\n%s", diff)
	}
}

// When the service returns no split points, the whole group is covered by
// a single unbounded query.
func TestGetPartitionedQueriesNoCursors(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{}
	c := newTestClient(ft)

	queries, err := c.CollectionGroup("G").GetPartitionedQueries(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(queries) != 1 {
		t.Fatalf("got %d queries, want 1", len(queries))
	}
	sq, err := queries[0].toProto()
	if err != nil {
		t.Fatal(err)
	}
	if sq.StartAt != nil || sq.EndAt != nil {
		t.Errorf("single query should be unbounded, got %+v", sq)
	}
}

func TestGetPartitionedQueriesPaging(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{}
	c := newTestClient(ft)
	root := c.documentsRoot()
	ft.partitionPages = [][]*pb.Cursor{
		{partitionCursor(root + "/G/c")},
		{partitionCursor(root + "/G/m"), partitionCursor(root + "/G/t")},
	}

	queries, err := c.CollectionGroup("G").GetPartitionedQueries(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(queries) != 4 {
		t.Errorf("got %d queries, want 4", len(queries))
	}
	if len(ft.partitionRequests) != 2 {
		t.Fatalf("got %d PartitionQuery calls, want 2", len(ft.partitionRequests))
	}
	if got := ft.partitionRequests[1].PageToken; got == "" {
		t.Error("second request has no page token")
	}
}

func TestGetPartitionedQueriesInvalid(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{}
	c := newTestClient(ft)

	for _, test := range []struct {
		desc string
		cg   *CollectionGroup
		n    int
	}{
		{"filter", &CollectionGroup{Query: c.CollectionGroup("G").Where("a", "==", 1)}, 2},
		{"projection", &CollectionGroup{Query: c.CollectionGroup("G").Select("a")}, 2},
		{"limit", &CollectionGroup{Query: c.CollectionGroup("G").Limit(1)}, 2},
		{"offset", &CollectionGroup{Query: c.CollectionGroup("G").Offset(1)}, 2},
		{"zero count", c.CollectionGroup("G"), 0},
	} {
		_, err := test.cg.GetPartitionedQueries(ctx, test.n)
		if fserr.Code(err) != fserr.InvalidArgument {
			t.Errorf("%s: got %v, want InvalidArgument", test.desc, err)
		}
	}
	// Every rejection happens before the service is asked.
	if n := len(ft.partitionRequests); n != 0 {
		t.Errorf("got %d PartitionQuery calls, want 0", n)
	}
}

func TestRunPartitionedQueries(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{}
	c := newTestClient(ft)
	root := c.documentsRoot()
	ft.partitionPages = [][]*pb.Cursor{{
		partitionCursor(root + "/G/g"),
		partitionCursor(root + "/G/q"),
	}}
	ft.responses = []*pb.RunQueryResponse{docResponse(root+"/G/a", nil)}

	var ran, docs int64
	err := c.CollectionGroup("G").RunPartitionedQueries(ctx, 2, func(ctx context.Context, q Query) error {
		atomic.AddInt64(&ran, 1)
		snaps, err := q.Get(ctx)
		if err != nil {
			return err
		}
		atomic.AddInt64(&docs, int64(len(snaps)))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if ran != 3 {
		t.Errorf("f ran %d times, want 3", ran)
	}
	// Each sub-query replays the scripted single-document stream.
	if docs != 3 {
		t.Errorf("got %d documents, want 3", docs)
	}
}
