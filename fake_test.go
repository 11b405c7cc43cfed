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

// A scripted fake of the Firestore service, standing in for the gRPC
// transport so that query tests are deterministic and run without a
// backend.

import (
	"context"
	"io"
	"sync"

	"github.com/q-logic/firestore/internal/oc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	ts "github.com/golang/protobuf/ptypes/timestamp"
	pb "google.golang.org/genproto/googleapis/firestore/v1"
)

// fakeTransport implements the RunQuery and PartitionQuery methods of
// pb.FirestoreClient with scripted responses, and records every request it
// receives. The remaining methods of the interface come from the embedded
// nil interface value and panic if called.
type fakeTransport struct {
	pb.FirestoreClient

	mu sync.Mutex

	// RunQuery script and call record.
	responses        []*pb.RunQueryResponse
	recvErr          error // returned after responses are exhausted, instead of io.EOF
	runQueryErr      error // returned by RunQuery itself
	runQueryRequests []*pb.RunQueryRequest
	streams          []*fakeRunQueryStream

	// PartitionQuery script and call record.
	partitionPages    [][]*pb.Cursor // each call consumes one page
	partitionErr      error
	partitionRequests []*pb.PartitionQueryRequest
}

func (f *fakeTransport) RunQuery(ctx context.Context, req *pb.RunQueryRequest, _ ...grpc.CallOption) (pb.Firestore_RunQueryClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runQueryRequests = append(f.runQueryRequests, req)
	if f.runQueryErr != nil {
		return nil, f.runQueryErr
	}
	s := &fakeRunQueryStream{
		ctx:       ctx,
		responses: append([]*pb.RunQueryResponse(nil), f.responses...),
		recvErr:   f.recvErr,
	}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeTransport) PartitionQuery(ctx context.Context, req *pb.PartitionQueryRequest, _ ...grpc.CallOption) (*pb.PartitionQueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partitionRequests = append(f.partitionRequests, req)
	if f.partitionErr != nil {
		return nil, f.partitionErr
	}
	if len(f.partitionPages) == 0 {
		return &pb.PartitionQueryResponse{}, nil
	}
	res := &pb.PartitionQueryResponse{Partitions: f.partitionPages[0]}
	f.partitionPages = f.partitionPages[1:]
	if len(f.partitionPages) > 0 {
		res.NextPageToken = "more"
	}
	return res, nil
}

func (f *fakeTransport) runQueryCalls() []*pb.RunQueryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runQueryRequests
}

// fakeRunQueryStream is a fake server stream. It replays its scripted
// responses, then terminates.
type fakeRunQueryStream struct {
	ctx       context.Context
	responses []*pb.RunQueryResponse
	recvErr   error
}

func (s *fakeRunQueryStream) Recv() (*pb.RunQueryResponse, error) {
	if len(s.responses) == 0 {
		if s.recvErr != nil {
			return nil, s.recvErr
		}
		return nil, io.EOF
	}
	res := s.responses[0]
	s.responses = s.responses[1:]
	return res, nil
}

func (s *fakeRunQueryStream) Context() context.Context     { return s.ctx }
func (s *fakeRunQueryStream) Header() (metadata.MD, error) { return nil, nil }
func (s *fakeRunQueryStream) Trailer() metadata.MD         { return nil }
func (s *fakeRunQueryStream) CloseSend() error             { return nil }
func (s *fakeRunQueryStream) SendMsg(m interface{}) error  { return nil }
func (s *fakeRunQueryStream) RecvMsg(m interface{}) error  { return nil }

const testProjectID = "project-project"

func newTestClient(ft pb.FirestoreClient) *Client {
	return &Client{
		c:          ft,
		projectID:  testProjectID,
		databaseID: DefaultDatabaseID,
		tracer: &oc.Tracer{
			Package:        pkgName,
			Provider:       oc.ProviderName(ft),
			LatencyMeasure: latencyMeasure,
		},
	}
}

var (
	aCreateTime  = &ts.Timestamp{Seconds: 1551000000}
	anUpdateTime = &ts.Timestamp{Seconds: 1551000100}
	aReadTime    = &ts.Timestamp{Seconds: 1551000200}
)

// docResponse builds a streamed response carrying a document, in the shape
// the service sends.
func docResponse(name string, fields map[string]*pb.Value) *pb.RunQueryResponse {
	return &pb.RunQueryResponse{
		Document: &pb.Document{
			Name:       name,
			Fields:     fields,
			CreateTime: aCreateTime,
			UpdateTime: anUpdateTime,
		},
		ReadTime: aReadTime,
	}
}

// skipResponse builds a response that only reports skipped results.
func skipResponse(n int32) *pb.RunQueryResponse {
	return &pb.RunQueryResponse{SkippedResults: n, ReadTime: aReadTime}
}

// emptyResponse builds a progress-only response with no document.
func emptyResponse() *pb.RunQueryResponse {
	return &pb.RunQueryResponse{ReadTime: aReadTime}
}

func intval(i int64) *pb.Value {
	return &pb.Value{ValueType: &pb.Value_IntegerValue{IntegerValue: i}}
}

func strval(s string) *pb.Value {
	return &pb.Value{ValueType: &pb.Value_StringValue{StringValue: s}}
}

func floatval(f float64) *pb.Value {
	return &pb.Value{ValueType: &pb.Value_DoubleValue{DoubleValue: f}}
}

func bytesval(b []byte) *pb.Value {
	return &pb.Value{ValueType: &pb.Value_BytesValue{BytesValue: b}}
}

func refval(path string) *pb.Value {
	return &pb.Value{ValueType: &pb.Value_ReferenceValue{ReferenceValue: path}}
}

func mapval(m map[string]*pb.Value) *pb.Value {
	return &pb.Value{ValueType: &pb.Value_MapValue{MapValue: &pb.MapValue{Fields: m}}}
}
