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
	"time"

	"github.com/golang/protobuf/ptypes"
	ts "github.com/golang/protobuf/ptypes/timestamp"

	pb "google.golang.org/genproto/googleapis/firestore/v1"
)

// A DocumentSnapshot is a view of a document at the time it was read.
// Snapshots are immutable once produced and may be retained after the
// iterator that yielded them is stopped.
type DocumentSnapshot struct {
	// Ref is a reference to the document. For collection-group queries it
	// is derived from the returned document's own resource name, which may
	// lie under a different parent than the query's.
	Ref *DocumentRef

	// CreateTime is the time the document was created.
	CreateTime time.Time

	// UpdateTime is the time the document was last changed.
	UpdateTime time.Time

	// ReadTime is the time this snapshot was read.
	ReadTime time.Time

	fields map[string]interface{}
}

// Data returns the document's fields as decoded Go values.
func (d *DocumentSnapshot) Data() map[string]interface{} {
	return d.fields
}

// newSnapshotFromResponse builds a snapshot from a streamed query response
// that carries a document.
func (q *Query) newSnapshotFromResponse(res *pb.RunQueryResponse) (*DocumentSnapshot, error) {
	doc := res.Document
	ref, err := q.docRefForName(doc.Name)
	if err != nil {
		return nil, err
	}
	fields, err := q.c.decodeFields(doc.Fields)
	if err != nil {
		return nil, err
	}
	s := &DocumentSnapshot{Ref: ref, fields: fields}
	if s.CreateTime, err = timeFromProto(doc.CreateTime); err != nil {
		return nil, err
	}
	if s.UpdateTime, err = timeFromProto(doc.UpdateTime); err != nil {
		return nil, err
	}
	if s.ReadTime, err = timeFromProto(res.ReadTime); err != nil {
		return nil, err
	}
	return s, nil
}

func timeFromProto(tsp *ts.Timestamp) (time.Time, error) {
	if tsp == nil {
		return time.Time{}, nil
	}
	return ptypes.Timestamp(tsp)
}
