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
	"math"

	"github.com/golang/protobuf/ptypes/wrappers"
	"github.com/q-logic/firestore/internal/fserr"

	pb "google.golang.org/genproto/googleapis/firestore/v1"
)

// Direction is the sort direction for result ordering.
type Direction int32

const (
	// Asc sorts results from smallest to largest.
	Asc Direction = Direction(pb.StructuredQuery_ASCENDING)

	// Desc sorts results from largest to smallest.
	Desc Direction = Direction(pb.StructuredQuery_DESCENDING)
)

func (d Direction) reversed() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// DocumentID is the special field name representing the ID of a document
// in queries.
const DocumentID = "__name__"

// Query represents a Firestore query over the documents of a collection or
// collection group.
//
// Query values are immutable. Each Query method creates a new Query; it
// does not modify the old, so queries may be retained and shared freely.
type Query struct {
	c            *Client
	parentPath   string // the query's parent resource, a document or the database documents root
	path         string // full resource path of the collection; prefix for its document names
	collectionID string

	selection      []FieldPath
	filters        []filter
	orders         []order
	limit          *int32
	limitToLast    bool
	offset         int32
	startVals      []interface{}
	endVals        []interface{}
	startBefore    bool
	endBefore      bool
	startSet       bool
	endSet         bool
	allDescendants bool
	tx             []byte

	// err is the first error encountered while building the query. It is
	// latched and reported when the query runs, so that builder calls can
	// chain without error returns.
	err error
}

// A filter is a single Where condition. Filters are applied in the order
// they were added; together with orders, that order affects which composite
// index the service selects.
type filter struct {
	fieldPath FieldPath
	op        string
	value     interface{}
}

type order struct {
	fieldPath FieldPath
	dir       Direction
}

func newQuery(c *Client, parentPath, path, collectionID string, allDescendants bool) Query {
	return Query{
		c:              c,
		parentPath:     parentPath,
		path:           path,
		collectionID:   collectionID,
		allDescendants: allDescendants,
	}
}

// Where returns a new Query that filters the set of results.
// A Query can have multiple filters; they are combined with AND.
// The op argument must be one of "==", "!=", "<", "<=", ">", ">=",
// "array-contains", "array-contains-any", "in" or "not-in".
func (q Query) Where(fp FieldPath, op string, value interface{}) Query {
	if q.err != nil {
		return q
	}
	if _, ok := filterOperators[op]; !ok {
		return q.invalidf("firestore: invalid filter operator %q", op)
	}
	q.filters = append(q.filters[:len(q.filters):len(q.filters)], filter{fp, op, value})
	return q
}

// OrderBy returns a new Query that specifies the order in which results are
// returned. A Query can have multiple OrderBy specifications; each appends
// to the list of existing ones, and the resulting sort is lexicographic by
// insertion order.
//
// To order by document name, use the special field path DocumentID.
func (q Query) OrderBy(fp FieldPath, dir Direction) Query {
	if q.err != nil {
		return q
	}
	if dir != Asc && dir != Desc {
		return q.invalidf("firestore: invalid sort direction %d", dir)
	}
	q.orders = append(q.orders[:len(q.orders):len(q.orders)], order{fp, dir})
	return q
}

// Select returns a new Query that specifies the field paths to return from
// the matched documents. An empty call requests only the document name.
func (q Query) Select(fps ...FieldPath) Query {
	if q.err != nil {
		return q
	}
	if len(fps) == 0 {
		fps = []FieldPath{DocumentID}
	}
	q.selection = fps
	return q
}

// Limit returns a new Query that returns at most n of the first matching
// results.
func (q Query) Limit(n int) Query {
	if q.err != nil {
		return q
	}
	if n < 0 || n > math.MaxInt32 {
		return q.invalidf("firestore: limit %d out of range", n)
	}
	lim := int32(n)
	q.limit = &lim
	q.limitToLast = false
	return q
}

// LimitToLast returns a new Query that returns at most n of the last
// matching results, in the query's requested order. The service only
// supports returning the first N results, so a LimitToLast query is sent
// with every sort direction reversed and the received results are reversed
// again on the client. As a consequence, LimitToLast queries can only be
// run with Get, not Documents.
func (q Query) LimitToLast(n int) Query {
	if q.err != nil {
		return q
	}
	if n < 0 || n > math.MaxInt32 {
		return q.invalidf("firestore: limit %d out of range", n)
	}
	lim := int32(n)
	q.limit = &lim
	q.limitToLast = true
	return q
}

// Offset returns a new Query that skips the first n results.
func (q Query) Offset(n int) Query {
	if q.err != nil {
		return q
	}
	if n < 0 || n > math.MaxInt32 {
		return q.invalidf("firestore: offset %d out of range", n)
	}
	q.offset = int32(n)
	return q
}

// StartAt returns a new Query that starts at the document with the given
// field values, inclusively. Call it with one value for each OrderBy
// clause, in the order they appear. A *DocumentRef value is sent as a
// document reference.
func (q Query) StartAt(vals ...interface{}) Query {
	if q.err != nil {
		return q
	}
	q.startVals, q.startBefore, q.startSet = vals, true, true
	return q
}

// StartAfter is like StartAt, but exclusive.
func (q Query) StartAfter(vals ...interface{}) Query {
	if q.err != nil {
		return q
	}
	q.startVals, q.startBefore, q.startSet = vals, false, true
	return q
}

// EndAt returns a new Query that ends at the document with the given field
// values, inclusively.
func (q Query) EndAt(vals ...interface{}) Query {
	if q.err != nil {
		return q
	}
	q.endVals, q.endBefore, q.endSet = vals, false, true
	return q
}

// EndBefore is like EndAt, but exclusive.
func (q Query) EndBefore(vals ...interface{}) Query {
	if q.err != nil {
		return q
	}
	q.endVals, q.endBefore, q.endSet = vals, true, true
	return q
}

// WithReadTransaction returns a new Query whose RPCs are issued within the
// read transaction with the given ID, as returned by the service's
// BeginTransaction RPC. Beginning and committing transactions is outside
// the scope of this package; the token is threaded into requests unchanged.
func (q Query) WithReadTransaction(tid []byte) Query {
	if q.err != nil {
		return q
	}
	q.tx = tid
	return q
}

func (q Query) invalidf(format string, args ...interface{}) Query {
	q.err = fserr.Newf(fserr.InvalidArgument, nil, format, args...)
	return q
}

// toProto renders the accumulated query state as a structured query.
// If the query is limit-to-last, every sort direction is reversed here;
// Get un-reverses the materialized results (see LimitToLast).
func (q Query) toProto() (*pb.StructuredQuery, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.collectionID == "" {
		return nil, fserr.Newf(fserr.InvalidArgument, nil, "firestore: query has no collection")
	}
	p := &pb.StructuredQuery{
		From: []*pb.StructuredQuery_CollectionSelector{{
			CollectionId:   q.collectionID,
			AllDescendants: q.allDescendants,
		}},
	}
	if len(q.selection) > 0 {
		p.Select = &pb.StructuredQuery_Projection{}
		for _, fp := range q.selection {
			p.Select.Fields = append(p.Select.Fields, fieldRef(fp))
		}
	}

	// If there is only one filter, use it directly. Otherwise, construct
	// a CompositeFilter.
	var pfs []*pb.StructuredQuery_Filter
	for _, f := range q.filters {
		pf, err := q.filterToProto(f)
		if err != nil {
			return nil, err
		}
		pfs = append(pfs, pf)
	}
	if len(pfs) == 1 {
		p.Where = pfs[0]
	} else if len(pfs) > 1 {
		p.Where = &pb.StructuredQuery_Filter{
			FilterType: &pb.StructuredQuery_Filter_CompositeFilter{CompositeFilter: &pb.StructuredQuery_CompositeFilter{
				Op:      pb.StructuredQuery_CompositeFilter_AND,
				Filters: pfs,
			}},
		}
	}

	for _, o := range q.orders {
		dir := o.dir
		if q.limitToLast {
			dir = dir.reversed()
		}
		p.OrderBy = append(p.OrderBy, &pb.StructuredQuery_Order{
			Field:     fieldRef(o.fieldPath),
			Direction: pb.StructuredQuery_Direction(dir),
		})
	}

	if q.limit != nil {
		p.Limit = &wrappers.Int32Value{Value: *q.limit}
	}
	if q.offset > 0 {
		p.Offset = q.offset
	}
	if q.startSet {
		cur, err := q.toCursor(q.startVals, q.startBefore)
		if err != nil {
			return nil, err
		}
		p.StartAt = cur
	}
	if q.endSet {
		cur, err := q.toCursor(q.endVals, q.endBefore)
		if err != nil {
			return nil, err
		}
		p.EndAt = cur
	}
	return p, nil
}

func (q Query) toCursor(vals []interface{}, before bool) (*pb.Cursor, error) {
	cur := &pb.Cursor{Before: before}
	for _, v := range vals {
		pv, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		cur.Values = append(cur.Values, pv)
	}
	return cur, nil
}

// runQueryRequest renders the full RunQuery request, including the
// transaction token when one was supplied.
func (q Query) runQueryRequest() (*pb.RunQueryRequest, error) {
	sq, err := q.toProto()
	if err != nil {
		return nil, err
	}
	req := &pb.RunQueryRequest{
		Parent:    q.parentPath,
		QueryType: &pb.RunQueryRequest_StructuredQuery{StructuredQuery: sq},
	}
	if q.tx != nil {
		req.ConsistencySelector = &pb.RunQueryRequest_Transaction{Transaction: q.tx}
	}
	return req, nil
}

var filterOperators = map[string]pb.StructuredQuery_FieldFilter_Operator{
	"<":                  pb.StructuredQuery_FieldFilter_LESS_THAN,
	"<=":                 pb.StructuredQuery_FieldFilter_LESS_THAN_OR_EQUAL,
	">":                  pb.StructuredQuery_FieldFilter_GREATER_THAN,
	">=":                 pb.StructuredQuery_FieldFilter_GREATER_THAN_OR_EQUAL,
	"==":                 pb.StructuredQuery_FieldFilter_EQUAL,
	"!=":                 pb.StructuredQuery_FieldFilter_NOT_EQUAL,
	"array-contains":     pb.StructuredQuery_FieldFilter_ARRAY_CONTAINS,
	"array-contains-any": pb.StructuredQuery_FieldFilter_ARRAY_CONTAINS_ANY,
	"in":                 pb.StructuredQuery_FieldFilter_IN,
	"not-in":             pb.StructuredQuery_FieldFilter_NOT_IN,
}

func (q Query) filterToProto(f filter) (*pb.StructuredQuery_Filter, error) {
	// Filters on the document name compare references, not strings.
	if f.fieldPath == DocumentID {
		var refPath string
		switch v := f.value.(type) {
		case string:
			refPath = q.path + "/" + v
		case *DocumentRef:
			refPath = v.Path
		default:
			return nil, fserr.Newf(fserr.InvalidArgument, nil,
				"firestore: a %s filter value must be a string or *DocumentRef, not %T", DocumentID, f.value)
		}
		return newFieldFilter(f.fieldPath, f.op, &pb.Value{ValueType: &pb.Value_ReferenceValue{ReferenceValue: refPath}})
	}
	// "nil" and "NaN" have no representable field value; they become unary
	// filters, and only with the equality operators.
	if f.value == nil || isNaN(f.value) {
		uop, err := unaryOpFor(f.op, f.value)
		if err != nil {
			return nil, err
		}
		return &pb.StructuredQuery_Filter{
			FilterType: &pb.StructuredQuery_Filter_UnaryFilter{
				UnaryFilter: &pb.StructuredQuery_UnaryFilter{
					OperandType: &pb.StructuredQuery_UnaryFilter_Field{
						Field: fieldRef(f.fieldPath),
					},
					Op: uop,
				},
			},
		}, nil
	}
	pv, err := encodeValue(f.value)
	if err != nil {
		return nil, err
	}
	return newFieldFilter(f.fieldPath, f.op, pv)
}

func unaryOpFor(op string, value interface{}) (pb.StructuredQuery_UnaryFilter_Operator, error) {
	switch {
	case value == nil && op == "==":
		return pb.StructuredQuery_UnaryFilter_IS_NULL, nil
	case value == nil && op == "!=":
		return pb.StructuredQuery_UnaryFilter_IS_NOT_NULL, nil
	case isNaN(value) && op == "==":
		return pb.StructuredQuery_UnaryFilter_IS_NAN, nil
	case isNaN(value) && op == "!=":
		return pb.StructuredQuery_UnaryFilter_IS_NOT_NAN, nil
	default:
		return pb.StructuredQuery_UnaryFilter_OPERATOR_UNSPECIFIED,
			fserr.Newf(fserr.InvalidArgument, nil, "firestore: must use == or != when comparing %v", value)
	}
}

func isNaN(x interface{}) bool {
	switch x := x.(type) {
	case float32:
		return math.IsNaN(float64(x))
	case float64:
		return math.IsNaN(x)
	default:
		return false
	}
}

func fieldRef(fp FieldPath) *pb.StructuredQuery_FieldReference {
	return &pb.StructuredQuery_FieldReference{FieldPath: toServiceFieldPath(fp)}
}

func newFieldFilter(fp FieldPath, op string, val *pb.Value) (*pb.StructuredQuery_Filter, error) {
	fop, ok := filterOperators[op]
	if !ok {
		return nil, fserr.Newf(fserr.InvalidArgument, nil, "firestore: invalid filter operator %q", op)
	}
	return &pb.StructuredQuery_Filter{
		FilterType: &pb.StructuredQuery_Filter_FieldFilter{
			FieldFilter: &pb.StructuredQuery_FieldFilter{
				Field: fieldRef(fp),
				Op:    fop,
				Value: val,
			},
		},
	}, nil
}

// A CollectionGroup is a query over every collection in the database with a
// given ID, regardless of the collection's parent. Obtain one from
// Client.CollectionGroup.
type CollectionGroup struct {
	Query
}

// CollectionGroup returns a query over all collections whose last path
// component is collectionID.
func (c *Client) CollectionGroup(collectionID string) *CollectionGroup {
	cg, err := newCollectionGroup(c, collectionID, true)
	if err != nil {
		// Unreachable with allDescendants forced true.
		cg = &CollectionGroup{Query: Query{c: c, err: err}}
	}
	return cg
}

// newCollectionGroup builds a collection-group query. A collection group
// searches all descendants of the database root; a caller asking for
// anything else has confused collection groups with plain collections, and
// the mistake is reported before the query can run.
func newCollectionGroup(c *Client, collectionID string, allDescendants bool) (*CollectionGroup, error) {
	if !allDescendants {
		return nil, fserr.Newf(fserr.InvalidArgument, nil,
			"firestore: a collection group query must search all descendants")
	}
	root := c.documentsRoot()
	return &CollectionGroup{
		Query: newQuery(c, root, root+"/"+collectionID, collectionID, true),
	}, nil
}
